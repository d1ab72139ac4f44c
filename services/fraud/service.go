package fraud

import (
	"context"
	"time"

	"creator-ledger/pkg/config"
	"creator-ledger/pkg/repository"
	"creator-ledger/pkg/sequence"
	"creator-ledger/pkg/storage"
	"creator-ledger/services/earnings"
	"creator-ledger/services/payout"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

const defaultEvidencePrefix = "fraud-evidence"

// Ledger debits chargebacks from creator earnings.
type Ledger interface {
	LockBalance(ctx context.Context, tx *gorm.DB, creatorID string) (*earnings.Balance, error)
	Debit(ctx context.Context, tx *gorm.DB, creatorID string, amount decimal.Decimal, reference string) (*earnings.EarningsRecord, error)
}

// Payouts moves the charged-back request inside the chargeback transaction.
type Payouts interface {
	GetTx(ctx context.Context, tx *gorm.DB, requestID string) (*payout.PayoutRequest, error)
	ApplyTx(ctx context.Context, tx *gorm.DB, cmd payout.Command) (*payout.PayoutRequest, error)
}

// Service keeps fraud flags and files chargebacks.
type Service struct {
	db      *gorm.DB
	node    *snowflake.Node
	ledger  Ledger
	payouts Payouts
	store   storage.ObjectStore
	refs    sequence.Generator
	prefix  string
	now     func() time.Time

	flags       repository.Repository[FraudFlag]
	chargebacks repository.Repository[Chargeback]
}

type ServiceParams struct {
	fx.In
	DB      *gorm.DB
	Node    *snowflake.Node
	Ledger  Ledger
	Payouts Payouts
	Store   storage.ObjectStore `optional:"true"`
	Refs    sequence.Generator  `optional:"true"`
	Config  *config.Config      `optional:"true"`
	Clock   func() time.Time    `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	s := &Service{
		db:      p.DB,
		node:    p.Node,
		ledger:  p.Ledger,
		payouts: p.Payouts,
		store:   p.Store,
		refs:    p.Refs,
		prefix:  defaultEvidencePrefix,
		now:     p.Clock,

		flags:       repository.ProvideStore[FraudFlag](p.DB),
		chargebacks: repository.ProvideStore[Chargeback](p.DB),
	}
	if s.now == nil {
		s.now = time.Now
	}
	if p.Config != nil && p.Config.Ledger.EvidenceBucketPrefix != "" {
		s.prefix = p.Config.Ledger.EvidenceBucketPrefix
	}
	return s
}
