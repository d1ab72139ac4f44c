package payout

import (
	"context"
	"errors"
	"strings"
	"time"

	"creator-ledger/pkg/config"
	"creator-ledger/pkg/db/option"
	"creator-ledger/pkg/db/pagination"
	"creator-ledger/pkg/errutil"
	"creator-ledger/pkg/featureflags"
	"creator-ledger/pkg/logger"
	"creator-ledger/pkg/metrics"
	"creator-ledger/pkg/money"
	"creator-ledger/pkg/repository"
	"creator-ledger/pkg/sequence"
	"creator-ledger/services/earnings"
	"creator-ledger/services/wallet"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultWithdrawalsFlag = "withdrawals_enabled"
	defaultMonthlyWindow   = 30 * 24 * time.Hour
)

var (
	defaultMinimum      = decimal.NewFromInt(18)
	defaultMonthlyLimit = decimal.NewFromInt(5000)
)

// Ledger is the slice of the earnings store a payout touches.
type Ledger interface {
	LockBalance(ctx context.Context, tx *gorm.DB, creatorID string) (*earnings.Balance, error)
	UnpaidBalance(ctx context.Context, tx *gorm.DB, creatorID string) (decimal.Decimal, error)
	Settle(ctx context.Context, tx *gorm.DB, creatorID, payoutRequestID string, amount decimal.Decimal) ([]*earnings.EarningsRecord, error)
}

type Wallets interface {
	FindWallet(ctx context.Context, tx *gorm.DB, creatorID string) (*wallet.Wallet, error)
}

type Pins interface {
	Exists(ctx context.Context, tx *gorm.DB, creatorID string) (bool, error)
	VerifyTx(ctx context.Context, tx *gorm.DB, creatorID, pin string) error
}

type Service struct {
	db      *gorm.DB
	node    *snowflake.Node
	ledger  Ledger
	wallets Wallets
	pins    Pins
	flags   featureflags.FeatureFlag
	refs    sequence.Generator
	now     func() time.Time

	flag          string
	minimum       decimal.Decimal
	monthlyLimit  decimal.Decimal
	monthlyWindow time.Duration

	requests repository.Repository[PayoutRequest]
	settings repository.Repository[PayoutSetting]
}

type ServiceParams struct {
	fx.In
	DB      *gorm.DB
	Node    *snowflake.Node
	Ledger  Ledger
	Wallets Wallets
	Pins    Pins
	Flags   featureflags.FeatureFlag `optional:"true"`
	Refs    sequence.Generator       `optional:"true"`
	Config  *config.Config           `optional:"true"`
	Clock   func() time.Time         `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	s := &Service{
		db:      p.DB,
		node:    p.Node,
		ledger:  p.Ledger,
		wallets: p.Wallets,
		pins:    p.Pins,
		flags:   p.Flags,
		refs:    p.Refs,
		now:     p.Clock,

		flag:          defaultWithdrawalsFlag,
		minimum:       defaultMinimum,
		monthlyLimit:  defaultMonthlyLimit,
		monthlyWindow: defaultMonthlyWindow,

		requests: repository.ProvideStore[PayoutRequest](p.DB),
		settings: repository.ProvideStore[PayoutSetting](p.DB),
	}
	if s.now == nil {
		s.now = time.Now
	}
	if p.Config != nil {
		l := p.Config.Ledger
		if l.WithdrawalsFlag != "" {
			s.flag = l.WithdrawalsFlag
		}
		if d, err := decimal.NewFromString(l.MinimumWithdrawal); err == nil && d.IsPositive() {
			s.minimum = d
		}
		if d, err := decimal.NewFromString(l.DefaultMonthlyLimit); err == nil && d.IsPositive() {
			s.monthlyLimit = d
		}
		if l.MonthlyWindow > 0 {
			s.monthlyWindow = l.MonthlyWindow
		}
	}
	return s
}

type SubmitParams struct {
	CreatorID     string
	Amount        decimal.Decimal
	CryptoType    string
	WalletAddress string
	Pin           string
}

// Submit opens a pending withdrawal. All checks and the insert run in one
// transaction holding the creator's balance lock, so concurrent submissions
// for the same creator are serialized.
func (s *Service) Submit(ctx context.Context, p SubmitParams) (*PayoutRequest, error) {
	req, err := s.submit(ctx, p)
	if err != nil {
		var be errutil.BaseError
		if errors.As(err, &be) && be.Code != errutil.StatusInternal {
			metrics.WithdrawalRejections.WithLabelValues(be.Reason).Inc()
		}
		return nil, err
	}
	return req, nil
}

func (s *Service) submit(ctx context.Context, p SubmitParams) (*PayoutRequest, error) {
	creatorID := strings.TrimSpace(p.CreatorID)
	if creatorID == "" {
		return nil, ErrCreatorRequired
	}
	if err := money.Validate(p.Amount); err != nil {
		return nil, err
	}
	ct, err := wallet.ParseCryptoType(p.CryptoType)
	if err != nil {
		return nil, err
	}
	address := strings.TrimSpace(p.WalletAddress)

	if s.flags != nil && !s.flags.IsEnabled(ctx, s.flag, true) {
		return nil, ErrWithdrawalsPaused.With(errutil.WithDetails(errutil.Detail{Field: "reason", Message: "withdrawals are disabled platform-wide"}))
	}

	reference := s.nextReference(ctx)

	var out *PayoutRequest
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.ledger.LockBalance(ctx, tx, creatorID); err != nil {
			return err
		}

		setting, err := s.setting(ctx, tx, creatorID)
		if err != nil {
			return err
		}
		if !setting.WithdrawalsEnabled {
			return ErrWithdrawalsPaused.With(errutil.WithDetails(errutil.Detail{Field: "reason", Message: setting.PauseReason}))
		}

		saved, err := s.wallets.FindWallet(ctx, tx, creatorID)
		if err != nil {
			return err
		}
		hasPin, err := s.pins.Exists(ctx, tx, creatorID)
		if err != nil {
			return err
		}
		if saved == nil || !hasPin {
			return ErrSetupIncomplete
		}

		if err := s.pins.VerifyTx(ctx, tx, creatorID, p.Pin); err != nil {
			return err
		}

		if p.Amount.LessThan(s.minimum) {
			return ErrBelowMinimum.With(errutil.WithMessage("minimum withdrawal is " + money.String(s.minimum) + " USD"))
		}

		available, err := s.ledger.UnpaidBalance(ctx, tx, creatorID)
		if err != nil {
			return err
		}
		if p.Amount.GreaterThan(available) {
			return ErrInsufficientBalance
		}

		now := s.now().UTC()
		spent, err := s.spentSince(ctx, tx, creatorID, now.Add(-s.monthlyWindow))
		if err != nil {
			return err
		}
		limit := s.monthlyLimit
		if setting.MonthlyLimitUSD.Valid {
			limit = setting.MonthlyLimitUSD.Decimal
		}
		if spent.Add(p.Amount).GreaterThan(limit) {
			return ErrMonthlyLimitExceeded.With(errutil.WithDetails(
				errutil.Detail{Field: "limit", Message: money.String(limit)},
				errutil.Detail{Field: "remaining", Message: money.String(decimal.Max(limit.Sub(spent), decimal.Zero))},
			))
		}

		pending, err := s.requests.WithTrx(tx).Count(ctx, &PayoutRequest{CreatorID: creatorID, Status: StatusPending})
		if err != nil {
			return err
		}
		if pending > 0 {
			return ErrPendingRequestExists
		}

		if !sameWallet(saved, ct, address) {
			return ErrWalletMismatch
		}

		req := &PayoutRequest{
			ID:            s.node.Generate().String(),
			Reference:     reference,
			CreatorID:     creatorID,
			AmountUSD:     p.Amount,
			CryptoType:    saved.CryptoType,
			WalletAddress: saved.Address,
			Status:        StatusPending,
			RequestedAt:   now,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := s.insertPending(ctx, tx, req); err != nil {
			return err
		}
		out = req
		return nil
	})
	if err != nil {
		return nil, errutil.Store("failed to submit withdrawal", err)
	}

	logger.Ctx(ctx).Info("withdrawal submitted",
		zap.String("creator_id", creatorID),
		zap.String("request_id", out.ID),
		zap.String("reference", out.Reference),
		zap.String("amount_usd", out.AmountUSD.String()),
	)
	return out, nil
}

// insertPending stores req. A second pending row for the creator trips the
// one-pending unique index.
func (s *Service) insertPending(ctx context.Context, tx *gorm.DB, req *PayoutRequest) error {
	if err := s.requests.WithTrx(tx).Create(ctx, req); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrPendingRequestExists
		}
		return err
	}
	return nil
}

func (s *Service) nextReference(ctx context.Context) string {
	if s.refs != nil {
		ref, err := s.refs.NextPayoutReference(ctx)
		if err == nil {
			return ref
		}
		logger.Ctx(ctx).Warn("payout reference generator unavailable", zap.Error(err))
	}
	return "PAY-" + s.node.Generate().String()
}

func sameWallet(saved *wallet.Wallet, ct wallet.CryptoType, address string) bool {
	if saved.CryptoType != ct {
		return false
	}
	// Hex addresses are case-insensitive apart from the optional checksum.
	if ct == wallet.BEP20 {
		return strings.EqualFold(saved.Address, address)
	}
	return saved.Address == address
}

// spentSince sums approved and completed requests requested at or after since.
func (s *Service) spentSince(ctx context.Context, tx *gorm.DB, creatorID string, since time.Time) (decimal.Decimal, error) {
	reqs, err := s.requests.WithTrx(tx).Find(ctx, &PayoutRequest{CreatorID: creatorID}, option.ApplyOperator(
		option.Condition{Field: "status", Operator: option.IN, Value: []Status{StatusApproved, StatusCompleted}},
		option.Condition{Field: "requested_at", Operator: option.GTE, Value: since},
	))
	if err != nil {
		return decimal.Zero, err
	}
	amounts := make([]decimal.Decimal, 0, len(reqs))
	for _, r := range reqs {
		amounts = append(amounts, r.AmountUSD)
	}
	return money.Sum(amounts...), nil
}

// Apply runs an admin transition in its own transaction.
func (s *Service) Apply(ctx context.Context, cmd Command) (*PayoutRequest, error) {
	var out *PayoutRequest
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		req, err := s.ApplyTx(ctx, tx, cmd)
		if err != nil {
			return err
		}
		out = req
		return nil
	})
	if err != nil {
		return nil, errutil.Store("failed to update payout request", err)
	}
	return out, nil
}

// ApplyTx moves a request along the transition table inside tx. The update
// is conditional on the source state, so a request that changed underneath
// fails with ErrInvalidTransition and nothing is written.
func (s *Service) ApplyTx(ctx context.Context, tx *gorm.DB, cmd Command) (*PayoutRequest, error) {
	req, err := s.applyTx(ctx, tx, cmd)
	result := "ok"
	if err != nil {
		result = "error"
		var be errutil.BaseError
		if errors.As(err, &be) && be.Reason != "" {
			result = strings.ToLower(be.Reason)
		}
	}
	metrics.PayoutTransitions.WithLabelValues(string(cmd.Action()), result).Inc()
	return req, err
}

func (s *Service) applyTx(ctx context.Context, tx *gorm.DB, cmd Command) (*PayoutRequest, error) {
	t, ok := transitions[cmd.Action()]
	if !ok {
		return nil, ErrUnknownAction
	}
	requestID, adminID := cmd.target()
	if strings.TrimSpace(requestID) == "" {
		return nil, ErrRequestIDRequired
	}
	if strings.TrimSpace(adminID) == "" {
		return nil, ErrAdminRequired
	}
	if err := cmd.validate(); err != nil {
		return nil, err
	}

	req, err := s.GetTx(ctx, tx, requestID)
	if err != nil {
		return nil, err
	}
	if _, err := s.ledger.LockBalance(ctx, tx, req.CreatorID); err != nil {
		return nil, err
	}
	req, err = s.requests.WithTrx(tx).FindOne(ctx, &PayoutRequest{ID: requestID}, option.WithLockingUpdate())
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, ErrRequestNotFound
	}
	if req.Status != t.from {
		return nil, invalidTransition(req.Status, cmd.Action())
	}

	now := s.now().UTC()
	res := tx.WithContext(ctx).Model(&PayoutRequest{}).
		Where("id = ? AND status = ?", req.ID, t.from).
		Updates(t.updates(cmd, adminID, now))
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, invalidTransition(req.Status, cmd.Action())
	}

	if t.settle {
		if _, err := s.ledger.Settle(ctx, tx, req.CreatorID, req.ID, req.AmountUSD); err != nil {
			return nil, err
		}
	}

	updated, err := s.GetTx(ctx, tx, req.ID)
	if err != nil {
		return nil, err
	}

	logger.Ctx(ctx).Info("payout request transitioned",
		zap.String("request_id", req.ID),
		zap.String("action", string(cmd.Action())),
		zap.String("from", string(t.from)),
		zap.String("to", string(t.to)),
		zap.String("admin_id", adminID),
	)
	return updated, nil
}

func invalidTransition(from Status, action Action) error {
	return ErrInvalidTransition.With(errutil.WithMessage("cannot " + string(action) + " a " + string(from) + " payout request"))
}

func (s *Service) Approve(ctx context.Context, adminID, requestID, note string) (*PayoutRequest, error) {
	return s.Apply(ctx, ApproveCommand{RequestID: requestID, AdminID: adminID, Note: note})
}

func (s *Service) Complete(ctx context.Context, adminID, requestID, transactionHash string) (*PayoutRequest, error) {
	return s.Apply(ctx, CompleteCommand{RequestID: requestID, AdminID: adminID, TransactionHash: transactionHash})
}

func (s *Service) Reject(ctx context.Context, adminID, requestID, reason string) (*PayoutRequest, error) {
	return s.Apply(ctx, RejectCommand{RequestID: requestID, AdminID: adminID, Reason: reason})
}

// GetTx loads a request inside tx.
func (s *Service) GetTx(ctx context.Context, tx *gorm.DB, requestID string) (*PayoutRequest, error) {
	if strings.TrimSpace(requestID) == "" {
		return nil, ErrRequestIDRequired
	}
	req, err := s.requests.WithTrx(tx).FindOne(ctx, &PayoutRequest{ID: requestID})
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, ErrRequestNotFound
	}
	return req, nil
}

func (s *Service) Get(ctx context.Context, requestID string) (*PayoutRequest, error) {
	req, err := s.GetTx(ctx, s.db, requestID)
	if err != nil {
		return nil, errutil.Store("failed to read payout request", err)
	}
	return req, nil
}

type ListParams struct {
	CreatorID string
	Status    Status
	pagination.Pagination
}

// History lists a creator's own requests, newest first.
func (s *Service) History(ctx context.Context, creatorID string, page pagination.Pagination) ([]*PayoutRequest, *pagination.PageInfo, error) {
	if strings.TrimSpace(creatorID) == "" {
		return nil, nil, ErrCreatorRequired
	}
	return s.List(ctx, ListParams{CreatorID: creatorID, Pagination: page})
}

func (s *Service) List(ctx context.Context, p ListParams) ([]*PayoutRequest, *pagination.PageInfo, error) {
	if p.Status != "" && !p.Status.Valid() {
		return nil, nil, ErrInvalidStatus
	}
	page := p.Pagination.Normalize()

	var cursor *pagination.Cursor
	if page.Cursor != "" {
		c, err := pagination.DecodeCursor(page.Cursor)
		if err != nil {
			return nil, nil, earnings.ErrInvalidCursor.With(errutil.WithErr(err))
		}
		cursor = c
	}

	reqs, err := s.requests.Find(ctx, &PayoutRequest{CreatorID: p.CreatorID, Status: p.Status}, pagination.Newest(cursor, page.Limit))
	if err != nil {
		return nil, nil, errutil.Store("failed to list payout requests", err)
	}
	reqs, info := pagination.BuildPage(reqs, page.Limit, func(r *PayoutRequest) pagination.Cursor {
		return pagination.Cursor{CreatedAt: r.CreatedAt, ID: r.ID}
	})
	return reqs, info, nil
}
