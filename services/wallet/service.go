package wallet

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"creator-ledger/pkg/config"
	"creator-ledger/pkg/db/option"
	"creator-ledger/pkg/errutil"
	"creator-ledger/pkg/logger"
	"creator-ledger/pkg/repository"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	defaultCooldown  = 21 * 24 * time.Hour
	defaultMinLength = 26

	detailDaysRemaining = "days_remaining"
)

var (
	ErrCreatorRequired = errutil.Sentinel(errutil.StatusValidationFailed, "CREATOR_REQUIRED", "creator id is required")
	ErrWalletNotFound  = errutil.Sentinel(errutil.StatusNotFound, "WALLET_NOT_FOUND", "no wallet saved for creator")
	ErrCooldownActive  = errutil.Sentinel(errutil.StatusUnprocessableEntity, "WALLET_COOLDOWN_ACTIVE", "wallet was changed recently")
)

func cooldownError(days int) error {
	return ErrCooldownActive.With(
		errutil.WithMessage("wallet can be changed again in "+strconv.Itoa(days)+" days"),
		errutil.WithDetails(errutil.Detail{Field: detailDaysRemaining, Message: strconv.Itoa(days)}),
	)
}

// DaysRemaining extracts the cooldown left from an ErrCooldownActive error.
func DaysRemaining(err error) (int, bool) {
	var be errutil.BaseError
	if !errors.As(err, &be) || !errors.Is(be, ErrCooldownActive) {
		return 0, false
	}
	for _, d := range be.Details {
		if d.Field == detailDaysRemaining {
			n, err := strconv.Atoi(d.Message)
			return n, err == nil
		}
	}
	return 0, false
}

type Service struct {
	db        *gorm.DB
	node      *snowflake.Node
	now       func() time.Time
	cooldown  time.Duration
	minLength int

	wallets repository.Repository[Wallet]
	history repository.Repository[WalletHistory]
}

type ServiceParams struct {
	fx.In
	DB     *gorm.DB
	Node   *snowflake.Node
	Config *config.Config    `optional:"true"`
	Clock  func() time.Time `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	s := &Service{
		db:        p.DB,
		node:      p.Node,
		now:       p.Clock,
		cooldown:  defaultCooldown,
		minLength: defaultMinLength,

		wallets: repository.ProvideStore[Wallet](p.DB),
		history: repository.ProvideStore[WalletHistory](p.DB),
	}
	if s.now == nil {
		s.now = time.Now
	}
	if p.Config != nil {
		if p.Config.Ledger.WalletCooldown > 0 {
			s.cooldown = p.Config.Ledger.WalletCooldown
		}
		if p.Config.Ledger.MinAddressLength > 0 {
			s.minLength = p.Config.Ledger.MinAddressLength
		}
	}
	return s
}

// SetWallet saves the creator's payout destination. The first wallet is
// always accepted; later changes wait for the cooldown. Re-submitting the
// current wallet is a no-op.
func (s *Service) SetWallet(ctx context.Context, creatorID, cryptoType, address string) (*Wallet, error) {
	creatorID = strings.TrimSpace(creatorID)
	if creatorID == "" {
		return nil, ErrCreatorRequired
	}
	ct, err := ParseCryptoType(cryptoType)
	if err != nil {
		return nil, err
	}
	address = strings.TrimSpace(address)
	if err := ValidateAddress(ct, address, s.minLength); err != nil {
		return nil, err
	}

	var out *Wallet
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.now().UTC()
		fresh := &Wallet{
			ID:            s.node.Generate().String(),
			CreatorID:     creatorID,
			CryptoType:    ct,
			Address:       address,
			LastChangedAt: now,
			CanChangeAt:   now.Add(s.cooldown),
			CreatedAt:     now,
			UpdatedAt:     now,
		}

		res := tx.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "creator_id"}},
			DoNothing: true,
		}).Create(fresh)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 1 {
			out = fresh
			return nil
		}

		current, err := s.wallets.WithTrx(tx).FindOne(ctx, &Wallet{CreatorID: creatorID}, option.WithLockingUpdate())
		if err != nil {
			return err
		}
		if current == nil {
			return gorm.ErrRecordNotFound
		}

		if current.CryptoType == ct && current.Address == address {
			out = current
			return nil
		}

		if now.Before(current.CanChangeAt) {
			return cooldownError(daysUntil(now, current.CanChangeAt))
		}

		if err := s.history.WithTrx(tx).Create(ctx, &WalletHistory{
			ID:         s.node.Generate().String(),
			CreatorID:  creatorID,
			CryptoType: current.CryptoType,
			Address:    current.Address,
			ActiveFrom: current.LastChangedAt,
			ReplacedAt: now,
		}); err != nil {
			return err
		}

		if err := s.wallets.WithTrx(tx).Update(ctx, current.ID, map[string]any{
			"crypto_type":     ct,
			"address":         address,
			"last_changed_at": now,
			"can_change_at":   fresh.CanChangeAt,
			"updated_at":      now,
		}); err != nil {
			return err
		}

		current.CryptoType = ct
		current.Address = address
		current.LastChangedAt = now
		current.CanChangeAt = fresh.CanChangeAt
		current.UpdatedAt = now
		out = current
		return nil
	})
	if err != nil {
		return nil, errutil.Store("failed to save wallet", err)
	}

	logger.Ctx(ctx).Info("wallet saved",
		zap.String("creator_id", creatorID),
		zap.String("crypto_type", string(ct)),
		zap.Time("can_change_at", out.CanChangeAt),
	)
	return out, nil
}

func daysUntil(now, t time.Time) int {
	return int(math.Ceil(t.Sub(now).Hours() / 24))
}

func (s *Service) GetWallet(ctx context.Context, creatorID string) (*Wallet, error) {
	if strings.TrimSpace(creatorID) == "" {
		return nil, ErrCreatorRequired
	}
	w, err := s.FindWallet(ctx, s.db, creatorID)
	if err != nil {
		return nil, errutil.Store("failed to load wallet", err)
	}
	if w == nil {
		return nil, ErrWalletNotFound
	}
	return w, nil
}

// FindWallet reads the wallet inside tx; nil when none is saved.
func (s *Service) FindWallet(ctx context.Context, tx *gorm.DB, creatorID string) (*Wallet, error) {
	return s.wallets.WithTrx(tx).FindOne(ctx, &Wallet{CreatorID: creatorID})
}

// History lists replaced wallets, oldest first.
func (s *Service) History(ctx context.Context, creatorID string) ([]*WalletHistory, error) {
	if strings.TrimSpace(creatorID) == "" {
		return nil, ErrCreatorRequired
	}
	h, err := s.history.Find(ctx, &WalletHistory{CreatorID: creatorID}, option.WithSortBy(option.QuerySortBy{
		SortBy:  "replaced_at",
		OrderBy: "asc",
		Allow:   map[string]bool{"replaced_at": true},
	}))
	if err != nil {
		return nil, errutil.Store("failed to load wallet history", err)
	}
	return h, nil
}
