package earnings

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"creator-ledger/pkg/db/option"
	"creator-ledger/pkg/db/pagination"
	"creator-ledger/pkg/errutil"
	"creator-ledger/pkg/logger"
	"creator-ledger/pkg/metrics"
	"creator-ledger/pkg/money"
	"creator-ledger/pkg/repository"
	"creator-ledger/services/tier"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TierEngine credits lifetime views and reports the rate to apply to them.
type TierEngine interface {
	AddViews(ctx context.Context, tx *gorm.DB, creatorID string, delta uint64) (*tier.Tier, error)
}

type Service struct {
	db    *gorm.DB
	node  *snowflake.Node
	tiers TierEngine
	now   func() time.Time

	records  repository.Repository[EarningsRecord]
	balances repository.Repository[Balance]
	bonuses  repository.Repository[BonusMultiplier]
}

type ServiceParams struct {
	fx.In
	DB    *gorm.DB
	Node  *snowflake.Node
	Tiers TierEngine
	Clock func() time.Time `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	now := p.Clock
	if now == nil {
		now = time.Now
	}
	return &Service{
		db:    p.DB,
		node:  p.Node,
		tiers: p.Tiers,
		now:   now,

		records:  repository.ProvideStore[EarningsRecord](p.DB),
		balances: repository.ProvideStore[Balance](p.DB),
		bonuses:  repository.ProvideStore[BonusMultiplier](p.DB),
	}
}

type AccrueParams struct {
	CreatorID   string
	ContentID   string
	ContentType string
	ViewDelta   uint64
}

func (p AccrueParams) validate() error {
	if strings.TrimSpace(p.CreatorID) == "" {
		return ErrCreatorRequired
	}
	if strings.TrimSpace(p.ContentID) == "" {
		return ErrContentRequired
	}
	if p.ViewDelta > maxViewDelta {
		return ErrViewDeltaTooLarge
	}
	return nil
}

// Views are stored in signed 64-bit columns.
const maxViewDelta = math.MaxInt64

// RateKey identifies the rate an unpaid record is locked to.
func RateKey(version string, rate, multiplier decimal.Decimal) string {
	return fmt.Sprintf("%s|%s|%s", version, rate.String(), multiplier.String())
}

// Accrue credits viewDelta views at the creator's current rate and bonus.
// The returned record is nil when viewDelta is zero.
func (s *Service) Accrue(ctx context.Context, p AccrueParams) (*EarningsRecord, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	if p.ViewDelta == 0 {
		return nil, nil
	}

	var out *EarningsRecord
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		bal, err := s.LockBalance(ctx, tx, p.CreatorID)
		if err != nil {
			return err
		}

		t, err := s.tiers.AddViews(ctx, tx, p.CreatorID, p.ViewDelta)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		multiplier, err := s.activeMultiplier(ctx, tx, p.CreatorID, now)
		if err != nil {
			return err
		}

		amount := t.RatePerView.Mul(decimal.NewFromUint64(p.ViewDelta)).Mul(multiplier)
		rateKey := RateKey(t.RateVersion, t.RatePerView, multiplier)
		day := truncateDay(now)

		rec, err := s.records.WithTrx(tx).FindOne(ctx, &EarningsRecord{
			CreatorID: p.CreatorID,
			ContentID: p.ContentID,
			EarnedOn:  day,
			RateKey:   rateKey,
		}, unpaid(), option.WithLockingUpdate())
		if err != nil {
			return err
		}

		if rec == nil {
			rec = &EarningsRecord{
				ID:              s.node.Generate().String(),
				CreatorID:       p.CreatorID,
				ContentID:       p.ContentID,
				ContentType:     p.ContentType,
				EarnedOn:        day,
				RateKey:         rateKey,
				Views:           p.ViewDelta,
				EarningsUSD:     amount,
				TierRateAtTime:  t.RatePerView,
				BonusMultiplier: multiplier,
				RateVersion:     t.RateVersion,
				CreatedAt:       now,
				UpdatedAt:       now,
			}
			if err := s.records.WithTrx(tx).Create(ctx, rec); err != nil {
				return err
			}
		} else {
			if rec.Views > maxViewDelta-p.ViewDelta {
				return ErrViewDeltaTooLarge
			}
			rec.Views += p.ViewDelta
			rec.EarningsUSD = rec.EarningsUSD.Add(amount)
			rec.UpdatedAt = now
			if err := s.records.WithTrx(tx).Update(ctx, rec.ID, map[string]any{
				"views":        rec.Views,
				"earnings_usd": rec.EarningsUSD,
				"updated_at":   now,
			}); err != nil {
				return err
			}
		}

		if err := s.balances.WithTrx(tx).Update(ctx, bal.ID, map[string]any{
			"balance":      bal.Balance.Add(amount),
			"total_earned": bal.TotalEarned.Add(amount),
			"updated_at":   now,
		}); err != nil {
			return err
		}

		out = rec
		return nil
	})
	if err != nil {
		return nil, errutil.Store("failed to accrue earnings", err)
	}

	metrics.ViewsAccrued.Add(float64(p.ViewDelta))
	return out, nil
}

// ViewEvent is a raw view increment reported by the content service.
type ViewEvent struct {
	CreatorID   string `json:"creator_id"`
	ContentID   string `json:"content_id"`
	ContentType string `json:"content_type"`
	Views       uint64 `json:"views"`
}

// OnContentViewed accrues the event and only logs failures. View counting
// on the content side must never fail because of the ledger.
func (s *Service) OnContentViewed(ctx context.Context, e ViewEvent) {
	_, err := s.Accrue(ctx, AccrueParams{
		CreatorID:   e.CreatorID,
		ContentID:   e.ContentID,
		ContentType: e.ContentType,
		ViewDelta:   e.Views,
	})
	if err != nil {
		metrics.AccrualFailures.WithLabelValues("inline").Inc()
		logger.Ctx(ctx).Warn("view accrual dropped",
			zap.String("creator_id", e.CreatorID),
			zap.String("content_id", e.ContentID),
			zap.Uint64("views", e.Views),
			zap.Error(err),
		)
	}
}

// LockBalance returns the creator's balance row locked for update, creating
// it when missing. Every money-affecting transaction calls it first.
func (s *Service) LockBalance(ctx context.Context, tx *gorm.DB, creatorID string) (*Balance, error) {
	if strings.TrimSpace(creatorID) == "" {
		return nil, ErrCreatorRequired
	}

	now := s.now().UTC()
	seed := &Balance{
		ID:               s.node.Generate().String(),
		CreatorID:        creatorID,
		Balance:          decimal.Zero,
		TotalEarned:      decimal.Zero,
		TotalPaid:        decimal.Zero,
		TotalChargedBack: decimal.Zero,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "creator_id"}},
		DoNothing: true,
	}).Create(seed).Error; err != nil {
		return nil, err
	}

	bal, err := s.balances.WithTrx(tx).FindOne(ctx, &Balance{CreatorID: creatorID}, option.WithLockingUpdate())
	if err != nil {
		return nil, err
	}
	if bal == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return bal, nil
}

// GetUnpaidBalance is the authoritative spendable balance: the sum of all
// unpaid earnings records.
func (s *Service) GetUnpaidBalance(ctx context.Context, creatorID string) (decimal.Decimal, error) {
	if strings.TrimSpace(creatorID) == "" {
		return decimal.Zero, ErrCreatorRequired
	}
	sum, err := s.UnpaidBalance(ctx, s.db, creatorID)
	if err != nil {
		return decimal.Zero, errutil.Store("failed to read unpaid balance", err)
	}
	return sum, nil
}

// UnpaidBalance sums unpaid records inside tx.
func (s *Service) UnpaidBalance(ctx context.Context, tx *gorm.DB, creatorID string) (decimal.Decimal, error) {
	recs, err := s.records.WithTrx(tx).Find(ctx, &EarningsRecord{CreatorID: creatorID}, unpaid(), func(db *gorm.DB) *gorm.DB {
		return db.Select("id", "earnings_usd")
	})
	if err != nil {
		return decimal.Zero, err
	}

	amounts := make([]decimal.Decimal, 0, len(recs))
	for _, r := range recs {
		amounts = append(amounts, r.EarningsUSD)
	}
	return money.Sum(amounts...), nil
}

func (s *Service) GetBalance(ctx context.Context, creatorID string) (*Summary, error) {
	if strings.TrimSpace(creatorID) == "" {
		return nil, ErrCreatorRequired
	}

	bal, err := s.balances.FindOne(ctx, &Balance{CreatorID: creatorID})
	if err != nil {
		return nil, errutil.Store("failed to read balance", err)
	}
	unpaidSum, err := s.GetUnpaidBalance(ctx, creatorID)
	if err != nil {
		return nil, err
	}

	out := &Summary{
		CreatorID:        creatorID,
		Balance:          decimal.Zero,
		UnpaidEarnings:   unpaidSum,
		TotalEarned:      decimal.Zero,
		TotalPaid:        decimal.Zero,
		TotalChargedBack: decimal.Zero,
	}
	if bal != nil {
		out.Balance = bal.Balance
		out.TotalEarned = bal.TotalEarned
		out.TotalPaid = bal.TotalPaid
		out.TotalChargedBack = bal.TotalChargedBack
		out.UpdatedAt = &bal.UpdatedAt
	}
	return out, nil
}

type ListEarningsParams struct {
	CreatorID  string
	UnpaidOnly bool
	pagination.Pagination
}

func (s *Service) ListEarnings(ctx context.Context, p ListEarningsParams) ([]*EarningsRecord, *pagination.PageInfo, error) {
	if strings.TrimSpace(p.CreatorID) == "" {
		return nil, nil, ErrCreatorRequired
	}
	page := p.Pagination.Normalize()

	var cursor *pagination.Cursor
	if page.Cursor != "" {
		c, err := pagination.DecodeCursor(page.Cursor)
		if err != nil {
			return nil, nil, ErrInvalidCursor.With(errutil.WithErr(err))
		}
		cursor = c
	}

	opts := []option.QueryOption{pagination.Newest(cursor, page.Limit)}
	if p.UnpaidOnly {
		opts = append(opts, unpaid())
	}

	recs, err := s.records.Find(ctx, &EarningsRecord{CreatorID: p.CreatorID}, opts...)
	if err != nil {
		return nil, nil, errutil.Store("failed to list earnings", err)
	}

	recs, info := pagination.BuildPage(recs, page.Limit, func(r *EarningsRecord) pagination.Cursor {
		return pagination.Cursor{CreatedAt: r.CreatedAt, ID: r.ID}
	})
	return recs, info, nil
}

func unpaid() option.QueryOption {
	return option.ApplyOperator(option.Condition{Field: "is_paid", Operator: option.EQ, Value: false})
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
