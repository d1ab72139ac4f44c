package earnings

import (
	"context"
	"strings"
	"time"

	"creator-ledger/pkg/db/option"
	"creator-ledger/pkg/errutil"
	"creator-ledger/pkg/logger"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type CreateBonusParams struct {
	AdminID    string
	CreatorID  string
	Multiplier decimal.Decimal
	Reason     string
	StartsAt   time.Time
	EndsAt     time.Time
}

// CreateBonus grants a multiplier window. StartsAt defaults to now.
func (s *Service) CreateBonus(ctx context.Context, p CreateBonusParams) (*BonusMultiplier, error) {
	if strings.TrimSpace(p.AdminID) == "" {
		return nil, ErrAdminRequired
	}
	if strings.TrimSpace(p.CreatorID) == "" {
		return nil, ErrCreatorRequired
	}
	if p.Multiplier.LessThan(decimal.NewFromInt(1)) {
		return nil, ErrInvalidMultiplier
	}

	now := s.now().UTC()
	if p.StartsAt.IsZero() {
		p.StartsAt = now
	}
	if !p.EndsAt.After(p.StartsAt) {
		return nil, ErrInvalidWindow
	}

	bonus := &BonusMultiplier{
		ID:         s.node.Generate().String(),
		CreatorID:  p.CreatorID,
		Multiplier: p.Multiplier,
		Reason:     p.Reason,
		StartsAt:   p.StartsAt.UTC(),
		EndsAt:     p.EndsAt.UTC(),
		CreatedBy:  p.AdminID,
		CreatedAt:  now,
	}
	if err := s.bonuses.Create(ctx, bonus); err != nil {
		return nil, errutil.Store("failed to create bonus", err)
	}

	logger.Ctx(ctx).Info("bonus multiplier granted",
		zap.String("creator_id", p.CreatorID),
		zap.String("multiplier", p.Multiplier.String()),
		zap.Time("ends_at", bonus.EndsAt),
		zap.String("admin_id", p.AdminID),
	)
	return bonus, nil
}

// ActiveMultiplier is the highest multiplier whose window contains now, or 1.
func (s *Service) ActiveMultiplier(ctx context.Context, creatorID string) (decimal.Decimal, error) {
	m, err := s.activeMultiplier(ctx, s.db, creatorID, s.now().UTC())
	if err != nil {
		return decimal.Zero, errutil.Store("failed to read bonus multiplier", err)
	}
	return m, nil
}

func (s *Service) activeMultiplier(ctx context.Context, tx *gorm.DB, creatorID string, at time.Time) (decimal.Decimal, error) {
	bonuses, err := s.bonuses.WithTrx(tx).Find(ctx, &BonusMultiplier{CreatorID: creatorID}, option.ApplyOperator(
		option.Condition{Field: "starts_at", Operator: option.LTE, Value: at},
		option.Condition{Field: "ends_at", Operator: option.GT, Value: at},
	))
	if err != nil {
		return decimal.Zero, err
	}

	best := decimal.NewFromInt(1)
	for _, b := range bonuses {
		if b.Multiplier.GreaterThan(best) {
			best = b.Multiplier
		}
	}
	return best, nil
}
