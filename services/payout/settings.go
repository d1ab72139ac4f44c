package payout

import (
	"context"
	"strings"

	"creator-ledger/pkg/errutil"
	"creator-ledger/pkg/logger"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// setting returns the stored setting or the default for creators without one.
func (s *Service) setting(ctx context.Context, tx *gorm.DB, creatorID string) (*PayoutSetting, error) {
	st, err := s.settings.WithTrx(tx).FindOne(ctx, &PayoutSetting{CreatorID: creatorID})
	if err != nil {
		return nil, err
	}
	if st == nil {
		return &PayoutSetting{CreatorID: creatorID, WithdrawalsEnabled: true}, nil
	}
	return st, nil
}

// EffectiveSetting is a setting with the default limit filled in.
type EffectiveSetting struct {
	*PayoutSetting
	EffectiveLimitUSD decimal.Decimal `json:"effective_monthly_limit_usd"`
}

func (s *Service) GetSetting(ctx context.Context, creatorID string) (*EffectiveSetting, error) {
	if strings.TrimSpace(creatorID) == "" {
		return nil, ErrCreatorRequired
	}
	st, err := s.setting(ctx, s.db, creatorID)
	if err != nil {
		return nil, errutil.Store("failed to read payout setting", err)
	}
	return s.effective(st), nil
}

func (s *Service) effective(st *PayoutSetting) *EffectiveSetting {
	limit := s.monthlyLimit
	if st.MonthlyLimitUSD.Valid {
		limit = st.MonthlyLimitUSD.Decimal
	}
	return &EffectiveSetting{PayoutSetting: st, EffectiveLimitUSD: limit}
}

type UpdateSettingParams struct {
	AdminID   string
	CreatorID string
	// WithdrawalsEnabled is left unchanged when nil.
	WithdrawalsEnabled *bool
	PauseReason        string
	// MonthlyLimit is left unchanged when nil.
	MonthlyLimit *decimal.Decimal
	// ClearLimit reverts the creator to the default monthly limit.
	ClearLimit bool
}

// UpdateSetting is the admin kill switch. It takes the balance lock so a
// pause cannot interleave with a submission already past its checks.
func (s *Service) UpdateSetting(ctx context.Context, p UpdateSettingParams) (*EffectiveSetting, error) {
	creatorID := strings.TrimSpace(p.CreatorID)
	if creatorID == "" {
		return nil, ErrCreatorRequired
	}
	if strings.TrimSpace(p.AdminID) == "" {
		return nil, ErrAdminRequired
	}
	if p.WithdrawalsEnabled != nil && !*p.WithdrawalsEnabled && strings.TrimSpace(p.PauseReason) == "" {
		return nil, ErrPauseReasonRequired
	}
	if p.MonthlyLimit != nil && !p.MonthlyLimit.IsPositive() {
		return nil, ErrInvalidLimit
	}

	var out *PayoutSetting
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.ledger.LockBalance(ctx, tx, creatorID); err != nil {
			return err
		}

		now := s.now().UTC()
		st, err := s.settings.WithTrx(tx).FindOne(ctx, &PayoutSetting{CreatorID: creatorID})
		if err != nil {
			return err
		}
		if st == nil {
			st = &PayoutSetting{
				ID:                 s.node.Generate().String(),
				CreatorID:          creatorID,
				WithdrawalsEnabled: true,
				CreatedAt:          now,
			}
		}

		if p.WithdrawalsEnabled != nil {
			st.WithdrawalsEnabled = *p.WithdrawalsEnabled
			st.PauseReason = ""
			if !st.WithdrawalsEnabled {
				st.PauseReason = strings.TrimSpace(p.PauseReason)
			}
		}
		if p.ClearLimit {
			st.MonthlyLimitUSD = decimal.NullDecimal{}
		} else if p.MonthlyLimit != nil {
			st.MonthlyLimitUSD = decimal.NewNullDecimal(*p.MonthlyLimit)
		}
		st.UpdatedBy = p.AdminID
		st.UpdatedAt = now

		// Save upserts by primary key and writes false and null fields.
		if err := tx.WithContext(ctx).Save(st).Error; err != nil {
			return err
		}
		out = st
		return nil
	})
	if err != nil {
		return nil, errutil.Store("failed to update payout setting", err)
	}

	logger.Ctx(ctx).Info("payout setting updated",
		zap.String("creator_id", creatorID),
		zap.String("admin_id", p.AdminID),
		zap.Bool("withdrawals_enabled", out.WithdrawalsEnabled),
	)
	return s.effective(out), nil
}
