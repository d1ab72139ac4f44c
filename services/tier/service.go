package tier

import (
	"context"
	"strings"
	"time"

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

type Service struct {
	db    *gorm.DB
	node  *snowflake.Node
	rates RateTable
	now   func() time.Time

	tiers repository.Repository[Tier]
}

type ServiceParams struct {
	fx.In
	DB    *gorm.DB
	Node  *snowflake.Node
	Rates RateTable
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
		rates: p.Rates,
		now:   now,

		tiers: repository.ProvideStore[Tier](p.DB),
	}
}

func (s *Service) Rates() RateTable { return s.rates }

// Get returns the creator's tier, creating it at the lowest level on first use.
func (s *Service) Get(ctx context.Context, creatorID string) (*Tier, error) {
	creatorID = strings.TrimSpace(creatorID)
	if creatorID == "" {
		return nil, ErrCreatorRequired
	}

	var t *Tier
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		t, err = s.getOrCreate(ctx, tx, creatorID, false)
		return err
	})
	if err != nil {
		return nil, errutil.Store("failed to load tier", err)
	}
	return t, nil
}

func (s *Service) getOrCreate(ctx context.Context, tx *gorm.DB, creatorID string, lock bool) (*Tier, error) {
	lowest := s.rates.Lowest()
	now := s.now().UTC()

	seed := &Tier{
		ID:            s.node.Generate().String(),
		CreatorID:     creatorID,
		TierLevel:     lowest.Level,
		RatePerView:   lowest.RatePerView,
		RateVersion:   s.rates.Version,
		UpgradeStatus: UpgradeNone,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "creator_id"}},
		DoNothing: true,
	}).Create(seed).Error; err != nil {
		return nil, err
	}

	var opts []option.QueryOption
	if lock {
		opts = append(opts, option.WithLockingUpdate())
	}

	t, err := s.tiers.WithTrx(tx).FindOne(ctx, &Tier{CreatorID: creatorID}, opts...)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return t, nil
}

// AddViews credits lifetime views and returns the tier with the rate that
// applies to them. It never changes the level. The caller owns tx.
func (s *Service) AddViews(ctx context.Context, tx *gorm.DB, creatorID string, delta uint64) (*Tier, error) {
	t, err := s.getOrCreate(ctx, tx, creatorID, true)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{
		"total_views": gorm.Expr("total_views + ?", delta),
		"updated_at":  s.now().UTC(),
	}

	// Accruals use the current table version for the creator's level.
	if rate, ok := s.rates.Rate(t.TierLevel); ok && (t.RateVersion != s.rates.Version || !t.RatePerView.Equal(rate.RatePerView)) {
		updates["rate_per_view"] = rate.RatePerView
		updates["rate_version"] = s.rates.Version
		t.RatePerView = rate.RatePerView
		t.RateVersion = s.rates.Version
	}

	if err := tx.WithContext(ctx).Model(&Tier{}).Where("id = ?", t.ID).Updates(updates).Error; err != nil {
		return nil, err
	}

	t.TotalViews += delta
	return t, nil
}

func (s *Service) RecomputeEligibility(ctx context.Context, creatorID string) (*Eligibility, error) {
	t, err := s.Get(ctx, creatorID)
	if err != nil {
		return nil, err
	}
	return s.eligibility(t), nil
}

func (s *Service) eligibility(t *Tier) *Eligibility {
	e := &Eligibility{
		CurrentTier:   t.TierLevel,
		TotalViews:    t.TotalViews,
		RatePerView:   t.RatePerView,
		UpgradeStatus: t.UpgradeStatus,
	}

	next, ok := s.rates.Next(t.TierLevel)
	if !ok {
		return e
	}

	e.NextTier = next.Level
	e.NextRatePerView = &next.RatePerView
	if t.TotalViews >= next.MinViews {
		e.Eligible = true
	} else {
		e.ViewsNeeded = next.MinViews - t.TotalViews
	}
	return e
}

// RequestUpgrade opens an upgrade request for the next level. The pending
// check and the write happen under the tier row lock.
func (s *Service) RequestUpgrade(ctx context.Context, creatorID string) (*Tier, error) {
	creatorID = strings.TrimSpace(creatorID)
	if creatorID == "" {
		return nil, ErrCreatorRequired
	}

	var out *Tier
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		t, err := s.getOrCreate(ctx, tx, creatorID, true)
		if err != nil {
			return err
		}

		if t.UpgradeStatus == UpgradePending {
			return ErrAlreadyPending
		}

		next, ok := s.rates.Next(t.TierLevel)
		if !ok {
			return ErrHighestTier
		}

		now := s.now().UTC()
		if err := s.tiers.WithTrx(tx).Update(ctx, t.ID, map[string]any{
			"upgrade_status":  UpgradePending,
			"requested_level": next.Level,
			"requested_at":    now,
			"denied_at":       nil,
			"decided_by":      "",
			"updated_at":      now,
		}); err != nil {
			return err
		}

		t.UpgradeStatus = UpgradePending
		t.RequestedLevel = next.Level
		t.RequestedAt = &now
		t.DeniedAt = nil
		t.DecidedBy = ""
		out = t
		return nil
	})
	if err != nil {
		logger.Ctx(ctx).Warn("tier upgrade request failed", zap.String("creator_id", creatorID), zap.Error(err))
		return nil, errutil.Store("failed to request tier upgrade", err)
	}

	logger.Ctx(ctx).Info("tier upgrade requested",
		zap.String("creator_id", creatorID),
		zap.String("requested_level", string(out.RequestedLevel)),
	)
	return out, nil
}

// Approve resolves a pending request by moving the creator to level. The new
// rate only applies to views accrued afterwards.
func (s *Service) Approve(ctx context.Context, adminID, creatorID string, level Level) (*Tier, error) {
	if strings.TrimSpace(adminID) == "" {
		return nil, ErrAdminRequired
	}
	if strings.TrimSpace(creatorID) == "" {
		return nil, ErrCreatorRequired
	}
	rate, ok := s.rates.Rate(level)
	if !ok {
		return nil, ErrUnknownLevel.With(errutil.WithDetails(errutil.Detail{Field: "tier_level", Message: string(level)}))
	}

	var out *Tier
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		t, err := s.getOrCreate(ctx, tx, creatorID, true)
		if err != nil {
			return err
		}

		if t.UpgradeStatus != UpgradePending {
			return ErrNoPendingRequest
		}
		if !s.rates.Higher(level, t.TierLevel) {
			return ErrTierNotHigher
		}

		now := s.now().UTC()
		if err := s.tiers.WithTrx(tx).Update(ctx, t.ID, map[string]any{
			"tier_level":     level,
			"rate_per_view":  rate.RatePerView,
			"rate_version":   s.rates.Version,
			"upgrade_status": UpgradeApproved,
			"approved_at":    now,
			"decided_by":     adminID,
			"updated_at":     now,
		}); err != nil {
			return err
		}

		t.TierLevel = level
		t.RatePerView = rate.RatePerView
		t.RateVersion = s.rates.Version
		t.UpgradeStatus = UpgradeApproved
		t.ApprovedAt = &now
		t.DecidedBy = adminID
		out = t
		return nil
	})
	if err != nil {
		return nil, errutil.Store("failed to approve tier upgrade", err)
	}

	logger.Ctx(ctx).Info("tier upgrade approved",
		zap.String("creator_id", creatorID),
		zap.String("tier_level", string(level)),
		zap.String("admin_id", adminID),
	)
	return out, nil
}

func (s *Service) Deny(ctx context.Context, adminID, creatorID string) (*Tier, error) {
	if strings.TrimSpace(adminID) == "" {
		return nil, ErrAdminRequired
	}
	if strings.TrimSpace(creatorID) == "" {
		return nil, ErrCreatorRequired
	}

	var out *Tier
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		t, err := s.getOrCreate(ctx, tx, creatorID, true)
		if err != nil {
			return err
		}
		if t.UpgradeStatus != UpgradePending {
			return ErrNoPendingRequest
		}

		now := s.now().UTC()
		if err := s.tiers.WithTrx(tx).Update(ctx, t.ID, map[string]any{
			"upgrade_status": UpgradeDenied,
			"denied_at":      now,
			"decided_by":     adminID,
			"updated_at":     now,
		}); err != nil {
			return err
		}

		t.UpgradeStatus = UpgradeDenied
		t.DeniedAt = &now
		t.DecidedBy = adminID
		out = t
		return nil
	})
	if err != nil {
		return nil, errutil.Store("failed to deny tier upgrade", err)
	}
	return out, nil
}

func (s *Service) ListPending(ctx context.Context) ([]*Tier, error) {
	tiers, err := s.tiers.Find(ctx, &Tier{UpgradeStatus: UpgradePending}, option.WithSortBy(option.QuerySortBy{
		SortBy:  "requested_at",
		OrderBy: "asc",
		Allow:   map[string]bool{"requested_at": true},
	}))
	if err != nil {
		return nil, errutil.Store("failed to list pending upgrades", err)
	}
	return tiers, nil
}
