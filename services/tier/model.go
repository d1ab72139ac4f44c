package tier

import (
	"time"

	"github.com/shopspring/decimal"
)

type Level string

const (
	Bronze   Level = "bronze"
	Silver   Level = "silver"
	Gold     Level = "gold"
	Platinum Level = "platinum"
)

func (l Level) Valid() bool {
	switch l {
	case Bronze, Silver, Gold, Platinum:
		return true
	}
	return false
}

type UpgradeStatus string

const (
	UpgradeNone     UpgradeStatus = "none"
	UpgradePending  UpgradeStatus = "pending"
	UpgradeApproved UpgradeStatus = "approved"
	UpgradeDenied   UpgradeStatus = "denied"
)

type Tier struct {
	ID             string          `gorm:"column:id;primaryKey" json:"id"`
	CreatorID      string          `gorm:"column:creator_id;uniqueIndex" json:"creator_id"`
	TierLevel      Level           `gorm:"column:tier_level" json:"tier_level"`
	TotalViews     uint64          `gorm:"column:total_views" json:"total_views"`
	RatePerView    decimal.Decimal `gorm:"column:rate_per_view;type:numeric(20,8)" json:"rate_per_view"`
	RateVersion    string          `gorm:"column:rate_version" json:"rate_version"`
	UpgradeStatus  UpgradeStatus   `gorm:"column:upgrade_status;index" json:"upgrade_status"`
	RequestedLevel Level           `gorm:"column:requested_level" json:"requested_level,omitempty"`
	RequestedAt    *time.Time      `gorm:"column:requested_at" json:"requested_at,omitempty"`
	ApprovedAt     *time.Time      `gorm:"column:approved_at" json:"approved_at,omitempty"`
	DeniedAt       *time.Time      `gorm:"column:denied_at" json:"denied_at,omitempty"`
	DecidedBy      string          `gorm:"column:decided_by" json:"decided_by,omitempty"`
	CreatedAt      time.Time       `gorm:"column:created_at" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"column:updated_at" json:"updated_at"`
}

// Eligibility describes how far a creator is from the next tier.
type Eligibility struct {
	CurrentTier     Level            `json:"current_tier"`
	NextTier        Level            `json:"next_tier,omitempty"`
	TotalViews      uint64           `json:"total_views"`
	ViewsNeeded     uint64           `json:"views_needed"`
	Eligible        bool             `json:"eligible"`
	RatePerView     decimal.Decimal  `json:"rate_per_view"`
	NextRatePerView *decimal.Decimal `json:"next_rate_per_view,omitempty"`
	UpgradeStatus   UpgradeStatus    `json:"upgrade_status"`
}

func Models() []any {
	return []any{&Tier{}}
}
