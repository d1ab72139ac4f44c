package earnings

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	ContentTypeAdjustment = "adjustment"
	RateKeyAdjustment     = "adjustment"
)

// EarningsRecord accrues views for one (creator, content, day, rate key).
// Only one unpaid record may exist per key; paid records are history.
type EarningsRecord struct {
	ID              string          `gorm:"column:id;primaryKey" json:"id"`
	CreatorID       string          `gorm:"column:creator_id;index:idx_earnings_open_record,unique,where:is_paid = false;index:idx_earnings_creator_day" json:"creator_id"`
	ContentID       string          `gorm:"column:content_id;index:idx_earnings_open_record,unique" json:"content_id"`
	ContentType     string          `gorm:"column:content_type" json:"content_type"`
	EarnedOn        time.Time       `gorm:"column:earned_on;type:date;index:idx_earnings_open_record,unique;index:idx_earnings_creator_day" json:"earned_on"`
	RateKey         string          `gorm:"column:rate_key;index:idx_earnings_open_record,unique" json:"rate_key"`
	Views           uint64          `gorm:"column:views" json:"views"`
	EarningsUSD     decimal.Decimal `gorm:"column:earnings_usd;type:numeric(20,8)" json:"earnings_usd"`
	TierRateAtTime  decimal.Decimal `gorm:"column:tier_rate_at_time;type:numeric(20,8)" json:"tier_rate_at_time"`
	BonusMultiplier decimal.Decimal `gorm:"column:bonus_multiplier;type:numeric(10,4)" json:"bonus_multiplier"`
	RateVersion     string          `gorm:"column:rate_version" json:"rate_version"`
	IsPaid          bool            `gorm:"column:is_paid;index" json:"is_paid"`
	PaidAt          *time.Time      `gorm:"column:paid_at" json:"paid_at,omitempty"`
	PayoutRequestID string          `gorm:"column:payout_request_id;index" json:"payout_request_id,omitempty"`
	SplitFromID     string          `gorm:"column:split_from_id" json:"split_from_id,omitempty"`
	CreatedAt       time.Time       `gorm:"column:created_at" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"column:updated_at" json:"updated_at"`
}

// Balance is the running balance counter of a creator. Money-affecting
// transactions lock this row before anything else.
type Balance struct {
	ID               string          `gorm:"column:id;primaryKey" json:"-"`
	CreatorID        string          `gorm:"column:creator_id;uniqueIndex" json:"creator_id"`
	Balance          decimal.Decimal `gorm:"column:balance;type:numeric(20,8)" json:"balance"`
	TotalEarned      decimal.Decimal `gorm:"column:total_earned;type:numeric(20,8)" json:"total_earned"`
	TotalPaid        decimal.Decimal `gorm:"column:total_paid;type:numeric(20,8)" json:"total_paid"`
	TotalChargedBack decimal.Decimal `gorm:"column:total_charged_back;type:numeric(20,8)" json:"total_charged_back"`
	CreatedAt        time.Time       `gorm:"column:created_at" json:"-"`
	UpdatedAt        time.Time       `gorm:"column:updated_at" json:"updated_at"`
}

type BonusMultiplier struct {
	ID         string          `gorm:"column:id;primaryKey" json:"id"`
	CreatorID  string          `gorm:"column:creator_id;index" json:"creator_id"`
	Multiplier decimal.Decimal `gorm:"column:multiplier;type:numeric(10,4)" json:"multiplier"`
	Reason     string          `gorm:"column:reason" json:"reason"`
	StartsAt   time.Time       `gorm:"column:starts_at" json:"starts_at"`
	EndsAt     time.Time       `gorm:"column:ends_at" json:"ends_at"`
	CreatedBy  string          `gorm:"column:created_by" json:"created_by"`
	CreatedAt  time.Time       `gorm:"column:created_at" json:"created_at"`
}

// Summary is the creator-facing view of the balance.
type Summary struct {
	CreatorID        string          `json:"creator_id"`
	Balance          decimal.Decimal `json:"balance"`
	UnpaidEarnings   decimal.Decimal `json:"unpaid_earnings"`
	TotalEarned      decimal.Decimal `json:"total_earned"`
	TotalPaid        decimal.Decimal `json:"total_paid"`
	TotalChargedBack decimal.Decimal `json:"total_charged_back"`
	UpdatedAt        *time.Time      `json:"updated_at,omitempty"`
}

// Models lists the tables owned by this package.
func Models() []any {
	return []any{&EarningsRecord{}, &Balance{}, &BonusMultiplier{}}
}
