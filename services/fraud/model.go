package fraud

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type FlagStatus string

const (
	FlagPending   FlagStatus = "pending"
	FlagConfirmed FlagStatus = "confirmed"
	FlagResolved  FlagStatus = "resolved"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// FraudFlag is an advisory record. It never blocks a payout by itself.
type FraudFlag struct {
	ID          string         `gorm:"column:id;primaryKey" json:"id"`
	CreatorID   string         `gorm:"column:creator_id;index" json:"creator_id"`
	FlagType    string         `gorm:"column:flag_type" json:"flag_type"`
	Severity    Severity       `gorm:"column:severity" json:"severity"`
	Description string         `gorm:"column:description" json:"description"`
	Evidence    datatypes.JSON `gorm:"column:evidence" json:"evidence"`
	Status      FlagStatus     `gorm:"column:status;index" json:"status"`
	CreatedBy   string         `gorm:"column:created_by" json:"created_by"`
	ActionTaken string         `gorm:"column:action_taken" json:"action_taken,omitempty"`
	ResolvedAt  *time.Time     `gorm:"column:resolved_at" json:"resolved_at,omitempty"`
	CreatedAt   time.Time      `gorm:"column:created_at" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"column:updated_at" json:"updated_at"`
}

// Evidence is one entry of a flag's evidence list.
type Evidence struct {
	Note      string    `json:"note,omitempty"`
	ObjectKey string    `json:"object_key,omitempty"`
	Name      string    `json:"name,omitempty"`
	Size      int64     `json:"size,omitempty"`
	AddedBy   string    `json:"added_by,omitempty"`
	AddedAt   time.Time `json:"added_at"`
}

type ChargebackStatus string

const (
	ChargebackPending   ChargebackStatus = "pending"
	ChargebackCompleted ChargebackStatus = "completed"
)

type Chargeback struct {
	ID              string           `gorm:"column:id;primaryKey" json:"id"`
	Reference       string           `gorm:"column:reference;uniqueIndex" json:"reference"`
	CreatorID       string           `gorm:"column:creator_id;index" json:"creator_id"`
	PayoutRequestID string           `gorm:"column:payout_request_id;index" json:"payout_request_id"`
	AmountUSD       decimal.Decimal  `gorm:"column:amount_usd;type:numeric(20,8)" json:"amount_usd"`
	Reason          string           `gorm:"column:reason" json:"reason"`
	InitiatedBy     string           `gorm:"column:initiated_by" json:"initiated_by"`
	Status          ChargebackStatus `gorm:"column:status" json:"status"`
	InitiatedAt     time.Time        `gorm:"column:initiated_at" json:"initiated_at"`
	CompletedAt     *time.Time       `gorm:"column:completed_at" json:"completed_at,omitempty"`
	CreatedAt       time.Time        `gorm:"column:created_at" json:"created_at"`
}

// IPLog is append-only.
type IPLog struct {
	ID           string            `gorm:"column:id;primaryKey" json:"id"`
	CreatorID    string            `gorm:"column:creator_id;index:idx_ip_logs_creator_time" json:"creator_id"`
	IP           string            `gorm:"column:ip" json:"ip"`
	Action       string            `gorm:"column:action" json:"action"`
	UserAgent    string            `gorm:"column:user_agent" json:"user_agent,omitempty"`
	CountryCode  string            `gorm:"column:country_code" json:"country_code,omitempty"`
	City         string            `gorm:"column:city" json:"city,omitempty"`
	IsSuspicious bool              `gorm:"column:is_suspicious;index" json:"is_suspicious"`
	Signals      datatypes.JSONMap `gorm:"column:signals" json:"signals,omitempty"`
	CreatedAt    time.Time         `gorm:"column:created_at;index:idx_ip_logs_creator_time" json:"created_at"`
}

func Models() []any {
	return []any{&FraudFlag{}, &Chargeback{}, &IPLog{}}
}
