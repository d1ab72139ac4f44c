package payout

import (
	"time"

	"creator-ledger/services/wallet"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending     Status = "pending"
	StatusApproved    Status = "approved"
	StatusCompleted   Status = "completed"
	StatusRejected    Status = "rejected"
	StatusChargedBack Status = "charged_back"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusCompleted, StatusRejected, StatusChargedBack:
		return true
	}
	return false
}

// PayoutRequest is a creator withdrawal. At most one per creator may be
// pending, enforced by a partial unique index.
type PayoutRequest struct {
	ID              string            `gorm:"column:id;primaryKey" json:"id"`
	Reference       string            `gorm:"column:reference;uniqueIndex" json:"reference"`
	CreatorID       string            `gorm:"column:creator_id;index;index:idx_payout_one_pending,unique,where:status = 'pending'" json:"creator_id"`
	AmountUSD       decimal.Decimal   `gorm:"column:amount_usd;type:numeric(20,8)" json:"amount_usd"`
	CryptoType      wallet.CryptoType `gorm:"column:crypto_type" json:"crypto_type"`
	WalletAddress   string            `gorm:"column:wallet_address" json:"wallet_address"`
	Status          Status            `gorm:"column:status;index" json:"status"`
	RequestedAt     time.Time         `gorm:"column:requested_at;index" json:"requested_at"`
	ProcessedAt     *time.Time        `gorm:"column:processed_at" json:"processed_at,omitempty"`
	ProcessedBy     string            `gorm:"column:processed_by" json:"processed_by,omitempty"`
	AdminNote       string            `gorm:"column:admin_note" json:"admin_note,omitempty"`
	TransactionHash string            `gorm:"column:transaction_hash" json:"transaction_hash,omitempty"`
	RejectionReason string            `gorm:"column:rejection_reason" json:"rejection_reason,omitempty"`
	CreatedAt       time.Time         `gorm:"column:created_at" json:"created_at"`
	UpdatedAt       time.Time         `gorm:"column:updated_at" json:"updated_at"`
}

// PayoutSetting is the per-creator kill switch and monthly limit. A creator
// without a row has withdrawals enabled at the default limit.
type PayoutSetting struct {
	ID                 string              `gorm:"column:id;primaryKey" json:"-"`
	CreatorID          string              `gorm:"column:creator_id;uniqueIndex" json:"creator_id"`
	WithdrawalsEnabled bool                `gorm:"column:withdrawals_enabled" json:"withdrawals_enabled"`
	PauseReason        string              `gorm:"column:pause_reason" json:"pause_reason,omitempty"`
	MonthlyLimitUSD    decimal.NullDecimal `gorm:"column:monthly_limit_usd;type:numeric(20,8)" json:"monthly_limit_usd"`
	UpdatedBy          string              `gorm:"column:updated_by" json:"updated_by,omitempty"`
	CreatedAt          time.Time           `gorm:"column:created_at" json:"-"`
	UpdatedAt          time.Time           `gorm:"column:updated_at" json:"updated_at"`
}

func Models() []any {
	return []any{&PayoutRequest{}, &PayoutSetting{}}
}
