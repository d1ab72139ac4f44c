package wallet

import "time"

type CryptoType string

const (
	SOL   CryptoType = "SOL"
	TRC20 CryptoType = "TRC20"
	BEP20 CryptoType = "BEP20"
)

// Wallet is the single live payout destination of a creator.
type Wallet struct {
	ID            string     `gorm:"column:id;primaryKey" json:"id"`
	CreatorID     string     `gorm:"column:creator_id;uniqueIndex" json:"creator_id"`
	CryptoType    CryptoType `gorm:"column:crypto_type" json:"crypto_type"`
	Address       string     `gorm:"column:address" json:"address"`
	LastChangedAt time.Time  `gorm:"column:last_changed_at" json:"last_changed_at"`
	CanChangeAt   time.Time  `gorm:"column:can_change_at" json:"can_change_at"`
	CreatedAt     time.Time  `gorm:"column:created_at" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"column:updated_at" json:"updated_at"`
}

// WalletHistory is a wallet that was replaced.
type WalletHistory struct {
	ID         string     `gorm:"column:id;primaryKey" json:"id"`
	CreatorID  string     `gorm:"column:creator_id;index" json:"creator_id"`
	CryptoType CryptoType `gorm:"column:crypto_type" json:"crypto_type"`
	Address    string     `gorm:"column:address" json:"address"`
	ActiveFrom time.Time  `gorm:"column:active_from" json:"active_from"`
	ReplacedAt time.Time  `gorm:"column:replaced_at;index" json:"replaced_at"`
}

func Models() []any {
	return []any{&Wallet{}, &WalletHistory{}}
}
