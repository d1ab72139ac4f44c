package pin

import "time"

type WithdrawalPin struct {
	ID            string    `gorm:"column:id;primaryKey"`
	CreatorID     string    `gorm:"column:creator_id;uniqueIndex"`
	PinHash       string    `gorm:"column:pin_hash;not null"`
	LastChangedAt time.Time `gorm:"column:last_changed_at"`
	CreatedAt     time.Time `gorm:"column:created_at"`
	UpdatedAt     time.Time `gorm:"column:updated_at"`
}

type Status struct {
	HasPin        bool       `json:"has_pin"`
	Locked        bool       `json:"locked"`
	LastChangedAt *time.Time `json:"last_changed_at,omitempty"`
}

func Models() []any {
	return []any{&WithdrawalPin{}}
}
