package models

import "time"

// TenantPolicy holds per-tenant priority weights. Rows are created lazily
// on first configuration. Alpha and Beta carry no column default: gorm
// drops zero-valued fields that have one, and zero is a valid weight.
type TenantPolicy struct {
	ID        uint    `gorm:"primaryKey;autoIncrement"`
	TenantID  string  `gorm:"size:36;not null;uniqueIndex"`
	Alpha     float64 `gorm:"not null"`
	Beta      float64 `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
