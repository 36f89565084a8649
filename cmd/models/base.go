package models

import (
	"time"
)

// Base replaces gorm.Model so records serialize with an "id" key and
// camelCase timestamps, and so deletes are physical. Expired subscriptions
// are kept as history rows, not soft-deleted ones.
type Base struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
