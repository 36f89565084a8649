package models

import "github.com/lib/pq"

// Broker is a trading venue users connect their accounts through.
type Broker struct {
	Base
	Name      string         `gorm:"type:text;not null;uniqueIndex" json:"name"`
	Website   string         `gorm:"type:text" json:"website,omitempty"`
	Platforms pq.StringArray `gorm:"type:text[]" json:"platforms,omitempty"`
	IsActive  bool           `gorm:"not null;default:true" json:"isActive"`
}

func (Broker) TableName() string {
	return "brokers"
}
