package models

import (
	"github.com/lib/pq"
)

const (
	RiskLow    = "low"
	RiskMedium = "medium"
	RiskHigh   = "high"
)

// Bot is a signal-generating product users subscribe to.
type Bot struct {
	Base
	Name        string         `gorm:"column:name;size:255;not null;uniqueIndex" json:"name"`
	Description string         `gorm:"column:description;type:text" json:"description,omitempty"`
	Strategy    string         `gorm:"column:strategy;size:255" json:"strategy,omitempty"`
	Pairs       pq.StringArray `gorm:"column:pairs;type:text[]" json:"pairs,omitempty"`
	RiskLevel   string         `gorm:"column:risk_level;size:20;default:medium" json:"riskLevel"`
	IsActive    bool           `gorm:"column:is_active;default:true" json:"isActive"`
}

func (Bot) TableName() string {
	return "bots"
}

// ValidRiskLevel reports whether level is a known bot risk tier.
func ValidRiskLevel(level string) bool {
	switch level {
	case RiskLow, RiskMedium, RiskHigh:
		return true
	}
	return false
}
