package models

import (
	"time"

	"github.com/lib/pq"
)

const (
	DirectionLong  = "LONG"
	DirectionShort = "SHORT"
)

const (
	OutcomeOpen      = "open"
	OutcomeWin       = "win"
	OutcomeLoss      = "loss"
	OutcomeBreakeven = "breakeven"
)

// Signal is a trade call published by a bot and recorded against the user
// who received it. TradeID ties the entry to later exit updates coming
// from the trading terminal.
type Signal struct {
	Base
	UserID        uint            `gorm:"not null;index" json:"userId"`
	BotID         *uint           `gorm:"index" json:"botId,omitempty"`
	TradeID       string          `gorm:"type:text;index" json:"tradeId,omitempty"`
	PairName      string          `gorm:"type:text;not null" json:"pairName"`
	Direction     string          `gorm:"type:varchar(10);not null" json:"direction"`
	EntryTime     time.Time       `gorm:"not null" json:"entryTime"`
	EntryPrice    float64         `gorm:"not null" json:"entryPrice"`
	LotSize       float64         `gorm:"not null" json:"lotSize"`
	StopLossPrice *float64        `json:"stopLossPrice,omitempty"`
	TargetPrice   *float64        `json:"targetPrice,omitempty"`
	TakeProfits   pq.Float64Array `gorm:"type:float8[]" json:"takeProfits,omitempty"`
	SignalTime    *time.Time      `json:"signalTime,omitempty"`
	Target1R      *float64        `json:"target1r,omitempty"`
	Target2R      *float64        `json:"target2r,omitempty"`
	ExitPrice     *float64        `json:"exitPrice,omitempty"`
	ExitTime      *time.Time      `json:"exitTime,omitempty"`
	Outcome       string          `gorm:"type:varchar(20);not null;default:'open'" json:"outcome"`
	Pips          *float64        `json:"pips,omitempty"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Bot  *Bot  `gorm:"foreignKey:BotID" json:"bot,omitempty"`
}

func (Signal) TableName() string {
	return "signals"
}

func ValidDirection(direction string) bool {
	return direction == DirectionLong || direction == DirectionShort
}

func ValidOutcome(outcome string) bool {
	switch outcome {
	case OutcomeOpen, OutcomeWin, OutcomeLoss, OutcomeBreakeven:
		return true
	}
	return false
}
