package models

import "time"

type SubscriptionStatus string

const (
	SubscriptionActive  SubscriptionStatus = "active"
	SubscriptionPaused  SubscriptionStatus = "paused"
	SubscriptionExpired SubscriptionStatus = "expired"
)

// MinLotSize is the smallest lot size a broker will execute.
const MinLotSize = 0.1

// BotSubscription attaches a user to a bot for the duration purchased
// through a bot package. The partial unique index allows any number of
// expired rows per (user, bot) pair while at most one row is active or
// paused, so renewals create fresh rows and history is preserved.
type BotSubscription struct {
	Base
	UserID       uint               `gorm:"not null;index;uniqueIndex:idx_subscriptions_user_bot_live,where:status IN ('active','paused')" json:"userId"`
	BotID        uint               `gorm:"not null;index;uniqueIndex:idx_subscriptions_user_bot_live,where:status IN ('active','paused')" json:"botId"`
	BotPackageID uint               `gorm:"not null;index" json:"botPackageId"`
	LotSize      float64            `gorm:"not null" json:"lotSize"`
	Status       SubscriptionStatus `gorm:"type:varchar(20);not null;default:'active';index" json:"status"`
	SubscribedAt time.Time          `gorm:"not null" json:"subscribedAt"`
	ExpiresAt    time.Time          `gorm:"not null;index" json:"expiresAt"`
	CancelledAt  *time.Time         `json:"cancelledAt"`

	User       *User       `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Bot        *Bot        `gorm:"foreignKey:BotID" json:"bot,omitempty"`
	BotPackage *BotPackage `gorm:"foreignKey:BotPackageID" json:"botPackage,omitempty"`
}

func (BotSubscription) TableName() string {
	return "bot_subscriptions"
}

func ValidSubscriptionStatus(status SubscriptionStatus) bool {
	switch status {
	case SubscriptionActive, SubscriptionPaused, SubscriptionExpired:
		return true
	}
	return false
}

// LiveStatuses are the states that block a new subscription to the same bot.
func LiveStatuses() []SubscriptionStatus {
	return []SubscriptionStatus{SubscriptionActive, SubscriptionPaused}
}

// IsLive reports whether the subscription still occupies the (user, bot) slot.
func (s *BotSubscription) IsLive() bool {
	return s.Status == SubscriptionActive || s.Status == SubscriptionPaused
}

func (s *BotSubscription) IsExpired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

// Reconcile moves a live subscription whose expiry has passed into the
// expired state. It reports whether the status changed. Expired is
// terminal, so already-expired rows are never touched again.
func (s *BotSubscription) Reconcile(now time.Time) bool {
	if !s.IsLive() {
		return false
	}
	if !s.IsExpired(now) {
		return false
	}
	s.Status = SubscriptionExpired
	return true
}

// SubscriptionExpiry computes the expiry timestamp for a subscription
// taken out at start against a package lasting durationDays.
func SubscriptionExpiry(start time.Time, durationDays int) time.Time {
	return start.AddDate(0, 0, durationDays)
}
