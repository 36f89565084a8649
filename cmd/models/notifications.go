package models

import "time"

// Device is a registered push target. A user can hold the same Expo token
// only once, re-registering just refreshes the device metadata.
type Device struct {
	Base
	Token      string `gorm:"not null;uniqueIndex:idx_token_user" json:"token"`
	UserID     uint   `gorm:"not null;index;uniqueIndex:idx_token_user" json:"userId"`
	DeviceType string `gorm:"type:varchar(50)" json:"deviceType"`
	DeviceName string `gorm:"type:varchar(100)" json:"deviceName,omitempty"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (Device) TableName() string {
	return "devices"
}

const (
	NotificationSent   = "sent"
	NotificationFailed = "failed"
)

type NotificationHistory struct {
	Base
	UserID uint      `gorm:"index" json:"userId"`
	Title  string    `json:"title"`
	Body   string    `json:"body"`
	Data   string    `gorm:"type:text" json:"data,omitempty"`
	Status string    `gorm:"type:varchar(20)" json:"status"`
	SentAt time.Time `json:"sentAt"`
}

func (NotificationHistory) TableName() string {
	return "notification_history"
}
