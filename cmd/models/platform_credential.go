package models

const (
	PlatformMT4     = "mt4"
	PlatformMT5     = "mt5"
	PlatformCTrader = "ctrader"
)

// PlatformCredential stores a user's trading terminal login so signals can
// be executed on their account. The password never leaves the server.
type PlatformCredential struct {
	Base
	UserID          uint   `gorm:"not null;index;uniqueIndex:idx_credentials_user_platform_login" json:"userId"`
	BrokerID        *uint  `gorm:"index" json:"brokerId,omitempty"`
	Platform        string `gorm:"type:varchar(20);not null;uniqueIndex:idx_credentials_user_platform_login" json:"platform"`
	Server          string `gorm:"type:text;not null" json:"server"`
	AccountLogin    string `gorm:"type:text;not null;uniqueIndex:idx_credentials_user_platform_login" json:"accountLogin"`
	AccountPassword string `gorm:"type:text;not null" json:"-"`

	User   *User   `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Broker *Broker `gorm:"foreignKey:BrokerID" json:"broker,omitempty"`
}

func (PlatformCredential) TableName() string {
	return "platform_credentials"
}

func ValidPlatform(platform string) bool {
	switch platform {
	case PlatformMT4, PlatformMT5, PlatformCTrader:
		return true
	}
	return false
}
