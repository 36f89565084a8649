package models

const (
	// Package durations are expressed in whole days.
	MinPackageDuration = 1
	MaxPackageDuration = 365
)

// Package is a named duration tier (e.g. Monthly = 30 days) that a bot can
// be offered under via a BotPackage.
type Package struct {
	Base
	Name        string `gorm:"column:name;size:100;not null;uniqueIndex" json:"name"`
	Duration    int    `gorm:"column:duration;not null" json:"duration"`
	Description string `gorm:"column:description;type:text" json:"description,omitempty"`
}

func (Package) TableName() string {
	return "packages"
}

// ValidPackageDuration reports whether days falls inside the allowed range.
func ValidPackageDuration(days int) bool {
	return days >= MinPackageDuration && days <= MaxPackageDuration
}

// BotPackage prices a specific Bot under a specific Package tier.
// One price per (bot, package) pairing.
type BotPackage struct {
	Base
	BotID     uint    `gorm:"column:bot_id;not null;index;uniqueIndex:idx_bot_package" json:"botId"`
	PackageID uint    `gorm:"column:package_id;not null;uniqueIndex:idx_bot_package" json:"packageId"`
	Price     float64 `gorm:"column:price;not null" json:"price"`

	Bot     *Bot     `gorm:"foreignKey:BotID" json:"bot,omitempty"`
	Package *Package `gorm:"foreignKey:PackageID" json:"package,omitempty"`
}

func (BotPackage) TableName() string {
	return "bot_packages"
}
