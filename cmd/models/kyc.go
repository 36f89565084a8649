package models

import "time"

const (
	KYCPending  = "pending"
	KYCApproved = "approved"
	KYCRejected = "rejected"
)

// KYC holds a user's identity verification submission. One record per user;
// resubmitting replaces the documents and drops the record back to pending.
type KYC struct {
	Base
	UserID          uint       `gorm:"not null;uniqueIndex" json:"userId"`
	FullLegalName   string     `gorm:"type:text;not null" json:"fullLegalName"`
	DateOfBirth     string     `gorm:"type:varchar(10);not null" json:"dateOfBirth"`
	Country         string     `gorm:"type:text;not null" json:"country"`
	Address         string     `gorm:"type:text" json:"address,omitempty"`
	DocumentType    string     `gorm:"type:varchar(30);not null" json:"documentType"`
	DocumentFront   string     `gorm:"type:text;not null" json:"documentFront"`
	DocumentBack    string     `gorm:"type:text" json:"documentBack,omitempty"`
	SelfiePath      string     `gorm:"type:text" json:"selfiePath,omitempty"`
	Status          string     `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	ReviewedBy      *uint      `json:"reviewedBy,omitempty"`
	ReviewedAt      *time.Time `json:"reviewedAt,omitempty"`
	RejectionReason string     `gorm:"type:text" json:"rejectionReason,omitempty"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (KYC) TableName() string {
	return "kyc_records"
}

func ValidKYCStatus(status string) bool {
	switch status {
	case KYCPending, KYCApproved, KYCRejected:
		return true
	}
	return false
}
