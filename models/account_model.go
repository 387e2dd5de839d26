package models

import (
	"strings"
	"time"
)

// User is the minimal identity the rights service needs; authentication
// itself lives upstream.
type User struct {
	Base
	Email     string   `json:"email" gorm:"size:254;uniqueIndex"`
	FirstName string   `json:"first_name" gorm:"size:150"`
	LastName  string   `json:"last_name" gorm:"size:150"`
	Account   *Account `json:"-"`
}

func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

type Account struct {
	Base
	UserID         uint       `json:"-" gorm:"uniqueIndex"`
	ContractSigned *time.Time `json:"contract_signed"`
}

type DocumentType string

const (
	DocumentRevenueShare DocumentType = "REVENUE_SHARE"
	DocumentContract     DocumentType = "CONTRACT"
	DocumentTOS          DocumentType = "TOS"
	DocumentTax          DocumentType = "TAX"
	DocumentOther        DocumentType = "OTHER"
)

// Document is any signable file tied to a user: contracts, tax forms and so on.
type Document struct {
	Base
	UserID             uint         `json:"-" gorm:"index"`
	User               *User        `json:"-"`
	Name               string       `json:"name" gorm:"size:200"`
	Type               DocumentType `json:"type" gorm:"size:20"`
	SignatureRequestID string       `json:"signature_request_id" gorm:"size:50;index"`
	Signed             *time.Time   `json:"signed"`
}
