package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	PaymentStatusUninitialized = "uninitialized"
	PaymentStatusPending       = "pending"
	PaymentStatusVerified      = "verified"
	PaymentStatusMismatch      = "mismatch"
	PaymentStatusFailed        = "failed"
)

// PaymentRecord is one-to-one with a Booking. Amount is denominated in the
// smallest currency unit and must equal the booking's frozen total; any
// divergence reported by the gateway is a reconciliation error.
type PaymentRecord struct {
	gorm.Model
	BookingID        uint           `json:"bookingID" gorm:"uniqueIndex;not null"`
	Reference        string         `json:"reference" gorm:"type:varchar(64);uniqueIndex"`
	Amount           int64          `json:"amount"`
	Currency         string         `json:"currency" gorm:"type:varchar(8)"`
	Status           string         `json:"status" gorm:"type:varchar(20);default:'uninitialized';index"`
	AuthorizationURL string         `json:"authorizationURL"`
	GatewayResponse  datatypes.JSON `json:"gatewayResponse,omitempty"`
	VerifiedAt       *time.Time     `json:"verifiedAt"`

	Booking *Booking `json:"booking,omitempty" gorm:"foreignKey:BookingID"`
}
