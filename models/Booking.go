package models

import (
	"time"

	"gorm.io/gorm"
)

// Booking lifecycle states. A booking is never deleted, only closed.
const (
	BookingStatusDraft           = "draft"
	BookingStatusAwaitingPayment = "awaiting_payment"
	BookingStatusConfirmed       = "confirmed"
	BookingStatusDisputed        = "disputed"
	BookingStatusCompleted       = "completed"
	BookingStatusCancelled       = "cancelled"
	BookingStatusFailed          = "failed"
)

type Booking struct {
	gorm.Model
	PropertyID uint      `json:"propertyID" gorm:"index;not null"`
	GuestID    uint      `json:"guestID" gorm:"index;not null"`
	CheckIn    time.Time `json:"checkIn"`  // inclusive
	CheckOut   time.Time `json:"checkOut"` // exclusive
	NumGuests  int       `json:"numGuests"`
	Status     string    `json:"status" gorm:"type:varchar(20);default:'draft';index"`
	Note       string    `json:"note"`
	ExpiresAt  time.Time `json:"expiresAt"` // payment window for awaiting_payment bookings

	// Frozen price breakdown, computed once at creation. Any change to the
	// rate card requires an explicit re-quote and a new booking.
	Nights            int    `json:"nights"`
	Subtotal          int64  `json:"subtotal"`
	CleaningFee       int64  `json:"cleaningFee"`
	ServiceFee        int64  `json:"serviceFee"`
	PlatformShare     int64  `json:"platformShare"`
	ProcessingShare   int64  `json:"processingShare"`
	SecurityDeposit   int64  `json:"securityDeposit"`
	Taxes             int64  `json:"taxes"`
	Total             int64  `json:"total"`
	Currency          string `json:"currency" gorm:"type:varchar(8)"`
	CancelledByRefund bool   `json:"cancelledByRefund" gorm:"default:false"`

	Property *Property      `json:"property,omitempty" gorm:"foreignKey:PropertyID"`
	Guest    *User          `json:"guest,omitempty" gorm:"foreignKey:GuestID"`
	Payment  *PaymentRecord `json:"payment,omitempty" gorm:"foreignKey:BookingID"`
	Refunds  []RefundEntry  `json:"refunds,omitempty" gorm:"foreignKey:BookingID"`
}

// PaymentVerified reports whether money has actually moved for this booking.
func (b *Booking) PaymentVerified() bool {
	return b.Payment != nil && b.Payment.Status == PaymentStatusVerified
}
