package models

import (
	"time"

	"gorm.io/gorm"
)

// Actors that can originate a refund entry.
const (
	RefundActorGuest   = "guest"
	RefundActorRealtor = "realtor"
	RefundActorAdmin   = "admin"
)

// RefundEntry is an append-only record of money moving back to a guest.
// Entries are never updated or deleted; the running sum against the
// booking's frozen total is the remaining refundable balance.
type RefundEntry struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	BookingID uint      `json:"bookingID" gorm:"index;not null"`
	Amount    int64     `json:"amount" gorm:"not null"`
	Currency  string    `json:"currency" gorm:"type:varchar(8)"`
	Reason    string    `json:"reason" gorm:"size:500"`
	Actor     string    `json:"actor" gorm:"type:varchar(20);index"` // guest, realtor, admin
	ActorID   uint      `json:"actorID"`
	DisputeID *uint     `json:"disputeID,omitempty" gorm:"index"`
	CreatedAt time.Time `json:"createdAt"`

	Booking *Booking `json:"booking,omitempty" gorm:"foreignKey:BookingID"`
}

// BeforeUpdate blocks in-place mutation so the ledger stays append-only.
func (RefundEntry) BeforeUpdate(*gorm.DB) error {
	return gorm.ErrInvalidData
}
