package models

import (
	"time"

	"gorm.io/gorm"
)

// AvailabilityReservation is an exclusive claim on a property's date range
// for a single booking. Dates are a half-open interval: CheckIn inclusive,
// CheckOut exclusive, so a checkout and a check-in on the same day never
// conflict. A released row no longer blocks anything.
type AvailabilityReservation struct {
	gorm.Model
	PropertyID uint       `json:"propertyID" gorm:"index:idx_resv_property_dates;not null"`
	BookingID  uint       `json:"bookingID" gorm:"uniqueIndex;not null"`
	CheckIn    time.Time  `json:"checkIn" gorm:"index:idx_resv_property_dates;not null"`
	CheckOut   time.Time  `json:"checkOut" gorm:"not null"`
	Released   bool       `json:"released" gorm:"default:false;index"`
	ReleasedAt *time.Time `json:"releasedAt"`

	Property *Property `json:"property,omitempty" gorm:"foreignKey:PropertyID"`
}
