package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	DisputeStatusOpen     = "open"
	DisputeStatusInReview = "in_review"
	DisputeStatusResolved = "resolved"
	DisputeStatusClosed   = "closed"
)

type Dispute struct {
	gorm.Model
	BookingID    uint   `json:"bookingID" gorm:"index;not null"`
	ReporterID   uint   `json:"reporterID" gorm:"index"`
	ReporterRole string `json:"reporterRole" gorm:"type:varchar(20)"` // guest, realtor
	Category     string `json:"category" gorm:"type:varchar(40)"`     // damage, misrepresentation, service, other
	Description  string `json:"description" gorm:"type:text"`
	Status       string `json:"status" gorm:"type:varchar(20);default:'open';index"`

	// Resolution, set once by an admin. RefundAmount may be zero.
	RefundAmount    int64          `json:"refundAmount"`
	RealtorPenalty  bool           `json:"realtorPenalty" gorm:"default:false"`
	ResolutionNote  string         `json:"resolutionNote" gorm:"type:text"`
	ResolutionMeta  datatypes.JSON `json:"resolutionMeta,omitempty"`
	ResolvedBy      uint           `json:"resolvedBy"`
	ResolvedAt      *time.Time     `json:"resolvedAt"`

	Booking *Booking `json:"booking,omitempty" gorm:"foreignKey:BookingID"`
}
