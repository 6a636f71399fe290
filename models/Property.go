package models

import (
	"encoding/json"

	"gorm.io/gorm"
)

// Default service-fee split applied when a realtor has not configured one.
const (
	DefaultServiceFeeBps    = 1000 // 10% of subtotal
	DefaultPlatformShareBps = 7000 // 70% of the service fee goes to the platform
)

type Property struct {
	gorm.Model
	RealtorID    uint    `json:"realtorID" gorm:"index"`
	Title        string  `json:"title"`
	Description  string  `json:"description"`
	PropertyType string  `json:"propertyType"` // entire_place, private_room, shared_room
	AddressLine1 string  `json:"addressLine1"`
	City         string  `json:"city"`
	State        string  `json:"state"`
	Country      string  `json:"country"`
	Lat          float32 `json:"lat"`
	Lng          float32 `json:"lng"`
	MaxOccupancy int     `json:"maxOccupancy" gorm:"default:1"`
	Bedrooms     int     `json:"bedrooms"`
	Bathrooms    float32 `json:"bathrooms"`
	Images       string  `json:"images"` // JSON array of URLs

	// Rate card. All amounts are in the smallest currency unit and all
	// percentages in basis points so pricing stays integer arithmetic.
	NightlyPrice     int64  `json:"nightlyPrice"`
	CleaningFee      int64  `json:"cleaningFee"`
	SecurityDeposit  int64  `json:"securityDeposit"`
	TaxRateBps       int64  `json:"taxRateBps"`
	ServiceFeeBps    int64  `json:"serviceFeeBps" gorm:"default:1000"`
	PlatformShareBps int64  `json:"platformShareBps" gorm:"default:7000"`
	Currency         string `json:"currency" gorm:"type:varchar(8);default:'NGN'"`

	IsActive *bool  `json:"isActive"`
	Status   string `json:"status" gorm:"type:varchar(20);default:'pending';index"` // pending, approved, rejected

	Bookings []Booking `json:"bookings,omitempty" gorm:"foreignKey:PropertyID"`
	Realtor  User      `json:"realtor" gorm:"foreignKey:RealtorID;references:ID"`
}

// Bookable reports whether the property may accept new bookings.
func (p *Property) Bookable() bool {
	return p.IsActive != nil && *p.IsActive && p.Status == "approved"
}

// Custom JSON marshaling to convert the Images string to an array and to
// avoid a circular Realtor -> Properties reference.
func (p *Property) MarshalJSON() ([]byte, error) {
	type Alias Property
	aux := &struct {
		Images  []string `json:"images"`
		Realtor *User    `json:"realtor,omitempty"`
		*Alias
	}{
		Images: []string{},
		Alias:  (*Alias)(p),
	}

	if p.Images != "" {
		var images []string
		if err := json.Unmarshal([]byte(p.Images), &images); err == nil {
			aux.Images = images
		}
	}

	if p.Realtor.ID > 0 {
		realtorCopy := p.Realtor
		realtorCopy.Properties = nil
		aux.Realtor = &realtorCopy
	}

	return json.Marshal(aux)
}
