package services

import (
	"errors"
	"time"

	"stayza-server/models"
)

var (
	ErrInvalidDateRange    = errors.New("checkIn must be strictly before checkOut")
	ErrCheckInPast         = errors.New("checkIn must not be in the past")
	ErrExceedsMaxOccupancy = errors.New("guest count exceeds the property's max occupancy")
	ErrPropertyNotBookable = errors.New("property is inactive or not approved")
)

// PriceBreakdown is the itemized result of a quote. All amounts are in the
// smallest currency unit. The service fee split is preserved so downstream
// payout accounting can report the platform and processing shares separately.
type PriceBreakdown struct {
	Nights          int    `json:"nights"`
	NightlyPrice    int64  `json:"nightlyPrice"`
	Subtotal        int64  `json:"subtotal"`
	CleaningFee     int64  `json:"cleaningFee"`
	ServiceFee      int64  `json:"serviceFee"`
	PlatformShare   int64  `json:"platformShare"`
	ProcessingShare int64  `json:"processingShare"`
	SecurityDeposit int64  `json:"securityDeposit"`
	Taxes           int64  `json:"taxes"`
	Total           int64  `json:"total"`
	Currency        string `json:"currency"`
}

// dateOnly truncates a timestamp to midnight UTC. Stays are whole calendar
// days; clock components on the inputs never affect the night count.
func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// NightsBetween returns the whole-day length of the half-open range
// [checkIn, checkOut).
func NightsBetween(checkIn, checkOut time.Time) int {
	return int(dateOnly(checkOut).Sub(dateOnly(checkIn)).Hours() / 24)
}

// Quote computes the authoritative price breakdown for a prospective stay.
// It is pure: safe to re-run for estimate displays before a booking is
// committed. The frozen copy on a Booking comes from exactly this function.
func Quote(property *models.Property, checkIn, checkOut time.Time, guestCount int) (*PriceBreakdown, error) {
	if !property.Bookable() {
		return nil, ErrPropertyNotBookable
	}

	nights := NightsBetween(checkIn, checkOut)
	if nights < 1 {
		return nil, ErrInvalidDateRange
	}
	if dateOnly(checkIn).Before(dateOnly(time.Now())) {
		return nil, ErrCheckInPast
	}

	if guestCount < 1 || guestCount > property.MaxOccupancy {
		return nil, ErrExceedsMaxOccupancy
	}

	serviceFeeBps := property.ServiceFeeBps
	if serviceFeeBps == 0 {
		serviceFeeBps = models.DefaultServiceFeeBps
	}
	platformShareBps := property.PlatformShareBps
	if platformShareBps == 0 {
		platformShareBps = models.DefaultPlatformShareBps
	}

	subtotal := property.NightlyPrice * int64(nights)
	serviceFee := subtotal * serviceFeeBps / 10000
	platformShare := serviceFee * platformShareBps / 10000
	taxes := subtotal * property.TaxRateBps / 10000

	breakdown := PriceBreakdown{
		Nights:          nights,
		NightlyPrice:    property.NightlyPrice,
		Subtotal:        subtotal,
		CleaningFee:     property.CleaningFee,
		ServiceFee:      serviceFee,
		PlatformShare:   platformShare,
		ProcessingShare: serviceFee - platformShare,
		SecurityDeposit: property.SecurityDeposit,
		Taxes:           taxes,
		Currency:        property.Currency,
	}
	breakdown.Total = breakdown.Subtotal + breakdown.CleaningFee + breakdown.ServiceFee +
		breakdown.SecurityDeposit + breakdown.Taxes

	return &breakdown, nil
}
