package services

import (
	"errors"
	"time"

	"stayza-server/models"

	"gorm.io/gorm"
)

var ErrDatesUnavailable = errors.New("selected dates are not available")

// RangesOverlap reports whether the half-open ranges [aStart, aEnd) and
// [bStart, bEnd) intersect. A checkout on day N and a check-in on day N
// touch but do not overlap.
func RangesOverlap(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// Reserve claims the date range for a booking. It must run inside the
// booking-creation transaction and under the property lock, so a booking
// never exists in awaiting_payment without a reservation.
func Reserve(tx *gorm.DB, propertyID uint, checkIn, checkOut time.Time, bookingID uint) error {
	var conflicts int64
	res := tx.Model(&models.AvailabilityReservation{}).
		Where("property_id = ? AND released = ? AND check_in < ? AND check_out > ?",
			propertyID, false, checkOut, checkIn).
		Count(&conflicts)
	if res.Error != nil {
		return res.Error
	}
	if conflicts > 0 {
		return ErrDatesUnavailable
	}

	reservation := models.AvailabilityReservation{
		PropertyID: propertyID,
		BookingID:  bookingID,
		CheckIn:    checkIn,
		CheckOut:   checkOut,
	}
	return tx.Create(&reservation).Error
}

// Release frees the reservation held by a booking. Idempotent: releasing a
// reservation twice, or one that never existed, is a no-op.
func Release(tx *gorm.DB, bookingID uint) error {
	now := time.Now()
	return tx.Model(&models.AvailabilityReservation{}).
		Where("booking_id = ? AND released = ?", bookingID, false).
		Updates(map[string]interface{}{
			"released":    true,
			"released_at": now,
		}).Error
}

// CheckAvailability reports whether a range is free without reserving it.
// Used by the pre-booking validate endpoint; the answer can go stale, the
// reserve step under the property lock is what actually decides.
func CheckAvailability(db *gorm.DB, propertyID uint, checkIn, checkOut time.Time) (bool, error) {
	var conflicts int64
	res := db.Model(&models.AvailabilityReservation{}).
		Where("property_id = ? AND released = ? AND check_in < ? AND check_out > ?",
			propertyID, false, checkOut, checkIn).
		Count(&conflicts)
	if res.Error != nil {
		return false, res.Error
	}
	return conflicts == 0, nil
}
