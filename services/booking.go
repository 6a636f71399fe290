package services

import (
	"errors"
	"fmt"
	"time"

	"stayza-server/models"

	"gorm.io/gorm"
)

var (
	ErrIllegalTransition = errors.New("illegal booking state transition")
	ErrBookingNotFound   = errors.New("booking not found")
)

// Payment window granted to a booking entering awaiting_payment.
const paymentWindow = 24 * time.Hour

// bookingTransitions is the authoritative transition table. Anything not
// listed here fails loudly with ErrIllegalTransition; a caller double-driving
// a webhook can never silently corrupt a terminal state.
var bookingTransitions = map[string][]string{
	models.BookingStatusDraft: {
		models.BookingStatusAwaitingPayment,
		models.BookingStatusCancelled,
	},
	models.BookingStatusAwaitingPayment: {
		models.BookingStatusConfirmed,
		models.BookingStatusFailed,
		models.BookingStatusCancelled,
	},
	models.BookingStatusConfirmed: {
		models.BookingStatusCompleted,
		models.BookingStatusCancelled,
		models.BookingStatusDisputed,
	},
	models.BookingStatusDisputed: {
		models.BookingStatusConfirmed,
		models.BookingStatusCancelled,
	},
	// completed, cancelled and failed are terminal
}

// CanTransition reports whether from -> to is a legal lifecycle move.
func CanTransition(from, to string) bool {
	for _, allowed := range bookingTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// transitionBooking applies from -> to with a status-conditioned UPDATE.
// Zero rows affected means the booking was concurrently moved off the
// expected status; the caller lost the race and must re-read.
func transitionBooking(tx *gorm.DB, bookingID uint, from, to string) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
	}
	res := tx.Model(&models.Booking{}).
		Where("id = ? AND status = ?", bookingID, from).
		Update("status", to)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: booking %d is no longer %s", ErrIllegalTransition, bookingID, from)
	}
	return nil
}

// CreateBooking quotes, reserves the dates and moves the booking to
// awaiting_payment in one transaction under the property lock. The price
// breakdown is frozen onto the booking row and never recomputed.
func CreateBooking(db *gorm.DB, property *models.Property, guestID uint, checkIn, checkOut time.Time, numGuests int, note string) (*models.Booking, error) {
	breakdown, err := Quote(property, checkIn, checkOut, numGuests)
	if err != nil {
		return nil, err
	}

	unlock := LockProperty(property.ID)
	defer unlock()

	booking := models.Booking{
		PropertyID:      property.ID,
		GuestID:         guestID,
		CheckIn:         dateOnly(checkIn),
		CheckOut:        dateOnly(checkOut),
		NumGuests:       numGuests,
		Status:          models.BookingStatusDraft,
		Note:            note,
		ExpiresAt:       time.Now().Add(paymentWindow),
		Nights:          breakdown.Nights,
		Subtotal:        breakdown.Subtotal,
		CleaningFee:     breakdown.CleaningFee,
		ServiceFee:      breakdown.ServiceFee,
		PlatformShare:   breakdown.PlatformShare,
		ProcessingShare: breakdown.ProcessingShare,
		SecurityDeposit: breakdown.SecurityDeposit,
		Taxes:           breakdown.Taxes,
		Total:           breakdown.Total,
		Currency:        breakdown.Currency,
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&booking).Error; err != nil {
			return err
		}
		if err := Reserve(tx, property.ID, booking.CheckIn, booking.CheckOut, booking.ID); err != nil {
			return err
		}
		return transitionBooking(tx, booking.ID, models.BookingStatusDraft, models.BookingStatusAwaitingPayment)
	})
	if err != nil {
		return nil, err
	}

	booking.Status = models.BookingStatusAwaitingPayment
	return &booking, nil
}

// CancelBooking closes a booking from awaiting_payment or confirmed. The
// reservation is released in the same transaction, and a verified payment is
// never orphaned: cancelling a paid booking writes a refund entry for the
// whole remaining balance atomically with the transition.
func CancelBooking(db *gorm.DB, bookingID uint, actor string, actorID uint, reason string) (*models.Booking, error) {
	unlock := LockBooking(bookingID)
	defer unlock()

	var booking models.Booking
	if err := db.Preload("Payment").Preload("Refunds").First(&booking, bookingID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}

	// A disputed booking is settled only through dispute resolution, which
	// owns the refund decision. Direct cancellation must not drain the
	// refundable balance out from under a pending ruling.
	if booking.Status == models.BookingStatusDisputed {
		return nil, fmt.Errorf("%w: disputed bookings are settled by dispute resolution", ErrIllegalTransition)
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := transitionBooking(tx, booking.ID, booking.Status, models.BookingStatusCancelled); err != nil {
			return err
		}
		if err := Release(tx, booking.ID); err != nil {
			return err
		}
		if booking.PaymentVerified() {
			remaining := RemainingRefundable(booking.Total, booking.Refunds)
			if remaining > 0 {
				if _, err := applyRefundTx(tx, &booking, remaining, reason, actor, actorID, nil); err != nil {
					return err
				}
			}
			return tx.Model(&booking).Update("cancelled_by_refund", true).Error
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	booking.Status = models.BookingStatusCancelled
	return &booking, nil
}

// CompleteElapsedBookings moves confirmed bookings past their checkout date
// to completed. Disputed bookings keep their overlay status and are skipped
// by the status condition. Returns the number of bookings closed.
func CompleteElapsedBookings(db *gorm.DB) (int, error) {
	var ids []uint
	err := db.Model(&models.Booking{}).
		Where("status = ? AND check_out <= ?", models.BookingStatusConfirmed, time.Now()).
		Pluck("id", &ids).Error
	if err != nil {
		return 0, err
	}

	completed := 0
	for _, id := range ids {
		unlock := LockBooking(id)
		err := transitionBooking(db, id, models.BookingStatusConfirmed, models.BookingStatusCompleted)
		unlock()
		if err != nil {
			// lost to a concurrent dispute or cancellation, skip
			if errors.Is(err, ErrIllegalTransition) {
				continue
			}
			return completed, err
		}
		completed++
	}
	return completed, nil
}

// ExpireStalePayments fails awaiting_payment bookings whose payment window
// has lapsed and releases their dates. Safe to run from a scheduler at any
// cadence; each booking is CAS-guarded.
func ExpireStalePayments(db *gorm.DB) (int, error) {
	var ids []uint
	err := db.Model(&models.Booking{}).
		Where("status = ? AND expires_at < ?", models.BookingStatusAwaitingPayment, time.Now()).
		Pluck("id", &ids).Error
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, id := range ids {
		unlock := LockBooking(id)
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := transitionBooking(tx, id, models.BookingStatusAwaitingPayment, models.BookingStatusFailed); err != nil {
				return err
			}
			if err := Release(tx, id); err != nil {
				return err
			}
			return tx.Model(&models.PaymentRecord{}).
				Where("booking_id = ? AND status IN ?", id,
					[]string{models.PaymentStatusUninitialized, models.PaymentStatusPending}).
				Update("status", models.PaymentStatusFailed).Error
		})
		unlock()
		if err != nil {
			if errors.Is(err, ErrIllegalTransition) {
				continue
			}
			return expired, err
		}
		expired++
	}
	return expired, nil
}
