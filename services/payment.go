package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"stayza-server/models"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrReconciliationMismatch = errors.New("gateway amount does not match the booking's frozen total")
	ErrPaymentNotPending      = errors.New("booking is not awaiting payment")
	ErrPaymentNotFound        = errors.New("payment record not found")
)

// Gateway is the processor used by payment operations. main wires the
// Paystack client; tests substitute a double.
var Gateway PaymentGateway

// VerifyOutcome reports what a verification attempt did. AlreadyVerified
// distinguishes a re-delivered event (no-op, no second notification) from
// the delivery that actually confirmed the booking.
type VerifyOutcome struct {
	Booking         *models.Booking
	Record          *models.PaymentRecord
	Confirmed       bool
	AlreadyVerified bool
	Failed          bool
}

// InitializePayment starts (or resumes) the gateway handshake for an
// awaiting_payment booking. Idempotent per booking: a second call returns
// the existing reference instead of creating a new gateway transaction, so
// the processor is never asked to charge the same booking twice.
func InitializePayment(ctx context.Context, db *gorm.DB, bookingID uint) (*models.PaymentRecord, error) {
	unlock := LockBooking(bookingID)

	var booking models.Booking
	if err := db.Preload("Guest").Preload("Payment").First(&booking, bookingID).Error; err != nil {
		unlock()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	if booking.Status != models.BookingStatusAwaitingPayment {
		unlock()
		return nil, ErrPaymentNotPending
	}

	// Idempotency: any record that already went out to the gateway is
	// returned as-is instead of opening a second transaction.
	record := booking.Payment
	if record != nil && record.Status != models.PaymentStatusUninitialized {
		unlock()
		return record, nil
	}

	if record == nil {
		// The amount is derived from the frozen breakdown, never from
		// anything the client sent.
		record = &models.PaymentRecord{
			BookingID: booking.ID,
			Reference: uuid.NewString(),
			Amount:    booking.Total,
			Currency:  booking.Currency,
			Status:    models.PaymentStatusUninitialized,
		}
		if err := db.Create(record).Error; err != nil {
			unlock()
			return nil, err
		}
	}
	unlock()

	// The outbound call happens without the booking lock; only the local
	// state change afterwards is serialized.
	email := ""
	if booking.Guest != nil {
		email = booking.Guest.Email
	}
	result, err := Gateway.InitializeTransaction(ctx, InitializeRequest{
		Reference: record.Reference,
		Email:     email,
		Amount:    record.Amount,
		Currency:  record.Currency,
		Metadata: map[string]interface{}{
			"booking_id":  booking.ID,
			"property_id": booking.PropertyID,
		},
	})
	if err != nil {
		return nil, err
	}

	unlock = LockBooking(bookingID)
	defer unlock()
	updates := map[string]interface{}{
		"status":            models.PaymentStatusPending,
		"authorization_url": result.AuthorizationURL,
	}
	res := db.Model(record).Where("status = ?", models.PaymentStatusUninitialized).Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		// The payment window sweep failed this record while the gateway
		// call was in flight; the caller must not get a pending handle.
		return nil, ErrPaymentNotPending
	}
	record.Status = models.PaymentStatusPending
	record.AuthorizationURL = result.AuthorizationURL
	return record, nil
}

// reconcile compares a gateway verification result against the frozen
// payment record. Pure; the caller decides what to persist.
func reconcile(record *models.PaymentRecord, result *VerificationResult) error {
	if result.Amount != record.Amount || result.Currency != record.Currency {
		return fmt.Errorf("%w: gateway reported %d %s, frozen total is %d %s",
			ErrReconciliationMismatch, result.Amount, result.Currency, record.Amount, record.Currency)
	}
	return nil
}

// VerifyPayment drives a booking to confirmed off a gateway verification.
// Safe under re-delivery: an already-verified record short-circuits before
// any gateway call, and the confirmed transition is CAS-guarded. A payment
// that succeeded at the gateway but fails the amount check never confirms
// the booking; it is surfaced as a reconciliation mismatch for an operator.
func VerifyPayment(ctx context.Context, db *gorm.DB, reference string) (*VerifyOutcome, error) {
	var record models.PaymentRecord
	if err := db.Where("reference = ?", reference).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}

	if record.Status == models.PaymentStatusVerified {
		return alreadyVerifiedOutcome(db, &record)
	}

	// Exactly one outbound call per logical attempt, taken before any lock
	// so gateway latency never blocks other transitions on this booking.
	result, err := Gateway.VerifyTransaction(ctx, reference)
	if err != nil {
		return nil, err
	}

	unlock := LockBooking(record.BookingID)
	defer unlock()

	// Re-read under the lock: a concurrent delivery may have won.
	if err := db.Where("reference = ?", reference).First(&record).Error; err != nil {
		return nil, err
	}
	if record.Status == models.PaymentStatusVerified {
		return alreadyVerifiedOutcome(db, &record)
	}

	var booking models.Booking
	if err := db.First(&booking, record.BookingID).Error; err != nil {
		return nil, err
	}

	outcome := &VerifyOutcome{Booking: &booking, Record: &record}

	switch result.Status {
	case GatewayStatusSuccess:
		if err := reconcile(&record, result); err != nil {
			markMismatch(db, &record, result)
			return nil, err
		}
		err := db.Transaction(func(tx *gorm.DB) error {
			now := time.Now()
			if err := tx.Model(&record).Updates(map[string]interface{}{
				"status":           models.PaymentStatusVerified,
				"verified_at":      now,
				"gateway_response": datatypes.JSON(result.Raw),
			}).Error; err != nil {
				return err
			}
			return transitionBooking(tx, booking.ID, models.BookingStatusAwaitingPayment, models.BookingStatusConfirmed)
		})
		if err != nil {
			return nil, err
		}
		record.Status = models.PaymentStatusVerified
		booking.Status = models.BookingStatusConfirmed
		outcome.Confirmed = true
		return outcome, nil

	case GatewayStatusFailed, GatewayStatusAbandoned:
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(&record).Updates(map[string]interface{}{
				"status":           models.PaymentStatusFailed,
				"gateway_response": datatypes.JSON(result.Raw),
			}).Error; err != nil {
				return err
			}
			if err := transitionBooking(tx, booking.ID, models.BookingStatusAwaitingPayment, models.BookingStatusFailed); err != nil {
				return err
			}
			return Release(tx, booking.ID)
		})
		if err != nil {
			return nil, err
		}
		record.Status = models.PaymentStatusFailed
		booking.Status = models.BookingStatusFailed
		outcome.Failed = true
		return outcome, nil

	default:
		// still pending at the gateway, nothing to apply yet
		return outcome, nil
	}
}

func alreadyVerifiedOutcome(db *gorm.DB, record *models.PaymentRecord) (*VerifyOutcome, error) {
	var booking models.Booking
	if err := db.First(&booking, record.BookingID).Error; err != nil {
		return nil, err
	}
	return &VerifyOutcome{
		Booking:         &booking,
		Record:          record,
		AlreadyVerified: true,
	}, nil
}

// markMismatch flags the record so an operator resolves it by hand. The
// booking stays awaiting_payment; this state is never auto-resolved.
func markMismatch(db *gorm.DB, record *models.PaymentRecord, result *VerificationResult) {
	log.Printf("RECONCILIATION MISMATCH: payment %s booking %d gateway=%d %s frozen=%d %s",
		record.Reference, record.BookingID, result.Amount, result.Currency, record.Amount, record.Currency)
	if err := db.Model(record).Updates(map[string]interface{}{
		"status":           models.PaymentStatusMismatch,
		"gateway_response": datatypes.JSON(result.Raw),
	}).Error; err != nil {
		log.Printf("failed to persist mismatch for payment %s: %v", record.Reference, err)
	}
}
