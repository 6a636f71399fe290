package services

import (
	"errors"

	"stayza-server/models"

	"gorm.io/gorm"
)

var (
	ErrOverRefund          = errors.New("refund amount exceeds the remaining refundable balance")
	ErrBookingNotPayable   = errors.New("booking has no verified payment to refund against")
	ErrInvalidRefundAmount = errors.New("refund amount must be positive")
)

// RemainingRefundable returns total minus the sum of prior entries. The
// ledger is the single source of truth for this balance.
func RemainingRefundable(total int64, entries []models.RefundEntry) int64 {
	remaining := total
	for _, entry := range entries {
		remaining -= entry.Amount
	}
	return remaining
}

// refundedSum re-derives the prior-refund total inside the transaction, so
// two concurrent refunds can never both observe the stale balance.
func refundedSum(tx *gorm.DB, bookingID uint) (int64, error) {
	var sum int64
	err := tx.Model(&models.RefundEntry{}).
		Where("booking_id = ?", bookingID).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&sum).Error
	return sum, err
}

// applyRefundTx appends an entry for a booking whose lock is already held
// and whose payment is known to be verified. Used by ApplyRefund and by the
// cancellation and dispute flows that write refunds inside their own
// transactions.
func applyRefundTx(tx *gorm.DB, booking *models.Booking, amount int64, reason, actor string, actorID uint, disputeID *uint) (*models.RefundEntry, error) {
	if amount <= 0 {
		return nil, ErrInvalidRefundAmount
	}

	refunded, err := refundedSum(tx, booking.ID)
	if err != nil {
		return nil, err
	}
	if amount > booking.Total-refunded {
		return nil, ErrOverRefund
	}

	entry := models.RefundEntry{
		BookingID: booking.ID,
		Amount:    amount,
		Currency:  booking.Currency,
		Reason:    reason,
		Actor:     actor,
		ActorID:   actorID,
		DisputeID: disputeID,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

// ApplyRefund records a refund against a booking. Preconditions: the
// booking's payment must be verified (a booking that never reached
// confirmed is not refundable) and the amount must fit in the remaining
// balance. Full refunds do not cancel the booking here; lifecycle decisions
// belong to the caller.
func ApplyRefund(db *gorm.DB, bookingID uint, amount int64, reason, actor string, actorID uint) (*models.RefundEntry, error) {
	unlock := LockBooking(bookingID)
	defer unlock()

	var booking models.Booking
	if err := db.Preload("Payment").First(&booking, bookingID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	if !booking.PaymentVerified() {
		return nil, ErrBookingNotPayable
	}

	var entry *models.RefundEntry
	err := db.Transaction(func(tx *gorm.DB) error {
		var txErr error
		entry, txErr = applyRefundTx(tx, &booking, amount, reason, actor, actorID, nil)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// RefundSummary is the guest/realtor-facing view of a booking's ledger.
type RefundSummary struct {
	BookingID     uint                 `json:"bookingID"`
	Total         int64                `json:"total"`
	TotalRefunded int64                `json:"totalRefunded"`
	Remaining     int64                `json:"remaining"`
	Currency      string               `json:"currency"`
	Entries       []models.RefundEntry `json:"entries"`
}

func GetRefundSummary(db *gorm.DB, bookingID uint) (*RefundSummary, error) {
	var booking models.Booking
	if err := db.Preload("Refunds").First(&booking, bookingID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}

	summary := RefundSummary{
		BookingID: booking.ID,
		Total:     booking.Total,
		Remaining: RemainingRefundable(booking.Total, booking.Refunds),
		Currency:  booking.Currency,
		Entries:   booking.Refunds,
	}
	summary.TotalRefunded = summary.Total - summary.Remaining
	return &summary, nil
}
