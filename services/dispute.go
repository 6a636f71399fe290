package services

import (
	"encoding/json"
	"errors"
	"time"

	"stayza-server/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrDisputeNotFound      = errors.New("dispute not found")
	ErrDisputeNotReviewable = errors.New("dispute is not open for review")
	ErrDisputeAlreadyClosed = errors.New("dispute has already been resolved or closed")
	ErrBookingNotDisputable = errors.New("only confirmed or completed bookings can be disputed")
)

// OpenDispute files a post-stay claim by the guest or the realtor. A
// confirmed booking takes the disputed overlay status; a completed booking
// keeps its terminal state while the dispute runs alongside it.
func OpenDispute(db *gorm.DB, bookingID, reporterID uint, reporterRole, category, description string) (*models.Dispute, error) {
	unlock := LockBooking(bookingID)
	defer unlock()

	var booking models.Booking
	if err := db.First(&booking, bookingID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	if booking.Status != models.BookingStatusConfirmed && booking.Status != models.BookingStatusCompleted {
		return nil, ErrBookingNotDisputable
	}

	dispute := models.Dispute{
		BookingID:    bookingID,
		ReporterID:   reporterID,
		ReporterRole: reporterRole,
		Category:     category,
		Description:  description,
		Status:       models.DisputeStatusOpen,
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&dispute).Error; err != nil {
			return err
		}
		if booking.Status == models.BookingStatusConfirmed {
			return transitionBooking(tx, bookingID, models.BookingStatusConfirmed, models.BookingStatusDisputed)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &dispute, nil
}

// BeginReview moves an open dispute to in_review.
func BeginReview(db *gorm.DB, disputeID uint) (*models.Dispute, error) {
	var dispute models.Dispute
	if err := db.First(&dispute, disputeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDisputeNotFound
		}
		return nil, err
	}

	res := db.Model(&dispute).
		Where("status = ?", models.DisputeStatusOpen).
		Update("status", models.DisputeStatusInReview)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrDisputeNotReviewable
	}
	dispute.Status = models.DisputeStatusInReview
	return &dispute, nil
}

// ResolveDispute applies an admin ruling atomically: the refund entry (if
// any), the dispute's terminal resolved state, and the booking transition
// all commit together. A full-balance refund cancels the booking and frees
// its dates; a partial or zero refund hands the booking back to confirmed.
// Resolved disputes are terminal: further claims need a new dispute.
func ResolveDispute(db *gorm.DB, disputeID, adminID uint, refundAmount int64, realtorPenalty bool, note string) (*models.Dispute, error) {
	var dispute models.Dispute
	if err := db.First(&dispute, disputeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDisputeNotFound
		}
		return nil, err
	}
	if dispute.Status != models.DisputeStatusInReview {
		if dispute.Status == models.DisputeStatusResolved || dispute.Status == models.DisputeStatusClosed {
			return nil, ErrDisputeAlreadyClosed
		}
		return nil, ErrDisputeNotReviewable
	}

	unlock := LockBooking(dispute.BookingID)
	defer unlock()

	var booking models.Booking
	if err := db.Preload("Payment").First(&booking, dispute.BookingID).Error; err != nil {
		return nil, err
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		fullRefund := false
		if refundAmount > 0 {
			if !booking.PaymentVerified() {
				return ErrBookingNotPayable
			}
			if _, err := applyRefundTx(tx, &booking, refundAmount, "dispute resolution", models.RefundActorAdmin, adminID, &dispute.ID); err != nil {
				return err
			}
			refunded, err := refundedSum(tx, booking.ID)
			if err != nil {
				return err
			}
			fullRefund = refunded == booking.Total
		}

		now := time.Now()
		meta, _ := json.Marshal(map[string]interface{}{
			"refund_amount":   refundAmount,
			"realtor_penalty": realtorPenalty,
		})
		res := tx.Model(&dispute).
			Where("status = ?", models.DisputeStatusInReview).
			Updates(map[string]interface{}{
				"status":          models.DisputeStatusResolved,
				"refund_amount":   refundAmount,
				"realtor_penalty": realtorPenalty,
				"resolution_note": note,
				"resolution_meta": datatypes.JSON(meta),
				"resolved_by":     adminID,
				"resolved_at":     now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrDisputeAlreadyClosed
		}

		if booking.Status == models.BookingStatusDisputed {
			if fullRefund {
				if err := transitionBooking(tx, booking.ID, models.BookingStatusDisputed, models.BookingStatusCancelled); err != nil {
					return err
				}
				if err := Release(tx, booking.ID); err != nil {
					return err
				}
				return tx.Model(&booking).Update("cancelled_by_refund", true).Error
			}
			return transitionBooking(tx, booking.ID, models.BookingStatusDisputed, models.BookingStatusConfirmed)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := db.First(&dispute, disputeID).Error; err != nil {
		return nil, err
	}
	return &dispute, nil
}

// CloseDispute withdraws a claim without a ruling. The booking's disputed
// overlay, if present, is lifted back to confirmed.
func CloseDispute(db *gorm.DB, disputeID uint) (*models.Dispute, error) {
	var dispute models.Dispute
	if err := db.First(&dispute, disputeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDisputeNotFound
		}
		return nil, err
	}
	if dispute.Status == models.DisputeStatusResolved || dispute.Status == models.DisputeStatusClosed {
		return nil, ErrDisputeAlreadyClosed
	}

	unlock := LockBooking(dispute.BookingID)
	defer unlock()

	err := db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&dispute).
			Where("status IN ?", []string{models.DisputeStatusOpen, models.DisputeStatusInReview}).
			Update("status", models.DisputeStatusClosed)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrDisputeAlreadyClosed
		}

		var booking models.Booking
		if err := tx.First(&booking, dispute.BookingID).Error; err != nil {
			return err
		}
		if booking.Status == models.BookingStatusDisputed {
			return transitionBooking(tx, booking.ID, models.BookingStatusDisputed, models.BookingStatusConfirmed)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	dispute.Status = models.DisputeStatusClosed
	return &dispute, nil
}
