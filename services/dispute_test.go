package services

import (
	"errors"
	"testing"
	"time"

	"stayza-server/models"

	"gorm.io/gorm"
)

// seedPaidBooking creates a confirmed booking with a verified payment and a
// live availability reservation, the state a dispute is filed against.
func seedPaidBooking(t *testing.T, db *gorm.DB, total int64) *models.Booking {
	t.Helper()

	booking := models.Booking{
		PropertyID: 1,
		GuestID:    2,
		CheckIn:    time.Date(2030, 1, 10, 0, 0, 0, 0, time.UTC),
		CheckOut:   time.Date(2030, 1, 13, 0, 0, 0, 0, time.UTC),
		NumGuests:  2,
		Status:     models.BookingStatusConfirmed,
		Total:      total,
		Currency:   "NGN",
	}
	if err := db.Create(&booking).Error; err != nil {
		t.Fatalf("failed to seed booking: %v", err)
	}

	record := models.PaymentRecord{
		BookingID: booking.ID,
		Reference: "ref-paid",
		Amount:    total,
		Currency:  "NGN",
		Status:    models.PaymentStatusVerified,
	}
	if err := db.Create(&record).Error; err != nil {
		t.Fatalf("failed to seed payment record: %v", err)
	}

	reservation := models.AvailabilityReservation{
		PropertyID: booking.PropertyID,
		BookingID:  booking.ID,
		CheckIn:    booking.CheckIn,
		CheckOut:   booking.CheckOut,
	}
	if err := db.Create(&reservation).Error; err != nil {
		t.Fatalf("failed to seed reservation: %v", err)
	}
	return &booking
}

func openReviewedDispute(t *testing.T, db *gorm.DB, bookingID uint) *models.Dispute {
	t.Helper()

	dispute, err := OpenDispute(db, bookingID, 2, "guest", "damage", "broken heating")
	if err != nil {
		t.Fatalf("failed to open dispute: %v", err)
	}
	if _, err := BeginReview(db, dispute.ID); err != nil {
		t.Fatalf("failed to begin review: %v", err)
	}
	return dispute
}

func TestOpenDisputeMovesConfirmedToDisputed(t *testing.T) {
	db := newTestDB(t)
	booking := seedPaidBooking(t, db, 190000)

	dispute, err := OpenDispute(db, booking.ID, 2, "guest", "damage", "broken heating")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dispute.Status != models.DisputeStatusOpen {
		t.Errorf("expected dispute open, got %s", dispute.Status)
	}

	var reloaded models.Booking
	if err := db.First(&reloaded, booking.ID).Error; err != nil {
		t.Fatalf("failed to reload booking: %v", err)
	}
	if reloaded.Status != models.BookingStatusDisputed {
		t.Errorf("expected booking disputed, got %s", reloaded.Status)
	}
}

func TestOpenDisputeRejectsUnpaidBooking(t *testing.T) {
	db := newTestDB(t)

	booking := models.Booking{PropertyID: 1, GuestID: 2, Status: models.BookingStatusAwaitingPayment, Total: 190000, Currency: "NGN"}
	if err := db.Create(&booking).Error; err != nil {
		t.Fatalf("failed to seed booking: %v", err)
	}

	_, err := OpenDispute(db, booking.ID, 2, "guest", "damage", "broken heating")
	if !errors.Is(err, ErrBookingNotDisputable) {
		t.Errorf("expected ErrBookingNotDisputable, got %v", err)
	}
}

// A full-balance ruling writes exactly one refund entry, cancels the booking
// and frees its dates.
func TestResolveDisputeFullRefundCancelsBooking(t *testing.T) {
	db := newTestDB(t)
	booking := seedPaidBooking(t, db, 190000)
	dispute := openReviewedDispute(t, db, booking.ID)

	resolved, err := ResolveDispute(db, dispute.ID, 9, 190000, true, "unit not as listed")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved.Status != models.DisputeStatusResolved {
		t.Errorf("expected dispute resolved, got %s", resolved.Status)
	}
	if resolved.RefundAmount != 190000 {
		t.Errorf("expected recorded refund amount 190000, got %d", resolved.RefundAmount)
	}

	var entries []models.RefundEntry
	if err := db.Where("booking_id = ?", booking.ID).Find(&entries).Error; err != nil {
		t.Fatalf("failed to load refund entries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly one refund entry, got %d", len(entries))
	}
	if entries[0].Amount != 190000 || entries[0].DisputeID == nil || *entries[0].DisputeID != dispute.ID {
		t.Errorf("unexpected refund entry: amount %d, disputeID %v", entries[0].Amount, entries[0].DisputeID)
	}

	var reloaded models.Booking
	if err := db.First(&reloaded, booking.ID).Error; err != nil {
		t.Fatalf("failed to reload booking: %v", err)
	}
	if reloaded.Status != models.BookingStatusCancelled {
		t.Errorf("expected booking cancelled, got %s", reloaded.Status)
	}
	if !reloaded.CancelledByRefund {
		t.Error("expected CancelledByRefund to be set")
	}

	var reservation models.AvailabilityReservation
	if err := db.Where("booking_id = ?", booking.ID).First(&reservation).Error; err != nil {
		t.Fatalf("failed to reload reservation: %v", err)
	}
	if !reservation.Released {
		t.Error("expected reservation to be released on full-refund cancellation")
	}
}

// A partial ruling hands the booking back to confirmed and keeps the dates.
func TestResolveDisputePartialRefundKeepsBookingConfirmed(t *testing.T) {
	db := newTestDB(t)
	booking := seedPaidBooking(t, db, 190000)
	dispute := openReviewedDispute(t, db, booking.ID)

	resolved, err := ResolveDispute(db, dispute.ID, 9, 50000, false, "partial compensation")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved.Status != models.DisputeStatusResolved {
		t.Errorf("expected dispute resolved, got %s", resolved.Status)
	}

	var entries []models.RefundEntry
	if err := db.Where("booking_id = ?", booking.ID).Find(&entries).Error; err != nil {
		t.Fatalf("failed to load refund entries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly one refund entry, got %d", len(entries))
	}
	if entries[0].Amount != 50000 {
		t.Errorf("expected refund entry of 50000, got %d", entries[0].Amount)
	}

	var reloaded models.Booking
	if err := db.First(&reloaded, booking.ID).Error; err != nil {
		t.Fatalf("failed to reload booking: %v", err)
	}
	if reloaded.Status != models.BookingStatusConfirmed {
		t.Errorf("expected booking confirmed after partial refund, got %s", reloaded.Status)
	}

	var reservation models.AvailabilityReservation
	if err := db.Where("booking_id = ?", booking.ID).First(&reservation).Error; err != nil {
		t.Fatalf("failed to reload reservation: %v", err)
	}
	if reservation.Released {
		t.Error("reservation must stay live when the booking survives")
	}
}

func TestResolveDisputeIsTerminal(t *testing.T) {
	db := newTestDB(t)
	booking := seedPaidBooking(t, db, 190000)
	dispute := openReviewedDispute(t, db, booking.ID)

	if _, err := ResolveDispute(db, dispute.ID, 9, 0, false, "no fault found"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err := ResolveDispute(db, dispute.ID, 9, 1000, false, "second thoughts")
	if !errors.Is(err, ErrDisputeAlreadyClosed) {
		t.Errorf("expected ErrDisputeAlreadyClosed on a resolved dispute, got %v", err)
	}
}
