package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"stayza-server/models"
	"stayza-server/storage"
)

const expoPushURL = "https://exp.host/--/api/v2/push/send"

// NotificationService writes notification rows and sends push messages.
// It is always invoked after a lifecycle transition has committed; a
// delivery failure is logged and never rolls anything back.
type NotificationService struct {
	httpClient *http.Client
}

func NewNotificationService() *NotificationService {
	return &NotificationService{httpClient: &http.Client{Timeout: 10 * time.Second}}
}

func (ns *NotificationService) notify(userID uint, notifType, title, message, refType string, refID uint) {
	notification := models.Notification{
		UserID:  userID,
		Type:    notifType,
		Title:   title,
		Message: message,
		RefType: refType,
		RefID:   refID,
	}
	if err := storage.DB.Create(&notification).Error; err != nil {
		log.Printf("failed to store notification for user %d: %v", userID, err)
		return
	}

	ns.push(userID, title, message)
}

// push sends the message to every registered Expo token of the user.
func (ns *NotificationService) push(userID uint, title, body string) {
	var user models.User
	if err := storage.DB.First(&user, userID).Error; err != nil {
		log.Printf("push: user %d not found: %v", userID, err)
		return
	}
	if user.AllowsNotifications == nil || !*user.AllowsNotifications || user.PushTokens == nil {
		return
	}

	var tokens []string
	if err := json.Unmarshal(user.PushTokens, &tokens); err != nil {
		log.Printf("push: bad token list for user %d: %v", userID, err)
		return
	}

	for _, token := range tokens {
		payload, err := json.Marshal(map[string]interface{}{
			"to":    token,
			"title": title,
			"body":  body,
			"sound": "default",
		})
		if err != nil {
			continue
		}
		resp, err := ns.httpClient.Post(expoPushURL, "application/json", bytes.NewReader(payload))
		if err != nil {
			log.Printf("push: delivery to user %d failed: %v", userID, err)
			continue
		}
		resp.Body.Close()
	}
}

// SendPaymentVerified tells guest and realtor that a booking is confirmed.
// Called exactly once, by the verification delivery that won the transition.
func (ns *NotificationService) SendPaymentVerified(booking *models.Booking, realtorID uint) {
	ns.notify(booking.GuestID, "payment_verified", "Booking Confirmed",
		fmt.Sprintf("Your payment was verified and booking #%d is confirmed.", booking.ID),
		"booking", booking.ID)
	ns.notify(realtorID, "payment_verified", "Booking Confirmed",
		fmt.Sprintf("Booking #%d has been paid and confirmed.", booking.ID),
		"booking", booking.ID)
}

func (ns *NotificationService) SendBookingCancelled(booking *models.Booking, realtorID uint, refunded int64) {
	message := fmt.Sprintf("Booking #%d has been cancelled.", booking.ID)
	if refunded > 0 {
		message = fmt.Sprintf("Booking #%d has been cancelled. Refund: %d %s.", booking.ID, refunded, booking.Currency)
	}
	ns.notify(booking.GuestID, "booking_cancelled", "Booking Cancelled", message, "booking", booking.ID)
	ns.notify(realtorID, "booking_cancelled", "Booking Cancelled", message, "booking", booking.ID)
}

func (ns *NotificationService) SendPaymentFailed(booking *models.Booking) {
	ns.notify(booking.GuestID, "payment_failed", "Payment Failed",
		fmt.Sprintf("Payment for booking #%d failed. The dates have been released.", booking.ID),
		"booking", booking.ID)
}

func (ns *NotificationService) SendRefundIssued(booking *models.Booking, entry *models.RefundEntry) {
	ns.notify(booking.GuestID, "refund_issued", "Refund Issued",
		fmt.Sprintf("A refund of %d %s was recorded for booking #%d.", entry.Amount, entry.Currency, booking.ID),
		"refund", entry.ID)
}

func (ns *NotificationService) SendDisputeResolved(dispute *models.Dispute, guestID, realtorID uint) {
	message := fmt.Sprintf("Dispute #%d on booking #%d has been resolved.", dispute.ID, dispute.BookingID)
	ns.notify(guestID, "dispute_resolved", "Dispute Resolved", message, "dispute", dispute.ID)
	ns.notify(realtorID, "dispute_resolved", "Dispute Resolved", message, "dispute", dispute.ID)
}
