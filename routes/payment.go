package routes

import (
	"context"
	"time"

	"stayza-server/models"
	"stayza-server/services"
	"stayza-server/storage"
	"stayza-server/utils"

	"github.com/kataras/iris/v12"
	"github.com/kataras/iris/v12/middleware/jwt"
)

// InitializePayment starts the gateway handshake for a booking owned by the
// caller. Safe to call again after a client crash: the same reference comes
// back instead of a second gateway transaction.
func InitializePayment(ctx iris.Context) {
	bookingID, err := ctx.Params().GetUint("id")
	if err != nil {
		utils.CreateError(iris.StatusBadRequest, "Bad Request", "Invalid booking ID", ctx)
		return
	}
	claims := jwt.Get(ctx).(*utils.AccessToken)

	var booking models.Booking
	if err := storage.DB.First(&booking, bookingID).Error; err != nil {
		utils.CreateError(iris.StatusNotFound, "Not Found", "Booking not found", ctx)
		return
	}
	if booking.GuestID != claims.ID {
		ctx.StatusCode(iris.StatusForbidden)
		return
	}

	record, err := services.InitializePayment(ctx.Request().Context(), storage.DB, bookingID)
	if err != nil {
		handleServiceError(err, ctx)
		return
	}

	ctx.JSON(iris.Map{
		"reference":        record.Reference,
		"authorizationURL": record.AuthorizationURL,
		"amount":           record.Amount,
		"currency":         record.Currency,
		"status":           record.Status,
	})
}

// VerifyPayment is the client-callback verification path: the app lands
// back from the gateway checkout page and asks us to settle the reference.
func VerifyPayment(ctx iris.Context) {
	reference := ctx.Params().Get("reference")
	if reference == "" {
		utils.CreateError(iris.StatusBadRequest, "Bad Request", "Missing payment reference", ctx)
		return
	}

	outcome, err := services.VerifyPayment(ctx.Request().Context(), storage.DB, reference)
	if err != nil {
		auditMismatch(err, reference)
		handleServiceError(err, ctx)
		return
	}

	respondVerifyOutcome(outcome, ctx)
}

type WebhookInput struct {
	Event string `json:"event" validate:"required"`
	Data  struct {
		Reference string `json:"reference" validate:"required"`
	} `json:"data"`
}

// PaymentWebhook handles gateway event deliveries. Redis dedupes repeats of
// the same event; the payment record's verified status is the authoritative
// idempotency guard either way, so a replay after the dedupe key expires is
// still a no-op. A delivery that fails gives its dedupe claim back, so the
// gateway's redelivery is processed instead of swallowed as a duplicate.
func PaymentWebhook(ctx iris.Context) {
	var input WebhookInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	if input.Event != "charge.success" && input.Event != "charge.failed" {
		ctx.JSON(iris.Map{"received": true})
		return
	}

	var dedupeKey string
	claimed := false
	if storage.Redis != nil {
		dedupeKey = "webhook:" + input.Event + ":" + input.Data.Reference
		set, err := storage.Redis.SetNX(context.Background(), dedupeKey, "1", 24*time.Hour).Result()
		if err == nil && !set {
			ctx.JSON(iris.Map{"received": true, "duplicate": true})
			return
		}
		claimed = err == nil
	}

	outcome, err := services.VerifyPayment(ctx.Request().Context(), storage.DB, input.Data.Reference)
	if err != nil {
		if claimed {
			storage.Redis.Del(context.Background(), dedupeKey)
		}
		auditMismatch(err, input.Data.Reference)
		handleServiceError(err, ctx)
		return
	}

	respondVerifyOutcome(outcome, ctx)
}

// auditMismatch writes the operator-facing audit row when a verification
// attempt ended in a reconciliation mismatch.
func auditMismatch(err error, reference string) {
	var record models.PaymentRecord
	if dbErr := storage.DB.Where("reference = ?", reference).First(&record).Error; dbErr == nil &&
		record.Status == models.PaymentStatusMismatch {
		utils.AuditSystem("reconciliation_mismatch", "payment", record.ID, iris.Map{
			"reference": reference,
			"bookingID": record.BookingID,
			"error":     err.Error(),
		})
	}
}

func respondVerifyOutcome(outcome *services.VerifyOutcome, ctx iris.Context) {
	// Notifications fire only for the delivery that actually performed the
	// transition; replays stay silent.
	if outcome.Confirmed {
		var property models.Property
		if err := storage.DB.First(&property, outcome.Booking.PropertyID).Error; err == nil {
			go services.NewNotificationService().SendPaymentVerified(outcome.Booking, property.RealtorID)
		}
	}
	if outcome.Failed {
		go services.NewNotificationService().SendPaymentFailed(outcome.Booking)
	}

	ctx.JSON(iris.Map{
		"bookingID":       outcome.Booking.ID,
		"bookingStatus":   outcome.Booking.Status,
		"paymentStatus":   outcome.Record.Status,
		"confirmed":       outcome.Confirmed,
		"alreadyVerified": outcome.AlreadyVerified,
	})
}
