package routes

import (
	"stayza-server/models"
	"stayza-server/services"
	"stayza-server/storage"
	"stayza-server/utils"

	"github.com/kataras/iris/v12"
	"github.com/kataras/iris/v12/middleware/jwt"
)

type ApplyRefundInput struct {
	Amount int64  `json:"amount" validate:"required,gt=0"`
	Reason string `json:"reason" validate:"required,max=500"`
}

// ApplyRefund records a refund against a booking's ledger. Realtors may
// refund their own bookings; admins any booking. The ledger enforces the
// cap; callers decide separately whether a full refund should also cancel.
func ApplyRefund(ctx iris.Context) {
	bookingID, err := ctx.Params().GetUint("id")
	if err != nil {
		utils.CreateError(iris.StatusBadRequest, "Bad Request", "Invalid booking ID", ctx)
		return
	}
	claims := jwt.Get(ctx).(*utils.AccessToken)

	var input ApplyRefundInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	var booking models.Booking
	if err := storage.DB.Preload("Property").First(&booking, bookingID).Error; err != nil {
		utils.CreateError(iris.StatusNotFound, "Not Found", "Booking not found", ctx)
		return
	}

	actor := models.RefundActorAdmin
	if claims.Role != "admin" {
		if booking.Property == nil || booking.Property.RealtorID != claims.ID {
			ctx.StatusCode(iris.StatusForbidden)
			return
		}
		actor = models.RefundActorRealtor
	}

	entry, err := services.ApplyRefund(storage.DB, bookingID, input.Amount, input.Reason, actor, claims.ID)
	if err != nil {
		handleServiceError(err, ctx)
		return
	}

	go services.NewNotificationService().SendRefundIssued(&booking, entry)

	ctx.StatusCode(iris.StatusCreated)
	ctx.JSON(entry)
}

// GetRefundSummary returns the booking's ledger: every entry plus the
// running refunded and remaining balances.
func GetRefundSummary(ctx iris.Context) {
	bookingID, err := ctx.Params().GetUint("id")
	if err != nil {
		utils.CreateError(iris.StatusBadRequest, "Bad Request", "Invalid booking ID", ctx)
		return
	}
	claims := jwt.Get(ctx).(*utils.AccessToken)

	var booking models.Booking
	if err := storage.DB.Preload("Property").First(&booking, bookingID).Error; err != nil {
		utils.CreateError(iris.StatusNotFound, "Not Found", "Booking not found", ctx)
		return
	}
	if claims.Role != "admin" && booking.GuestID != claims.ID &&
		(booking.Property == nil || booking.Property.RealtorID != claims.ID) {
		ctx.StatusCode(iris.StatusForbidden)
		return
	}

	summary, err := services.GetRefundSummary(storage.DB, bookingID)
	if err != nil {
		handleServiceError(err, ctx)
		return
	}

	ctx.JSON(summary)
}
