package routes

import (
	"time"

	"stayza-server/models"
	"stayza-server/services"
	"stayza-server/storage"
	"stayza-server/utils"

	"github.com/kataras/iris/v12"
	"github.com/kataras/iris/v12/middleware/jwt"
)

type QuoteInput struct {
	PropertyID uint      `json:"propertyID" validate:"required"`
	CheckIn    time.Time `json:"checkIn" validate:"required"`
	CheckOut   time.Time `json:"checkOut" validate:"required"`
	NumGuests  int       `json:"numGuests" validate:"required,gte=1"`
}

// GetQuote returns an itemized price estimate. No side effects; clients can
// re-run it freely while the guest is still browsing.
func GetQuote(ctx iris.Context) {
	var input QuoteInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	var property models.Property
	if err := storage.DB.First(&property, input.PropertyID).Error; err != nil {
		utils.CreateError(iris.StatusNotFound, "Not Found", "Property not found", ctx)
		return
	}

	breakdown, err := services.Quote(&property, input.CheckIn, input.CheckOut, input.NumGuests)
	if err != nil {
		handleServiceError(err, ctx)
		return
	}

	ctx.JSON(breakdown)
}

type CreateBookingInput struct {
	PropertyID uint      `json:"propertyID" validate:"required"`
	CheckIn    time.Time `json:"checkIn" validate:"required"`
	CheckOut   time.Time `json:"checkOut" validate:"required"`
	NumGuests  int       `json:"numGuests" validate:"required,gte=1,lte=16"`
	Note       string    `json:"note" validate:"max=500"`
}

// CreateBooking freezes a quote, reserves the dates and leaves the booking
// in awaiting_payment. The price the guest will be charged comes from the
// server-side quote, never from the request.
func CreateBooking(ctx iris.Context) {
	claims := jwt.Get(ctx).(*utils.AccessToken)

	var input CreateBookingInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	var property models.Property
	if err := storage.DB.First(&property, input.PropertyID).Error; err != nil {
		utils.CreateError(iris.StatusNotFound, "Not Found", "Property not found", ctx)
		return
	}

	booking, err := services.CreateBooking(storage.DB, &property, claims.ID, input.CheckIn, input.CheckOut, input.NumGuests, input.Note)
	if err != nil {
		handleServiceError(err, ctx)
		return
	}

	ctx.StatusCode(iris.StatusCreated)
	ctx.JSON(booking)
}

type ValidateAvailabilityInput struct {
	CheckIn  time.Time `json:"checkIn" validate:"required"`
	CheckOut time.Time `json:"checkOut" validate:"required"`
}

// ValidateBookingAvailability checks for conflicts before the guest commits.
// Advisory only; CreateBooking re-checks under the property lock.
func ValidateBookingAvailability(ctx iris.Context) {
	propertyID, err := ctx.Params().GetUint("id")
	if err != nil {
		utils.CreateError(iris.StatusBadRequest, "Bad Request", "Invalid property ID", ctx)
		return
	}

	var input ValidateAvailabilityInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	if !input.CheckIn.Before(input.CheckOut) {
		utils.CreateError(iris.StatusBadRequest, "Validation Error", "checkIn must be before checkOut", ctx)
		return
	}

	available, err := services.CheckAvailability(storage.DB, propertyID, input.CheckIn, input.CheckOut)
	if err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	if !available {
		ctx.StatusCode(iris.StatusConflict)
		ctx.JSON(iris.Map{"ok": false, "message": "Selected dates are not available"})
		return
	}
	ctx.JSON(iris.Map{"ok": true})
}

func GetBooking(ctx iris.Context) {
	id, err := ctx.Params().GetUint("id")
	if err != nil {
		utils.CreateError(iris.StatusBadRequest, "Bad Request", "Invalid booking ID", ctx)
		return
	}
	claims := jwt.Get(ctx).(*utils.AccessToken)

	var booking models.Booking
	res := storage.DB.Preload("Property").Preload("Payment").Preload("Refunds").First(&booking, id)
	if res.Error != nil {
		utils.CreateError(iris.StatusNotFound, "Not Found", "Booking not found", ctx)
		return
	}

	if claims.Role != "admin" && booking.GuestID != claims.ID && (booking.Property == nil || booking.Property.RealtorID != claims.ID) {
		ctx.StatusCode(iris.StatusForbidden)
		return
	}

	ctx.JSON(booking)
}

func GetUserBookings(ctx iris.Context) {
	userID := ctx.Values().Get("userID").(uint)

	var bookings []models.Booking
	res := storage.DB.Preload("Property").Preload("Payment").Where("guest_id = ?", userID).Order("created_at DESC").Find(&bookings)
	if res.Error != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	ctx.JSON(bookings)
}

// GetRealtorBookings returns bookings for all properties owned by the
// authenticated realtor.
func GetRealtorBookings(ctx iris.Context) {
	userID := ctx.Values().Get("userID").(uint)

	var bookings []models.Booking
	res := storage.DB.
		Joins("JOIN properties p ON p.id = bookings.property_id").
		Where("p.realtor_id = ?", userID).
		Preload("Property").
		Preload("Guest").
		Preload("Payment").
		Order("bookings.created_at DESC").
		Find(&bookings)
	if res.Error != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	ctx.JSON(bookings)
}

type CancelBookingInput struct {
	Reason string `json:"reason" validate:"max=500"`
}

// CancelBooking closes a booking. If payment was already verified, the
// service writes the full refund entry in the same operation.
func CancelBooking(ctx iris.Context) {
	id, err := ctx.Params().GetUint("id")
	if err != nil {
		utils.CreateError(iris.StatusBadRequest, "Bad Request", "Invalid booking ID", ctx)
		return
	}
	claims := jwt.Get(ctx).(*utils.AccessToken)

	var input CancelBookingInput
	if err := ctx.ReadJSON(&input); err != nil && err.Error() != "EOF" {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	var booking models.Booking
	if err := storage.DB.Preload("Property").First(&booking, id).Error; err != nil {
		utils.CreateError(iris.StatusNotFound, "Not Found", "Booking not found", ctx)
		return
	}

	actor := models.RefundActorGuest
	switch {
	case claims.Role == "admin":
		actor = models.RefundActorAdmin
	case booking.Property != nil && booking.Property.RealtorID == claims.ID:
		actor = models.RefundActorRealtor
	case booking.GuestID != claims.ID:
		ctx.StatusCode(iris.StatusForbidden)
		return
	}

	reason := input.Reason
	if reason == "" {
		reason = "booking cancelled"
	}

	cancelled, err := services.CancelBooking(storage.DB, id, actor, claims.ID, reason)
	if err != nil {
		handleServiceError(err, ctx)
		return
	}

	summary, sumErr := services.GetRefundSummary(storage.DB, id)
	refunded := int64(0)
	if sumErr == nil {
		refunded = summary.TotalRefunded
	}

	if booking.Property != nil {
		go services.NewNotificationService().SendBookingCancelled(cancelled, booking.Property.RealtorID, refunded)
	}

	ctx.JSON(iris.Map{
		"booking":       cancelled,
		"totalRefunded": refunded,
	})
}
