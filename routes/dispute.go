package routes

import (
	"stayza-server/models"
	"stayza-server/services"
	"stayza-server/storage"
	"stayza-server/utils"

	"github.com/kataras/iris/v12"
	"github.com/kataras/iris/v12/middleware/jwt"
)

type OpenDisputeInput struct {
	BookingID   uint   `json:"bookingID" validate:"required"`
	Category    string `json:"category" validate:"required,oneof=damage misrepresentation service other"`
	Description string `json:"description" validate:"required,max=2000"`
}

// OpenDispute files a post-stay claim by the guest or the realtor of the
// booked property. Evidence artifacts live in an external store; only the
// claim itself is recorded here.
func OpenDispute(ctx iris.Context) {
	claims := jwt.Get(ctx).(*utils.AccessToken)

	var input OpenDisputeInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	var booking models.Booking
	if err := storage.DB.Preload("Property").First(&booking, input.BookingID).Error; err != nil {
		utils.CreateError(iris.StatusNotFound, "Not Found", "Booking not found", ctx)
		return
	}

	var role string
	switch {
	case booking.GuestID == claims.ID:
		role = "guest"
	case booking.Property != nil && booking.Property.RealtorID == claims.ID:
		role = "realtor"
	default:
		ctx.StatusCode(iris.StatusForbidden)
		return
	}

	dispute, err := services.OpenDispute(storage.DB, input.BookingID, claims.ID, role, input.Category, input.Description)
	if err != nil {
		handleServiceError(err, ctx)
		return
	}

	ctx.StatusCode(iris.StatusCreated)
	ctx.JSON(dispute)
}

func GetDispute(ctx iris.Context) {
	id, err := ctx.Params().GetUint("id")
	if err != nil {
		utils.CreateError(iris.StatusBadRequest, "Bad Request", "Invalid dispute ID", ctx)
		return
	}
	claims := jwt.Get(ctx).(*utils.AccessToken)

	var dispute models.Dispute
	if err := storage.DB.Preload("Booking").Preload("Booking.Property").First(&dispute, id).Error; err != nil {
		utils.CreateError(iris.StatusNotFound, "Not Found", "Dispute not found", ctx)
		return
	}

	if claims.Role != "admin" {
		booking := dispute.Booking
		if booking == nil || (booking.GuestID != claims.ID &&
			(booking.Property == nil || booking.Property.RealtorID != claims.ID)) {
			ctx.StatusCode(iris.StatusForbidden)
			return
		}
	}

	ctx.JSON(dispute)
}

// AdminListDisputes returns disputes filtered by status.
func AdminListDisputes(ctx iris.Context) {
	status := ctx.URLParam("status")

	query := storage.DB.Preload("Booking").Order("created_at DESC")
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var disputes []models.Dispute
	if err := query.Find(&disputes).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	ctx.JSON(disputes)
}

// AdminBeginReview moves an open dispute into review.
func AdminBeginReview(ctx iris.Context) {
	id, err := ctx.Params().GetUint("id")
	if err != nil {
		utils.CreateError(iris.StatusBadRequest, "Bad Request", "Invalid dispute ID", ctx)
		return
	}

	dispute, svcErr := services.BeginReview(storage.DB, id)
	if svcErr != nil {
		handleServiceError(svcErr, ctx)
		return
	}

	utils.Audit(ctx, "dispute_review_started", "dispute", dispute.ID, nil, dispute)
	ctx.JSON(dispute)
}

type ResolveDisputeInput struct {
	RefundAmount   int64  `json:"refundAmount" validate:"gte=0"`
	RealtorPenalty bool   `json:"realtorPenalty"`
	Note           string `json:"note" validate:"max=2000"`
}

// AdminResolveDispute applies a ruling: refund entry, terminal dispute
// state and booking transition commit as one operation.
func AdminResolveDispute(ctx iris.Context) {
	id, err := ctx.Params().GetUint("id")
	if err != nil {
		utils.CreateError(iris.StatusBadRequest, "Bad Request", "Invalid dispute ID", ctx)
		return
	}
	claims := jwt.Get(ctx).(*utils.AccessToken)

	var input ResolveDisputeInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	dispute, svcErr := services.ResolveDispute(storage.DB, id, claims.ID, input.RefundAmount, input.RealtorPenalty, input.Note)
	if svcErr != nil {
		handleServiceError(svcErr, ctx)
		return
	}

	utils.Audit(ctx, "dispute_resolved", "dispute", dispute.ID, nil, dispute)

	var booking models.Booking
	if err := storage.DB.Preload("Property").First(&booking, dispute.BookingID).Error; err == nil && booking.Property != nil {
		go services.NewNotificationService().SendDisputeResolved(dispute, booking.GuestID, booking.Property.RealtorID)
	}

	ctx.JSON(dispute)
}

// CloseDispute withdraws an unresolved claim.
func CloseDispute(ctx iris.Context) {
	id, err := ctx.Params().GetUint("id")
	if err != nil {
		utils.CreateError(iris.StatusBadRequest, "Bad Request", "Invalid dispute ID", ctx)
		return
	}
	claims := jwt.Get(ctx).(*utils.AccessToken)

	var dispute models.Dispute
	if err := storage.DB.First(&dispute, id).Error; err != nil {
		utils.CreateError(iris.StatusNotFound, "Not Found", "Dispute not found", ctx)
		return
	}
	if claims.Role != "admin" && dispute.ReporterID != claims.ID {
		ctx.StatusCode(iris.StatusForbidden)
		return
	}

	closed, svcErr := services.CloseDispute(storage.DB, id)
	if svcErr != nil {
		handleServiceError(svcErr, ctx)
		return
	}

	ctx.JSON(closed)
}
