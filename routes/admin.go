package routes

import (
	"stayza-server/models"
	"stayza-server/services"
	"stayza-server/storage"
	"stayza-server/utils"

	"github.com/kataras/iris/v12"
)

// AdminListBookings returns bookings filtered by status, newest first.
func AdminListBookings(ctx iris.Context) {
	status := ctx.URLParam("status")

	query := storage.DB.Preload("Property").Preload("Guest").Preload("Payment").Order("created_at DESC")
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var bookings []models.Booking
	if err := query.Limit(200).Find(&bookings).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	ctx.JSON(bookings)
}

type UpdatePropertyStatusInput struct {
	Status string `json:"status" validate:"required,oneof=approved rejected"`
}

// AdminUpdatePropertyStatus approves or rejects a pending listing.
func AdminUpdatePropertyStatus(ctx iris.Context) {
	id, err := ctx.Params().GetUint("id")
	if err != nil {
		utils.CreateError(iris.StatusBadRequest, "Bad Request", "Invalid property ID", ctx)
		return
	}

	var input UpdatePropertyStatusInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	var property models.Property
	if err := storage.DB.First(&property, id).Error; err != nil {
		utils.CreateError(iris.StatusNotFound, "Not Found", "Property not found", ctx)
		return
	}

	before := property.Status
	if err := storage.DB.Model(&property).Update("status", input.Status).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	utils.Audit(ctx, "property_status_changed", "property", property.ID,
		iris.Map{"status": before}, iris.Map{"status": input.Status})
	ctx.JSON(property)
}

// AdminCompleteElapsedBookings sweeps confirmed bookings past checkout into
// completed. Wired to a scheduler; also callable manually.
func AdminCompleteElapsedBookings(ctx iris.Context) {
	n, err := services.CompleteElapsedBookings(storage.DB)
	if err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}
	ctx.JSON(iris.Map{"completed": n})
}

// AdminExpireStalePayments fails bookings whose payment window lapsed and
// frees their dates.
func AdminExpireStalePayments(ctx iris.Context) {
	n, err := services.ExpireStalePayments(storage.DB)
	if err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}
	ctx.JSON(iris.Map{"expired": n})
}

// AdminListAuditLog exposes the operator trail, reconciliation mismatches
// included.
func AdminListAuditLog(ctx iris.Context) {
	action := ctx.URLParam("action")

	query := storage.DB.Order("created_at DESC").Limit(200)
	if action != "" {
		query = query.Where("action = ?", action)
	}

	var entries []models.AuditLog
	if err := query.Find(&entries).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	ctx.JSON(entries)
}
