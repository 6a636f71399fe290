package routes

import (
	"encoding/json"

	"stayza-server/models"
	"stayza-server/storage"
	"stayza-server/utils"

	"github.com/kataras/iris/v12"
	"github.com/kataras/iris/v12/middleware/jwt"
)

type CreatePropertyInput struct {
	Title            string   `json:"title" validate:"required,max=256"`
	Description      string   `json:"description" validate:"max=5000"`
	PropertyType     string   `json:"propertyType" validate:"required,oneof=entire_place private_room shared_room"`
	AddressLine1     string   `json:"addressLine1" validate:"required,max=512"`
	City             string   `json:"city" validate:"required,max=256"`
	State            string   `json:"state" validate:"max=256"`
	Country          string   `json:"country" validate:"required,max=256"`
	Lat              float32  `json:"lat"`
	Lng              float32  `json:"lng"`
	MaxOccupancy     int      `json:"maxOccupancy" validate:"required,gte=1,lte=32"`
	Bedrooms         int      `json:"bedrooms" validate:"gte=0"`
	Bathrooms        float32  `json:"bathrooms" validate:"gte=0"`
	Images           []string `json:"images"`
	NightlyPrice     int64    `json:"nightlyPrice" validate:"required,gt=0"`
	CleaningFee      int64    `json:"cleaningFee" validate:"gte=0"`
	SecurityDeposit  int64    `json:"securityDeposit" validate:"gte=0"`
	TaxRateBps       int64    `json:"taxRateBps" validate:"gte=0,lte=10000"`
	ServiceFeeBps    int64    `json:"serviceFeeBps" validate:"gte=0,lte=10000"`
	PlatformShareBps int64    `json:"platformShareBps" validate:"gte=0,lte=10000"`
	Currency         string   `json:"currency" validate:"required,len=3"`
}

// CreateProperty registers a listing with its rate card. New listings start
// as pending; an admin approves them before they become bookable.
func CreateProperty(ctx iris.Context) {
	claims := jwt.Get(ctx).(*utils.AccessToken)

	var input CreatePropertyInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	images, _ := json.Marshal(input.Images)
	active := true

	property := models.Property{
		RealtorID:        claims.ID,
		Title:            input.Title,
		Description:      input.Description,
		PropertyType:     input.PropertyType,
		AddressLine1:     input.AddressLine1,
		City:             input.City,
		State:            input.State,
		Country:          input.Country,
		Lat:              input.Lat,
		Lng:              input.Lng,
		MaxOccupancy:     input.MaxOccupancy,
		Bedrooms:         input.Bedrooms,
		Bathrooms:        input.Bathrooms,
		Images:           string(images),
		NightlyPrice:     input.NightlyPrice,
		CleaningFee:      input.CleaningFee,
		SecurityDeposit:  input.SecurityDeposit,
		TaxRateBps:       input.TaxRateBps,
		ServiceFeeBps:    input.ServiceFeeBps,
		PlatformShareBps: input.PlatformShareBps,
		Currency:         input.Currency,
		IsActive:         &active,
		Status:           "pending",
	}

	if err := storage.DB.Create(&property).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	ctx.StatusCode(iris.StatusCreated)
	ctx.JSON(property)
}

func GetProperty(ctx iris.Context) {
	id, err := ctx.Params().GetUint("id")
	if err != nil {
		utils.CreateError(iris.StatusBadRequest, "Bad Request", "Invalid property ID", ctx)
		return
	}

	var property models.Property
	if err := storage.DB.Preload("Realtor").First(&property, id).Error; err != nil {
		utils.CreateError(iris.StatusNotFound, "Not Found", "Property not found", ctx)
		return
	}

	ctx.JSON(property)
}

func GetRealtorProperties(ctx iris.Context) {
	userID := ctx.Values().Get("userID").(uint)

	var properties []models.Property
	if err := storage.DB.Where("realtor_id = ?", userID).Order("created_at DESC").Find(&properties).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	ctx.JSON(properties)
}

type UpdateRateCardInput struct {
	NightlyPrice     int64 `json:"nightlyPrice" validate:"required,gt=0"`
	CleaningFee      int64 `json:"cleaningFee" validate:"gte=0"`
	SecurityDeposit  int64 `json:"securityDeposit" validate:"gte=0"`
	TaxRateBps       int64 `json:"taxRateBps" validate:"gte=0,lte=10000"`
	ServiceFeeBps    int64 `json:"serviceFeeBps" validate:"gte=0,lte=10000"`
	PlatformShareBps int64 `json:"platformShareBps" validate:"gte=0,lte=10000"`
}

// UpdateRateCard changes a property's pricing going forward. Bookings carry
// their frozen breakdown, so existing quotes simply stop matching and the
// guest gets re-quoted on the next attempt.
func UpdateRateCard(ctx iris.Context) {
	id, err := ctx.Params().GetUint("id")
	if err != nil {
		utils.CreateError(iris.StatusBadRequest, "Bad Request", "Invalid property ID", ctx)
		return
	}
	claims := jwt.Get(ctx).(*utils.AccessToken)

	var property models.Property
	if err := storage.DB.First(&property, id).Error; err != nil {
		utils.CreateError(iris.StatusNotFound, "Not Found", "Property not found", ctx)
		return
	}
	if property.RealtorID != claims.ID && claims.Role != "admin" {
		ctx.StatusCode(iris.StatusForbidden)
		return
	}

	var input UpdateRateCardInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	updates := map[string]interface{}{
		"nightly_price":      input.NightlyPrice,
		"cleaning_fee":       input.CleaningFee,
		"security_deposit":   input.SecurityDeposit,
		"tax_rate_bps":       input.TaxRateBps,
		"service_fee_bps":    input.ServiceFeeBps,
		"platform_share_bps": input.PlatformShareBps,
	}
	if err := storage.DB.Model(&property).Updates(updates).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	ctx.JSON(property)
}
