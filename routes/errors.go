package routes

import (
	"errors"

	"stayza-server/services"
	"stayza-server/utils"

	"github.com/kataras/iris/v12"
)

// handleServiceError maps the service error taxonomy onto HTTP responses.
// Invalid input -> 400, conflicts and illegal transitions -> 409, business
// rule violations -> 422, gateway trouble -> 502.
func handleServiceError(err error, ctx iris.Context) {
	switch {
	case errors.Is(err, services.ErrInvalidDateRange),
		errors.Is(err, services.ErrCheckInPast),
		errors.Is(err, services.ErrExceedsMaxOccupancy),
		errors.Is(err, services.ErrInvalidRefundAmount):
		utils.CreateError(iris.StatusBadRequest, "Invalid Input", err.Error(), ctx)

	case errors.Is(err, services.ErrPropertyNotBookable):
		utils.CreateError(iris.StatusUnprocessableEntity, "Not Bookable", err.Error(), ctx)

	case errors.Is(err, services.ErrDatesUnavailable),
		errors.Is(err, services.ErrIllegalTransition),
		errors.Is(err, services.ErrReconciliationMismatch),
		errors.Is(err, services.ErrDisputeAlreadyClosed),
		errors.Is(err, services.ErrDisputeNotReviewable),
		errors.Is(err, services.ErrBookingNotDisputable),
		errors.Is(err, services.ErrPaymentNotPending):
		utils.CreateError(iris.StatusConflict, "Conflict", err.Error(), ctx)

	case errors.Is(err, services.ErrOverRefund),
		errors.Is(err, services.ErrBookingNotPayable):
		utils.CreateError(iris.StatusUnprocessableEntity, "Refund Rejected", err.Error(), ctx)

	case errors.Is(err, services.ErrGatewayUnavailable):
		utils.CreateError(iris.StatusBadGateway, "Gateway Unavailable", err.Error(), ctx)

	case errors.Is(err, services.ErrBookingNotFound),
		errors.Is(err, services.ErrPaymentNotFound),
		errors.Is(err, services.ErrDisputeNotFound):
		utils.CreateError(iris.StatusNotFound, "Not Found", err.Error(), ctx)

	default:
		utils.CreateInternalServerError(ctx)
	}
}
