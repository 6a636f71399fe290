package utils

import (
	"github.com/go-playground/validator/v10"
	"github.com/kataras/iris/v12"
)

func CreateError(statusCode int, title string, detail string, ctx iris.Context) {
	ctx.StopWithJSON(statusCode, iris.Map{
		"status": statusCode,
		"title":  title,
		"detail": detail,
	})
}

func CreateInternalServerError(ctx iris.Context) {
	CreateError(
		iris.StatusInternalServerError,
		"Internal Server Error",
		"An unexpected error occurred.", ctx)
}

func CreateNotFound(ctx iris.Context) {
	CreateError(iris.StatusNotFound, "Not Found", "Resource not found.", ctx)
}

// HandleValidationErrors writes a 400 listing every failed field when the
// error came from the validator, otherwise a generic bad-request response.
func HandleValidationErrors(err error, ctx iris.Context) {
	if errs, ok := err.(validator.ValidationErrors); ok {
		validationErrors := make([]validationError, 0, len(errs))
		for _, validationErr := range errs {
			validationErrors = append(validationErrors, validationError{
				ActualTag: validationErr.ActualTag(),
				Namespace: validationErr.Namespace(),
				Kind:      validationErr.Kind().String(),
				Type:      validationErr.Type().String(),
				Value:     validationErr.Param(),
				Param:     validationErr.Param(),
			})
		}

		ctx.StopWithJSON(iris.StatusBadRequest, iris.Map{
			"status": iris.StatusBadRequest,
			"title":  "Validation Error",
			"errors": validationErrors,
		})
		return
	}

	CreateError(iris.StatusBadRequest, "Bad Request", err.Error(), ctx)
}

type validationError struct {
	ActualTag string `json:"tag"`
	Namespace string `json:"namespace"`
	Kind      string `json:"kind"`
	Type      string `json:"type"`
	Value     string `json:"value"`
	Param     string `json:"param"`
}
