package httpserver

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/shop_auth/internal/service"
)

type RequestValidator struct {
	v *validator.Validate
}

func NewValidator() *RequestValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	// same byte-length rule the session manager enforces
	_ = v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		return service.ValidPassword(fl.Field().String())
	})
	return &RequestValidator{v: v}
}

// Validate answers 400 with the failing rule per field.
func (rv *RequestValidator) Validate(i interface{}) error {
	err := rv.v.Struct(i)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	details := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		details[fe.Field()] = fe.Tag()
	}
	return echo.NewHTTPError(http.StatusBadRequest, echo.Map{
		"error":   "validation failed",
		"details": details,
	})
}
