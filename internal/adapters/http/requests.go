package http

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/bilbopark/internal/core/domain"
)

type createLotRequest struct {
	Name      string   `json:"name" validate:"required,max=200"`
	Latitude  *float64 `json:"latitude" validate:"required,gte=-90,lte=90"`
	Longitude *float64 `json:"longitude" validate:"required,gte=-180,lte=180"`
}

type createSpotRequest struct {
	Label    string `json:"label" validate:"required,max=64"`
	Category string `json:"category" validate:"omitempty,spot_category"`
}

type createReservationRequest struct {
	SpotID       string    `json:"spot_id" validate:"required"`
	StartTime    time.Time `json:"start_time" validate:"required"`
	EndTime      time.Time `json:"end_time" validate:"required,gtfield=StartTime"`
	VehiclePlate string    `json:"vehicle_plate" validate:"required,max=32"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("spot_category", func(fl validator.FieldLevel) bool {
		_, err := domain.ParseSpotCategory(fl.Field().String())
		return err == nil
	}); err != nil {
		panic(err)
	}
	return v
}

// bindJSON decodes the body into dst and validates it. A malformed body
// yields a 400 response, a failed rule a 422.
func bindJSON(c *fiber.Ctx, dst any) (bool, error) {
	if err := c.BodyParser(dst); err != nil {
		return false, errBadRequest(c, "malformed JSON body")
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return false, errUnprocessable(c, translateValidationErrors(verrs))
		}
		return false, errUnprocessable(c, err.Error())
	}
	return true, nil
}

func translateValidationErrors(errs validator.ValidationErrors) string {
	msgs := make([]string, 0, len(errs))
	for _, err := range errs {
		var msg string
		switch err.Tag() {
		case "required":
			msg = fmt.Sprintf("%s is required", err.Field())
		case "gte", "lte":
			msg = fmt.Sprintf("%s is out of range", err.Field())
		case "max":
			msg = fmt.Sprintf("%s must be at most %s characters", err.Field(), err.Param())
		case "gtfield":
			msg = fmt.Sprintf("%s must be after start_time", err.Field())
		case "spot_category":
			msg = fmt.Sprintf("%s must be one of car, bike, ev", err.Field())
		default:
			msg = err.Error()
		}
		msgs = append(msgs, msg)
	}
	return strings.Join(msgs, "; ")
}
