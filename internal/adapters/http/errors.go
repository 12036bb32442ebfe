package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/bilbopark/internal/core/domain"
	"github.com/samirrijal/bilbopark/internal/pkg/logging"
)

// APIError is a structured error response.
type APIError struct {
	Status    int    `json:"status"`
	Code      string `json:"code"`    // Error code: bad_request, not_found, conflict, etc.
	Message   string `json:"message"` // Human-readable message
	RequestID string `json:"request_id,omitempty"`
}

// newError builds a JSON error response with a request ID.
func newError(c *fiber.Ctx, status int, code string, message string) error {
	reqID, _ := c.Locals("requestid").(string)
	return c.Status(status).JSON(APIError{
		Status:    status,
		Code:      code,
		Message:   message,
		RequestID: reqID,
	})
}

// errBadRequest returns a 400 error.
func errBadRequest(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusBadRequest, "bad_request", msg)
}

// errUnprocessable returns a 422 error.
func errUnprocessable(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusUnprocessableEntity, "validation_failed", msg)
}

// respondError maps a use case error onto its HTTP status.
func respondError(c *fiber.Ctx, err error) error {
	var de *domain.Error
	if !errors.As(err, &de) {
		logging.FromContext(c.UserContext()).Error("unhandled error", "error", err)
		return newError(c, fiber.StatusInternalServerError, "internal_error", "internal error")
	}

	switch de.Kind {
	case domain.KindValidation:
		return errUnprocessable(c, de.Message)
	case domain.KindNotFound:
		return newError(c, fiber.StatusNotFound, "not_found", de.Message)
	case domain.KindConflict:
		return newError(c, fiber.StatusConflict, "conflict", de.Message)
	case domain.KindInvalidState:
		return newError(c, fiber.StatusBadRequest, "invalid_state", de.Message)
	case domain.KindInfrastructure:
		logging.FromContext(c.UserContext()).Error("backend unavailable", "error", err)
		return newError(c, fiber.StatusServiceUnavailable, "unavailable", "a backing service is unavailable, retry later")
	default:
		logging.FromContext(c.UserContext()).Error("unclassified domain error", "error", err)
		return newError(c, fiber.StatusInternalServerError, "internal_error", "internal error")
	}
}
