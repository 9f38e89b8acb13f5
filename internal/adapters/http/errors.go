package http

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/urbanbuzz/explorer/internal/core/domain"
)

// APIError is a structured error response.
type APIError struct {
	Status    int    `json:"status"`
	Code      string `json:"code"`    // bad_request, location_not_found, no_route, service_unavailable, ...
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

func errBadRequest(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusBadRequest, "bad_request", msg)
}

// errFromDomain renders a use case error.
func errFromDomain(c *fiber.Ctx, err error) error {
	apiErr := toAPIError(err)
	if apiErr.Status >= fiber.StatusInternalServerError {
		LoggerFromCtx(c.UserContext()).Error("request failed", "code", apiErr.Code, "error", err)
	}
	return newError(c, apiErr.Status, apiErr.Code, apiErr.Message)
}

// toAPIError maps domain error kinds onto HTTP statuses. Explore errors carry
// their own user-facing message; unknown errors are not echoed back.
func toAPIError(err error) APIError {
	code := domain.ErrorCode(err)
	e := APIError{Code: code, Message: err.Error()}

	switch code {
	case "bad_request":
		e.Status = fiber.StatusBadRequest
	case "location_not_found", "no_route", "not_found":
		e.Status = fiber.StatusNotFound
	case "service_unavailable":
		e.Status = fiber.StatusServiceUnavailable
	default:
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			e.Status, e.Code, e.Message = fiber.StatusGatewayTimeout, "timeout", "the request took too long to complete"
		case errors.Is(err, context.Canceled):
			e.Status, e.Code, e.Message = 499, "canceled", "the request was canceled"
		default:
			e.Status, e.Message = fiber.StatusInternalServerError, "internal error"
		}
	}
	return e
}
