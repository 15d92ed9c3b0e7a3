package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"blueprint-backend/models"
)

// errorBody - 오류 응답 형식
type errorBody struct {
	Success bool             `json:"success"`
	Code    models.ErrorCode `json:"code"`
	Error   string           `json:"error"`
}

func newErrorBody(err error) errorBody {
	code := models.CodeOf(err)
	if code == "" {
		code = models.ErrCodeInternal
	}
	return errorBody{Code: code, Error: models.UserMessage(err)}
}

// statusFor maps an error code to an HTTP status.
func statusFor(code models.ErrorCode) int {
	switch code {
	case models.ErrCodeInvalidInput, models.ErrCodeInvalidDestination, models.ErrCodeDegeneratePolygon:
		return fiber.StatusBadRequest
	case models.ErrCodeInvalidTarget, models.ErrCodeDeviceNotFound, models.ErrCodeFloorNotFound:
		return fiber.StatusNotFound
	case models.ErrCodeStaleReference:
		return fiber.StatusConflict
	case models.ErrCodeUpstream:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

// ErrorHandler is the fiber error handler for the API. Coded errors keep
// their code; fiber errors keep their status.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(errorBody{Code: codeForStatus(fe.Code), Error: fe.Message})
	}

	body := newErrorBody(err)
	return c.Status(statusFor(body.Code)).JSON(body)
}

func codeForStatus(status int) models.ErrorCode {
	switch {
	case status == fiber.StatusNotFound:
		return "NOT_FOUND"
	case status == fiber.StatusTooManyRequests:
		return "RATE_LIMITED"
	case status < 500:
		return models.ErrCodeInvalidInput
	default:
		return models.ErrCodeInternal
	}
}
