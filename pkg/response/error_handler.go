package response

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"

	apperrors "github.com/Rohianon/chatcommerce/pkg/errors"
	"github.com/Rohianon/chatcommerce/pkg/logger"
)

// ErrorHandler converts handler errors into the response envelope. Unknown
// errors are logged and reported as INTERNAL_ERROR without their text.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		if appErr.HTTPStatus >= fiber.StatusInternalServerError {
			logger.Error().Err(err).Str("path", c.Path()).Str("request_id", GetRequestID(c)).Msg("Request failed")
		}
		return Error(c, appErr.HTTPStatus, appErr.Code, appErr.Message, detailStrings(appErr.Details)...)
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return Error(c, fiberErr.Code, httpStatusToErrorCode(fiberErr.Code), fiberErr.Message)
	}

	logger.Error().Err(err).Str("path", c.Path()).Str("request_id", GetRequestID(c)).Msg("Unhandled error")
	return Error(c, fiber.StatusInternalServerError, apperrors.ErrInternal.Code, apperrors.ErrInternal.Message)
}

func detailStrings(details any) []string {
	switch d := details.(type) {
	case nil:
		return nil
	case string:
		return []string{d}
	case []string:
		return d
	case map[string]string:
		out := make([]string, 0, len(d))
		for k, v := range d {
			out = append(out, fmt.Sprintf("%s: %s", k, v))
		}
		return out
	default:
		return []string{fmt.Sprint(d)}
	}
}

func httpStatusToErrorCode(status int) string {
	switch status {
	case fiber.StatusBadRequest:
		return "BAD_REQUEST"
	case fiber.StatusUnauthorized:
		return "UNAUTHORIZED"
	case fiber.StatusForbidden:
		return "FORBIDDEN"
	case fiber.StatusNotFound:
		return "NOT_FOUND"
	case fiber.StatusMethodNotAllowed:
		return "METHOD_NOT_ALLOWED"
	case fiber.StatusConflict:
		return "CONFLICT"
	case fiber.StatusUnprocessableEntity:
		return "UNPROCESSABLE_ENTITY"
	case fiber.StatusTooManyRequests:
		return "RATE_LIMITED"
	case fiber.StatusServiceUnavailable:
		return "SERVICE_UNAVAILABLE"
	default:
		return "INTERNAL_ERROR"
	}
}
