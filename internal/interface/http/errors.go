package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/cyberquest/cyberquest-api/internal/domain/shared"
	"github.com/cyberquest/cyberquest-api/pkg/logger"
)

// statusByCode maps stable error codes to HTTP statuses.
var statusByCode = map[shared.Code]int{
	shared.CodeUserNotFound:        fiber.StatusNotFound,
	shared.CodeBadgeNotFound:       fiber.StatusNotFound,
	shared.CodeNotFound:            fiber.StatusNotFound,
	shared.CodeInvalidGameType:     fiber.StatusBadRequest,
	shared.CodeInvalidInput:        fiber.StatusBadRequest,
	shared.CodeUserAlreadyExists:   fiber.StatusConflict,
	shared.CodeAlreadyCompleted:    fiber.StatusConflict,
	shared.CodeConcurrencyConflict: fiber.StatusConflict,
	shared.CodeStoreTimeout:        fiber.StatusGatewayTimeout,
	shared.CodeStoreUnavailable:    fiber.StatusServiceUnavailable,
	shared.CodeInternal:            fiber.StatusInternalServerError,
}

// StatusOf returns the HTTP status for an error code.
func StatusOf(code shared.Code) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return fiber.StatusInternalServerError
}

// handleError is the fiber error handler. Domain errors keep their stable
// code; fiber errors (unknown route, body too large, missing user header) are
// named after their status.
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return s.writeJSONError(c, fe.Code, statusCode(fe.Code), fe.Message)
	}

	code := shared.CodeOf(err)
	status := StatusOf(code)
	if status >= fiber.StatusInternalServerError {
		s.logger.Error("request failed",
			logger.String("path", c.Path()),
			logger.String("code", string(code)),
			logger.String("request_id", requestID(c)),
			logger.Err(err),
		)
	}
	return s.writeJSONError(c, status, string(code), shared.MessageOf(err))
}

// statusCode turns 404 into NOT_FOUND, 413 into REQUEST_ENTITY_TOO_LARGE.
func statusCode(status int) string {
	text := http.StatusText(status)
	if text == "" {
		return string(shared.CodeInternal)
	}
	return strings.ToUpper(strings.ReplaceAll(text, " ", "_"))
}

func invalidInput(op, message string, err error) error {
	return shared.WrapError("http", op, shared.ErrInvalidArgument, message, err)
}
