package http

import (
	"github.com/gofiber/fiber/v2"

	apperrors "github.com/helpline-labs/escalation-gateway/pkg/util"
)

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind apperrors.ErrorKind) int {
	switch kind {
	case apperrors.KindAuthRequired:
		return fiber.StatusUnauthorized
	case apperrors.KindAuthentication:
		return fiber.StatusForbidden
	case apperrors.KindRateLimited:
		return fiber.StatusTooManyRequests
	case apperrors.KindValidation:
		return fiber.StatusBadRequest
	case apperrors.KindIdempotencyConflict:
		return fiber.StatusConflict
	case apperrors.KindBackend:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}
