package http

import (
	"context"
	"errors"
	"math"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.uber.org/zap"

	"github.com/helpline-labs/escalation-gateway/internal/api/dto"
	"github.com/helpline-labs/escalation-gateway/internal/observability"
	apperrors "github.com/helpline-labs/escalation-gateway/pkg/util"
)

// RegisterMiddlewares attaches global middlewares such as error handling and logging.
func RegisterMiddlewares(app *fiber.App, logger *zap.Logger, metrics *observability.Metrics, timeout time.Duration) {
	app.Use(requestid.New())
	app.Use(observability.RequestLogger(logger, metrics))
	app.Use(errorHandlingMiddleware(logger, metrics))
	if timeout > 0 {
		app.Use(requestTimeoutMiddleware(timeout))
	}
}

func requestTimeoutMiddleware(timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	}
}

func errorHandlingMiddleware(logger *zap.Logger, metrics *observability.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
				err = apperrors.NewInternalError(nil)
			}
			if err != nil {
				err = writeError(c, logger, metrics, err)
			}
		}()
		return c.Next()
	}
}

// ErrorHandler renders errors that escape the middleware chain, such as unknown routes.
func ErrorHandler(logger *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		return writeError(c, logger, nil, err)
	}
}

func writeError(c *fiber.Ctx, logger *zap.Logger, metrics *observability.Metrics, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		kind := string(apperrors.KindValidation)
		if fe.Code == fiber.StatusNotFound || fe.Code == fiber.StatusMethodNotAllowed {
			kind = "not_found"
		}
		return c.Status(fe.Code).JSON(dto.ErrorResponse{
			Success:   false,
			ErrorKind: kind,
			Message:   fe.Message,
		})
	}

	domainErr := apperrors.ToDomainError(err)
	metrics.RecordError(c.Route().Path, c.Method(), domainErr.Code)

	status := StatusFor(domainErr.Kind)
	if status >= fiber.StatusInternalServerError {
		logger.Error("request failed", zap.Error(domainErr))
	}

	resp := dto.ErrorResponse{
		Success:   false,
		ErrorKind: string(domainErr.Kind),
		Message:   domainErr.Message,
		Field:     domainErr.Field,
	}
	if stage, ok := domainErr.Details["stage"].(string); ok {
		resp.Stage = stage
	}
	if domainErr.Kind == apperrors.KindRateLimited {
		resp.RetryAfterMS = domainErr.RetryAfter.Milliseconds()
		c.Set(fiber.HeaderRetryAfter, strconv.Itoa(retryAfterSeconds(domainErr.RetryAfter)))
	}
	return c.Status(status).JSON(resp)
}

// retryAfterSeconds rounds up so clients never retry inside the current window.
func retryAfterSeconds(d time.Duration) int {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return secs
}
