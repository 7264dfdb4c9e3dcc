package adapter

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"go.uber.org/zap"

	"contractapi/internal/apierror"
	"contractapi/internal/codec"
	"contractapi/internal/http/middleware"
	"contractapi/internal/model"
)

// requestIDFromCtx extracts request_id previously stored by middleware.RequestID.
func requestIDFromCtx(c *fiber.Ctx) string {
	if v := c.Locals(middleware.RequestIDLocalKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// WriteError writes the standardized JSON error body for err without
// leaking internal causes.
func WriteError(c *fiber.Ctx, err error) error {
	ae := apierror.From(err)
	body := model.ErrorResponse{
		RequestID: requestIDFromCtx(c),
		Timestamp: codec.Now(),
		Error: model.ErrorBody{
			Code:    ae.Code,
			Message: ae.Message,
			Field:   ae.Field,
		},
	}
	for _, v := range ae.Violations {
		body.Error.Details = append(body.Error.Details, model.ErrorViolation{
			Field:      v.Field,
			Constraint: v.Constraint,
			Message:    v.Message,
		})
	}

	data, mErr := codec.Marshal(body)
	if mErr != nil {
		return c.SendStatus(fiber.StatusInternalServerError)
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Status(ae.Status).Send(data)
}

// ErrorHandler returns a Fiber global error handler that standardizes error
// responses. Router errors (*fiber.Error) are mapped by status; unhandled
// failures are logged with their cause and request id.
func ErrorHandler(log *zap.Logger) fiber.ErrorHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return func(c *fiber.Ctx, err error) error {
		var ae *apierror.Error
		var fe *fiber.Error
		switch {
		case errors.As(err, &ae):
		case errors.As(err, &fe):
			ae = apierror.FromStatus(fe.Code, fe)
		default:
			ae = apierror.Unhandled(err)
		}

		if ae.Kind == apierror.KindUnhandled || ae.Kind == apierror.KindTimeout {
			log.Error("request failed",
				zap.String("request_id", requestIDFromCtx(c)),
				zap.String("method", utils.CopyString(c.Method())),
				zap.String("path", utils.CopyString(c.Path())),
				zap.String("kind", ae.Kind.String()),
				zap.Error(err),
			)
		}
		return WriteError(c, ae)
	}
}
