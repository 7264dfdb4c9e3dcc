package middleware

import (
	"github.com/gofiber/fiber/v2"
	fiberrecover "github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/utils"
	"go.uber.org/zap"
)

// Recover turns panics in routes outside the adapter into errors, which the
// global error handler renders as unhandled failures, and logs the stack.
// Operation handlers recover inside the adapter.
func Recover(log *zap.Logger) fiber.Handler {
	return fiberrecover.New(fiberrecover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c *fiber.Ctx, e any) {
			rid, _ := c.Locals(RequestIDLocalKey).(string)
			log.Error("panic recovered",
				zap.String("request_id", rid),
				zap.String("path", utils.CopyString(c.Path())),
				zap.Any("panic", e),
				zap.Stack("stack"),
			)
		},
	})
}
