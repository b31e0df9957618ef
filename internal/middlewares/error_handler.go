package middlewares

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
)

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// ErrorHandler turns uncaught errors into JSON error bodies. Handlers that
// reply themselves never reach here; this is the fallback for fiber errors
// and panics recovered by the framework.
func ErrorHandler(ctx *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}
	if code == fiber.StatusInternalServerError {
		slog.Error("Unhandled error", "path", ctx.Path(), "error", err)
	}
	return ctx.Status(code).JSON(errorResponse{Code: code, Message: message})
}
