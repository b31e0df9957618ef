package api

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var validate = validator.New()

// parseBody decodes and validates a request body, replying 400 with the
// failed fields when validation rejects it.
func parseBody(ctx *fiber.Ctx, out any) (bool, error) {
	if err := ctx.BodyParser(out); err != nil {
		return false, ctx.Status(fiber.StatusBadRequest).JSON(
			NewErrorResponse(fiber.StatusBadRequest, "Malformed request body"),
		)
	}
	if err := validate.Struct(out); err != nil {
		var fieldErrors validator.ValidationErrors
		details := []APIErrorDetail{}
		if errors.As(err, &fieldErrors) {
			for _, fe := range fieldErrors {
				details = append(details, APIErrorDetail{
					Domain:  "validation",
					Reason:  fe.Tag(),
					Message: fe.Field() + " is invalid",
				})
			}
		}
		return false, ctx.Status(fiber.StatusBadRequest).JSON(
			NewErrorResponse(fiber.StatusBadRequest, "Invalid request", details...),
		)
	}
	return true, nil
}
