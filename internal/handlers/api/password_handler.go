package api

import (
	"errors"
	"log/slog"

	"github.com/authcore-dev/authcore/internal/password"
	"github.com/authcore-dev/authcore/internal/profiles"
	"github.com/gofiber/fiber/v2"
)

type PasswordHandler struct {
	passwordEngine *password.Engine
}

func NewPasswordHandler(passwordEngine *password.Engine) *PasswordHandler {
	return &PasswordHandler{passwordEngine: passwordEngine}
}

type validatePasswordRequest struct {
	Password string             `json:"password" validate:"required"`
	Policy   string             `json:"policy"`
	UserID   uint               `json:"userId"`
	UserInfo *password.UserInfo `json:"userInfo"`
}

func (h *PasswordHandler) PostValidatePassword(ctx *fiber.Ctx) error {
	var req validatePasswordRequest
	if ok, err := parseBody(ctx, &req); !ok {
		return err
	}
	result, err := h.passwordEngine.Validate(ctx.Context(), req.Password, req.Policy, req.UserInfo, req.UserID)
	if err != nil {
		return replyPasswordError(ctx, err)
	}
	return ctx.JSON(NewDataResponse(result))
}

type changePasswordRequest struct {
	UserID          uint               `json:"userId" validate:"required"`
	SiteID          string             `json:"siteId" validate:"required"`
	CurrentPassword string             `json:"currentPassword" validate:"required"`
	NewPassword     string             `json:"newPassword" validate:"required"`
	ConfirmPassword string             `json:"confirmPassword" validate:"required"`
	Policy          string             `json:"policy"`
	UserInfo        *password.UserInfo `json:"userInfo"`
}

func (h *PasswordHandler) PostChangePassword(ctx *fiber.Ctx) error {
	var req changePasswordRequest
	if ok, err := parseBody(ctx, &req); !ok {
		return err
	}
	result, err := h.passwordEngine.ChangePassword(ctx.Context(), req.UserID, req.SiteID,
		req.CurrentPassword, req.NewPassword, req.ConfirmPassword, req.Policy, req.UserInfo)
	if err != nil {
		// recoverable failures still carry the result with its reasons
		if result != nil {
			return ctx.Status(changeFailureStatus(err)).JSON(NewDataResponse(result))
		}
		return replyPasswordError(ctx, err)
	}
	return ctx.JSON(NewDataResponse(result))
}

type generatePasswordRequest struct {
	Length int    `json:"length" validate:"required,min=8,max=128"`
	Policy string `json:"policy"`
}

func (h *PasswordHandler) PostGeneratePassword(ctx *fiber.Ctx) error {
	var req generatePasswordRequest
	if ok, err := parseBody(ctx, &req); !ok {
		return err
	}
	generated, err := h.passwordEngine.Generate(req.Length, req.Policy)
	if err != nil {
		return replyPasswordError(ctx, err)
	}
	return ctx.JSON(NewDataResponse(fiber.Map{"password": generated}))
}

func (h *PasswordHandler) GetPasswordExpiry(ctx *fiber.Ctx) error {
	userID, err := ctx.ParamsInt("userId")
	if err != nil || userID <= 0 {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid user id")
	}
	siteID := ctx.Query("siteId")
	if siteID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "Missing siteId")
	}
	status, err := h.passwordEngine.CheckExpiry(ctx.Context(), uint(userID), siteID)
	if err != nil {
		return replyPasswordError(ctx, err)
	}
	return ctx.JSON(NewDataResponse(status))
}

func changeFailureStatus(err error) int {
	switch {
	case errors.Is(err, password.ErrCurrentPasswordInvalid):
		return fiber.StatusUnauthorized
	case errors.Is(err, password.ErrPasswordPolicyViolated):
		return fiber.StatusUnprocessableEntity
	default:
		return fiber.StatusBadRequest
	}
}

func replyPasswordError(ctx *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, profiles.ErrProfileNotFound):
		return ctx.Status(fiber.StatusNotFound).JSON(
			NewErrorResponse(fiber.StatusNotFound, "Security profile not found"),
		)
	case errors.Is(err, password.ErrPasswordMismatch):
		return ctx.Status(fiber.StatusBadRequest).JSON(
			NewErrorResponse(fiber.StatusBadRequest, "Password confirmation does not match"),
		)
	case errors.Is(err, password.ErrCurrentPasswordInvalid):
		return ctx.Status(fiber.StatusUnauthorized).JSON(
			NewErrorResponse(fiber.StatusUnauthorized, "Current password is incorrect"),
		)
	case errors.Is(err, password.ErrPasswordPolicyViolated):
		return ctx.Status(fiber.StatusUnprocessableEntity).JSON(
			NewErrorResponse(fiber.StatusUnprocessableEntity, "Password does not meet policy requirements"),
		)
	case errors.Is(err, password.ErrGenerateLengthTooShort):
		return ctx.Status(fiber.StatusBadRequest).JSON(
			NewErrorResponse(fiber.StatusBadRequest, "Requested length cannot satisfy the policy"),
		)
	default:
		slog.Error("Password request failed", "path", ctx.Path(), "error", err)
		return ctx.Status(fiber.StatusInternalServerError).JSON(
			NewErrorResponse(fiber.StatusInternalServerError, "Internal server error"),
		)
	}
}
