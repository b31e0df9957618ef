package api

import (
	"errors"
	"log/slog"
	"strconv"

	"github.com/authcore-dev/authcore/internal/mfa"
	"github.com/authcore-dev/authcore/internal/sessions"
	"github.com/gofiber/fiber/v2"
)

type MFAHandler struct {
	mfaService *mfa.Service
}

func NewMFAHandler(mfaService *mfa.Service) *MFAHandler {
	return &MFAHandler{mfaService: mfaService}
}

type deviceInfoRequest struct {
	UserAgent string `json:"userAgent"`
	Screen    string `json:"screen"`
	Timezone  string `json:"timezone"`
	Language  string `json:"language"`
}

func (r *deviceInfoRequest) toDeviceInfo() sessions.DeviceInfo {
	return sessions.DeviceInfo{
		UserAgent: r.UserAgent,
		Screen:    r.Screen,
		Timezone:  r.Timezone,
		Language:  r.Language,
	}
}

type setupTOTPRequest struct {
	UserID uint   `json:"userId" validate:"required"`
	SiteID string `json:"siteId" validate:"required"`
}

func (h *MFAHandler) PostSetupTOTP(ctx *fiber.Ctx) error {
	var req setupTOTPRequest
	if ok, err := parseBody(ctx, &req); !ok {
		return err
	}
	setup, err := h.mfaService.SetupTOTP(ctx.Context(), req.UserID, req.SiteID)
	if err != nil {
		return replyMFAError(ctx, err)
	}
	return ctx.JSON(NewDataResponse(setup))
}

type verifyTOTPSetupRequest struct {
	UserID uint   `json:"userId" validate:"required"`
	SiteID string `json:"siteId" validate:"required"`
	Token  string `json:"token" validate:"required,len=6,numeric"`
}

func (h *MFAHandler) PostVerifyTOTPSetup(ctx *fiber.Ctx) error {
	var req verifyTOTPSetupRequest
	if ok, err := parseBody(ctx, &req); !ok {
		return err
	}
	verified, err := h.mfaService.VerifyTOTPSetup(ctx.Context(), req.UserID, req.SiteID, req.Token)
	if err != nil {
		return replyMFAError(ctx, err)
	}
	return ctx.JSON(NewDataResponse(fiber.Map{"verified": verified}))
}

type setupSMSRequest struct {
	UserID      uint   `json:"userId" validate:"required"`
	SiteID      string `json:"siteId" validate:"required"`
	PhoneNumber string `json:"phoneNumber" validate:"required,e164"`
}

func (h *MFAHandler) PostSetupSMS(ctx *fiber.Ctx) error {
	var req setupSMSRequest
	if ok, err := parseBody(ctx, &req); !ok {
		return err
	}
	setup, err := h.mfaService.SetupSMS(ctx.Context(), req.UserID, req.SiteID, req.PhoneNumber)
	if err != nil {
		return replyMFAError(ctx, err)
	}
	// the code travels over SMS only, never in the response
	return ctx.JSON(NewDataResponse(fiber.Map{"expiresAt": setup.ExpiresAt}))
}

type setupEmailRequest struct {
	UserID uint   `json:"userId" validate:"required"`
	SiteID string `json:"siteId" validate:"required"`
	Email  string `json:"email" validate:"required,email"`
}

func (h *MFAHandler) PostSetupEmail(ctx *fiber.Ctx) error {
	var req setupEmailRequest
	if ok, err := parseBody(ctx, &req); !ok {
		return err
	}
	setup, err := h.mfaService.SetupEmail(ctx.Context(), req.UserID, req.SiteID, req.Email)
	if err != nil {
		return replyMFAError(ctx, err)
	}
	return ctx.JSON(NewDataResponse(fiber.Map{"expiresAt": setup.ExpiresAt}))
}

type setupBiometricRequest struct {
	UserID     uint              `json:"userId" validate:"required"`
	SiteID     string            `json:"siteId" validate:"required"`
	DeviceInfo deviceInfoRequest `json:"deviceInfo"`
}

func (h *MFAHandler) PostSetupBiometric(ctx *fiber.Ctx) error {
	var req setupBiometricRequest
	if ok, err := parseBody(ctx, &req); !ok {
		return err
	}
	setup, err := h.mfaService.SetupBiometric(ctx.Context(), req.UserID, req.SiteID, req.DeviceInfo.toDeviceInfo())
	if err != nil {
		return replyMFAError(ctx, err)
	}
	return ctx.JSON(NewDataResponse(setup))
}

type registerBiometricRequest struct {
	UserID      uint   `json:"userId" validate:"required"`
	SiteID      string `json:"siteId" validate:"required"`
	ChallengeID string `json:"challengeId" validate:"required"`
	PublicKey   string `json:"publicKey" validate:"required"`
	Assertion   string `json:"assertion" validate:"required"`
}

func (h *MFAHandler) PostRegisterBiometric(ctx *fiber.Ctx) error {
	var req registerBiometricRequest
	if ok, err := parseBody(ctx, &req); !ok {
		return err
	}
	err := h.mfaService.RegisterBiometric(ctx.Context(), req.UserID, req.SiteID, req.ChallengeID, req.PublicKey, req.Assertion)
	if err != nil {
		return replyMFAError(ctx, err)
	}
	return ctx.JSON(NewDataResponse(fiber.Map{"registered": true}))
}

type verifyMFARequest struct {
	UserID     uint               `json:"userId" validate:"required"`
	SiteID     string             `json:"siteId" validate:"required"`
	Method     string             `json:"method" validate:"required"`
	Token      string             `json:"token" validate:"required"`
	DeviceInfo *deviceInfoRequest `json:"deviceInfo"`
}

func (h *MFAHandler) PostVerifyMFA(ctx *fiber.Ctx) error {
	var req verifyMFARequest
	if ok, err := parseBody(ctx, &req); !ok {
		return err
	}
	verifyReq := mfa.VerifyRequest{
		UserID: req.UserID,
		SiteID: req.SiteID,
		Method: req.Method,
		Token:  req.Token,
	}
	if req.DeviceInfo != nil {
		info := req.DeviceInfo.toDeviceInfo()
		verifyReq.DeviceInfo = &info
	}
	result, err := h.mfaService.VerifyMFA(ctx.Context(), verifyReq)
	if err != nil {
		return replyMFAError(ctx, err)
	}
	return ctx.JSON(NewDataResponse(result))
}

type disableMFARequest struct {
	UserID  uint   `json:"userId" validate:"required"`
	SiteID  string `json:"siteId" validate:"required"`
	AdminID uint   `json:"adminId"`
}

func (h *MFAHandler) DeleteMFA(ctx *fiber.Ctx) error {
	var req disableMFARequest
	if ok, err := parseBody(ctx, &req); !ok {
		return err
	}
	if err := h.mfaService.DisableMFA(ctx.Context(), req.UserID, req.SiteID, req.AdminID); err != nil {
		return replyMFAError(ctx, err)
	}
	return ctx.JSON(NewDataResponse(fiber.Map{"disabled": true}))
}

func (h *MFAHandler) GetMFAStatus(ctx *fiber.Ctx) error {
	userID, err := ctx.ParamsInt("userId")
	if err != nil || userID <= 0 {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid user id")
	}
	siteID := ctx.Query("siteId")
	if siteID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "Missing siteId")
	}
	status, err := h.mfaService.GetMFAStatus(ctx.Context(), uint(userID), siteID)
	if err != nil {
		return replyMFAError(ctx, err)
	}
	return ctx.JSON(NewDataResponse(status))
}

func replyMFAError(ctx *fiber.Ctx, err error) error {
	var rateLimited *mfa.RateLimitedError
	switch {
	case errors.Is(err, mfa.ErrUserNotFound):
		return ctx.Status(fiber.StatusNotFound).JSON(
			NewErrorResponse(fiber.StatusNotFound, "User not found"),
		)
	case errors.Is(err, mfa.ErrFactorNotEnrolled):
		return ctx.Status(fiber.StatusConflict).JSON(
			NewErrorResponse(fiber.StatusConflict, "Factor not enrolled"),
		)
	case errors.Is(err, mfa.ErrPendingFactorExpired):
		return ctx.Status(fiber.StatusGone).JSON(
			NewErrorResponse(fiber.StatusGone, "Enrollment expired, start over"),
		)
	case errors.Is(err, mfa.ErrUnsupportedMethod):
		return ctx.Status(fiber.StatusBadRequest).JSON(
			NewErrorResponse(fiber.StatusBadRequest, "Unsupported MFA method"),
		)
	case errors.Is(err, mfa.ErrDeliveryUnavailable):
		return ctx.Status(fiber.StatusServiceUnavailable).JSON(
			NewErrorResponse(fiber.StatusServiceUnavailable, "Code delivery unavailable"),
		)
	case errors.Is(err, mfa.ErrAssertionInvalid):
		return ctx.Status(fiber.StatusUnauthorized).JSON(
			NewErrorResponse(fiber.StatusUnauthorized, "Assertion invalid"),
		)
	case errors.As(err, &rateLimited):
		ctx.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(rateLimited.RetryAfter.Seconds())+1))
		return ctx.Status(fiber.StatusTooManyRequests).JSON(
			NewErrorResponse(fiber.StatusTooManyRequests, rateLimited.Error()),
		)
	default:
		slog.Error("MFA request failed", "path", ctx.Path(), "error", err)
		return ctx.Status(fiber.StatusInternalServerError).JSON(
			NewErrorResponse(fiber.StatusInternalServerError, "Internal server error"),
		)
	}
}
