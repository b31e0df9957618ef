package api

import (
	"errors"
	"log/slog"

	"github.com/authcore-dev/authcore/internal/events"
	"github.com/authcore-dev/authcore/internal/sessions"
	"github.com/authcore-dev/authcore/model"
	"github.com/gofiber/fiber/v2"
)

type SessionHandler struct {
	sessionManager *sessions.Manager
	eventLog       *events.Logger
}

func NewSessionHandler(sessionManager *sessions.Manager, eventLog *events.Logger) *SessionHandler {
	return &SessionHandler{
		sessionManager: sessionManager,
		eventLog:       eventLog,
	}
}

type createSessionRequest struct {
	UserID     uint               `json:"userId" validate:"required"`
	SiteID     string             `json:"siteId" validate:"required"`
	IPAddress  string             `json:"ipAddress" validate:"required,ip"`
	DeviceInfo deviceInfoRequest  `json:"deviceInfo"`
	Location   *sessions.Location `json:"location"`
}

func (h *SessionHandler) PostCreateSession(ctx *fiber.Ctx) error {
	var req createSessionRequest
	if ok, err := parseBody(ctx, &req); !ok {
		return err
	}
	result, err := h.sessionManager.CreateSession(ctx.Context(), req.UserID, req.SiteID, req.IPAddress, req.DeviceInfo.toDeviceInfo(), req.Location)
	if err != nil {
		return replySessionError(ctx, err)
	}
	return ctx.Status(fiber.StatusCreated).JSON(NewDataResponse(result))
}

func (h *SessionHandler) GetValidateSession(ctx *fiber.Ctx) error {
	sessionID := ctx.Params("sessionId")
	if sessionID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "Missing session id")
	}
	result, err := h.sessionManager.ValidateSession(ctx.Context(), sessionID)
	if err != nil {
		return replySessionError(ctx, err)
	}
	return ctx.JSON(NewDataResponse(result))
}

type terminateSessionRequest struct {
	Reason       string `json:"reason"`
	TerminatedBy string `json:"terminatedBy"`
}

func (h *SessionHandler) DeleteSession(ctx *fiber.Ctx) error {
	sessionID := ctx.Params("sessionId")
	if sessionID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "Missing session id")
	}
	var req terminateSessionRequest
	if err := ctx.BodyParser(&req); err != nil && len(ctx.Body()) > 0 {
		return fiber.NewError(fiber.StatusBadRequest, "Malformed request body")
	}
	if req.Reason == "" {
		req.Reason = model.TerminateReasonLogout
	}
	terminated, err := h.sessionManager.TerminateSession(ctx.Context(), sessionID, req.Reason, req.TerminatedBy)
	if err != nil {
		return replySessionError(ctx, err)
	}
	return ctx.JSON(NewDataResponse(fiber.Map{"terminated": terminated}))
}

// reportLoginFailureRequest lets the credential layer feed failed login
// attempts into the event log so brute-force analytics see them.
type reportLoginFailureRequest struct {
	UserID    uint   `json:"userId"`
	SiteID    string `json:"siteId" validate:"required"`
	IPAddress string `json:"ipAddress"`
	UserAgent string `json:"userAgent"`
	Reason    string `json:"reason"`
}

func (h *SessionHandler) PostReportLoginFailure(ctx *fiber.Ctx) error {
	var req reportLoginFailureRequest
	if ok, err := parseBody(ctx, &req); !ok {
		return err
	}
	h.eventLog.Record(ctx.Context(), events.Event{
		Type:     events.EventTypeLoginFailure,
		Severity: events.SeverityWarning,
		UserID:   req.UserID,
		SiteID:   req.SiteID,
		Success:  false,
		Kind:     events.PayloadKindLogin,
		Payload: events.LoginPayload{
			IP:        req.IPAddress,
			UserAgent: req.UserAgent,
			Reason:    req.Reason,
		},
	})
	return ctx.SendStatus(fiber.StatusAccepted)
}

func replySessionError(ctx *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, sessions.ErrSessionNotFound):
		return ctx.Status(fiber.StatusNotFound).JSON(
			NewErrorResponse(fiber.StatusNotFound, "Session not found"),
		)
	default:
		slog.Error("Session request failed", "path", ctx.Path(), "error", err)
		return ctx.Status(fiber.StatusInternalServerError).JSON(
			NewErrorResponse(fiber.StatusInternalServerError, "Internal server error"),
		)
	}
}
