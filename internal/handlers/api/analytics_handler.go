package api

import (
	"log/slog"

	"github.com/authcore-dev/authcore/internal/analytics"
	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cast"
)

type AnalyticsHandler struct {
	engine *analytics.Engine
}

func NewAnalyticsHandler(engine *analytics.Engine) *AnalyticsHandler {
	return &AnalyticsHandler{engine: engine}
}

// queryRange reads the from/to query params, defaulting to the trailing
// `days` query (7 when absent).
func queryRange(ctx *fiber.Ctx) analytics.Range {
	days := cast.ToInt(ctx.Query("days"))
	if days <= 0 {
		days = 7
	}
	r := analytics.LastDays(days)
	if from := cast.ToTime(ctx.Query("from")); !from.IsZero() {
		r.From = from
	}
	if to := cast.ToTime(ctx.Query("to")); !to.IsZero() {
		r.To = to
	}
	return r
}

func requireSiteID(ctx *fiber.Ctx) (string, error) {
	siteID := ctx.Query("siteId")
	if siteID == "" {
		return "", fiber.NewError(fiber.StatusBadRequest, "Missing siteId")
	}
	return siteID, nil
}

func (h *AnalyticsHandler) GetAuthenticationMetrics(ctx *fiber.Ctx) error {
	siteID, err := requireSiteID(ctx)
	if err != nil {
		return err
	}
	metrics, err := h.engine.GetAuthenticationMetrics(ctx.Context(), siteID, queryRange(ctx))
	if err != nil {
		return replyAnalyticsError(ctx, err)
	}
	return ctx.JSON(NewDataResponse(metrics))
}

func (h *AnalyticsHandler) GetSecurityMetrics(ctx *fiber.Ctx) error {
	siteID, err := requireSiteID(ctx)
	if err != nil {
		return err
	}
	metrics, err := h.engine.GetSecurityMetrics(ctx.Context(), siteID, queryRange(ctx))
	if err != nil {
		return replyAnalyticsError(ctx, err)
	}
	return ctx.JSON(NewDataResponse(metrics))
}

func (h *AnalyticsHandler) GetSessionMetrics(ctx *fiber.Ctx) error {
	siteID, err := requireSiteID(ctx)
	if err != nil {
		return err
	}
	metrics, err := h.engine.GetSessionMetrics(ctx.Context(), siteID, queryRange(ctx))
	if err != nil {
		return replyAnalyticsError(ctx, err)
	}
	return ctx.JSON(NewDataResponse(metrics))
}

func (h *AnalyticsHandler) GetUserBehaviorMetrics(ctx *fiber.Ctx) error {
	siteID, err := requireSiteID(ctx)
	if err != nil {
		return err
	}
	userID, err := ctx.ParamsInt("userId")
	if err != nil || userID <= 0 {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid user id")
	}
	metrics, err := h.engine.GetUserBehaviorMetrics(ctx.Context(), siteID, uint(userID), queryRange(ctx))
	if err != nil {
		return replyAnalyticsError(ctx, err)
	}
	return ctx.JSON(NewDataResponse(metrics))
}

func (h *AnalyticsHandler) GetAnomalies(ctx *fiber.Ctx) error {
	siteID, err := requireSiteID(ctx)
	if err != nil {
		return err
	}
	userID := cast.ToUint(ctx.Query("userId"))
	windowDays := cast.ToInt(ctx.Query("windowDays"))
	if windowDays <= 0 {
		windowDays = 7
	}
	report, err := h.engine.DetectAnomalies(ctx.Context(), siteID, userID, windowDays)
	if err != nil {
		return replyAnalyticsError(ctx, err)
	}
	return ctx.JSON(NewDataResponse(report))
}

func (h *AnalyticsHandler) GetUserRisk(ctx *fiber.Ctx) error {
	siteID, err := requireSiteID(ctx)
	if err != nil {
		return err
	}
	userID, err := ctx.ParamsInt("userId")
	if err != nil || userID <= 0 {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid user id")
	}
	assessment, err := h.engine.AssessUserRisk(ctx.Context(), uint(userID), siteID)
	if err != nil {
		return replyAnalyticsError(ctx, err)
	}
	return ctx.JSON(NewDataResponse(assessment))
}

func (h *AnalyticsHandler) GetAuthenticationTrends(ctx *fiber.Ctx) error {
	siteID, err := requireSiteID(ctx)
	if err != nil {
		return err
	}
	days := cast.ToInt(ctx.Query("days"))
	if days <= 0 {
		days = 30
	}
	granularity := ctx.Query("granularity", analytics.GranularityDay)
	trends, err := h.engine.GetAuthenticationTrends(ctx.Context(), siteID, days, granularity)
	if err != nil {
		return replyAnalyticsError(ctx, err)
	}
	return ctx.JSON(NewDataResponse(trends))
}

func replyAnalyticsError(ctx *fiber.Ctx, err error) error {
	slog.Error("Analytics request failed", "path", ctx.Path(), "error", err)
	return ctx.Status(fiber.StatusInternalServerError).JSON(
		NewErrorResponse(fiber.StatusInternalServerError, "Internal server error"),
	)
}
