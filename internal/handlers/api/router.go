package api

import "github.com/gofiber/fiber/v2"

// RegisterRoutes mounts the API surface under /api/v1.
func RegisterRoutes(app *fiber.App, mfaHandler *MFAHandler, sessionHandler *SessionHandler, passwordHandler *PasswordHandler, analyticsHandler *AnalyticsHandler) {
	v1 := app.Group("/api/v1")

	mfaGroup := v1.Group("/mfa")
	mfaGroup.Post("/totp/setup", mfaHandler.PostSetupTOTP)
	mfaGroup.Post("/totp/verify", mfaHandler.PostVerifyTOTPSetup)
	mfaGroup.Post("/sms/setup", mfaHandler.PostSetupSMS)
	mfaGroup.Post("/email/setup", mfaHandler.PostSetupEmail)
	mfaGroup.Post("/biometric/setup", mfaHandler.PostSetupBiometric)
	mfaGroup.Post("/biometric/register", mfaHandler.PostRegisterBiometric)
	mfaGroup.Post("/verify", mfaHandler.PostVerifyMFA)
	mfaGroup.Delete("/", mfaHandler.DeleteMFA)
	mfaGroup.Get("/status/:userId", mfaHandler.GetMFAStatus)

	sessionGroup := v1.Group("/sessions")
	sessionGroup.Post("/", sessionHandler.PostCreateSession)
	sessionGroup.Get("/:sessionId/validate", sessionHandler.GetValidateSession)
	sessionGroup.Delete("/:sessionId", sessionHandler.DeleteSession)
	v1.Post("/logins/failure", sessionHandler.PostReportLoginFailure)

	passwordGroup := v1.Group("/password")
	passwordGroup.Post("/validate", passwordHandler.PostValidatePassword)
	passwordGroup.Post("/change", passwordHandler.PostChangePassword)
	passwordGroup.Post("/generate", passwordHandler.PostGeneratePassword)
	passwordGroup.Get("/expiry/:userId", passwordHandler.GetPasswordExpiry)

	analyticsGroup := v1.Group("/analytics")
	analyticsGroup.Get("/authentication", analyticsHandler.GetAuthenticationMetrics)
	analyticsGroup.Get("/security", analyticsHandler.GetSecurityMetrics)
	analyticsGroup.Get("/sessions", analyticsHandler.GetSessionMetrics)
	analyticsGroup.Get("/behavior/:userId", analyticsHandler.GetUserBehaviorMetrics)
	analyticsGroup.Get("/anomalies", analyticsHandler.GetAnomalies)
	analyticsGroup.Get("/risk/:userId", analyticsHandler.GetUserRisk)
	analyticsGroup.Get("/trends", analyticsHandler.GetAuthenticationTrends)
}
