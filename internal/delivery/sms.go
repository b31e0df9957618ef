package delivery

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// WebhookSMSSender posts verification codes to an external SMS provider
// webhook. The request is bounded by the client timeout.
type WebhookSMSSender struct {
	url    string
	apiKey string
	httpc  *http.Client
}

func NewWebhookSMSSender(url string, apiKey string, timeout time.Duration) *WebhookSMSSender {
	return &WebhookSMSSender{
		url:    url,
		apiKey: apiKey,
		httpc:  &http.Client{Timeout: timeout},
	}
}

func (s *WebhookSMSSender) SendCode(phoneNumber string, code string) error {
	payload, err := json.Marshal(map[string]string{
		"to":      phoneNumber,
		"message": code + " is your verification code",
	})
	if err != nil {
		return deliveryError(err)
	}
	req, err := http.NewRequest(http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return deliveryError(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}
	resp, err := s.httpc.Do(req)
	if err != nil {
		return deliveryError(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return deliveryError(errStatus(resp.StatusCode))
	}
	return nil
}

type errStatus int

func (e errStatus) Error() string {
	return http.StatusText(int(e))
}

// LogSMSSender is used when no SMS provider is configured. Codes are logged
// masked so development deployments still exercise the flow.
type LogSMSSender struct{}

func (LogSMSSender) SendCode(phoneNumber string, code string) error {
	slog.Info("SMS dispatch skipped: no provider configured", "to", maskPhone(phoneNumber))
	return nil
}

func maskPhone(phone string) string {
	if len(phone) <= 4 {
		return "****"
	}
	return "****" + phone[len(phone)-4:]
}
