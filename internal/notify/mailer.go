package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Email template names.
const (
	TemplateReferralReward = "referral_reward"
	TemplateModelReady     = "model_ready"
)

// Mailer sends a transactional email. Implementations must treat delivery as
// best-effort; callers never depend on the outcome.
type Mailer interface {
	Send(ctx context.Context, template, recipient string, data map[string]any) error
}

// ResendMailer posts to a Resend-style transactional email API.
type ResendMailer struct {
	baseURL    string
	apiKey     string
	from       string
	httpClient *http.Client
}

func NewResendMailer(baseURL, apiKey, from string) *ResendMailer {
	if baseURL == "" {
		baseURL = "https://api.resend.com"
	}
	return &ResendMailer{
		baseURL:    baseURL,
		apiKey:     apiKey,
		from:       from,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type sendRequest struct {
	From     string         `json:"from"`
	To       []string       `json:"to"`
	Template string         `json:"template"`
	Data     map[string]any `json:"data,omitempty"`
}

func (m *ResendMailer) Send(ctx context.Context, template, recipient string, data map[string]any) error {
	body, err := json.Marshal(sendRequest{
		From:     m.from,
		To:       []string{recipient},
		Template: template,
		Data:     data,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/emails", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.apiKey)

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("email API returned status %d", resp.StatusCode)
	}
	return nil
}
