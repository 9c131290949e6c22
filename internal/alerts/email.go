package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const sendgridURL = "https://api.sendgrid.com/v3/mail/send"

// EmailSender delivers alerts through the SendGrid v3 API.
type EmailSender struct {
	apiKey   string
	from     string
	fromName string
	client   *http.Client
	logger   zerolog.Logger
}

// NewEmailSender creates an email channel adapter.
func NewEmailSender(apiKey, from, fromName string) *EmailSender {
	return &EmailSender{
		apiKey:   apiKey,
		from:     from,
		fromName: fromName,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: log.With().Str("component", "email").Logger(),
	}
}

// Send delivers a plain-text message to the address in `to`.
func (e *EmailSender) Send(ctx context.Context, to string, msg Message) error {
	subject := fmt.Sprintf("[%s] %s alert", msg.Symbol, msg.Kind)

	payload := map[string]interface{}{
		"personalizations": []map[string]interface{}{
			{"to": []map[string]string{{"email": to}}},
		},
		"from": map[string]string{
			"email": e.from,
			"name":  e.fromName,
		},
		"subject": subject,
		"content": []map[string]string{
			{"type": "text/plain", "value": msg.Text},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("email: encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sendgridURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("email: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+e.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("email: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("email: unexpected status %d", resp.StatusCode)
	}

	e.logger.Debug().Str("symbol", msg.Symbol).Str("kind", string(msg.Kind)).Msg("alert sent")
	return nil
}
