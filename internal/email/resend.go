package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/storygraph/storygraph/internal/apperr"
)

const defaultResendURL = "https://api.resend.com"

type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Resend sends transactional email through the Resend HTTPS API.
type Resend struct {
	apiKey     string
	from       string
	baseURL    string
	httpClient *http.Client
}

func NewResend(apiKey, from string) *Resend {
	return &Resend{
		apiKey:     apiKey,
		from:       from,
		baseURL:    defaultResendURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// WithBaseURL points the client at another endpoint.
func (r *Resend) WithBaseURL(u string) *Resend {
	r.baseURL = u
	return r
}

// Send delivers msg. A missing API key is CONFIG_ERROR; any transport or
// non-2xx failure is SEND_EMAIL_ERROR.
func (r *Resend) Send(ctx context.Context, msg Message) (string, error) {
	if r.apiKey == "" {
		return "", apperr.New(apperr.KindConfig, "RESEND_API_KEY is not set")
	}

	body, err := json.Marshal(map[string]any{
		"from":    r.from,
		"to":      []string{msg.To},
		"subject": msg.Subject,
		"html":    msg.HTML,
		"text":    msg.Text,
	})
	if err != nil {
		return "", fmt.Errorf("marshal email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", r.baseURL+"/emails", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create email request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+r.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", apperr.Wrap(apperr.KindSendEmail, "could not reach email provider", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", apperr.Wrap(apperr.KindSendEmail, "email provider rejected the message",
			fmt.Errorf("resend status %d: %s", resp.StatusCode, detail))
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", apperr.Wrap(apperr.KindSendEmail, "unreadable email provider response", err)
	}
	return out.ID, nil
}
