package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultResendURL = "https://api.resend.com"

// Resend sends email through the Resend HTTP API
type Resend struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewResend(baseURL, apiKey string, timeout time.Duration) *Resend {
	if baseURL == "" {
		baseURL = defaultResendURL
	}
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Resend{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Text    string   `json:"text,omitempty"`
	HTML    string   `json:"html,omitempty"`
}

type resendResponse struct {
	ID string `json:"id"`
}

type resendError struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

// Send posts one email to the Resend API. API rejections are reported as a
// failed Result; only transport-level problems (marshalling, request
// construction) surface as errors.
func (r *Resend) Send(ctx context.Context, msg *Message) (*Result, error) {
	body := resendRequest{
		From:    FormatFrom(msg.From, msg.FromName),
		To:      []string{msg.To},
		Subject: msg.Subject,
		Text:    msg.Text,
		HTML:    msg.HTML,
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/emails", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+r.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		// Network failure is an ordinary delivery failure for the caller
		return &Result{OK: false, Provider: "resend", Status: "failed", Message: err.Error()}, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr resendError
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err != nil {
			io.Copy(io.Discard, resp.Body)
		}
		reason := apiErr.Message
		if apiErr.Name != "" {
			reason = apiErr.Name + ": " + apiErr.Message
		}
		if reason == "" {
			reason = resp.Status
		}
		return &Result{OK: false, Provider: "resend", Status: "failed", Message: reason}, nil
	}

	var ok resendResponse
	if err := json.NewDecoder(resp.Body).Decode(&ok); err != nil {
		return &Result{OK: true, Provider: "resend", Status: "queued"}, nil
	}

	return &Result{OK: true, ID: ok.ID, Provider: "resend", Status: "queued"}, nil
}
