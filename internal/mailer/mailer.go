// Package mailer abstracts the outbound email provider behind a single
// send operation. Delivery failures are reported in the Result, not as
// errors, so callers can log them per message.
package mailer

import (
	"context"
	"log/slog"
	"time"
)

// Message is one outbound email
type Message struct {
	From     string
	FromName string
	To       string
	Subject  string
	Text     string
	HTML     string
}

// Result is the provider's answer to a send attempt
type Result struct {
	OK       bool
	ID       string // provider message id, when assigned
	Provider string
	Status   string // provider-reported status, e.g. "sent" or "queued"
	Message  string // provider rejection reason, set when OK is false
}

// Transport sends one email. Implementations return an error only for
// unexpected conditions; an ordinary rejected or failed delivery comes back
// as a Result with OK=false.
type Transport interface {
	Send(ctx context.Context, msg *Message) (*Result, error)
}

// Config selects and configures the provider
type Config struct {
	Provider  string        `yaml:"provider"` // "resend" or "log"
	BaseURL   string        `yaml:"base_url"`
	APIKey    string        `yaml:"api_key"`
	FromEmail string        `yaml:"from_email"`
	FromName  string        `yaml:"from_name"`
	Timeout   time.Duration `yaml:"timeout"`
}

// New builds the transport named by cfg.Provider. Unknown providers fall
// back to the log transport so a misconfigured install cannot email anyone.
func New(cfg Config, logger *slog.Logger) Transport {
	switch cfg.Provider {
	case "resend":
		return NewResend(cfg.BaseURL, cfg.APIKey, cfg.Timeout)
	default:
		return NewLogTransport(logger)
	}
}

// FormatFrom renders a display-name address like "Jess <jess@acme.com>"
func FormatFrom(email, name string) string {
	if name == "" {
		return email
	}
	return name + " <" + email + ">"
}
