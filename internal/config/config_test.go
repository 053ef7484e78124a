package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  api_key: "test-key"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.ListenAddr != ":8090" {
		t.Errorf("ListenAddr = %q, want :8090", cfg.Server.ListenAddr)
	}
	if cfg.Database.Path != "/var/lib/outreach/app.db" {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
	if cfg.Mailer.Provider != "log" {
		t.Errorf("Mailer.Provider = %q, want log", cfg.Mailer.Provider)
	}
	if cfg.Scheduler.BatchSize != 50 {
		t.Errorf("Scheduler.BatchSize = %d, want 50", cfg.Scheduler.BatchSize)
	}
	if cfg.Scheduler.Interval != 5*time.Minute {
		t.Errorf("Scheduler.Interval = %v, want 5m", cfg.Scheduler.Interval)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v, want info/json", cfg.Logging)
	}
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
server:
  listen_addr: ":9000"
  api_key: "secret"
database:
  path: "/tmp/outreach.db"
mailer:
  provider: "resend"
  api_key: "re_123"
  from_email: "jess@signalcrest.io"
  from_name: "Jess"
scheduler:
  batch_size: 100
logging:
  level: "debug"
  format: "text"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.ListenAddr != ":9000" {
		t.Errorf("ListenAddr = %q", cfg.Server.ListenAddr)
	}
	if cfg.Mailer.Provider != "resend" || cfg.Mailer.FromEmail != "jess@signalcrest.io" {
		t.Errorf("Mailer = %+v", cfg.Mailer)
	}
	if cfg.Mailer.Timeout != 15*time.Second {
		t.Errorf("Mailer.Timeout = %v, want the 15s default", cfg.Mailer.Timeout)
	}
	if cfg.Scheduler.BatchSize != 100 {
		t.Errorf("Scheduler.BatchSize = %d, want 100", cfg.Scheduler.BatchSize)
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "missing api key",
			content: "server:\n  listen_addr: \":9000\"\n",
		},
		{
			name: "resend without api key",
			content: `
server:
  api_key: "k"
mailer:
  provider: "resend"
  from_email: "jess@signalcrest.io"
`,
		},
		{
			name: "resend without from email",
			content: `
server:
  api_key: "k"
mailer:
  provider: "resend"
  api_key: "re_123"
`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.content)
			if _, err := Load(path); err == nil {
				t.Error("Load() succeeded, want validation error")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Error("Load() succeeded for missing file")
	}
}
