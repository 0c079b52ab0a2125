package config

import (
	"os"
	"testing"
	"time"
)

func TestServerConfig_Timeouts_Defaults(t *testing.T) {
	os.Setenv("DB_PASSWORD", "test")
	defer os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	tests := []struct {
		name     string
		actual   time.Duration
		expected time.Duration
	}{
		{"ReadTimeout", cfg.Server.ReadTimeout, 15 * time.Second},
		{"WriteTimeout", cfg.Server.WriteTimeout, 15 * time.Second},
		{"IdleTimeout", cfg.Server.IdleTimeout, 60 * time.Second},
	}

	for _, tt := range tests {
		if tt.actual != tt.expected {
			t.Errorf("%s: got %v, want %v", tt.name, tt.actual, tt.expected)
		}
	}
}

func TestLoad_RequiresDBPassword(t *testing.T) {
	os.Clearenv()

	if _, err := Load(); err == nil {
		t.Fatal("Load() without DB_PASSWORD should fail")
	}
}

func TestEvaluatorConfig_Defaults(t *testing.T) {
	os.Setenv("DB_PASSWORD", "test")
	defer os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	if cfg.Evaluator.Schedule != "@hourly" {
		t.Errorf("Schedule: got %q, want %q", cfg.Evaluator.Schedule, "@hourly")
	}
	if cfg.Evaluator.PurgeRetention != 30*24*time.Hour {
		t.Errorf("PurgeRetention: got %v, want %v", cfg.Evaluator.PurgeRetention, 30*24*time.Hour)
	}
}

func TestServerConfig_TrustedProxies(t *testing.T) {
	os.Setenv("DB_PASSWORD", "test")
	os.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, 192.168.1.1,, ")
	defer os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	want := []string{"10.0.0.0/8", "192.168.1.1"}
	if len(cfg.Server.TrustedProxies) != len(want) {
		t.Fatalf("TrustedProxies: got %v, want %v", cfg.Server.TrustedProxies, want)
	}
	for i := range want {
		if cfg.Server.TrustedProxies[i] != want[i] {
			t.Errorf("TrustedProxies[%d]: got %q, want %q", i, cfg.Server.TrustedProxies[i], want[i])
		}
	}
}

func TestNotifyConfig_RejectsBadWebhookURL(t *testing.T) {
	os.Setenv("DB_PASSWORD", "test")
	os.Setenv("NOTIFY_WEBHOOK_URL", "ftp://example.com/hook")
	defer os.Clearenv()

	if _, err := Load(); err == nil {
		t.Fatal("Load() with non-http webhook URL should fail")
	}
}

func TestNotifyConfig_CustomValues(t *testing.T) {
	os.Setenv("DB_PASSWORD", "test")
	os.Setenv("NOTIFY_WEBHOOK_URL", "https://hooks.example.com/segments")
	os.Setenv("NOTIFY_WEBHOOK_TIMEOUT", "3s")
	defer os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	if cfg.Notify.WebhookURL != "https://hooks.example.com/segments" {
		t.Errorf("WebhookURL: got %q", cfg.Notify.WebhookURL)
	}
	if cfg.Notify.WebhookTimeout != 3*time.Second {
		t.Errorf("WebhookTimeout: got %v, want 3s", cfg.Notify.WebhookTimeout)
	}
}
