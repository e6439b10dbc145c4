package config

import "testing"

func TestValidate_InvalidPort(t *testing.T) {
	cfg := Config{
		HTTP: HTTPConfig{Port: 0},
		Database: DatabaseConfig{
			Driver: "redis",
			Addrs:  []string{"localhost:6379"},
		},
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestValidate_MissingRedisAddrs(t *testing.T) {
	cfg := Config{
		HTTP: HTTPConfig{Port: 8080},
		Database: DatabaseConfig{
			Driver: "redis",
			Addrs:  []string{},
		},
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for missing redis addrs")
	}
}

func TestValidate_MemoryDriverNeedsNoAddrs(t *testing.T) {
	cfg := Config{
		HTTP:     HTTPConfig{Port: 8080},
		Database: DatabaseConfig{Driver: "memory"},
	}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_UnknownDriver(t *testing.T) {
	cfg := Config{
		HTTP:     HTTPConfig{Port: 8080},
		Database: DatabaseConfig{Driver: "postgres"},
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for unknown driver")
	}

	expected := `database.driver must be "redis" or "memory", got "postgres"`
	if err.Error() != expected {
		t.Errorf("unexpected error message:\ngot:  %q\nwant: %q", err.Error(), expected)
	}
}

func TestValidate_WebhookURLWithoutSecret(t *testing.T) {
	cfg := Config{
		HTTP:     HTTPConfig{Port: 8080},
		Database: DatabaseConfig{Driver: "memory"},
		Webhook:  WebhookConfig{URL: "https://example.com/hooks"},
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for webhook url without secret")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 10 {
		t.Errorf("expected ReadTimeoutSec=10, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.HTTP.WriteTimeoutSec != 10 {
		t.Errorf("expected WriteTimeoutSec=10, got %d", cfg.HTTP.WriteTimeoutSec)
	}
	if cfg.HTTP.ShutdownSec != 10 {
		t.Errorf("expected ShutdownSec=10, got %d", cfg.HTTP.ShutdownSec)
	}
	if cfg.Database.Driver != "redis" {
		t.Errorf("expected Driver=redis, got %q", cfg.Database.Driver)
	}
	if cfg.Database.ReadinessTimeout != 10 {
		t.Errorf("expected ReadinessTimeout=10, got %d", cfg.Database.ReadinessTimeout)
	}
	if cfg.Webhook.TimeoutSec != 10 {
		t.Errorf("expected webhook TimeoutSec=10, got %d", cfg.Webhook.TimeoutSec)
	}
	if cfg.Pagination.DefaultPageSize != 20 {
		t.Errorf("expected DefaultPageSize=20, got %d", cfg.Pagination.DefaultPageSize)
	}
	if cfg.Pagination.MaxPageSize != 100 {
		t.Errorf("expected MaxPageSize=100, got %d", cfg.Pagination.MaxPageSize)
	}
	if cfg.Pagination.MaxBatchSize != 100 {
		t.Errorf("expected MaxBatchSize=100, got %d", cfg.Pagination.MaxBatchSize)
	}
}

func TestApplyDefaults_NoOverride(t *testing.T) {
	cfg := Config{
		HTTP:       HTTPConfig{ReadTimeoutSec: 30, WriteTimeoutSec: 60, ShutdownSec: 5},
		Database:   DatabaseConfig{Driver: "memory", ReadinessTimeout: 15},
		Pagination: PaginationConfig{DefaultPageSize: 50, MaxPageSize: 500, MaxBatchSize: 50},
	}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 30 {
		t.Errorf("expected ReadTimeoutSec=30, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.HTTP.WriteTimeoutSec != 60 {
		t.Errorf("expected WriteTimeoutSec=60, got %d", cfg.HTTP.WriteTimeoutSec)
	}
	if cfg.Database.Driver != "memory" {
		t.Errorf("expected Driver=memory, got %q", cfg.Database.Driver)
	}
	if cfg.Pagination.DefaultPageSize != 50 {
		t.Errorf("expected DefaultPageSize=50, got %d", cfg.Pagination.DefaultPageSize)
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("MOMENTUM_TEST_SECRET", "s3cret")

	in := []byte("secret: ${MOMENTUM_TEST_SECRET}\nother: ${MOMENTUM_TEST_MISSING:-fallback}\n")
	out := string(expandEnvVars(in))

	want := "secret: s3cret\nother: fallback\n"
	if out != want {
		t.Errorf("unexpected expansion:\ngot:  %q\nwant: %q", out, want)
	}
}
