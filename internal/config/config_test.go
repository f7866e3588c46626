package config

import (
	"reflect"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"STORE_BACKEND", "NATS_URL", "DEFAULT_LANGUAGE", "EXPORT_PROVIDER",
		"EXPORT_MAX_ATTEMPTS", "EXPORT_RETRY_BASE_DELAY_MS", "API_RATE_LIMIT_RPS",
		"OPENAI_STT_MODEL", "OPENAI_STT_FALLBACK_MODELS", "SSE_HEARTBEAT_SECONDS",
		"EXPORT_ATTEMPT_TIMEOUT_SECONDS", "FINALIZE_TIMEOUT_SECONDS",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.StoreBackend != "memory" {
		t.Fatalf("expected memory store by default, got %q", cfg.StoreBackend)
	}
	if cfg.NATSURL != "" {
		t.Fatalf("expected NATS disabled by default, got %q", cfg.NATSURL)
	}
	if cfg.DefaultLanguage != "sv" {
		t.Fatalf("expected default language sv, got %q", cfg.DefaultLanguage)
	}
	if cfg.ExportProvider != "google_docs" {
		t.Fatalf("expected google_docs export provider, got %q", cfg.ExportProvider)
	}
	if cfg.ExportMaxAttempts != 3 || cfg.ExportRetryBaseDelayMS != 300 {
		t.Fatalf("unexpected export retry defaults %d/%d", cfg.ExportMaxAttempts, cfg.ExportRetryBaseDelayMS)
	}
	if cfg.ExportAttemptTimeoutSec != 30 || cfg.FinalizeTimeoutSeconds != 300 {
		t.Fatalf("unexpected timeouts %d/%d", cfg.ExportAttemptTimeoutSec, cfg.FinalizeTimeoutSeconds)
	}
	if cfg.APIRateLimitRPS != 0 {
		t.Fatalf("expected rate limiting disabled, got %v", cfg.APIRateLimitRPS)
	}
	if cfg.SSEHeartbeatSeconds != 15 {
		t.Fatalf("expected heartbeat 15s, got %d", cfg.SSEHeartbeatSeconds)
	}
	want := []string{"gpt-4o-mini-transcribe", "gpt-4o-transcribe", "whisper-1"}
	if got := cfg.STTModels(); !reflect.DeepEqual(got, want) {
		t.Fatalf("STTModels() = %v, want %v", got, want)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("STORE_BACKEND", "Postgres")
	t.Setenv("API_RATE_LIMIT_RPS", "2.5")
	t.Setenv("STT_MOCK_MODE", "true")
	t.Setenv("OPENAI_STT_MODEL", "whisper-1")
	t.Setenv("OPENAI_STT_FALLBACK_MODELS", " whisper-1 , gpt-4o-transcribe,,")
	t.Setenv("EXPORT_MAX_ATTEMPTS", "not-a-number")

	cfg := Load()
	if cfg.StoreBackend != "postgres" {
		t.Fatalf("expected lower-cased backend, got %q", cfg.StoreBackend)
	}
	if cfg.APIRateLimitRPS != 2.5 {
		t.Fatalf("expected rps 2.5, got %v", cfg.APIRateLimitRPS)
	}
	if !cfg.STTMockMode {
		t.Fatal("expected stt mock mode enabled")
	}
	if cfg.ExportMaxAttempts != 3 {
		t.Fatalf("expected fallback for invalid int, got %d", cfg.ExportMaxAttempts)
	}
	want := []string{"whisper-1", "gpt-4o-transcribe"}
	if got := cfg.STTModels(); !reflect.DeepEqual(got, want) {
		t.Fatalf("STTModels() = %v, want %v", got, want)
	}
}
