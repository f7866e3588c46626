package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kirillkom/meeting-notes/internal/core/domain"
	"github.com/kirillkom/meeting-notes/internal/infrastructure/resilience"
)

type phrasebookFake struct{}

func (phrasebookFake) AudioPlaceholder(string) string   { return "[audio received]" }
func (phrasebookFake) TranscriptionError(string) string { return "Error:" }

func fastExecutor() *resilience.Executor {
	return resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:    2,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     time.Millisecond,
		BreakerEnabled:      false,
	})
}

func TestTranscribePassesTextThrough(t *testing.T) {
	svc := NewService(NewClient(ClientConfig{}), []string{"m"}, false, phrasebookFake{})

	got, err := svc.Transcribe(context.Background(), domain.TranscriptionRequest{Text: "  hej  ", Audio: []byte("ignored")})
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if got.Text != "hej" || got.Confidence != 0.99 || got.Provider != "text" {
		t.Fatalf("unexpected result %+v", got)
	}
}

func TestTranscribeWithoutKeyReturnsPlaceholder(t *testing.T) {
	svc := NewService(NewClient(ClientConfig{}), []string{"m"}, false, phrasebookFake{})

	got, err := svc.Transcribe(context.Background(), domain.TranscriptionRequest{Audio: []byte("RIFF")})
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if got.Text != "[audio received]" || got.Confidence != 0.35 || got.Provider != "mock_stt" {
		t.Fatalf("unexpected result %+v", got)
	}
	if svc.Mode() != "mock" {
		t.Fatalf("expected mock mode, got %s", svc.Mode())
	}
}

func TestTranscribeFallsBackToNextModel(t *testing.T) {
	var (
		mu     sync.Mutex
		models []string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/transcriptions" {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("unexpected authorization header %q", got)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		model := r.FormValue("model")
		_, header, err := r.FormFile("file")
		if err != nil || header.Filename != "chunk.webm" {
			t.Errorf("unexpected file part %v %v", header, err)
		}
		mu.Lock()
		models = append(models, model)
		mu.Unlock()

		if model == "primary" {
			http.Error(w, "model not found", http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"text": " vi börjar nu "})
	}))
	defer server.Close()

	client := NewClient(ClientConfig{BaseURL: server.URL, APIKey: "sk-test", Executor: fastExecutor()})
	svc := NewService(client, []string{"primary", "fallback", "primary"}, false, phrasebookFake{})

	got, err := svc.Transcribe(context.Background(), domain.TranscriptionRequest{
		Audio:    []byte("audio-bytes"),
		MimeType: "audio/webm;codecs=opus",
		Language: "sv",
	})
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if got.Text != "vi börjar nu" || got.Provider != "openai:fallback" || got.Confidence != 0.9 {
		t.Fatalf("unexpected result %+v", got)
	}
	mu.Lock()
	defer mu.Unlock()
	if strings.Join(models, ",") != "primary,fallback" {
		t.Fatalf("expected non-retryable 404 then fallback, got %v", models)
	}
}

func TestTranscribeAllModelsFailingDegrades(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "upstream overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(ClientConfig{BaseURL: server.URL, APIKey: "sk-test", Executor: fastExecutor()})
	svc := NewService(client, []string{"a", "b"}, false, phrasebookFake{})

	got, err := svc.Transcribe(context.Background(), domain.TranscriptionRequest{Audio: []byte("audio")})
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if got.Provider != "stt_error" || got.Confidence != 0.2 {
		t.Fatalf("unexpected result %+v", got)
	}
	if !strings.HasPrefix(got.Text, "[audio received] Error:") || !strings.Contains(got.Text, "upstream overloaded") {
		t.Fatalf("unexpected degraded text %q", got.Text)
	}
	if calls.Load() != 4 {
		t.Fatalf("expected 2 attempts per model, got %d calls", calls.Load())
	}
}

func TestHealthCheckUsesModelsEndpoint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	svc := NewService(NewClient(ClientConfig{BaseURL: server.URL, APIKey: "bad"}), []string{"m"}, false, phrasebookFake{})
	err := svc.HealthCheck(context.Background())
	if !domain.IsKind(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}

	unconfigured := NewService(NewClient(ClientConfig{}), []string{"m"}, false, phrasebookFake{})
	if err := unconfigured.HealthCheck(context.Background()); !domain.IsKind(err, domain.ErrInvalidState) {
		t.Fatalf("expected invalid state for missing key, got %v", err)
	}

	mock := NewService(NewClient(ClientConfig{}), nil, true, phrasebookFake{})
	if err := mock.HealthCheck(context.Background()); err != nil {
		t.Fatalf("expected healthy mock mode, got %v", err)
	}
}
