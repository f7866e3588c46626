package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/meeting-notes/internal/infrastructure/resilience"
)

// Client talks to an OpenAI-compatible transcription API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	executor   *resilience.Executor
}

type ClientConfig struct {
	BaseURL  string
	APIKey   string
	Timeout  time.Duration
	Executor *resilience.Executor
}

func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 25 * time.Second
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     strings.TrimSpace(cfg.APIKey),
		httpClient: &http.Client{Timeout: timeout},
		executor:   cfg.Executor,
	}
}

func (c *Client) Configured() bool {
	return c != nil && c.apiKey != ""
}

// Transcribe uploads one audio chunk and returns the recognized text.
func (c *Client) Transcribe(ctx context.Context, model string, audio []byte, mimeType, language string) (string, error) {
	var text string
	call := func(ctx context.Context) error {
		out, err := c.postTranscription(ctx, model, audio, mimeType, language)
		if err != nil {
			return err
		}
		text = out
		return nil
	}
	if err := c.execute(ctx, "stt.transcribe."+model, call); err != nil {
		return "", wrapTemporaryIfNeeded("stt transcribe", err)
	}
	return text, nil
}

// Ping checks credentials and reachability by listing models.
func (c *Client) Ping(ctx context.Context) error {
	call := func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
		if err != nil {
			return fmt.Errorf("create models request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("stt models request: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 300 {
			return statusError("models", resp)
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := c.execute(ctx, "stt.models", call); err != nil {
		return wrapTemporaryIfNeeded("stt health", err)
	}
	return nil
}

func (c *Client) postTranscription(ctx context.Context, model string, audio []byte, mimeType, language string) (string, error) {
	var body bytes.Buffer
	form := multipart.NewWriter(&body)

	part, err := form.CreateFormFile("file", "chunk."+fileExtension(mimeType))
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return "", fmt.Errorf("write audio: %w", err)
	}
	fields := map[string]string{
		"model":           model,
		"response_format": "json",
	}
	if lang := strings.TrimSpace(language); lang != "" {
		fields["language"] = lang
	}
	for key, value := range fields {
		if err := form.WriteField(key, value); err != nil {
			return "", fmt.Errorf("write form field %s: %w", key, err)
		}
	}
	if err := form.Close(); err != nil {
		return "", fmt.Errorf("close multipart form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/audio/transcriptions", &body)
	if err != nil {
		return "", fmt.Errorf("create transcription request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("stt transcription request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return "", statusError("transcription", resp)
	}
	var out struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode transcription response: %w", err)
	}
	return strings.TrimSpace(out.Text), nil
}

func (c *Client) execute(ctx context.Context, op string, fn func(context.Context) error) error {
	if c.executor == nil {
		return fn(ctx)
	}
	return c.executor.Execute(ctx, op, fn, classifySTTError)
}

func statusError(operation string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	return &HTTPStatusError{
		Operation:  operation,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       string(body),
		RetryAfter: resilience.ParseRetryAfter(resp.Header.Get("Retry-After"), time.Now()),
	}
}

func fileExtension(mimeType string) string {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	switch mimeType {
	case "audio/webm", "video/webm":
		return "webm"
	case "audio/wav", "audio/x-wav", "audio/wave":
		return "wav"
	case "audio/mpeg", "audio/mp3":
		return "mp3"
	case "audio/ogg", "audio/opus":
		return "ogg"
	case "audio/mp4", "audio/m4a", "audio/x-m4a":
		return "m4a"
	default:
		return "audio"
	}
}
