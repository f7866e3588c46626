package googledocs

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"google.golang.org/api/option"

	"github.com/kirillkom/meeting-notes/internal/core/domain"
)

type rendererFake struct{}

func (rendererFake) RenderDocument(domain.ExportInput) string { return "notes body" }

type docsServer struct {
	mu        sync.Mutex
	calls     []string
	inserted  string
	parents   string
	createErr int
}

func (s *docsServer) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.calls = append(s.calls, r.Method+" "+r.URL.Path)

		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/documents":
			if s.createErr != 0 {
				w.WriteHeader(s.createErr)
				_, _ = w.Write([]byte(`{"error":{"code":503,"message":"backend unavailable"}}`))
				return
			}
			var doc map[string]any
			_ = json.NewDecoder(r.Body).Decode(&doc)
			if doc["title"] != "Planering - 2026-03-02" {
				t.Errorf("unexpected title %v", doc["title"])
			}
			_, _ = w.Write([]byte(`{"documentId":"doc-1"}`))
		case r.Method == http.MethodPost && r.URL.Path == "/v1/documents/doc-1:batchUpdate":
			var req struct {
				Requests []struct {
					InsertText struct {
						Location struct {
							Index int `json:"index"`
						} `json:"location"`
						Text string `json:"text"`
					} `json:"insertText"`
				} `json:"requests"`
			}
			_ = json.NewDecoder(r.Body).Decode(&req)
			if len(req.Requests) == 1 && req.Requests[0].InsertText.Location.Index == 1 {
				s.inserted = req.Requests[0].InsertText.Text
			}
			_, _ = w.Write([]byte(`{"documentId":"doc-1"}`))
		case r.Method == http.MethodPatch && r.URL.Path == "/files/doc-1":
			s.parents = r.URL.Query().Get("addParents")
			_, _ = w.Write([]byte(`{"id":"doc-1"}`))
		default:
			http.NotFound(w, r)
		}
	})
}

func newTestExporter(t *testing.T, server *httptest.Server, folderID string) *Exporter {
	t.Helper()
	exporter, err := newWithOptions(context.Background(), folderID, rendererFake{}, nil,
		option.WithHTTPClient(server.Client()),
		option.WithEndpoint(server.URL+"/"),
	)
	if err != nil {
		t.Fatalf("newWithOptions() error = %v", err)
	}
	return exporter
}

func testInput() domain.ExportInput {
	return domain.ExportInput{Meeting: domain.Meeting{
		ID:        "m-1",
		Title:     "Planering",
		StartedAt: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
	}}
}

func TestExportCreatesDocumentAndMovesIntoFolder(t *testing.T) {
	fake := &docsServer{}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	result, err := newTestExporter(t, server, "folder-9").Export(context.Background(), testInput())
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if result.ExternalID != "doc-1" || result.URL != "https://docs.google.com/document/d/doc-1/edit" {
		t.Fatalf("unexpected result %+v", result)
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	if fake.inserted != "notes body" {
		t.Fatalf("expected body insert at index 1, got %q", fake.inserted)
	}
	if fake.parents != "folder-9" {
		t.Fatalf("expected addParents=folder-9, got %q", fake.parents)
	}
}

func TestExportSkipsDriveWithoutFolder(t *testing.T) {
	fake := &docsServer{}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	if _, err := newTestExporter(t, server, "").Export(context.Background(), testInput()); err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	fake.mu.Lock()
	defer fake.mu.Unlock()
	if len(fake.calls) != 2 {
		t.Fatalf("expected create and batchUpdate only, got %v", fake.calls)
	}
}

func TestExportMarksServerErrorsTemporary(t *testing.T) {
	fake := &docsServer{createErr: http.StatusServiceUnavailable}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	_, err := newTestExporter(t, server, "").Export(context.Background(), testInput())
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error, got %v", err)
	}
}

func TestNewRequiresCredentials(t *testing.T) {
	_, err := New(context.Background(), Config{}, rendererFake{}, nil)
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}
