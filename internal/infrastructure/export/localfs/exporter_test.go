package localfs

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/meeting-notes/internal/core/domain"
)

type rendererFake struct{}

func (rendererFake) RenderDocument(input domain.ExportInput) string {
	return "Möte: " + input.Meeting.Title
}

func exportInput() domain.ExportInput {
	return domain.ExportInput{
		Meeting: domain.Meeting{ID: "m-1", Title: "Planering"},
		Artifacts: domain.MeetingArtifacts{ArtifactDraft: domain.ArtifactDraft{
			ActionItems: []domain.ActionItem{
				{ID: "act-1", Text: "Skicka offerten", Owner: "Björn", DueDate: "2026-03-15", References: []string{"s-1"}},
			},
			Decisions: []domain.Item{{ID: "dec-1", Text: "Vi kör", References: []string{"s-2"}}},
		}},
	}
}

func TestExportWritesTextAndWorkbook(t *testing.T) {
	dir := t.TempDir()
	exporter, err := New(dir, rendererFake{}, ModeLocal)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if exporter.Provider() != "local_file" {
		t.Fatalf("unexpected provider %s", exporter.Provider())
	}

	result, err := exporter.Export(context.Background(), exportInput())
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if result.Mode != ModeLocal || !strings.HasPrefix(result.URL, "file://") || !strings.HasSuffix(result.URL, "/m-1.txt") {
		t.Fatalf("unexpected result %+v", result)
	}

	body, err := os.ReadFile(filepath.Join(dir, "m-1.txt"))
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if string(body) != "Möte: Planering" {
		t.Fatalf("unexpected body %q", body)
	}

	book, err := excelize.OpenFile(filepath.Join(dir, "m-1-actions.xlsx"))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer book.Close()
	owner, err := book.GetCellValue("Action items", "C2")
	if err != nil || owner != "Björn" {
		t.Fatalf("expected owner in C2, got %q (%v)", owner, err)
	}
	decision, err := book.GetCellValue("Decisions", "B2")
	if err != nil || decision != "Vi kör" {
		t.Fatalf("expected decision in B2, got %q (%v)", decision, err)
	}

	leftovers, _ := filepath.Glob(filepath.Join(dir, "*.tmp*"))
	if len(leftovers) != 0 {
		t.Fatalf("expected temp files to be renamed, got %v", leftovers)
	}
}

func TestExportMockModeMimicsDocsProvider(t *testing.T) {
	exporter, err := New(t.TempDir(), rendererFake{}, ModeMock)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	result, err := exporter.Export(context.Background(), exportInput())
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if exporter.Provider() != "google_docs" || result.ExternalID != "mock-m-1" || result.URL != "mock://google-docs/m-1" {
		t.Fatalf("unexpected mock export %s %+v", exporter.Provider(), result)
	}
}

func TestExportSanitizesMeetingID(t *testing.T) {
	dir := t.TempDir()
	exporter, err := New(dir, rendererFake{}, ModeLocal)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	input := exportInput()
	input.Meeting.ID = "../escape"

	if _, err := exporter.Export(context.Background(), input); err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "___escape.txt")); err != nil {
		t.Fatalf("expected sanitized file name: %v", err)
	}
}
