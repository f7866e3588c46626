package localfs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/meeting-notes/internal/core/domain"
	"github.com/kirillkom/meeting-notes/internal/core/ports"
)

const (
	ModeLocal = "local"
	// ModeMock stands in for the Google Docs exporter when it has no credentials.
	ModeMock = "mock"

	ProviderLocal      = "local_file"
	ProviderGoogleDocs = "google_docs"
)

// Exporter writes the rendered notes and an action item workbook to disk.
type Exporter struct {
	basePath string
	renderer ports.DocumentRenderer
	mode     string
}

func New(basePath string, renderer ports.DocumentRenderer, mode string) (*Exporter, error) {
	if basePath == "" {
		basePath = "./data/exports"
	}
	if mode != ModeMock {
		mode = ModeLocal
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}
	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("resolve export dir: %w", err)
	}
	return &Exporter{basePath: abs, renderer: renderer, mode: mode}, nil
}

func (e *Exporter) Provider() string {
	if e.mode == ModeMock {
		return ProviderGoogleDocs
	}
	return ProviderLocal
}

func (e *Exporter) Export(ctx context.Context, input domain.ExportInput) (domain.ExportResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.ExportResult{}, err
	}
	meetingID := safeKey(input.Meeting.ID)
	if meetingID == "" {
		return domain.ExportResult{}, domain.NewError(domain.ErrInvalidInput, "local export", "meeting id is required")
	}

	textPath := filepath.Join(e.basePath, meetingID+".txt")
	if err := e.save(textPath, func(path string) error {
		return os.WriteFile(path, []byte(e.renderer.RenderDocument(input)), 0o644)
	}); err != nil {
		return domain.ExportResult{}, err
	}

	sheetPath := filepath.Join(e.basePath, meetingID+"-actions.xlsx")
	if err := e.save(sheetPath, func(path string) error {
		return writeWorkbook(path, input.Artifacts)
	}); err != nil {
		return domain.ExportResult{}, err
	}

	if e.mode == ModeMock {
		return domain.ExportResult{
			ExternalID: "mock-" + input.Meeting.ID,
			URL:        "mock://google-docs/" + input.Meeting.ID,
			Mode:       ModeMock,
		}, nil
	}
	return domain.ExportResult{
		ExternalID: "local-" + input.Meeting.ID,
		URL:        "file://" + filepath.ToSlash(textPath),
		Mode:       ModeLocal,
	}, nil
}

// save writes through a temp file so readers never see a partial export.
func (e *Exporter) save(path string, write func(tmp string) error) error {
	tmp := path + ".tmp"
	if ext := filepath.Ext(path); ext != "" {
		tmp = strings.TrimSuffix(path, ext) + ".tmp" + ext
	}
	if err := write(tmp); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", filepath.Base(path), err)
	}
	return nil
}

func writeWorkbook(path string, artifacts domain.MeetingArtifacts) error {
	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	const actions = "Action items"
	if err := f.SetSheetName("Sheet1", actions); err != nil {
		return err
	}
	rows := [][]any{{"ID", "Action", "Owner", "Due", "Segments"}}
	for _, item := range artifacts.ActionItems {
		rows = append(rows, []any{item.ID, item.Text, item.Owner, item.DueDate, strings.Join(item.References, ", ")})
	}
	if err := writeRows(f, actions, rows); err != nil {
		return err
	}

	sheets := []struct {
		name  string
		items []domain.Item
	}{
		{"Decisions", artifacts.Decisions},
		{"Open questions", artifacts.OpenQuestions},
		{"Risks", artifacts.Risks},
	}
	for _, sheet := range sheets {
		if _, err := f.NewSheet(sheet.name); err != nil {
			return err
		}
		rows := [][]any{{"ID", "Text", "Segments"}}
		for _, item := range sheet.items {
			rows = append(rows, []any{item.ID, item.Text, strings.Join(item.References, ", ")})
		}
		if err := writeRows(f, sheet.name, rows); err != nil {
			return err
		}
	}

	if err := f.SetColWidth(actions, "B", "B", 60); err != nil {
		return err
	}
	return f.SaveAs(path)
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return nil
}

func safeKey(id string) string {
	id = strings.TrimSpace(id)
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, id)
}
