package googledocs

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/jwt"
	docs "google.golang.org/api/docs/v1"
	drive "google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/kirillkom/meeting-notes/internal/core/domain"
	"github.com/kirillkom/meeting-notes/internal/core/ports"
	"github.com/kirillkom/meeting-notes/internal/infrastructure/resilience"
)

const Provider = "google_docs"

type Config struct {
	ServiceAccountEmail string
	PrivateKey          string
	FolderID            string
}

// Configured reports whether service account credentials are present.
func (c Config) Configured() bool {
	return strings.TrimSpace(c.ServiceAccountEmail) != "" && strings.TrimSpace(c.PrivateKey) != ""
}

// Exporter creates one Google Doc per export attempt.
type Exporter struct {
	docs     *docs.Service
	drive    *drive.Service
	folderID string
	renderer ports.DocumentRenderer
	executor *resilience.Executor
}

func New(ctx context.Context, cfg Config, renderer ports.DocumentRenderer, executor *resilience.Executor) (*Exporter, error) {
	if !cfg.Configured() {
		return nil, domain.NewError(domain.ErrInvalidInput, "google docs exporter", "service account email and private key are required")
	}
	conf := &jwt.Config{
		Email:      strings.TrimSpace(cfg.ServiceAccountEmail),
		PrivateKey: []byte(strings.ReplaceAll(cfg.PrivateKey, `\n`, "\n")),
		Scopes:     []string{docs.DocumentsScope, drive.DriveScope},
		TokenURL:   google.JWTTokenURL,
	}
	return newWithOptions(ctx, cfg.FolderID, renderer, executor, option.WithHTTPClient(conf.Client(ctx)))
}

func newWithOptions(
	ctx context.Context,
	folderID string,
	renderer ports.DocumentRenderer,
	executor *resilience.Executor,
	docsOpts ...option.ClientOption,
) (*Exporter, error) {
	docsSvc, err := docs.NewService(ctx, docsOpts...)
	if err != nil {
		return nil, fmt.Errorf("create docs service: %w", err)
	}
	driveSvc, err := drive.NewService(ctx, docsOpts...)
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}
	return &Exporter{
		docs:     docsSvc,
		drive:    driveSvc,
		folderID: strings.TrimSpace(folderID),
		renderer: renderer,
		executor: executor,
	}, nil
}

func (e *Exporter) Provider() string { return Provider }

func (e *Exporter) Export(ctx context.Context, input domain.ExportInput) (domain.ExportResult, error) {
	body := e.renderer.RenderDocument(input)
	title := fmt.Sprintf("%s - %s", input.Meeting.Title, input.Meeting.StartedAt.Format("2006-01-02"))

	var documentID string
	err := e.execute(ctx, "google_docs.create", func(ctx context.Context) error {
		created, err := e.docs.Documents.Create(&docs.Document{Title: title}).Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("create document: %w", err)
		}
		if created.DocumentId == "" {
			return fmt.Errorf("create document: no document id returned")
		}
		documentID = created.DocumentId
		return nil
	})
	if err != nil {
		return domain.ExportResult{}, wrapTemporaryIfNeeded(err)
	}

	err = e.execute(ctx, "google_docs.batch_update", func(ctx context.Context) error {
		_, err := e.docs.Documents.BatchUpdate(documentID, &docs.BatchUpdateDocumentRequest{
			Requests: []*docs.Request{{
				InsertText: &docs.InsertTextRequest{
					Location: &docs.Location{Index: 1},
					Text:     body,
				},
			}},
		}).Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("insert document body: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.ExportResult{}, wrapTemporaryIfNeeded(err)
	}

	if e.folderID != "" {
		err = e.execute(ctx, "google_drive.move", func(ctx context.Context) error {
			_, err := e.drive.Files.Update(documentID, &drive.File{}).
				AddParents(e.folderID).
				Fields("id, parents").
				SupportsAllDrives(true).
				Context(ctx).
				Do()
			if err != nil {
				return fmt.Errorf("move document to folder: %w", err)
			}
			return nil
		})
		if err != nil {
			return domain.ExportResult{}, wrapTemporaryIfNeeded(err)
		}
	}

	return domain.ExportResult{
		ExternalID: documentID,
		URL:        "https://docs.google.com/document/d/" + documentID + "/edit",
		Mode:       "google",
	}, nil
}

func (e *Exporter) execute(ctx context.Context, op string, fn func(context.Context) error) error {
	if e.executor == nil {
		return fn(ctx)
	}
	return e.executor.Execute(ctx, op, fn, classifyGoogleError)
}

func classifyGoogleError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		retryable := resilience.IsRetryableHTTPStatus(apiErr.Code)
		return resilience.ErrorClassification{Retryable: retryable, RecordFailure: retryable}
	}
	return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
}

func wrapTemporaryIfNeeded(err error) error {
	if resilience.IsCircuitOpen(err) || classifyGoogleError(err).Retryable {
		return domain.WrapError(domain.ErrTemporary, "google docs export", err)
	}
	return err
}
