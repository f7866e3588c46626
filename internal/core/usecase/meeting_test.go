package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kirillkom/meeting-notes/internal/core/artifacts"
	"github.com/kirillkom/meeting-notes/internal/core/domain"
	"github.com/kirillkom/meeting-notes/internal/core/speaker"
	"github.com/kirillkom/meeting-notes/internal/infrastructure/repository/memory"
)

type transcriberFake struct {
	confidence float64
}

func (f *transcriberFake) Transcribe(_ context.Context, req domain.TranscriptionRequest) (domain.TranscriptionResult, error) {
	confidence := f.confidence
	if confidence == 0 {
		confidence = 0.99
	}
	return domain.TranscriptionResult{Text: req.Text, Confidence: confidence, Provider: "text"}, nil
}

type exporterFake struct {
	mu        sync.Mutex
	failFirst int
	calls     int
}

func (f *exporterFake) Provider() string { return "fake" }

func (f *exporterFake) Export(ctx context.Context, input domain.ExportInput) (domain.ExportResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	if err := ctx.Err(); err != nil {
		return domain.ExportResult{}, err
	}
	if f.failFirst < 0 || f.calls <= f.failFirst {
		return domain.ExportResult{}, errors.New("docs api unavailable")
	}
	return domain.ExportResult{
		ExternalID: "doc-" + input.Meeting.ID,
		URL:        "https://docs.example/" + input.Meeting.ID,
		Mode:       "mock",
	}, nil
}

func (f *exporterFake) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type busRecorder struct {
	mu        sync.Mutex
	events    []domain.LiveEvent
	onPublish func(domain.LiveEvent)
}

func (b *busRecorder) Publish(_ string, event domain.LiveEvent) {
	b.mu.Lock()
	b.events = append(b.events, event)
	hook := b.onPublish
	b.mu.Unlock()
	if hook != nil {
		hook(event)
	}
}

func (b *busRecorder) Subscribe(string, func(domain.LiveEvent)) func() { return func() {} }

func (b *busRecorder) statuses() []domain.LiveEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []domain.LiveEvent
	for _, e := range b.events {
		if e.Type == domain.EventStatus {
			out = append(out, e)
		}
	}
	return out
}

type meetingFixture struct {
	uc       *MeetingUseCase
	store    *memory.Store
	bus      *busRecorder
	exporter *exporterFake
	sleeps   []time.Duration
	anna     *domain.Participant
	bjorn    *domain.Participant
}

func newMeetingFixture(t *testing.T, exporter *exporterFake) *meetingFixture {
	t.Helper()

	store := memory.New()
	lexicons := artifacts.MustLoadLexicons("sv")
	bus := &busRecorder{}
	f := &meetingFixture{store: store, bus: bus, exporter: exporter}
	f.uc = NewMeetingUseCase(
		store,
		&transcriberFake{},
		speaker.NewMapper(speaker.NewInMemoryStore(), 0),
		artifacts.NewGenerator(lexicons),
		lexicons,
		exporter,
		bus,
		MeetingSettings{},
	)
	f.uc.sleep = func(_ context.Context, d time.Duration) error {
		f.sleeps = append(f.sleeps, d)
		return nil
	}

	participants := NewParticipantUseCase(store)
	var err error
	if f.anna, err = participants.Register(context.Background(), domain.CreateParticipantInput{Name: "Anna"}); err != nil {
		t.Fatalf("Register(Anna) error = %v", err)
	}
	if f.bjorn, err = participants.Register(context.Background(), domain.CreateParticipantInput{Name: "Björn"}); err != nil {
		t.Fatalf("Register(Björn) error = %v", err)
	}
	return f
}

func (f *meetingFixture) startMeeting(t *testing.T) *domain.Meeting {
	t.Helper()
	meeting, err := f.uc.CreateMeeting(context.Background(), domain.CreateMeetingInput{
		Title:          "Planering",
		ParticipantIDs: []string{f.anna.ID, f.bjorn.ID},
	})
	if err != nil {
		t.Fatalf("CreateMeeting() error = %v", err)
	}
	return meeting
}

func (f *meetingFixture) ingest(t *testing.T, meetingID, text string) *domain.IngestResult {
	t.Helper()
	result, err := f.uc.IngestChunk(context.Background(), meetingID, domain.ChunkInput{Text: text})
	if err != nil {
		t.Fatalf("IngestChunk(%q) error = %v", text, err)
	}
	return result
}

func TestMeetingLifecycleEndToEnd(t *testing.T) {
	f := newMeetingFixture(t, &exporterFake{})
	meeting := f.startMeeting(t)
	if meeting.Status != domain.MeetingStatusLive {
		t.Fatalf("expected live meeting, got %s", meeting.Status)
	}

	first := f.ingest(t, meeting.ID, "Anna: Vi beslutar att lansera i april.")
	second := f.ingest(t, meeting.ID, "Björn: Jag ska skicka offerten senast 2026-03-15.")
	if first.Segment.ParticipantID != f.anna.ID || first.Attribution != domain.AttributionNamePrefix {
		t.Fatalf("expected Anna by name prefix, got %+v / %s", first.Segment, first.Attribution)
	}
	if second.Segment.ParticipantID != f.bjorn.ID {
		t.Fatalf("expected Björn, got %q", second.Segment.ParticipantID)
	}

	result, err := f.uc.FinalizeMeeting(context.Background(), meeting.ID)
	if err != nil {
		t.Fatalf("FinalizeMeeting() error = %v", err)
	}
	if result.Meeting.Status != domain.MeetingStatusCompleted {
		t.Fatalf("expected completed, got %s", result.Meeting.Status)
	}
	if result.Meeting.EndedAt == nil {
		t.Fatalf("expected ended_at to be set")
	}
	if result.Meeting.DocURL != "https://docs.example/"+meeting.ID {
		t.Fatalf("unexpected doc url %q", result.Meeting.DocURL)
	}
	if len(result.Artifacts.Decisions) != 1 {
		t.Fatalf("expected one decision, got %+v", result.Artifacts.Decisions)
	}
	if len(result.Artifacts.ActionItems) != 1 || result.Artifacts.ActionItems[0].DueDate != "2026-03-15" {
		t.Fatalf("unexpected action items %+v", result.Artifacts.ActionItems)
	}
	if result.Export == nil || result.Export.Status != domain.ExportStatusSuccess || result.Export.Retries != 0 {
		t.Fatalf("unexpected export record %+v", result.Export)
	}

	details, err := f.uc.GetMeetingDetails(context.Background(), meeting.ID)
	if err != nil {
		t.Fatalf("GetMeetingDetails() error = %v", err)
	}
	if len(details.Segments) != 2 || details.Artifacts == nil || len(details.Exports) != 1 {
		t.Fatalf("unexpected details %+v", details)
	}

	statuses := f.bus.statuses()
	last := statuses[len(statuses)-1]
	if last.Status != domain.MeetingStatusCompleted || last.Message != "Mötet är klart och exporterat." {
		t.Fatalf("unexpected final status event %+v", last)
	}
}

func TestFinalizeExportFailureKeepsMeetingCompleted(t *testing.T) {
	exporter := &exporterFake{failFirst: -1}
	f := newMeetingFixture(t, exporter)
	meeting := f.startMeeting(t)
	f.ingest(t, meeting.ID, "Anna: Risken är att leveransen blir sen.")

	result, err := f.uc.FinalizeMeeting(context.Background(), meeting.ID)
	if err != nil {
		t.Fatalf("FinalizeMeeting() error = %v", err)
	}
	if exporter.callCount() != 3 {
		t.Fatalf("expected 3 export attempts, got %d", exporter.callCount())
	}
	if result.Export.Status != domain.ExportStatusFailed || result.Export.Retries != 3 {
		t.Fatalf("unexpected export record %+v", result.Export)
	}
	if result.Meeting.Status != domain.MeetingStatusCompleted {
		t.Fatalf("expected completed meeting, got %s", result.Meeting.Status)
	}
	if result.Meeting.ErrorMessage != "Exporten misslyckades efter flera försök." {
		t.Fatalf("unexpected meeting error message %q", result.Meeting.ErrorMessage)
	}
	if len(f.sleeps) != 2 || f.sleeps[0] != 300*time.Millisecond || f.sleeps[1] != 600*time.Millisecond {
		t.Fatalf("unexpected backoff %v", f.sleeps)
	}

	details, err := f.uc.GetMeetingDetails(context.Background(), meeting.ID)
	if err != nil {
		t.Fatalf("GetMeetingDetails() error = %v", err)
	}
	if len(details.Exports) != 1 {
		t.Fatalf("expected a single export record across retries, got %d", len(details.Exports))
	}
}

func TestExportToDocumentRetriesOnSameRecord(t *testing.T) {
	exporter := &exporterFake{failFirst: -1}
	f := newMeetingFixture(t, exporter)
	meeting := f.startMeeting(t)
	f.ingest(t, meeting.ID, "Anna: Vi beslutar att köra.")
	if _, err := f.uc.FinalizeMeeting(context.Background(), meeting.ID); err != nil {
		t.Fatalf("FinalizeMeeting() error = %v", err)
	}

	exporter.mu.Lock()
	exporter.failFirst = exporter.calls + 1
	exporter.mu.Unlock()

	record, err := f.uc.ExportToDocument(context.Background(), meeting.ID)
	if err != nil {
		t.Fatalf("ExportToDocument() error = %v", err)
	}
	if record.Status != domain.ExportStatusSuccess || record.Retries != 1 {
		t.Fatalf("unexpected export record %+v", record)
	}

	details, err := f.uc.GetMeetingDetails(context.Background(), meeting.ID)
	if err != nil {
		t.Fatalf("GetMeetingDetails() error = %v", err)
	}
	if details.Meeting.ErrorMessage != "" || details.Meeting.DocURL == "" {
		t.Fatalf("expected doc url and cleared error, got %+v", details.Meeting)
	}
	if len(details.Exports) != 2 || details.Exports[0].ID != record.ID {
		t.Fatalf("expected newest export first, got %+v", details.Exports)
	}
}

func TestExportToDocumentRequiresArtifacts(t *testing.T) {
	f := newMeetingFixture(t, &exporterFake{})
	meeting := f.startMeeting(t)

	_, err := f.uc.ExportToDocument(context.Background(), meeting.ID)
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestIngestAfterFinalizeIsNotLive(t *testing.T) {
	f := newMeetingFixture(t, &exporterFake{})
	meeting := f.startMeeting(t)
	f.ingest(t, meeting.ID, "Anna: hej allihop")
	if _, err := f.uc.FinalizeMeeting(context.Background(), meeting.ID); err != nil {
		t.Fatalf("FinalizeMeeting() error = %v", err)
	}

	_, err := f.uc.IngestChunk(context.Background(), meeting.ID, domain.ChunkInput{Text: "Björn: en sak till"})
	if !errors.Is(err, domain.ErrMeetingNotLive) {
		t.Fatalf("expected meeting-not-live, got %v", err)
	}
	segments, _ := f.store.ListSegments(context.Background(), meeting.ID)
	if len(segments) != 1 {
		t.Fatalf("expected transcript to stay frozen, got %d segments", len(segments))
	}
}

func TestIngestRejectsInvalidChunks(t *testing.T) {
	f := newMeetingFixture(t, &exporterFake{})
	meeting := f.startMeeting(t)

	cases := []domain.ChunkInput{
		{},
		{AudioBase64: "abc"},
		{AudioBase64: "not-base64-at-all!!"},
		{Text: strings.Repeat("a", domain.MaxChunkTextLen+1)},
	}
	for i, chunk := range cases {
		_, err := f.uc.IngestChunk(context.Background(), meeting.ID, chunk)
		if !errors.Is(err, domain.ErrInvalidInput) {
			t.Fatalf("case %d: expected invalid input, got %v", i, err)
		}
	}

	_, err := f.uc.IngestChunk(context.Background(), "missing", domain.ChunkInput{Text: "hej"})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

type emptyTranscriber struct{}

func (emptyTranscriber) Transcribe(context.Context, domain.TranscriptionRequest) (domain.TranscriptionResult, error) {
	return domain.TranscriptionResult{Text: "  ", Confidence: 0.9, Provider: "openai:test"}, nil
}

func TestIngestEmptyTranscriptIsNoSpeech(t *testing.T) {
	f := newMeetingFixture(t, &exporterFake{})
	f.uc.transcriber = emptyTranscriber{}
	meeting := f.startMeeting(t)

	_, err := f.uc.IngestChunk(context.Background(), meeting.ID, domain.ChunkInput{AudioBase64: "UklGRiQAAABXQVZFZm10IBAAAAAB"})
	if !errors.Is(err, domain.ErrNoSpeech) {
		t.Fatalf("expected no speech, got %v", err)
	}
	segments, _ := f.store.ListSegments(context.Background(), meeting.ID)
	if len(segments) != 0 {
		t.Fatalf("expected no stored segments, got %d", len(segments))
	}
}

func TestIngestClampsConfidenceAndFlagsLowQuality(t *testing.T) {
	f := newMeetingFixture(t, &exporterFake{})
	meeting := f.startMeeting(t)

	high := 1.7
	result, err := f.uc.IngestChunk(context.Background(), meeting.ID, domain.ChunkInput{Text: "Anna: hej", Confidence: &high})
	if err != nil {
		t.Fatalf("IngestChunk() error = %v", err)
	}
	if result.Segment.Confidence != 1 {
		t.Fatalf("expected confidence clamped to 1, got %v", result.Segment.Confidence)
	}
	if len(f.bus.statuses()) != 0 {
		t.Fatalf("expected no advisory for high confidence")
	}

	low := -0.2
	result, err = f.uc.IngestChunk(context.Background(), meeting.ID, domain.ChunkInput{Text: "Anna: hallå", Confidence: &low})
	if err != nil {
		t.Fatalf("IngestChunk() error = %v", err)
	}
	if result.Segment.Confidence != 0 {
		t.Fatalf("expected confidence clamped to 0, got %v", result.Segment.Confidence)
	}
	statuses := f.bus.statuses()
	if len(statuses) != 1 || statuses[0].Status != domain.MeetingStatusLive || statuses[0].Message != "Låg ljudkvalitet upptäcktes i senaste segmentet." {
		t.Fatalf("unexpected advisory events %+v", statuses)
	}
}

func TestConcurrentFinalizeHasSingleWinner(t *testing.T) {
	f := newMeetingFixture(t, &exporterFake{})
	meeting := f.startMeeting(t)
	f.ingest(t, meeting.ID, "Anna: Vi beslutar att köra.")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.uc.FinalizeMeeting(context.Background(), meeting.ID)
		}(i)
	}
	wg.Wait()

	var wins, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, domain.ErrInvalidState):
			conflicts++
		default:
			t.Fatalf("unexpected error %v", err)
		}
	}
	if wins != 1 || conflicts != 1 {
		t.Fatalf("expected one winner and one conflict, got %d/%d", wins, conflicts)
	}
	if f.exporter.callCount() != 1 {
		t.Fatalf("expected a single export, got %d", f.exporter.callCount())
	}
	if f.uc.locks.size() != 0 {
		t.Fatalf("expected lock table to drain, got %d", f.uc.locks.size())
	}
}

func TestIngestDuringFinalizeNeverLosesAcceptedSegments(t *testing.T) {
	f := newMeetingFixture(t, &exporterFake{})
	meeting := f.startMeeting(t)

	const writers = 20
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.uc.IngestChunk(context.Background(), meeting.ID, domain.ChunkInput{Text: fmt.Sprintf("Anna: punkt %d", i)})
			switch {
			case err == nil:
				mu.Lock()
				accepted++
				mu.Unlock()
			case errors.Is(err, domain.ErrMeetingNotLive):
			default:
				t.Errorf("unexpected ingest error %v", err)
			}
		}(i)
	}
	if _, err := f.uc.FinalizeMeeting(context.Background(), meeting.ID); err != nil {
		t.Fatalf("FinalizeMeeting() error = %v", err)
	}
	wg.Wait()

	segments, _ := f.store.ListSegments(context.Background(), meeting.ID)
	if len(segments) != accepted {
		t.Fatalf("expected %d stored segments, got %d", accepted, len(segments))
	}
}

func TestCreateMeetingValidation(t *testing.T) {
	f := newMeetingFixture(t, &exporterFake{})

	cases := []domain.CreateMeetingInput{
		{},
		{ParticipantIDs: []string{"a", "b", "c", "d", "e", "f"}},
		{ParticipantIDs: []string{f.anna.ID, "ghost"}},
		{ParticipantIDs: []string{f.anna.ID}, Language: "x"},
		{ParticipantIDs: []string{f.anna.ID}, Title: strings.Repeat("t", domain.MaxMeetingTitleLen+1)},
	}
	for i, input := range cases {
		_, err := f.uc.CreateMeeting(context.Background(), input)
		if !errors.Is(err, domain.ErrInvalidInput) {
			t.Fatalf("case %d: expected invalid input, got %v", i, err)
		}
	}

	_, err := f.uc.CreateMeeting(context.Background(), domain.CreateMeetingInput{ParticipantIDs: []string{f.anna.ID, "ghost"}})
	if err == nil || !strings.Contains(err.Error(), "ghost") {
		t.Fatalf("expected unknown id in error, got %v", err)
	}
}

func TestCreateMeetingDefaults(t *testing.T) {
	f := newMeetingFixture(t, &exporterFake{})
	f.uc.now = func() time.Time { return time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC) }

	meeting, err := f.uc.CreateMeeting(context.Background(), domain.CreateMeetingInput{
		ParticipantIDs: []string{f.anna.ID, f.anna.ID, " " + f.bjorn.ID},
	})
	if err != nil {
		t.Fatalf("CreateMeeting() error = %v", err)
	}
	if meeting.Title != "Möte 2026-03-02" || meeting.Language != "sv" {
		t.Fatalf("unexpected defaults %q / %q", meeting.Title, meeting.Language)
	}
	if len(meeting.ParticipantIDs) != 2 {
		t.Fatalf("expected deduplicated participants, got %v", meeting.ParticipantIDs)
	}
}

func TestFinalizeUnknownMeeting(t *testing.T) {
	f := newMeetingFixture(t, &exporterFake{})

	_, err := f.uc.FinalizeMeeting(context.Background(), "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

// contextStore fails like a context-aware database once ctx is done.
type contextStore struct {
	*memory.Store
	listErr error
}

func (s *contextStore) ListSegments(ctx context.Context, meetingID string) ([]domain.TranscriptSegment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.Store.ListSegments(ctx, meetingID)
}

func (s *contextStore) UpsertArtifacts(ctx context.Context, artifacts *domain.MeetingArtifacts) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.Store.UpsertArtifacts(ctx, artifacts)
}

func (s *contextStore) UpdateMeetingStatus(ctx context.Context, update domain.MeetingStatusUpdate) (*domain.Meeting, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.Store.UpdateMeetingStatus(ctx, update)
}

func (s *contextStore) CreateExportRecord(ctx context.Context, record *domain.ExportRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.Store.CreateExportRecord(ctx, record)
}

func (s *contextStore) UpdateExportRecord(ctx context.Context, record *domain.ExportRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.Store.UpdateExportRecord(ctx, record)
}

func TestFinalizeCompletesWhenCallerGoesAway(t *testing.T) {
	exporter := &exporterFake{}
	f := newMeetingFixture(t, exporter)
	f.uc.repo = &contextStore{Store: f.store}
	meeting := f.startMeeting(t)
	f.ingest(t, meeting.ID, "Anna: Beslut: vi kör på den nya planen.")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.bus.onPublish = func(event domain.LiveEvent) {
		if event.Type == domain.EventStatus && event.Status == domain.MeetingStatusProcessing {
			cancel()
		}
	}

	result, err := f.uc.FinalizeMeeting(ctx, meeting.ID)
	if err != nil {
		t.Fatalf("FinalizeMeeting() error = %v", err)
	}
	if result.Meeting.Status != domain.MeetingStatusCompleted || result.Meeting.EndedAt == nil {
		t.Fatalf("expected completed meeting with end time, got %+v", result.Meeting)
	}
	if len(result.Artifacts.Decisions) != 1 || result.Artifacts.ProtocolDraft == "" {
		t.Fatalf("expected artifacts to be derived, got %+v", result.Artifacts)
	}
	if result.Export.Status != domain.ExportStatusSuccess || exporter.callCount() != 1 {
		t.Fatalf("expected a successful export, got %+v after %d calls", result.Export, exporter.callCount())
	}

	stored, err := f.store.GetMeeting(context.Background(), meeting.ID)
	if err != nil {
		t.Fatalf("GetMeeting() error = %v", err)
	}
	if stored.Status != domain.MeetingStatusCompleted {
		t.Fatalf("expected stored status completed, got %s", stored.Status)
	}
}

type cancellingExporter struct {
	cancel context.CancelFunc
	calls  int
}

func (e *cancellingExporter) Provider() string { return "fake" }

func (e *cancellingExporter) Export(ctx context.Context, _ domain.ExportInput) (domain.ExportResult, error) {
	e.calls++
	e.cancel()
	if err := ctx.Err(); err != nil {
		return domain.ExportResult{}, err
	}
	return domain.ExportResult{}, errors.New("docs api unavailable")
}

func TestExportKeepsRetryingAfterCallerGoesAway(t *testing.T) {
	f := newMeetingFixture(t, &exporterFake{})
	f.uc.repo = &contextStore{Store: f.store}
	meeting := f.startMeeting(t)
	f.ingest(t, meeting.ID, "Anna: Vi ses nästa vecka.")
	if _, err := f.uc.FinalizeMeeting(context.Background(), meeting.ID); err != nil {
		t.Fatalf("FinalizeMeeting() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	exporter := &cancellingExporter{cancel: cancel}
	f.uc.exporter = exporter
	f.uc.sleep = func(ctx context.Context, d time.Duration) error {
		f.sleeps = append(f.sleeps, d)
		return ctx.Err()
	}
	f.sleeps = nil

	record, err := f.uc.ExportToDocument(ctx, meeting.ID)
	if err != nil {
		t.Fatalf("ExportToDocument() error = %v", err)
	}
	if exporter.calls != 3 {
		t.Fatalf("expected 3 export attempts, got %d", exporter.calls)
	}
	if record.Status != domain.ExportStatusFailed || record.Retries != 3 {
		t.Fatalf("unexpected export record %+v", record)
	}
	if len(f.sleeps) != 2 {
		t.Fatalf("expected backoff between every attempt, got %v", f.sleeps)
	}
}

func TestFinalizeFailureStoresLocalizedNotice(t *testing.T) {
	f := newMeetingFixture(t, &exporterFake{})
	f.uc.repo = &contextStore{Store: f.store, listErr: errors.New("connection reset by peer")}
	meeting := f.startMeeting(t)

	if _, err := f.uc.FinalizeMeeting(context.Background(), meeting.ID); err == nil {
		t.Fatal("expected finalize to fail")
	}

	stored, err := f.store.GetMeeting(context.Background(), meeting.ID)
	if err != nil {
		t.Fatalf("GetMeeting() error = %v", err)
	}
	const notice = "Mötet kunde inte efterbearbetas. Se tjänstens loggar."
	if stored.Status != domain.MeetingStatusFailed || stored.ErrorMessage != notice {
		t.Fatalf("expected failed meeting with localized notice, got %s %q", stored.Status, stored.ErrorMessage)
	}
	statuses := f.bus.statuses()
	last := statuses[len(statuses)-1]
	if last.Status != domain.MeetingStatusFailed || last.Message != notice {
		t.Fatalf("unexpected failure event %+v", last)
	}
}
