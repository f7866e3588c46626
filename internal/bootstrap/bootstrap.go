package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	natsgo "github.com/nats-io/nats.go"

	"github.com/kirillkom/meeting-notes/internal/config"
	"github.com/kirillkom/meeting-notes/internal/core/artifacts"
	"github.com/kirillkom/meeting-notes/internal/core/ports"
	"github.com/kirillkom/meeting-notes/internal/core/speaker"
	"github.com/kirillkom/meeting-notes/internal/core/usecase"
	"github.com/kirillkom/meeting-notes/internal/infrastructure/export/googledocs"
	"github.com/kirillkom/meeting-notes/internal/infrastructure/export/localfs"
	"github.com/kirillkom/meeting-notes/internal/infrastructure/livebus"
	"github.com/kirillkom/meeting-notes/internal/infrastructure/queue/nats"
	"github.com/kirillkom/meeting-notes/internal/infrastructure/repository/memory"
	"github.com/kirillkom/meeting-notes/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/meeting-notes/internal/infrastructure/resilience"
	"github.com/kirillkom/meeting-notes/internal/infrastructure/stt/openai"
)

type App struct {
	Config config.Config

	Store        ports.MeetingStore
	Participants ports.ParticipantRegistry
	Meetings     ports.MeetingLifecycle
	Bus          ports.EventBus
	Catalog      ports.MessageCatalog
	STTHealth    ports.HealthChecker

	// ExportQueue is nil when NATS is not configured.
	ExportQueue ports.ExportQueue
	// SpeakerStore is set when attribution memory lives in process and needs sweeping.
	SpeakerStore *speaker.InMemoryStore

	relay   *nats.EventRelay
	closers []func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	app := &App{Config: cfg}
	if err := app.init(ctx); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

func (a *App) init(ctx context.Context) error {
	cfg := a.Config

	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	a.Store = store

	lexicons, err := artifacts.LoadLexicons(cfg.DefaultLanguage)
	if err != nil {
		return fmt.Errorf("load lexicons: %w", err)
	}
	a.Catalog = lexicons
	generator := artifacts.NewGenerator(lexicons)

	var conn *natsgo.Conn
	if cfg.NATSURL != "" {
		conn, err = nats.Connect(cfg.NATSURL, nats.Options{Name: "meeting-notes"})
		if err != nil {
			return fmt.Errorf("connect nats: %w", err)
		}
		a.closers = append(a.closers, func() { _ = conn.Drain() })
	}

	memoryStore, err := a.speakerMemory(ctx, conn)
	if err != nil {
		return err
	}

	localBus := livebus.New(cfg.LiveSubscriberBuffer)
	a.Bus = localBus
	if conn != nil {
		natsExecutor := resilience.NewExecutor(resilience.MessagingConfig())
		a.ExportQueue = nats.NewExportQueue(conn, cfg.NATSExportSubject, natsExecutor)
		a.relay = nats.NewEventRelay(conn, cfg.NATSEventsSubjectPrefix, localBus)
		a.Bus = a.relay
		a.closers = append(a.closers, func() { _ = a.relay.Close() })
	}

	sttClient := openai.NewClient(openai.ClientConfig{
		BaseURL:  cfg.OpenAIBaseURL,
		APIKey:   cfg.OpenAIAPIKey,
		Timeout:  time.Duration(cfg.OpenAISTTTimeoutSeconds) * time.Second,
		Executor: resilience.NewExecutor(resilience.TranscriptionConfig()),
	})
	stt := openai.NewService(sttClient, cfg.STTModels(), cfg.STTMockMode, lexicons)
	a.STTHealth = stt

	exporter, err := newExporter(ctx, cfg, generator)
	if err != nil {
		return err
	}

	a.Participants = usecase.NewParticipantUseCase(store)
	a.Meetings = usecase.NewMeetingUseCase(
		store,
		stt,
		speaker.NewMapper(memoryStore, 0),
		generator,
		lexicons,
		exporter,
		a.Bus,
		usecase.MeetingSettings{
			DefaultLanguage:      cfg.DefaultLanguage,
			ExportMaxAttempts:    cfg.ExportMaxAttempts,
			ExportBackoff:        time.Duration(cfg.ExportRetryBaseDelayMS) * time.Millisecond,
			ExportAttemptTimeout: time.Duration(cfg.ExportAttemptTimeoutSec) * time.Second,
			FinalizeTimeout:      time.Duration(cfg.FinalizeTimeoutSeconds) * time.Second,
		},
	)

	slog.Info("bootstrap_ready",
		"store", cfg.StoreBackend,
		"nats", conn != nil,
		"speaker_memory", cfg.SpeakerMemoryBackend,
		"stt_mode", stt.Mode(),
		"export_provider", exporter.Provider(),
	)
	return nil
}

func (a *App) openStore(ctx context.Context) (ports.MeetingStore, error) {
	switch a.Config.StoreBackend {
	case "", "memory":
		return memory.New(), nil
	case "postgres":
		db, err := postgres.OpenDB(a.Config.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		a.closers = append(a.closers, func() { _ = db.Close() })
		store := postgres.NewStore(db)
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q", a.Config.StoreBackend)
	}
}

func (a *App) speakerMemory(ctx context.Context, conn *natsgo.Conn) (ports.SpeakerMemory, error) {
	switch a.Config.SpeakerMemoryBackend {
	case "", "memory":
		a.SpeakerStore = speaker.NewInMemoryStore()
		return a.SpeakerStore, nil
	case "nats":
		if conn == nil {
			return nil, fmt.Errorf("SPEAKER_MEMORY_BACKEND=nats requires NATS_URL")
		}
		ttl := time.Duration(a.Config.SpeakerMemoryTTLMinutes) * time.Minute
		kv, err := nats.NewSpeakerMemory(ctx, conn, a.Config.SpeakerMemoryBucket, ttl, resilience.NewExecutor(resilience.MessagingConfig()))
		if err != nil {
			return nil, fmt.Errorf("init speaker memory: %w", err)
		}
		return kv, nil
	default:
		return nil, fmt.Errorf("unknown SPEAKER_MEMORY_BACKEND %q", a.Config.SpeakerMemoryBackend)
	}
}

func newExporter(ctx context.Context, cfg config.Config, renderer ports.DocumentRenderer) (ports.DocumentExporter, error) {
	switch cfg.ExportProvider {
	case "local":
		return localfs.New(cfg.ExportLocalDir, renderer, localfs.ModeLocal)
	case "", "google_docs":
		google := googledocs.Config{
			ServiceAccountEmail: cfg.GoogleServiceAccountEmail,
			PrivateKey:          cfg.GooglePrivateKey,
			FolderID:            cfg.GoogleDriveFolderID,
		}
		if cfg.GoogleDocsMockMode || !google.Configured() {
			return localfs.New(cfg.ExportLocalDir, renderer, localfs.ModeMock)
		}
		return googledocs.New(ctx, google, renderer, resilience.NewExecutor(resilience.ExportConfig()))
	default:
		return nil, fmt.Errorf("unknown EXPORT_PROVIDER %q", cfg.ExportProvider)
	}
}

// StartLiveRelay republishes events from other instances on the local bus.
// It is a no-op without NATS.
func (a *App) StartLiveRelay(ctx context.Context) error {
	if a.relay == nil {
		return nil
	}
	return a.relay.Start(ctx)
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
