package httpadapter

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/meeting-notes/internal/config"
	"github.com/kirillkom/meeting-notes/internal/core/domain"
	"github.com/kirillkom/meeting-notes/internal/core/ports"
	"github.com/kirillkom/meeting-notes/internal/observability/metrics"
)

const (
	serviceName         = "meeting-api"
	maxRequestBodyBytes = 16 << 20
)

// Services groups the collaborators served over HTTP. ExportQueue, STTHealth
// and Metrics are optional.
type Services struct {
	Participants ports.ParticipantRegistry
	Meetings     ports.MeetingLifecycle
	Bus          ports.EventBus
	Catalog      ports.MessageCatalog
	ExportQueue  ports.ExportQueue
	STTHealth    ports.HealthChecker
	Metrics      *metrics.HTTPServerMetrics
}

type Router struct {
	cfg      config.Config
	services Services
	now      func() time.Time
}

func NewRouter(cfg config.Config, services Services) *Router {
	return &Router{
		cfg:      cfg,
		services: services,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.HandleFunc("GET /v1/debug/stt-health", rt.sttHealth)

	mux.HandleFunc("GET /v1/participants", rt.listParticipants)
	mux.HandleFunc("POST /v1/participants", rt.registerParticipant)
	mux.HandleFunc("PUT /v1/participants/{participant_id}/voice-profile", rt.updateVoiceProfile)

	mux.HandleFunc("GET /v1/meetings", rt.listMeetings)
	mux.HandleFunc("POST /v1/meetings", rt.createMeeting)
	mux.HandleFunc("GET /v1/meetings/{meeting_id}", rt.getMeeting)
	mux.HandleFunc("POST /v1/meetings/{meeting_id}/chunks", rt.ingestChunk)
	mux.HandleFunc("POST /v1/meetings/{meeting_id}/finalize", rt.finalizeMeeting)
	mux.HandleFunc("POST /v1/meetings/{meeting_id}/export", rt.exportMeeting)
	mux.HandleFunc("GET /v1/meetings/{meeting_id}/live", rt.liveFeed)

	if rt.services.Metrics != nil {
		mux.Handle("GET /metrics", rt.services.Metrics.Handler())
	}

	var handler http.Handler = mux
	if rt.cfg.APIOpenAPIValidationEnabled {
		router, err := loadOpenAPIRouter()
		if err != nil {
			panic(err)
		}
		handler = openAPIValidationMiddleware(handler, router)
	}
	handler = backpressureMiddleware(handler, rt.cfg.APIBackpressureMaxInFlight, time.Duration(rt.cfg.APIBackpressureWaitMS)*time.Millisecond)
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
	if rt.services.Metrics != nil {
		handler = rt.services.Metrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) sttHealth(w http.ResponseWriter, r *http.Request) {
	if rt.services.STTHealth == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": "transcription backend is not configured"})
		return
	}
	if err := rt.services.STTHealth.HealthCheck(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) listParticipants(w http.ResponseWriter, r *http.Request) {
	participants, err := rt.services.Participants.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"participants": participants})
}

func (rt *Router) registerParticipant(w http.ResponseWriter, r *http.Request) {
	var input domain.CreateParticipantInput
	if !decodeJSON(w, r, &input) {
		return
	}
	participant, err := rt.services.Participants.Register(r.Context(), input)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, participant)
}

func (rt *Router) updateVoiceProfile(w http.ResponseWriter, r *http.Request) {
	var profile domain.VoiceProfile
	if !decodeJSON(w, r, &profile) {
		return
	}
	participant, err := rt.services.Participants.UpdateVoiceProfile(r.Context(), r.PathValue("participant_id"), profile)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, participant)
}

func (rt *Router) listMeetings(w http.ResponseWriter, r *http.Request) {
	meetings, err := rt.services.Meetings.ListMeetings(r.Context(), domain.MeetingQuery{
		Search: strings.TrimSpace(r.URL.Query().Get("search")),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"meetings": meetings})
}

func (rt *Router) createMeeting(w http.ResponseWriter, r *http.Request) {
	var input domain.CreateMeetingInput
	if !decodeJSON(w, r, &input) {
		return
	}
	meeting, err := rt.services.Meetings.CreateMeeting(r.Context(), input)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, meeting)
}

func (rt *Router) getMeeting(w http.ResponseWriter, r *http.Request) {
	details, err := rt.services.Meetings.GetMeetingDetails(r.Context(), r.PathValue("meeting_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

func (rt *Router) ingestChunk(w http.ResponseWriter, r *http.Request) {
	var chunk domain.ChunkInput
	if !decodeJSON(w, r, &chunk) {
		return
	}

	result, err := rt.services.Meetings.IngestChunk(r.Context(), r.PathValue("meeting_id"), chunk)
	if err != nil {
		if reason, ok := ignoredIngestReason(err); ok {
			if rt.services.Metrics != nil {
				rt.services.Metrics.RecordIngestIgnored(serviceName, reason)
			}
			writeJSON(w, http.StatusAccepted, map[string]any{"ignored": true, "reason": reason})
			return
		}
		writeError(w, r, err)
		return
	}

	if rt.services.Metrics != nil {
		rt.services.Metrics.RecordSegment(serviceName, string(result.Attribution))
	}
	writeJSON(w, http.StatusCreated, result)
}

func (rt *Router) finalizeMeeting(w http.ResponseWriter, r *http.Request) {
	result, err := rt.services.Meetings.FinalizeMeeting(r.Context(), r.PathValue("meeting_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if rt.services.Metrics != nil {
		status := ""
		if result.Export != nil {
			status = string(result.Export.Status)
			rt.services.Metrics.RecordExport(serviceName, status, result.Export.Retries)
		}
		rt.services.Metrics.RecordFinalize(serviceName, status)
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) exportMeeting(w http.ResponseWriter, r *http.Request) {
	meetingID := r.PathValue("meeting_id")

	async, _ := strconv.ParseBool(r.URL.Query().Get("async"))
	if async {
		rt.enqueueExport(w, r, meetingID)
		return
	}

	record, err := rt.services.Meetings.ExportToDocument(r.Context(), meetingID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if rt.services.Metrics != nil {
		rt.services.Metrics.RecordExport(serviceName, string(record.Status), record.Retries)
	}
	writeJSON(w, http.StatusOK, record)
}

func (rt *Router) enqueueExport(w http.ResponseWriter, r *http.Request, meetingID string) {
	if rt.services.ExportQueue == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "asynchronous export requires a message queue"})
		return
	}

	details, err := rt.services.Meetings.GetMeetingDetails(r.Context(), meetingID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if details.Artifacts == nil {
		writeError(w, r, domain.NewError(domain.ErrInvalidInput, "export meeting", "meeting has no artifacts yet; finalize it first"))
		return
	}

	job := domain.ExportJob{MeetingID: meetingID, RequestedAt: rt.now()}
	if err := rt.services.ExportQueue.PublishExportRequested(r.Context(), job); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"queued": true, "meeting_id": meetingID})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	body := http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "request body is too large"})
		case errors.Is(err, io.EOF):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "request body is required"})
		default:
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		}
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request_failed",
			"request_id", requestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
