package httpadapter

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/kirillkom/meeting-notes/internal/core/domain"
)

const defaultHeartbeat = 15 * time.Second

// liveFeed streams meeting events as server-sent events until the client leaves.
func (rt *Router) liveFeed(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming is not supported by response writer"})
		return
	}
	ctx := r.Context()
	meetingID := r.PathValue("meeting_id")

	buffer := rt.cfg.LiveSubscriberBuffer
	if buffer <= 0 {
		buffer = 64
	}
	events := make(chan domain.LiveEvent, buffer)
	// Subscribe before the snapshot so nothing published in between is lost.
	unsubscribe := rt.services.Bus.Subscribe(meetingID, func(event domain.LiveEvent) {
		select {
		case events <- event:
		case <-ctx.Done():
		}
	})
	defer unsubscribe()

	details, err := rt.services.Meetings.GetMeetingDetails(ctx, meetingID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if rt.services.Metrics != nil {
		rt.services.Metrics.LiveSubscriberOpened()
		defer rt.services.Metrics.LiveSubscriberClosed()
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	message := ""
	if rt.services.Catalog != nil {
		message = rt.services.Catalog.Messages(details.Meeting.Language).LiveConnected
	}
	if err := writeEvent(w, domain.StatusEvent(meetingID, details.Meeting.Status, message, rt.now())); err != nil {
		return
	}
	replayed := make(map[string]struct{}, len(details.Segments))
	for _, segment := range details.Segments {
		replayed[segment.ID] = struct{}{}
		if err := writeEvent(w, domain.SegmentEvent(segment, segment.CreatedAt)); err != nil {
			return
		}
	}
	flusher.Flush()

	interval := time.Duration(rt.cfg.SSEHeartbeatSeconds) * time.Second
	if interval <= 0 {
		interval = defaultHeartbeat
	}
	heartbeat := time.NewTicker(interval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-events:
			if event.Type == domain.EventSegment && event.Segment != nil {
				if _, seen := replayed[event.Segment.ID]; seen {
					continue
				}
			}
			if err := writeEvent(w, event); err != nil {
				slog.Debug("live_stream_closed", "meeting_id", meetingID, "error", err)
				return
			}
			flusher.Flush()
		case <-heartbeat.C:
			if err := writeEvent(w, domain.HeartbeatEvent(meetingID, rt.now())); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, event domain.LiveEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", payload)
	return err
}
