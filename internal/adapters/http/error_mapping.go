package httpadapter

import (
	"errors"
	"net/http"

	"github.com/kirillkom/meeting-notes/internal/core/domain"
)

const (
	ignoredMeetingNotLive  = "meeting-not-live"
	ignoredEmptyTranscript = "empty-transcript"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case domain.IsKind(err, domain.ErrNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrInvalidState):
		return http.StatusConflict
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ignoredIngestReason reports chunk outcomes that are acknowledged instead of failed.
func ignoredIngestReason(err error) (string, bool) {
	switch {
	case errors.Is(err, domain.ErrMeetingNotLive):
		return ignoredMeetingNotLive, true
	case errors.Is(err, domain.ErrNoSpeech):
		return ignoredEmptyTranscript, true
	default:
		return "", false
	}
}
