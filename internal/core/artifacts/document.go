package artifacts

import (
	"fmt"
	"strings"

	"github.com/kirillkom/meeting-notes/internal/core/domain"
)

// RenderDocument renders the plain-text body pushed to document exporters.
func (g *Generator) RenderDocument(input domain.ExportInput) string {
	lex := g.lexicons.For(input.Meeting.Language)
	labels := lex.labels
	notes := input.Artifacts

	participants := labels.NoParticipants
	if len(input.Participants) > 0 {
		names := make([]string, 0, len(input.Participants))
		for _, p := range input.Participants {
			names = append(names, p.Name)
		}
		participants = strings.Join(names, ", ")
	}
	ended := labels.Ongoing
	if input.Meeting.EndedAt != nil {
		ended = formatTime(*input.Meeting.EndedAt)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", input.Meeting.Title)
	fmt.Fprintf(&b, "%s: %s\n", labels.Started, formatTime(input.Meeting.StartedAt))
	fmt.Fprintf(&b, "%s: %s\n", labels.Ended, ended)
	fmt.Fprintf(&b, "%s: %s\n", labels.Participants, participants)

	writeBlock(&b, labels.Summary, splitLines(notes.Summary), lex.placeholders.Summary, false)
	writeBlock(&b, labels.Topics, notes.KeyTopics, lex.placeholders.Topics, true)
	writeBlock(&b, labels.Decisions, itemTexts(notes.Decisions), lex.placeholders.Decisions, true)
	writeBlock(&b, labels.Actions, actionLines(lex, notes.ActionItems), lex.placeholders.Actions, true)
	writeBlock(&b, labels.Questions, itemTexts(notes.OpenQuestions), lex.placeholders.Questions, true)
	writeBlock(&b, labels.Risks, itemTexts(notes.Risks), lex.placeholders.Risks, true)
	writeBlock(&b, labels.Title, splitLines(strings.TrimRight(notes.ProtocolDraft, "\n")), "", false)
	writeBlock(&b, labels.Transcript, transcriptLines(input.Segments), "", false)

	return strings.TrimRight(b.String(), "\n") + "\n"
}

func writeBlock(b *strings.Builder, heading string, lines []string, placeholder string, bullet bool) {
	fmt.Fprintf(b, "\n=== %s ===\n", heading)
	if len(lines) == 0 {
		if placeholder != "" {
			fmt.Fprintf(b, "- %s\n", placeholder)
		}
		return
	}
	for _, line := range lines {
		if bullet {
			line = "- " + line
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
}

func transcriptLines(segments []domain.TranscriptSegment) []string {
	out := make([]string, 0, len(segments))
	for _, segment := range segments {
		out = append(out, fmt.Sprintf("[%04ds] %s: %s", segment.TimestampMs/1000, segment.SpeakerLabel, normalizeText(segment.Text)))
	}
	return out
}
