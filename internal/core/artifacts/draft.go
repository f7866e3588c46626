package artifacts

import (
	"fmt"
	"strings"
	"time"

	"github.com/kirillkom/meeting-notes/internal/core/domain"
)

const timestampLayout = "2006-01-02 15:04 MST"

func renderDraft(lex *Lexicon, meeting domain.Meeting, draft domain.ArtifactDraft) string {
	labels := lex.labels
	var b strings.Builder

	fmt.Fprintf(&b, "# %s: %s\n\n", labels.Title, meeting.Title)
	fmt.Fprintf(&b, "- %s: %s\n", labels.Started, formatTime(meeting.StartedAt))
	fmt.Fprintf(&b, "- %s: %s\n", labels.Language, meeting.Language)

	writeSection(&b, labels.Summary, splitLines(draft.Summary), lex.placeholders.Summary, false)
	writeSection(&b, labels.Topics, draft.KeyTopics, lex.placeholders.Topics, true)
	writeSection(&b, labels.Decisions, itemTexts(draft.Decisions), lex.placeholders.Decisions, true)
	writeSection(&b, labels.Actions, actionLines(lex, draft.ActionItems), lex.placeholders.Actions, true)
	writeSection(&b, labels.Questions, itemTexts(draft.OpenQuestions), lex.placeholders.Questions, true)
	writeSection(&b, labels.Risks, itemTexts(draft.Risks), lex.placeholders.Risks, true)

	return strings.TrimRight(b.String(), "\n") + "\n"
}

func writeSection(b *strings.Builder, heading string, lines []string, placeholder string, bullet bool) {
	fmt.Fprintf(b, "\n## %s\n", heading)
	if len(lines) == 0 {
		fmt.Fprintf(b, "- %s\n", placeholder)
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

func actionLines(lex *Lexicon, items []domain.ActionItem) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		line := item.Text
		if item.Owner != "" {
			line += fmt.Sprintf(" | %s: %s", lex.labels.Owner, item.Owner)
		}
		if item.DueDate != "" {
			line += fmt.Sprintf(" | %s: %s", lex.labels.Due, item.DueDate)
		}
		out = append(out, line)
	}
	return out
}

func itemTexts(items []domain.Item) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.Text)
	}
	return out
}

func splitLines(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}
