package artifacts

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/meeting-notes/internal/core/domain"
)

const (
	maxKeyTopics      = 8
	maxSummaryLines   = 5
	minSummaryLen     = 30
	minTopicTokenLen  = 4
	topicPunctuation  = `[^\p{L}\p{N}\s-]`
	isoDatePattern    = `(?:^|[^\p{N}])(\d{4}-\d{2}-\d{2})(?:[^\p{N}]|$)`
	slashDatePattern  = `(?:^|[^\p{N}/])(\d{1,2}/\d{1,2}(?:/\d{2,4})?)(?:[^\p{N}/]|$)`
	whitespacePattern = `\s+`
)

var (
	topicPunctuationRe = regexp.MustCompile(topicPunctuation)
	isoDateRe          = regexp.MustCompile(isoDatePattern)
	slashDateRe        = regexp.MustCompile(slashDatePattern)
	whitespaceRe       = regexp.MustCompile(whitespacePattern)
)

// Generator derives meeting notes from a finished transcript. It performs no I/O
// and returns equal output for equal input order.
type Generator struct {
	lexicons *Lexicons
}

func NewGenerator(lexicons *Lexicons) *Generator {
	return &Generator{lexicons: lexicons}
}

func (g *Generator) Generate(
	meeting domain.Meeting,
	participants []domain.Participant,
	segments []domain.TranscriptSegment,
) domain.ArtifactDraft {
	lex := g.lexicons.For(meeting.Language)

	decisions := newItemSet("dec")
	actions := newItemSet("act")
	questions := newItemSet("q")
	risks := newItemSet("risk")
	type actionMeta struct{ owner, due string }
	actionDetails := make(map[int]actionMeta)
	topics := newTopicCounter()

	for _, segment := range segments {
		text := normalizeText(segment.Text)
		topics.add(lex, text)

		if text != "" {
			if lex.decision.match(text) {
				decisions.add(text, segment.ID)
			}
			if lex.action.match(text) {
				if idx, created := actions.add(text, segment.ID); created {
					actionDetails[idx] = actionMeta{
						owner: detectOwner(lex, text, participants),
						due:   detectDueDate(lex, text),
					}
				}
			}
			if strings.Contains(text, "?") || lex.question.match(text) {
				questions.add(text, segment.ID)
			}
			if lex.risk.match(text) {
				risks.add(text, segment.ID)
			}
		}
		if segment.IsOverlapping {
			risks.add(fmt.Sprintf(lex.overlapRisk, segment.TimestampMs/1000), segment.ID)
		}
	}

	actionItems := make([]domain.ActionItem, 0, len(actions.items))
	for i, item := range actions.items {
		meta := actionDetails[i]
		actionItems = append(actionItems, domain.ActionItem{
			ID:         item.ID,
			Text:       item.Text,
			Owner:      meta.owner,
			DueDate:    meta.due,
			References: item.References,
		})
	}

	draft := domain.ArtifactDraft{
		Summary:       strings.Join(summaryLines(segments), "\n"),
		KeyTopics:     topics.top(maxKeyTopics),
		Decisions:     decisions.items,
		ActionItems:   actionItems,
		OpenQuestions: questions.items,
		Risks:         risks.items,
	}
	draft.ProtocolDraft = renderDraft(lex, meeting, draft)
	return draft
}

// normalizeText collapses whitespace runs and trims.
func normalizeText(text string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))
}

func summaryLines(segments []domain.TranscriptSegment) []string {
	type line struct {
		label string
		text  string
		size  int
	}
	all := make([]line, 0, len(segments))
	long := make([]line, 0, len(segments))
	for _, segment := range segments {
		// Length is judged on the text as spoken, before normalization.
		l := line{label: segment.SpeakerLabel, text: normalizeText(segment.Text), size: utf8.RuneCountInString(segment.Text)}
		all = append(all, l)
		if l.size > minSummaryLen {
			long = append(long, l)
		}
	}

	picked := long
	if len(picked) == 0 {
		picked = all
	} else {
		sort.SliceStable(picked, func(i, j int) bool { return picked[i].size > picked[j].size })
	}
	if len(picked) > maxSummaryLines {
		picked = picked[:maxSummaryLines]
	}

	out := make([]string, 0, len(picked))
	for _, l := range picked {
		out = append(out, fmt.Sprintf("- %s: %s", l.label, l.text))
	}
	return out
}

func detectOwner(lex *Lexicon, text string, participants []domain.Participant) string {
	lower := strings.ToLower(text)
	for _, p := range participants {
		name := strings.TrimSpace(p.Name)
		if name != "" && strings.Contains(lower, strings.ToLower(name)) {
			return name
		}
	}
	if lex.owner == nil {
		return ""
	}
	match := lex.owner.FindStringSubmatch(text)
	if match == nil {
		return ""
	}
	owner := strings.TrimSpace(match[1])
	if owner == "" || lex.isStopWord(strings.ToLower(owner)) {
		return ""
	}
	return owner
}

func detectDueDate(lex *Lexicon, text string) string {
	if match := isoDateRe.FindStringSubmatch(text); match != nil {
		return match[1]
	}
	if match := slashDateRe.FindStringSubmatch(text); match != nil {
		return match[1]
	}
	if lex.week != nil {
		if match := lex.week.FindStringSubmatch(text); match != nil {
			return fmt.Sprintf(lex.weekLabel, match[1])
		}
	}
	return ""
}

// itemSet collects extracted items deduplicated by lower-cased text.
type itemSet struct {
	prefix string
	index  map[string]int
	items  []domain.Item
}

func newItemSet(prefix string) *itemSet {
	return &itemSet{prefix: prefix, index: make(map[string]int), items: []domain.Item{}}
}

// add returns the item position and whether a new item was created. Duplicates
// only contribute their segment reference.
func (s *itemSet) add(text, segmentID string) (int, bool) {
	key := strings.ToLower(text)
	if idx, ok := s.index[key]; ok {
		item := &s.items[idx]
		if segmentID != "" && !containsString(item.References, segmentID) {
			item.References = append(item.References, segmentID)
		}
		return idx, false
	}

	refs := []string{}
	if segmentID != "" {
		refs = append(refs, segmentID)
	}
	s.items = append(s.items, domain.Item{
		ID:         fmt.Sprintf("%s-%d", s.prefix, len(s.items)+1),
		Text:       text,
		References: refs,
	})
	idx := len(s.items) - 1
	s.index[key] = idx
	return idx, true
}

type topicCounter struct {
	counts map[string]int
	order  []string
}

func newTopicCounter() *topicCounter {
	return &topicCounter{counts: make(map[string]int)}
}

func (c *topicCounter) add(lex *Lexicon, text string) {
	cleaned := topicPunctuationRe.ReplaceAllString(strings.ToLower(text), " ")
	for _, token := range strings.Fields(cleaned) {
		if utf8.RuneCountInString(token) < minTopicTokenLen || lex.isStopWord(token) {
			continue
		}
		if _, seen := c.counts[token]; !seen {
			c.order = append(c.order, token)
		}
		c.counts[token]++
	}
}

// top returns the n most frequent tokens; ties keep first-seen order.
func (c *topicCounter) top(n int) []string {
	ranked := make([]string, len(c.order))
	copy(ranked, c.order)
	sort.SliceStable(ranked, func(i, j int) bool { return c.counts[ranked[i]] > c.counts[ranked[j]] })
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
