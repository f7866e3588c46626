package artifacts

import (
	"embed"
	"fmt"
	"path"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/meeting-notes/internal/core/domain"
)

//go:embed lexicon/*.yaml
var lexiconFS embed.FS

type keywordSpec struct {
	Keywords []string `yaml:"keywords"`
	Patterns []string `yaml:"patterns"`
}

type draftLabels struct {
	Title          string `yaml:"title"`
	Started        string `yaml:"started"`
	Ended          string `yaml:"ended"`
	Ongoing        string `yaml:"ongoing"`
	Language       string `yaml:"language"`
	Participants   string `yaml:"participants"`
	NoParticipants string `yaml:"no_participants"`
	Summary        string `yaml:"summary"`
	Topics         string `yaml:"topics"`
	Decisions      string `yaml:"decisions"`
	Actions        string `yaml:"actions"`
	Questions      string `yaml:"questions"`
	Risks          string `yaml:"risks"`
	Transcript     string `yaml:"transcript"`
	Owner          string `yaml:"owner"`
	Due            string `yaml:"due"`
}

type placeholders struct {
	Summary   string `yaml:"summary"`
	Topics    string `yaml:"topics"`
	Decisions string `yaml:"decisions"`
	Actions   string `yaml:"actions"`
	Questions string `yaml:"questions"`
	Risks     string `yaml:"risks"`
}

type messageSpec struct {
	Processing              string `yaml:"processing"`
	CompletedExported       string `yaml:"completed_exported"`
	CompletedNeedsAttention string `yaml:"completed_needs_attention"`
	LowAudioQuality         string `yaml:"low_audio_quality"`
	LiveConnected           string `yaml:"live_connected"`
	ExportFailed            string `yaml:"export_failed"`
	LifecycleFailed         string `yaml:"lifecycle_failed"`
}

type lexiconFile struct {
	Language           string       `yaml:"language"`
	UnknownSpeaker     string       `yaml:"unknown_speaker"`
	DefaultTitle       string       `yaml:"default_title"`
	AudioPlaceholder   string       `yaml:"audio_placeholder"`
	TranscriptionError string       `yaml:"transcription_error"`
	StopWords          []string     `yaml:"stop_words"`
	Decision           keywordSpec  `yaml:"decision"`
	Action             keywordSpec  `yaml:"action"`
	Question           keywordSpec  `yaml:"question"`
	Risk               keywordSpec  `yaml:"risk"`
	OwnerPattern       string       `yaml:"owner_pattern"`
	WeekPattern        string       `yaml:"week_pattern"`
	WeekLabel          string       `yaml:"week_label"`
	OverlapRisk        string       `yaml:"overlap_risk"`
	Draft              draftLabels  `yaml:"draft"`
	Placeholders       placeholders `yaml:"placeholders"`
	Messages           messageSpec  `yaml:"messages"`
}

// Lexicon holds the compiled language rules for one locale.
type Lexicon struct {
	Language           string
	UnknownSpeaker     string
	DefaultTitle       string
	AudioPlaceholder   string
	TranscriptionError string

	stopWords map[string]struct{}
	decision  matcher
	action    matcher
	question  matcher
	risk      matcher
	owner     *regexp.Regexp
	week      *regexp.Regexp

	weekLabel    string
	overlapRisk  string
	labels       draftLabels
	placeholders placeholders
	messages     messageSpec
}

// Messages returns the localized status texts of the lexicon.
func (l *Lexicon) Messages() domain.MeetingMessages {
	return domain.MeetingMessages{
		DefaultTitle:            l.DefaultTitle,
		UnknownSpeaker:          l.UnknownSpeaker,
		Processing:              l.messages.Processing,
		CompletedExported:       l.messages.CompletedExported,
		CompletedNeedsAttention: l.messages.CompletedNeedsAttention,
		LowAudioQuality:         l.messages.LowAudioQuality,
		LiveConnected:           l.messages.LiveConnected,
		ExportFailed:            l.messages.ExportFailed,
		LifecycleFailed:         l.messages.LifecycleFailed,
	}
}

func (l *Lexicon) isStopWord(token string) bool {
	_, ok := l.stopWords[token]
	return ok
}

type matcher []*regexp.Regexp

func (m matcher) match(text string) bool {
	for _, re := range m {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// Lexicons resolves a lexicon per meeting language.
type Lexicons struct {
	byLanguage map[string]*Lexicon
	fallback   *Lexicon
}

// LoadLexicons compiles the embedded lexicons. defaultLanguage is used for
// languages without a lexicon of their own.
func LoadLexicons(defaultLanguage string) (*Lexicons, error) {
	entries, err := lexiconFS.ReadDir("lexicon")
	if err != nil {
		return nil, fmt.Errorf("read lexicon dir: %w", err)
	}

	out := &Lexicons{byLanguage: make(map[string]*Lexicon, len(entries))}
	for _, entry := range entries {
		raw, err := lexiconFS.ReadFile(path.Join("lexicon", entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read lexicon %s: %w", entry.Name(), err)
		}
		lex, err := parseLexicon(raw)
		if err != nil {
			return nil, fmt.Errorf("parse lexicon %s: %w", entry.Name(), err)
		}
		out.byLanguage[lex.Language] = lex
	}

	fallback, ok := out.byLanguage[baseLanguage(defaultLanguage)]
	if !ok {
		return nil, fmt.Errorf("no lexicon for default language %q", defaultLanguage)
	}
	out.fallback = fallback
	return out, nil
}

// MustLoadLexicons panics when the embedded lexicons are broken.
func MustLoadLexicons(defaultLanguage string) *Lexicons {
	lexicons, err := LoadLexicons(defaultLanguage)
	if err != nil {
		panic(err)
	}
	return lexicons
}

// For returns the lexicon of a language tag such as "sv" or "en-US".
func (l *Lexicons) For(language string) *Lexicon {
	if lex, ok := l.byLanguage[baseLanguage(language)]; ok {
		return lex
	}
	return l.fallback
}

func (l *Lexicons) Messages(language string) domain.MeetingMessages {
	return l.For(language).Messages()
}

func baseLanguage(language string) string {
	language = strings.ToLower(strings.TrimSpace(language))
	if i := strings.IndexAny(language, "-_"); i > 0 {
		language = language[:i]
	}
	return language
}

func parseLexicon(raw []byte) (*Lexicon, error) {
	var file lexiconFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, err
	}
	if strings.TrimSpace(file.Language) == "" {
		return nil, fmt.Errorf("language is required")
	}

	lex := &Lexicon{
		Language:           baseLanguage(file.Language),
		UnknownSpeaker:     file.UnknownSpeaker,
		DefaultTitle:       file.DefaultTitle,
		AudioPlaceholder:   file.AudioPlaceholder,
		TranscriptionError: file.TranscriptionError,
		stopWords:          make(map[string]struct{}, len(file.StopWords)),
		weekLabel:          file.WeekLabel,
		overlapRisk:        file.OverlapRisk,
		labels:             file.Draft,
		placeholders:       file.Placeholders,
		messages:           file.Messages,
	}
	for _, word := range file.StopWords {
		lex.stopWords[strings.ToLower(word)] = struct{}{}
	}

	var err error
	if lex.decision, err = compileKeywords(file.Decision); err != nil {
		return nil, fmt.Errorf("decision: %w", err)
	}
	if lex.action, err = compileKeywords(file.Action); err != nil {
		return nil, fmt.Errorf("action: %w", err)
	}
	if lex.question, err = compileKeywords(file.Question); err != nil {
		return nil, fmt.Errorf("question: %w", err)
	}
	if lex.risk, err = compileKeywords(file.Risk); err != nil {
		return nil, fmt.Errorf("risk: %w", err)
	}
	if lex.owner, err = compileOptional(file.OwnerPattern); err != nil {
		return nil, fmt.Errorf("owner pattern: %w", err)
	}
	if lex.week, err = compileOptional(file.WeekPattern); err != nil {
		return nil, fmt.Errorf("week pattern: %w", err)
	}
	return lex, nil
}

// compileKeywords turns literal keywords into one case-insensitive pattern with
// Unicode-aware word boundaries; RE2's \b only understands ASCII words.
func compileKeywords(spec keywordSpec) (matcher, error) {
	var out matcher
	if len(spec.Keywords) > 0 {
		alternatives := make([]string, 0, len(spec.Keywords))
		for _, keyword := range spec.Keywords {
			keyword = strings.TrimSpace(keyword)
			if keyword == "" {
				continue
			}
			parts := strings.Fields(keyword)
			for i := range parts {
				parts[i] = regexp.QuoteMeta(parts[i])
			}
			alternatives = append(alternatives, strings.Join(parts, `\s+`))
		}
		if len(alternatives) > 0 {
			expr := `(?i)(?:^|[^\p{L}\p{N}_])(?:` + strings.Join(alternatives, "|") + `)(?:[^\p{L}\p{N}_]|$)`
			re, err := regexp.Compile(expr)
			if err != nil {
				return nil, err
			}
			out = append(out, re)
		}
	}
	for _, pattern := range spec.Patterns {
		re, err := regexp.Compile("(?i)" + pattern)
		if err != nil {
			return nil, err
		}
		out = append(out, re)
	}
	return out, nil
}

func compileOptional(pattern string) (*regexp.Regexp, error) {
	if strings.TrimSpace(pattern) == "" {
		return nil, nil
	}
	return regexp.Compile("(?i)" + pattern)
}

// AudioPlaceholder is the text stored for audio that could not be transcribed.
func (l *Lexicons) AudioPlaceholder(language string) string {
	return l.For(language).AudioPlaceholder
}

func (l *Lexicons) TranscriptionError(language string) string {
	return l.For(language).TranscriptionError
}
