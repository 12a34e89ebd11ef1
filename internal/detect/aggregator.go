package detect

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/versecue/speech-gateway/internal/observability"
	"github.com/versecue/speech-gateway/internal/verses"
)

// VerseResolver looks up the display text for a detected reference.
type VerseResolver interface {
	Resolve(ctx context.Context, book string, chapter, verse, verseEnd int) (label, text string, err error)
}

// AggregatorConfig holds tunables for transcript aggregation.
type AggregatorConfig struct {
	ContextMaxChars  int
	ContextTailChars int
	MinContextChars  int
	ConfidenceFloor  float64
	Debounce         time.Duration
	DedupCooldown    time.Duration
}

// Aggregator accumulates transcripts into a rolling context window and
// runs detection after speech pauses. A reference spoken across
// several utterances ("turn to John chapter three" ... "verse
// sixteen") only resolves once the pieces land in the same window, so
// detection is debounced rather than fired per transcript.
type Aggregator struct {
	cfg      AggregatorConfig
	service  Service
	resolver VerseResolver
	logger   zerolog.Logger

	in   chan string
	sink func(Event)

	window        string
	lastProcessed string
	prevTail      string
	recent        map[string]time.Time
}

// NewAggregator creates an aggregator over the given detection service
// and verse resolver.
func NewAggregator(cfg AggregatorConfig, service Service, resolver VerseResolver, logger zerolog.Logger) *Aggregator {
	return &Aggregator{
		cfg:      cfg,
		service:  service,
		resolver: resolver,
		logger:   logger.With().Str("component", "aggregate").Logger(),
		in:       make(chan string, 16),
		recent:   make(map[string]time.Time),
	}
}

// OnEvent registers the sink for detection events. Must be set before
// Run.
func (a *Aggregator) OnEvent(fn func(Event)) {
	a.sink = fn
}

// Feed hands a cleaned transcript to the aggregator.
func (a *Aggregator) Feed(text string) {
	a.in <- text
}

// Run consumes transcripts until ctx is done. Detection fires once no
// new transcript has arrived for the debounce interval.
func (a *Aggregator) Run(ctx context.Context) {
	var debounce *time.Timer
	var fire <-chan time.Time
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case text := <-a.in:
			a.appendWindow(text)
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.NewTimer(a.cfg.Debounce)
			fire = debounce.C
		case <-fire:
			fire = nil
			a.detect(ctx)
		}
	}
}

// appendWindow adds a transcript to the rolling context, trimming from
// the front when the window exceeds its limit. Trimming cuts at a word
// boundary so the service never sees half a word.
func (a *Aggregator) appendWindow(text string) {
	if a.window == "" {
		a.window = text
	} else {
		a.window = a.window + " " + text
	}
	if len(a.window) > a.cfg.ContextMaxChars {
		cut := len(a.window) - a.cfg.ContextMaxChars
		if idx := strings.IndexByte(a.window[cut:], ' '); idx >= 0 {
			cut += idx + 1
		}
		a.window = a.window[cut:]
	}
}

func (a *Aggregator) detect(ctx context.Context) {
	window := strings.TrimSpace(a.window)
	if len(window) < a.cfg.MinContextChars {
		return
	}
	if window == a.lastProcessed {
		return
	}

	resp, err := a.service.Detect(ctx, Request{
		Transcript: window,
		Context:    a.prevTail,
	})
	if err != nil {
		// The window is kept; the next pause retries with more
		// context. The client already recorded the failure.
		a.logger.Warn().Err(err).Msg("detection failed")
		return
	}

	a.lastProcessed = window
	a.prevTail = tail(window, a.cfg.ContextTailChars)

	event := Event{Transcript: window}

	for _, cmd := range resp.Commands {
		observability.RecordCommandEmitted(string(cmd.Type))
		event.Commands = append(event.Commands, cmd)
	}
	if len(resp.Commands) > 0 {
		// A command is a deliberate cue: stale context must not
		// trigger a detection on top of it.
		a.window = ""
		a.lastProcessed = ""
		a.prevTail = ""
	}

	for _, ref := range resp.Scriptures {
		if resolved, ok := a.admit(ctx, ref); ok {
			event.Verses = append(event.Verses, resolved)
		}
	}

	if len(event.Verses) == 0 && len(event.Commands) == 0 {
		return
	}
	select {
	case <-ctx.Done():
		return
	default:
	}
	if a.sink != nil {
		a.sink(event)
	}
}

// admit applies the confidence floor, dedup cooldown and verse lookup
// to a single detected reference.
func (a *Aggregator) admit(ctx context.Context, ref Reference) (ResolvedVerse, bool) {
	if ref.Confidence < a.cfg.ConfidenceFloor {
		observability.RecordReferenceSuppressed("low_confidence")
		a.logger.Debug().
			Str("book", ref.Book).
			Float64("confidence", ref.Confidence).
			Msg("reference below confidence floor")
		return ResolvedVerse{}, false
	}

	label, text, err := a.resolver.Resolve(ctx, ref.Book, ref.Chapter, ref.Verse, ref.VerseEnd)
	if err != nil {
		if errors.Is(err, verses.ErrNotFound) {
			observability.RecordReferenceSuppressed("unresolved")
			a.logger.Debug().
				Str("book", ref.Book).
				Int("chapter", ref.Chapter).
				Int("verse", ref.Verse).
				Msg("reference not in verse store")
			return ResolvedVerse{}, false
		}
		observability.RecordError("verse_lookup", "aggregate")
		a.logger.Error().Err(err).Msg("verse lookup failed")
		return ResolvedVerse{}, false
	}

	// The cooldown is keyed on the start verse alone, so a range and
	// its opening verse count as the same citation.
	key := dedupKey(ref)
	now := time.Now()
	if last, seen := a.recent[key]; seen && now.Sub(last) < a.cfg.DedupCooldown {
		observability.RecordReferenceSuppressed("duplicate")
		return ResolvedVerse{}, false
	}
	a.recent[key] = now
	for key, at := range a.recent {
		if now.Sub(at) >= a.cfg.DedupCooldown {
			delete(a.recent, key)
		}
	}

	observability.RecordReferenceEmitted()
	a.logger.Info().Str("reference", label).Msg("reference detected")
	return ResolvedVerse{Reference: ref, Label: label, Text: text}, true
}

func dedupKey(ref Reference) string {
	book := ref.Book
	if canonical, ok := verses.CanonicalBook(book); ok {
		book = canonical
	}
	return fmt.Sprintf("%s/%d/%d", strings.ToLower(book), ref.Chapter, ref.Verse)
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	t := s[len(s)-n:]
	if idx := strings.IndexByte(t, ' '); idx >= 0 {
		t = t[idx+1:]
	}
	return t
}
