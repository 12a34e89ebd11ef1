package transcribe

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/versecue/speech-gateway/internal/observability"
)

// TranscriptEvent is a cleaned transcript ready for detection.
type TranscriptEvent struct {
	Text      string
	Timestamp time.Time
}

// Job is a finalized utterance waiting for transcription.
type Job struct {
	Samples    []float32
	SampleRate int
}

// Bridge feeds finalized utterances through the engine one at a time.
// While a job is running, at most one more is held pending; newer
// utterances merge into the pending slot so audio is never silently
// lost while the queue never grows unbounded.
type Bridge struct {
	engine Engine
	logger zerolog.Logger

	minTranscriptLen int

	jobs   chan Job
	events chan TranscriptEvent

	loadMu sync.Mutex
	loaded bool

	onBusy func(bool)

	mu sync.Mutex
}

// NewBridge wires an engine into a bridge. minTranscriptLen is the
// shortest cleaned transcript that will be forwarded.
func NewBridge(engine Engine, minTranscriptLen int, logger zerolog.Logger) *Bridge {
	return &Bridge{
		engine:           engine,
		logger:           logger.With().Str("component", "transcribe").Logger(),
		minTranscriptLen: minTranscriptLen,
		jobs:             make(chan Job, 1),
		events:           make(chan TranscriptEvent, 8),
	}
}

// OnBusy registers a callback invoked when transcription work starts
// and stops. Must be set before Run.
func (b *Bridge) OnBusy(fn func(bool)) {
	b.onBusy = fn
}

// Events returns the stream of cleaned transcripts.
func (b *Bridge) Events() <-chan TranscriptEvent {
	return b.events
}

// EnsureLoaded loads the model if it is not loaded yet. A successful
// load is permanent; a failed load (a dropped network during the model
// download, say) leaves the bridge unloaded so the next session start
// tries again.
func (b *Bridge) EnsureLoaded(ctx context.Context) error {
	b.loadMu.Lock()
	defer b.loadMu.Unlock()
	if b.loaded {
		return nil
	}

	start := time.Now()
	if err := b.engine.Load(ctx); err != nil {
		b.logger.Error().Err(err).Msg("model load failed")
		observability.RecordError("model_load", "transcribe")
		return err
	}
	b.loaded = true
	b.logger.Info().Dur("elapsed", time.Since(start)).Msg("model loaded")
	return nil
}

// Submit hands an utterance to the worker. If a job is already
// pending, the new samples are appended to it so the pending slot
// always holds the most complete audio.
func (b *Bridge) Submit(job Job) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for {
		select {
		case b.jobs <- job:
			return
		default:
		}
		select {
		case pending := <-b.jobs:
			merged := make([]float32, 0, len(pending.Samples)+len(job.Samples))
			merged = append(merged, pending.Samples...)
			merged = append(merged, job.Samples...)
			job = Job{Samples: merged, SampleRate: job.SampleRate}
			observability.RecordPendingJobMerged()
			b.logger.Debug().
				Int("merged_samples", len(merged)).
				Msg("merged pending utterance")
		default:
			// Worker drained the slot between our two selects; loop
			// and try the send again.
		}
	}
}

// Run processes jobs until ctx is done. The events channel is left
// open so the bridge can be restarted with a fresh context.
func (b *Bridge) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-b.jobs:
			b.process(ctx, job)
		}
	}
}

func (b *Bridge) process(ctx context.Context, job Job) {
	if b.onBusy != nil {
		b.onBusy(true)
	}
	defer func() {
		if b.onBusy != nil {
			b.onBusy(false)
		}
	}()

	start := time.Now()
	raw, err := b.engine.Transcribe(ctx, job.Samples)
	elapsed := time.Since(start)
	if err != nil {
		observability.RecordTranscription(false, elapsed.Seconds())
		observability.RecordError("transcribe", "transcribe")
		b.logger.Error().Err(err).Msg("transcription failed")
		return
	}
	observability.RecordTranscription(true, elapsed.Seconds())

	text, reason := Clean(raw, b.minTranscriptLen)
	if reason != FilterNone {
		observability.RecordTranscriptFiltered(string(reason))
		b.logger.Debug().
			Str("raw", raw).
			Str("reason", string(reason)).
			Msg("transcript filtered")
		return
	}

	b.logger.Info().
		Str("text", text).
		Dur("latency", elapsed).
		Float64("audio_seconds", float64(len(job.Samples))/float64(job.SampleRate)).
		Msg("transcript")

	select {
	case b.events <- TranscriptEvent{Text: text, Timestamp: time.Now()}:
	case <-ctx.Done():
	}
}
