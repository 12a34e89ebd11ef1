package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/versecue/speech-gateway/internal/capture"
	"github.com/versecue/speech-gateway/internal/detect"
	"github.com/versecue/speech-gateway/internal/observability"
	"github.com/versecue/speech-gateway/internal/transcribe"
)

// State is the session lifecycle state reported to clients.
type State string

const (
	StateIdle         State = "idle"
	StateLoading      State = "loading"
	StateListening    State = "listening"
	StateTranscribing State = "transcribing"
	StateError        State = "error"
)

// UsageRecorder is notified of session starts and stops.
type UsageRecorder interface {
	SessionStarted(sessionID string)
	SessionStopped(sessionID string, duration time.Duration)
}

// LogUsageRecorder records session usage to the structured log.
type LogUsageRecorder struct {
	logger zerolog.Logger
}

// NewLogUsageRecorder creates a log-backed usage recorder.
func NewLogUsageRecorder(logger zerolog.Logger) *LogUsageRecorder {
	return &LogUsageRecorder{logger: logger.With().Str("component", "usage").Logger()}
}

func (r *LogUsageRecorder) SessionStarted(sessionID string) {
	r.logger.Info().Str("session_id", sessionID).Msg("session started")
}

func (r *LogUsageRecorder) SessionStopped(sessionID string, duration time.Duration) {
	r.logger.Info().
		Str("session_id", sessionID).
		Dur("duration", duration).
		Msg("session stopped")
}

// Controller ties the pipeline together and runs the session state
// machine: idle, loading while the model initializes, then listening
// with transient excursions to transcribing while the engine works.
// All transitions are serialized under one mutex.
type Controller struct {
	capture *capture.Controller
	bridge  *transcribe.Bridge
	agg     *detect.Aggregator
	usage   UsageRecorder
	logger  zerolog.Logger

	mu        sync.Mutex
	state     State
	active    bool
	cancel    context.CancelFunc
	sessionID string
	startedAt time.Time

	onState  func(State)
	onEvent  func(detect.Event)
	onVolume func(float64)
}

// NewController wires the capture controller, transcription bridge and
// aggregator into a session.
func NewController(
	cap *capture.Controller,
	bridge *transcribe.Bridge,
	agg *detect.Aggregator,
	usage UsageRecorder,
	logger zerolog.Logger,
) *Controller {
	c := &Controller{
		capture: cap,
		bridge:  bridge,
		agg:     agg,
		usage:   usage,
		logger:  logger.With().Str("component", "session").Logger(),
		state:   StateIdle,
	}

	cap.OnUtterance(func(u capture.Utterance) {
		bridge.Submit(transcribe.Job{Samples: u.Samples, SampleRate: u.SampleRate})
	})
	cap.OnVolume(func(level float64) {
		if fn := c.volumeSink(); fn != nil {
			fn(level)
		}
	})
	bridge.OnBusy(c.setBusy)
	agg.OnEvent(func(ev detect.Event) {
		if fn := c.eventSink(); fn != nil {
			fn(ev)
		}
	})

	return c
}

// OnState registers the sink for state transitions.
func (c *Controller) OnState(fn func(State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onState = fn
}

// OnEvent registers the sink for detection events.
func (c *Controller) OnEvent(fn func(detect.Event)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onEvent = fn
}

// OnVolume registers the sink for volume levels.
func (c *Controller) OnVolume(fn func(float64)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onVolume = fn
}

// State reports the current session state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start brings the session up: load the model, open the microphone,
// begin listening. Starting an active session is a no-op.
func (c *Controller) Start() error {
	c.mu.Lock()
	if c.active {
		c.mu.Unlock()
		return nil
	}
	c.active = true
	c.sessionID = observability.NewSessionID()
	c.startedAt = time.Now()
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.mu.Unlock()

	logger := c.logger.With().Str("session_id", c.sessionID).Logger()
	c.setState(StateLoading)

	go c.bridge.Run(ctx)
	go c.agg.Run(ctx)
	go c.pumpTranscripts(ctx)

	if err := c.bridge.EnsureLoaded(ctx); err != nil {
		c.fail(cancel, logger, err)
		if errors.Is(err, transcribe.ErrEngineOffline) {
			return fmt.Errorf("model unavailable and cannot be downloaded: %w", err)
		}
		return fmt.Errorf("load transcription model: %w", err)
	}

	if err := c.capture.Open(); err != nil {
		c.fail(cancel, logger, err)
		return fmt.Errorf("open microphone: %w", err)
	}
	if err := c.capture.Start(); err != nil {
		c.fail(cancel, logger, err)
		return fmt.Errorf("start microphone: %w", err)
	}

	c.setState(StateListening)
	observability.RecordSessionStart()
	if c.usage != nil {
		c.usage.SessionStarted(c.sessionID)
	}
	logger.Info().Msg("session listening")
	return nil
}

// Stop tears the session down. Stopping an idle session is a no-op.
func (c *Controller) Stop() error {
	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return nil
	}
	c.active = false
	cancel := c.cancel
	c.cancel = nil
	sessionID := c.sessionID
	duration := time.Since(c.startedAt)
	c.mu.Unlock()

	logger := c.logger.With().Str("session_id", sessionID).Logger()

	// Stop the device first: it discards the partial utterance and
	// quiesces the callback before the workers are cancelled.
	if err := c.capture.Stop(); err != nil {
		logger.Warn().Err(err).Msg("microphone stop failed")
	}
	if err := c.capture.Close(); err != nil {
		logger.Warn().Err(err).Msg("microphone close failed")
	}
	if cancel != nil {
		cancel()
	}

	if c.usage != nil {
		c.usage.SessionStopped(sessionID, duration)
	}
	c.setState(StateIdle)
	return nil
}

// pumpTranscripts moves cleaned transcripts from the bridge into the
// aggregator.
func (c *Controller) pumpTranscripts(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-c.bridge.Events():
			if !ok {
				return
			}
			c.agg.Feed(ev.Text)
		}
	}
}

func (c *Controller) fail(cancel context.CancelFunc, logger zerolog.Logger, err error) {
	c.mu.Lock()
	c.active = false
	c.cancel = nil
	c.mu.Unlock()
	cancel()
	c.setState(StateError)
	logger.Error().Err(err).Msg("session failed to start")
}

// setBusy flips between listening and transcribing while the session
// is up. Busy signals arriving after teardown are ignored.
func (c *Controller) setBusy(busy bool) {
	c.mu.Lock()
	var next State
	switch {
	case busy && c.state == StateListening:
		next = StateTranscribing
	case !busy && c.state == StateTranscribing:
		next = StateListening
	default:
		c.mu.Unlock()
		return
	}
	c.state = next
	fn := c.onState
	c.mu.Unlock()

	observability.RecordSessionState(string(next))
	if fn != nil {
		fn(next)
	}
}

func (c *Controller) setState(next State) {
	c.mu.Lock()
	c.state = next
	fn := c.onState
	c.mu.Unlock()

	observability.RecordSessionState(string(next))
	c.logger.Debug().Str("state", string(next)).Msg("session state")
	if fn != nil {
		fn(next)
	}
}

func (c *Controller) eventSink() func(detect.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.onEvent
}

func (c *Controller) volumeSink() func(float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.onVolume
}
