package capture

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/versecue/speech-gateway/internal/audio"
	"github.com/versecue/speech-gateway/internal/observability"
	"github.com/versecue/speech-gateway/internal/vad"
)

// Device abstracts a microphone capture stream. Open registers the
// sample callback and reports the rate the hardware actually runs at,
// which is not necessarily the rate that was requested.
type Device interface {
	Open(onSamples func([]float32)) (sampleRate int, err error)
	Start() error
	Stop() error
	Close() error
}

// Utterance is a finalized speech segment, already resampled to the
// target rate.
type Utterance struct {
	Samples    []float32
	SampleRate int
	Duration   time.Duration
}

// Options holds capture tunables. Durations are converted to frame
// counts when the device reports its rate, so segmentation depends
// only on sample arithmetic and never on wall-clock timers.
type Options struct {
	FrameSize        int
	TargetSampleRate int

	SpeechThreshold float64
	SilenceGrace    time.Duration
	PreRoll         time.Duration
	MaxUtterance    time.Duration
	MinUtterance    float64 // seconds
	RMSFloor        float64

	VolumeNoiseFloor float64
	VolumeReference  float64
	VolumeSmoothing  float64
}

// Controller owns the capture stream: it chunks device callbacks into
// fixed frames, runs them through the segmenter and applies the flush
// and discard policies. All state is touched only from the device
// callback goroutine, so no locking is needed.
type Controller struct {
	opts   Options
	device Device
	logger zerolog.Logger

	seg        *vad.Segmenter
	deviceRate int
	maxFrames  int
	minSamples int

	carry     []float32
	utterance []float32
	frames    int

	volume float64

	onUtterance func(Utterance)
	onVolume    func(float64)
}

// NewController creates a controller over the given device.
func NewController(device Device, opts Options, logger zerolog.Logger) *Controller {
	return &Controller{
		opts:   opts,
		device: device,
		logger: logger.With().Str("component", "capture").Logger(),
	}
}

// OnUtterance registers the sink for finalized utterances. Must be set
// before Open.
func (c *Controller) OnUtterance(fn func(Utterance)) {
	c.onUtterance = fn
}

// OnVolume registers the sink for smoothed volume levels in [0, 1].
func (c *Controller) OnVolume(fn func(float64)) {
	c.onVolume = fn
}

// Open opens the device and derives the frame-count policies from the
// rate it reports.
func (c *Controller) Open() error {
	rate, err := c.device.Open(c.handleSamples)
	if err != nil {
		return fmt.Errorf("open capture device: %w", err)
	}
	if rate <= 0 {
		return fmt.Errorf("capture device reported invalid sample rate %d", rate)
	}
	c.deviceRate = rate

	frameDur := time.Duration(c.opts.FrameSize) * time.Second / time.Duration(rate)
	c.seg = vad.NewSegmenter(vad.Config{
		SpeechThreshold: c.opts.SpeechThreshold,
		GraceFrames:     framesFor(c.opts.SilenceGrace, frameDur),
		PrerollFrames:   framesFor(c.opts.PreRoll, frameDur),
	})
	c.maxFrames = framesFor(c.opts.MaxUtterance, frameDur)
	c.minSamples = int(c.opts.MinUtterance * float64(rate))

	c.logger.Info().
		Int("device_rate", rate).
		Int("frame_size", c.opts.FrameSize).
		Int("max_frames", c.maxFrames).
		Int("min_samples", c.minSamples).
		Msg("capture device opened")
	return nil
}

// Start begins the capture stream.
func (c *Controller) Start() error {
	if err := c.device.Start(); err != nil {
		return fmt.Errorf("start capture device: %w", err)
	}
	return nil
}

// Stop halts the capture stream and discards any partially-buffered
// utterance. An explicit stop means the operator is done listening;
// delivering a half-captured fragment downstream would queue work
// against a session that is tearing down.
func (c *Controller) Stop() error {
	err := c.device.Stop()
	c.utterance = nil
	c.frames = 0
	if c.seg != nil {
		c.seg.Reset()
	}
	c.carry = c.carry[:0]
	return err
}

// Close releases the device.
func (c *Controller) Close() error {
	return c.device.Close()
}

// handleSamples is the device callback. Hardware delivers whatever
// chunk size it likes; a carry buffer realigns the stream to
// FrameSize frames.
func (c *Controller) handleSamples(samples []float32) {
	c.carry = append(c.carry, samples...)
	for len(c.carry) >= c.opts.FrameSize {
		frame := c.carry[:c.opts.FrameSize]
		c.processFrame(frame)
		c.carry = c.carry[c.opts.FrameSize:]
	}
	if len(c.carry) > 0 && cap(c.carry) > 4*c.opts.FrameSize {
		// Keep the carry slice from pinning old backing arrays.
		c.carry = append(make([]float32, 0, c.opts.FrameSize), c.carry...)
	}
}

func (c *Controller) processFrame(frame []float32) {
	energy := audio.RMS(frame)
	c.meterVolume(energy)

	decision, preroll := c.seg.Process(frame, energy)
	switch decision {
	case vad.DecisionIdle:
		return
	case vad.DecisionAppend:
		for _, f := range preroll {
			c.utterance = append(c.utterance, f...)
		}
		c.utterance = append(c.utterance, frame...)
		c.frames++
		if c.frames >= c.maxFrames {
			// Continuous speech: flush what we have so transcription
			// stays current. The segmenter keeps treating the stream
			// as active, so following frames open a fresh utterance.
			c.flush("max_duration")
		}
	case vad.DecisionFlush:
		c.flush("silence")
	}
}

func (c *Controller) flush(trigger string) {
	samples := c.utterance
	c.utterance = nil
	c.frames = 0
	if len(samples) == 0 {
		return
	}

	duration := time.Duration(len(samples)) * time.Second / time.Duration(c.deviceRate)

	if len(samples) < c.minSamples {
		observability.RecordUtteranceDiscarded("too_short")
		c.logger.Debug().Dur("duration", duration).Msg("utterance discarded: too short")
		return
	}
	if audio.RMS(samples) < c.opts.RMSFloor {
		observability.RecordUtteranceDiscarded("low_energy")
		c.logger.Debug().Dur("duration", duration).Msg("utterance discarded: low energy")
		return
	}

	resampled := audio.Resample(samples, c.deviceRate, c.opts.TargetSampleRate)
	observability.RecordUtteranceFlushed(trigger, duration.Seconds())
	c.logger.Debug().
		Str("trigger", trigger).
		Dur("duration", duration).
		Int("samples", len(resampled)).
		Msg("utterance flushed")

	if c.onUtterance != nil {
		c.onUtterance(Utterance{
			Samples:    resampled,
			SampleRate: c.opts.TargetSampleRate,
			Duration:   duration,
		})
	}
}

// meterVolume maps frame energy to a smoothed [0, 1] level for UI
// display. The noise floor is subtracted so a quiet room reads zero.
func (c *Controller) meterVolume(energy float64) {
	if c.onVolume == nil {
		return
	}
	level := (energy - c.opts.VolumeNoiseFloor) / c.opts.VolumeReference
	if level < 0 {
		level = 0
	}
	if level > 1 {
		level = 1
	}
	c.volume = c.opts.VolumeSmoothing*level + (1-c.opts.VolumeSmoothing)*c.volume
	c.onVolume(c.volume)
}

func framesFor(d, frameDur time.Duration) int {
	if frameDur <= 0 {
		return 1
	}
	n := int(d / frameDur)
	if n < 1 {
		n = 1
	}
	return n
}
