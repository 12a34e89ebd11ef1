package vad

import (
	"github.com/versecue/speech-gateway/internal/audio"
)

// Config holds tunables for the voice activity segmenter. Thresholds are
// configuration, not constants: microphone gain varies per device.
type Config struct {
	SpeechThreshold float64 // RMS energy above which a frame counts as speech
	GraceFrames     int     // silence frames still appended after the last speech frame
	PrerollFrames   int     // frames of pre-onset audio retained for the next utterance
}

// Decision classifies what the capture controller should do with a frame.
type Decision int

const (
	// DecisionIdle means no utterance is active; the frame went to pre-roll.
	DecisionIdle Decision = iota
	// DecisionAppend means the frame belongs to the active utterance.
	DecisionAppend
	// DecisionFlush means the silence grace period elapsed: the active
	// utterance is complete and the frame went to pre-roll.
	DecisionFlush
)

// Segmenter splits a continuous frame stream into speech segments using
// energy gating. Raw gating alone clips word onsets and codas, so it keeps
// a pre-roll ring buffer for onsets and appends through a short silence
// grace period for trailing syllables.
type Segmenter struct {
	cfg     Config
	preroll *audio.PrerollBuffer

	speaking   bool
	silenceRun int
}

// NewSegmenter creates a segmenter with the given tunables.
func NewSegmenter(cfg Config) *Segmenter {
	return &Segmenter{
		cfg:     cfg,
		preroll: audio.NewPrerollBuffer(cfg.PrerollFrames),
	}
}

// Process classifies one frame given its precomputed RMS energy.
// On speech onset the second return value carries the drained pre-roll
// frames, oldest first; the caller seeds the new utterance with them before
// appending the frame itself.
func (s *Segmenter) Process(frame []float32, energy float64) (Decision, [][]float32) {
	if energy > s.cfg.SpeechThreshold {
		s.silenceRun = 0
		if !s.speaking {
			s.speaking = true
			return DecisionAppend, s.preroll.Drain()
		}
		return DecisionAppend, nil
	}

	if !s.speaking {
		s.preroll.Push(frame)
		return DecisionIdle, nil
	}

	s.silenceRun++
	if s.silenceRun <= s.cfg.GraceFrames {
		// Still within the grace period: trailing syllables and short
		// pauses belong to the utterance.
		return DecisionAppend, nil
	}

	s.speaking = false
	s.silenceRun = 0
	s.preroll.Push(frame)
	return DecisionFlush, nil
}

// Speaking reports whether an utterance is currently active.
func (s *Segmenter) Speaking() bool {
	return s.speaking
}

// Reset clears segmentation state and the pre-roll buffer.
func (s *Segmenter) Reset() {
	s.speaking = false
	s.silenceRun = 0
	s.preroll.Clear()
}
