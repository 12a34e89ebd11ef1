package vad

import (
	"testing"
)

func loudFrame(n int) []float32 {
	f := make([]float32, n)
	for i := range f {
		f[i] = 0.5
	}
	return f
}

func quietFrame(n int) []float32 {
	f := make([]float32, n)
	for i := range f {
		f[i] = 0.001
	}
	return f
}

func newTestSegmenter() *Segmenter {
	return NewSegmenter(Config{
		SpeechThreshold: 0.01,
		GraceFrames:     3,
		PrerollFrames:   4,
	})
}

func TestSegmenter_OnsetDrainsPreroll(t *testing.T) {
	s := newTestSegmenter()

	// Silence frames accumulate in pre-roll.
	for i := 0; i < 6; i++ {
		d, _ := s.Process(quietFrame(10), 0.001)
		if d != DecisionIdle {
			t.Fatalf("frame %d: expected idle, got %v", i, d)
		}
	}

	// Speech onset returns the retained pre-roll, capped at capacity.
	d, preroll := s.Process(loudFrame(10), 0.5)
	if d != DecisionAppend {
		t.Fatalf("expected append on onset, got %v", d)
	}
	if len(preroll) != 4 {
		t.Errorf("expected 4 pre-roll frames, got %d", len(preroll))
	}
	if !s.Speaking() {
		t.Error("expected speaking state after onset")
	}
}

func TestSegmenter_GracePeriodAppends(t *testing.T) {
	s := newTestSegmenter()

	s.Process(loudFrame(10), 0.5)

	// Silence within the grace window still belongs to the utterance.
	for i := 0; i < 3; i++ {
		d, _ := s.Process(quietFrame(10), 0.001)
		if d != DecisionAppend {
			t.Fatalf("grace frame %d: expected append, got %v", i, d)
		}
	}

	// The next silence frame ends the utterance.
	d, _ := s.Process(quietFrame(10), 0.001)
	if d != DecisionFlush {
		t.Fatalf("expected flush after grace elapsed, got %v", d)
	}
	if s.Speaking() {
		t.Error("expected not speaking after flush")
	}
}

func TestSegmenter_SpeechResetsGrace(t *testing.T) {
	s := newTestSegmenter()

	s.Process(loudFrame(10), 0.5)
	s.Process(quietFrame(10), 0.001)
	s.Process(quietFrame(10), 0.001)

	// Speech inside the grace window resets the silence counter.
	if d, _ := s.Process(loudFrame(10), 0.5); d != DecisionAppend {
		t.Fatal("expected append for speech inside grace window")
	}

	// A full grace period is required again before flushing.
	for i := 0; i < 3; i++ {
		if d, _ := s.Process(quietFrame(10), 0.001); d != DecisionAppend {
			t.Fatalf("grace frame %d: expected append, got %v", i, d)
		}
	}
	if d, _ := s.Process(quietFrame(10), 0.001); d != DecisionFlush {
		t.Fatalf("expected flush, got %v", d)
	}
}

func TestSegmenter_PrerollAfterFlush(t *testing.T) {
	s := newTestSegmenter()

	// First utterance.
	s.Process(loudFrame(10), 0.5)
	for i := 0; i < 4; i++ {
		s.Process(quietFrame(10), 0.001)
	}

	// Silence between utterances refills the pre-roll, including the frame
	// consumed by the flush itself.
	s.Process(quietFrame(10), 0.001)
	s.Process(quietFrame(10), 0.001)

	_, preroll := s.Process(loudFrame(10), 0.5)
	if len(preroll) != 3 {
		t.Errorf("expected 3 pre-roll frames before second onset, got %d", len(preroll))
	}
}

func TestSegmenter_Reset(t *testing.T) {
	s := newTestSegmenter()
	s.Process(quietFrame(10), 0.001)
	s.Process(loudFrame(10), 0.5)

	s.Reset()
	if s.Speaking() {
		t.Error("expected not speaking after reset")
	}
	_, preroll := s.Process(loudFrame(10), 0.5)
	if len(preroll) != 0 {
		t.Errorf("expected empty pre-roll after reset, got %d frames", len(preroll))
	}
}
