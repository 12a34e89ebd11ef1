package audio

// PrerollBuffer retains the most recent audio frames during silence so that
// the next utterance keeps the audio immediately preceding speech onset.
// Fixed capacity; the oldest frame is dropped when full. Not safe for
// concurrent use: it is owned by the capture callback goroutine.
type PrerollBuffer struct {
	frames   [][]float32
	capacity int
}

// NewPrerollBuffer creates a pre-roll buffer holding up to capacity frames.
func NewPrerollBuffer(capacity int) *PrerollBuffer {
	if capacity < 0 {
		capacity = 0
	}
	return &PrerollBuffer{
		frames:   make([][]float32, 0, capacity),
		capacity: capacity,
	}
}

// Push appends a copy of the frame, evicting the oldest frame when full.
// The input slice may be reused by the caller after Push returns.
func (p *PrerollBuffer) Push(frame []float32) {
	if p.capacity == 0 {
		return
	}
	cp := make([]float32, len(frame))
	copy(cp, frame)
	if len(p.frames) == p.capacity {
		copy(p.frames, p.frames[1:])
		p.frames[len(p.frames)-1] = cp
		return
	}
	p.frames = append(p.frames, cp)
}

// Drain returns the buffered frames oldest-first and clears the buffer.
func (p *PrerollBuffer) Drain() [][]float32 {
	if len(p.frames) == 0 {
		return nil
	}
	out := make([][]float32, len(p.frames))
	copy(out, p.frames)
	p.frames = p.frames[:0]
	return out
}

// Len returns the number of buffered frames.
func (p *PrerollBuffer) Len() int {
	return len(p.frames)
}

// Clear empties the buffer.
func (p *PrerollBuffer) Clear() {
	p.frames = p.frames[:0]
}
