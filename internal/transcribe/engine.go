// Package transcribe manages the speech-to-text engine and the worker
// bridge that feeds it utterances one at a time.
package transcribe

import (
	"context"
	"errors"
)

// ErrEngineOffline marks an engine load failure caused by model
// acquisition over the network. First-time model download needs
// connectivity; subsequent loads are local, so callers surface this class
// with a different user-facing message than a generic load failure.
var ErrEngineOffline = errors.New("transcribe: model unavailable, network required")

// Engine is a speech-to-text engine instance. It is a single-owner
// resource: the Bridge holds it for the session lifetime and never runs
// more than one Transcribe call at a time.
type Engine interface {
	// Load initializes the engine, acquiring the model if necessary.
	// Called exactly once per session before the first Transcribe.
	Load(ctx context.Context) error

	// Transcribe converts mono float32 samples at the engine's expected
	// sample rate into text.
	Transcribe(ctx context.Context, samples []float32) (string, error)

	// Close releases engine resources.
	Close() error
}
