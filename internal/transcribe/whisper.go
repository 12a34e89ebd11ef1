package transcribe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	whisper "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
	"github.com/rs/zerolog"
)

// WhisperEngine implements Engine using local whisper.cpp inference.
// The model file is downloaded on first load if missing.
type WhisperEngine struct {
	modelPath string
	modelURL  string
	logger    zerolog.Logger

	model whisper.Model
}

// NewWhisperEngine creates an engine for the model at modelPath,
// downloading from modelURL on first use when the file is absent.
func NewWhisperEngine(modelPath, modelURL string, logger zerolog.Logger) *WhisperEngine {
	return &WhisperEngine{
		modelPath: modelPath,
		modelURL:  modelURL,
		logger:    logger,
	}
}

// Load implements Engine. A download failure is classified as
// ErrEngineOffline; a local load failure is returned as-is.
func (e *WhisperEngine) Load(ctx context.Context) error {
	if e.model != nil {
		return nil
	}

	if _, err := os.Stat(e.modelPath); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("stat whisper model: %w", err)
		}
		e.logger.Info().
			Str("url", e.modelURL).
			Str("path", e.modelPath).
			Msg("Whisper model missing, downloading")
		if err := e.download(ctx); err != nil {
			return fmt.Errorf("%w: %v", ErrEngineOffline, err)
		}
	}

	model, err := whisper.New(e.modelPath)
	if err != nil {
		return fmt.Errorf("load whisper model %q: %w", e.modelPath, err)
	}
	e.model = model
	e.logger.Info().Str("path", e.modelPath).Msg("Whisper model loaded")
	return nil
}

// Transcribe implements Engine. Samples must be mono 16kHz float32.
func (e *WhisperEngine) Transcribe(ctx context.Context, samples []float32) (string, error) {
	if e.model == nil {
		return "", fmt.Errorf("whisper engine not loaded")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	wctx, err := e.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("create whisper context: %w", err)
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", fmt.Errorf("whisper process: %w", err)
	}

	var segments []string
	for {
		seg, err := wctx.NextSegment()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("whisper next segment: %w", err)
		}
		segments = append(segments, seg.Text)
	}

	return strings.TrimSpace(strings.Join(segments, " ")), nil
}

// Close implements Engine.
func (e *WhisperEngine) Close() error {
	if e.model != nil {
		err := e.model.Close()
		e.model = nil
		return err
	}
	return nil
}

// download fetches the model to a temp file and renames it into place so a
// partial download never looks like a valid model.
func (e *WhisperEngine) download(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(e.modelPath), 0o755); err != nil {
		return fmt.Errorf("create model dir: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.modelURL, nil)
	if err != nil {
		return fmt.Errorf("build model request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetch model: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch model: unexpected status %d", resp.StatusCode)
	}

	tmpPath := e.modelPath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create temp model file: %w", err)
	}
	defer func() {
		f.Close()
		os.Remove(tmpPath)
	}()

	if _, err := io.Copy(f, resp.Body); err != nil {
		return fmt.Errorf("write model file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close model file: %w", err)
	}

	if err := os.Rename(tmpPath, e.modelPath); err != nil {
		return fmt.Errorf("rename model file: %w", err)
	}
	return nil
}
