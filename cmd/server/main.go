package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/versecue/speech-gateway/internal/capture"
	"github.com/versecue/speech-gateway/internal/config"
	"github.com/versecue/speech-gateway/internal/detect"
	"github.com/versecue/speech-gateway/internal/events"
	"github.com/versecue/speech-gateway/internal/observability"
	"github.com/versecue/speech-gateway/internal/resilience"
	"github.com/versecue/speech-gateway/internal/session"
	"github.com/versecue/speech-gateway/internal/transcribe"
	"github.com/versecue/speech-gateway/internal/verses"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Use fmt for fatal errors before logger is initialized
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	logger.Info().
		Str("port", cfg.Port).
		Str("detection_url", cfg.DetectionURL).
		Str("model_path", cfg.WhisperModelPath).
		Str("log_level", cfg.LogLevel).
		Bool("metrics_enabled", cfg.MetricsEnabled).
		Msg("Speech Gateway Service starting")

	store, err := verses.OpenBadger(cfg.VerseStorePath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.VerseStorePath).Msg("Failed to open verse store")
	}
	defer store.Close()
	resolver := verses.NewResolver(store, logger)

	engine := transcribe.NewWhisperEngine(cfg.WhisperModelPath, cfg.WhisperModelURL, logger)
	defer engine.Close()
	bridge := transcribe.NewBridge(engine, cfg.MinTranscriptLen, logger)

	detectClient := detect.NewClient(detect.ClientConfig{
		URL:                        cfg.DetectionURL,
		Timeout:                    cfg.DetectionTimeout(),
		CircuitBreakerMaxFailures:  cfg.CircuitBreakerMaxFailures,
		CircuitBreakerResetTimeout: time.Duration(cfg.CircuitBreakerResetTimeout) * time.Second,
		RetryMaxAttempts:           cfg.RetryMaxAttempts,
		RetryInitialBackoff:        time.Duration(cfg.RetryInitialBackoff) * time.Millisecond,
	}, logger)

	aggregator := detect.NewAggregator(detect.AggregatorConfig{
		ContextMaxChars:  cfg.ContextMaxChars,
		ContextTailChars: cfg.ContextTailChars,
		MinContextChars:  cfg.MinContextChars,
		ConfidenceFloor:  cfg.ConfidenceFloor,
		Debounce:         cfg.Debounce(),
		DedupCooldown:    cfg.DedupCooldown(),
	}, detectClient, resolver, logger)

	device, err := capture.NewMalgoDevice()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize audio backend")
	}
	micController := capture.NewController(device, capture.Options{
		FrameSize:        cfg.FrameSize,
		TargetSampleRate: cfg.TargetSampleRate,
		SpeechThreshold:  cfg.SpeechThreshold,
		SilenceGrace:     cfg.SilenceGrace(),
		PreRoll:          cfg.PreRoll(),
		MaxUtterance:     cfg.MaxUtterance(),
		MinUtterance:     cfg.MinUtteranceS,
		RMSFloor:         cfg.UtteranceRMSFloor,
		VolumeNoiseFloor: cfg.VolumeNoiseFloor,
		VolumeReference:  cfg.VolumeReference,
		VolumeSmoothing:  cfg.VolumeSmoothing,
	}, logger)

	usage := session.NewLogUsageRecorder(logger)
	controller := session.NewController(micController, bridge, aggregator, usage, logger)

	broadcaster := events.NewBroadcaster(logger)
	defer broadcaster.Close()
	controller.OnEvent(broadcaster.BroadcastDetection)
	controller.OnState(func(s session.State) { broadcaster.BroadcastState(string(s)) })
	controller.OnVolume(broadcaster.BroadcastVolume)

	mux := http.NewServeMux()
	mux.Handle("/events", broadcaster.Handler())
	mux.HandleFunc("/health", observability.HealthCheckHandler())

	modelCheck := func(ctx context.Context) (bool, error) {
		if _, err := os.Stat(cfg.WhisperModelPath); err != nil {
			return false, fmt.Errorf("model not present: %w", err)
		}
		return true, nil
	}
	detectionCheck := func(ctx context.Context) (bool, error) {
		if detectClient.State() == resilience.StateOpen {
			return false, fmt.Errorf("detection circuit breaker open")
		}
		return true, nil
	}
	verseCheck := func(ctx context.Context) (bool, error) {
		// A miss still proves the store is reachable.
		if _, err := store.Lookup(ctx, "John", 3, 16); err != nil && !errors.Is(err, verses.ErrNotFound) {
			return false, err
		}
		return true, nil
	}
	mux.HandleFunc("/ready", observability.ReadinessHandler(map[string]observability.HealthCheckFunc{
		"whisper_model": modelCheck,
		"detection":     detectionCheck,
		"verse_store":   verseCheck,
	}))

	if cfg.MetricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info().Msg("Prometheus metrics enabled at /metrics")
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("endpoint", fmt.Sprintf("ws://localhost:%s/events", cfg.Port)).
			Msg("Server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Bring the pipeline up. Model download can take a while on first
	// run; the HTTP surface is already serving so clients can watch
	// the state transitions.
	go func() {
		if err := controller.Start(); err != nil {
			logger.Error().Err(err).Msg("Pipeline failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down server...")

	if err := controller.Stop(); err != nil {
		logger.Warn().Err(err).Msg("Pipeline stop reported an error")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	logger.Info().Msg("Server exited gracefully")
}
