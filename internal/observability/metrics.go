package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Session metrics
	sessionState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "speech_gateway_session_state",
		Help: "Current session state (1 for the active state, 0 otherwise)",
	}, []string{"state"})

	sessionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "speech_gateway_sessions_total",
		Help: "Total number of listening sessions started",
	})

	// Capture metrics
	utterancesFlushed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "speech_gateway_utterances_flushed_total",
		Help: "Utterances flushed from the capture buffer",
	}, []string{"trigger"}) // trigger: "silence" or "max_duration"

	utterancesDiscarded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "speech_gateway_utterances_discarded_total",
		Help: "Utterances discarded before transcription",
	}, []string{"reason"}) // reason: "too_short" or "low_energy"

	utteranceDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "speech_gateway_utterance_duration_seconds",
		Help:    "Duration of flushed utterances in seconds",
		Buckets: []float64{0.5, 1, 2, 3, 4, 6, 8},
	})

	// Transcription metrics
	transcriptions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "speech_gateway_transcriptions_total",
		Help: "Total number of transcription jobs processed",
	}, []string{"status"})

	transcriptionLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "speech_gateway_transcription_latency_seconds",
		Help:    "Transcription job latency in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0},
	})

	transcriptsFiltered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "speech_gateway_transcripts_filtered_total",
		Help: "Transcripts rejected by the output filter",
	}, []string{"reason"}) // reason: "filler", "non_speech", "too_short"

	pendingJobsMerged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "speech_gateway_pending_jobs_merged_total",
		Help: "Flushes merged into the pending transcription slot",
	})

	// Detection metrics
	detectionCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "speech_gateway_detection_calls_total",
		Help: "Total number of reference detection calls",
	}, []string{"status"})

	detectionLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "speech_gateway_detection_latency_seconds",
		Help:    "Reference detection call latency in seconds",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0},
	})

	referencesEmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "speech_gateway_references_emitted_total",
		Help: "Resolved scripture references delivered to consumers",
	})

	referencesSuppressed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "speech_gateway_references_suppressed_total",
		Help: "Detected references dropped before emission",
	}, []string{"reason"}) // reason: "duplicate", "low_confidence", "unresolved"

	commandsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "speech_gateway_commands_emitted_total",
		Help: "Navigation commands delivered to consumers",
	}, []string{"type"})

	// Error metrics
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "speech_gateway_errors_total",
		Help: "Total number of errors",
	}, []string{"type", "component"})

	// Circuit breaker metrics
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "speech_gateway_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"service"})

	circuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "speech_gateway_circuit_breaker_failures_total",
		Help: "Total circuit breaker failures",
	}, []string{"service"})
)

// RecordSessionState marks the given state active and all others inactive.
func RecordSessionState(state string) {
	for _, s := range []string{"idle", "loading", "listening", "transcribing", "error"} {
		v := 0.0
		if s == state {
			v = 1.0
		}
		sessionState.WithLabelValues(s).Set(v)
	}
}

// RecordSessionStart counts a new listening session.
func RecordSessionStart() {
	sessionsTotal.Inc()
}

// RecordUtteranceFlushed records a flushed utterance and its duration.
func RecordUtteranceFlushed(trigger string, seconds float64) {
	utterancesFlushed.WithLabelValues(trigger).Inc()
	utteranceDuration.Observe(seconds)
}

// RecordUtteranceDiscarded records an utterance dropped before transcription.
func RecordUtteranceDiscarded(reason string) {
	utterancesDiscarded.WithLabelValues(reason).Inc()
}

// RecordTranscription records a completed transcription job.
func RecordTranscription(success bool, seconds float64) {
	status := "success"
	if !success {
		status = "error"
	}
	transcriptions.WithLabelValues(status).Inc()
	if success {
		transcriptionLatency.Observe(seconds)
	}
}

// RecordTranscriptFiltered records a transcript rejected by the output filter.
func RecordTranscriptFiltered(reason string) {
	transcriptsFiltered.WithLabelValues(reason).Inc()
}

// RecordPendingJobMerged records a flush merged into the pending slot.
func RecordPendingJobMerged() {
	pendingJobsMerged.Inc()
}

// RecordDetectionCall records a reference detection call.
func RecordDetectionCall(success bool, seconds float64) {
	status := "success"
	if !success {
		status = "error"
	}
	detectionCalls.WithLabelValues(status).Inc()
	if success {
		detectionLatency.Observe(seconds)
	}
}

// RecordReferenceEmitted counts a resolved reference delivered downstream.
func RecordReferenceEmitted() {
	referencesEmitted.Inc()
}

// RecordReferenceSuppressed counts a candidate dropped before emission.
func RecordReferenceSuppressed(reason string) {
	referencesSuppressed.WithLabelValues(reason).Inc()
}

// RecordCommandEmitted counts a navigation command delivered downstream.
func RecordCommandEmitted(commandType string) {
	commandsEmitted.WithLabelValues(commandType).Inc()
}

// RecordError records an error by type and component.
func RecordError(errorType, component string) {
	errorsTotal.WithLabelValues(errorType, component).Inc()
}

// UpdateCircuitBreakerState updates the circuit breaker state metric.
func UpdateCircuitBreakerState(service string, state int) {
	circuitBreakerState.WithLabelValues(service).Set(float64(state))
}

// IncrementCircuitBreakerFailures increments the breaker failure counter.
func IncrementCircuitBreakerFailures(service string) {
	circuitBreakerFailures.WithLabelValues(service).Inc()
}
