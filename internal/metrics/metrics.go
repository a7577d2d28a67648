package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CallsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "santacall_calls_active",
		Help: "Currently active streaming call sessions",
	})

	CallsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "santacall_calls_total",
		Help: "Total streaming calls accepted",
	})

	TurnsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "santacall_turns_total",
		Help: "Conversation turns processed by the speech pipeline",
	})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "santacall_stage_duration_seconds",
		Help:    "Per-stage latency",
		Buckets: []float64{0.05, 0.1, 0.2, 0.3, 0.5, 0.8, 1.0, 2.0, 5.0},
	}, []string{"stage"})

	TurnDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "santacall_turn_duration_seconds",
		Help:    "End-to-end latency from utterance upload to reply",
		Buckets: []float64{0.1, 0.2, 0.5, 0.8, 1.0, 1.5, 2.0, 3.0, 5.0},
	})

	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "santacall_errors_total",
		Help: "Error counts by stage",
	}, []string{"stage", "error_type"})

	Fallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "santacall_fallbacks_total",
		Help: "Replies degraded by a stage failure (llm fallback line, tts null audio)",
	}, []string{"stage"})

	EmptyTranscripts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "santacall_empty_transcripts_total",
		Help: "Uploads whose transcription yielded no usable text",
	})
)
