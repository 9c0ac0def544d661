// Package metrics holds the Prometheus collectors shared by the API and the worker.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "wardrobe"

// Registry is separate from the default registerer so tests can gather it in isolation.
var Registry = prometheus.NewRegistry()

var (
	// ExtractionStrategy counts which JSON recovery strategy produced a value.
	ExtractionStrategy = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "llmjson",
		Name:      "extractions_total",
		Help:      "JSON extractions by winning strategy and expected shape.",
	}, []string{"strategy", "shape"})

	LLMRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "llm",
		Name:      "requests_total",
		Help:      "Calls to the text generator by operation and outcome.",
	}, []string{"operation", "outcome"})

	LLMLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "llm",
		Name:      "request_duration_seconds",
		Help:      "Latency of calls to the text generator.",
		Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 60},
	}, []string{"operation"})

	RetryAttempts = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "llm",
		Name:      "retry_attempts_total",
		Help:      "Retried attempts against the text generator.",
	})

	// GenerationRuns counts outfit generation runs by source (ai, local) and status.
	GenerationRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "outfits",
		Name:      "generation_runs_total",
		Help:      "Outfit generation runs by source and status.",
	}, []string{"source", "status"})

	ClothingProcessed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "clothes",
		Name:      "processed_total",
		Help:      "Processed clothing uploads by analysis source.",
	}, []string{"source"})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		ExtractionStrategy,
		LLMRequests,
		LLMLatency,
		RetryAttempts,
		GenerationRuns,
		ClothingProcessed,
	)
}

func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// CounterValue reads the current value of one labelled counter from the registry.
// It returns 0 when the series has not been created yet.
func CounterValue(name string, labels map[string]string) float64 {
	families, err := Registry.Gather()
	if err != nil {
		return 0
	}
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, m := range family.GetMetric() {
			if matches(m.GetLabel(), labels) {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

type labelPair interface {
	GetName() string
	GetValue() string
}

func matches[L labelPair](pairs []L, want map[string]string) bool {
	if len(pairs) != len(want) {
		return false
	}
	for _, p := range pairs {
		if want[p.GetName()] != p.GetValue() {
			return false
		}
	}
	return true
}
