package metrics

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounterValue(t *testing.T) {
	labels := map[string]string{"source": "test", "status": "completed"}
	before := CounterValue("wardrobe_outfits_generation_runs_total", labels)

	GenerationRuns.WithLabelValues("test", "completed").Inc()
	GenerationRuns.WithLabelValues("test", "completed").Inc()

	assert.Equal(t, before+2, CounterValue("wardrobe_outfits_generation_runs_total", labels))
	assert.Equal(t, 0.0, CounterValue("wardrobe_outfits_generation_runs_total", map[string]string{"source": "nope"}))
}

func TestHandlerExposesCollectors(t *testing.T) {
	ExtractionStrategy.WithLabelValues("direct", "object").Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "wardrobe_llmjson_extractions_total")
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
