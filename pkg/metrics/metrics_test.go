package metrics

import (
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestNew_RegistersWithoutPanicking(t *testing.T) {
	require.NotPanics(t, func() {
		m := New()
		require.NotNil(t, m.TracesIngested)
		require.NotNil(t, m.LLMRequestDuration)
	})
}

func TestRecordLLMRequest_IncrementsCounterAndTokens(t *testing.T) {
	registry := prometheus.NewRegistry()
	counter := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_llm_requests_total"}, []string{"provider", "model", "status"})
	tokens := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_llm_tokens_total"}, []string{"provider", "model", "type"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: "test_llm_duration_seconds"}, []string{"provider", "model"})
	registry.MustRegister(counter, tokens, duration)

	m := &Metrics{LLMRequestCounter: counter, LLMTokensUsed: tokens, LLMRequestDuration: duration}
	m.RecordLLMRequest("openai", "gpt-4o", "success", 1.5, 100, 40, 10, 0)

	require.Equal(t, 1, testutil.CollectAndCount(counter))

	expected := `
		# HELP test_llm_requests_total
		# TYPE test_llm_requests_total counter
		test_llm_requests_total{model="gpt-4o",provider="openai",status="success"} 1
	`
	require.NoError(t, testutil.CollectAndCompare(counter, strings.NewReader(expected), "test_llm_requests_total"))
}

func TestRecordGrade_IncrementsErrorsOnlyOnFailure(t *testing.T) {
	registry := prometheus.NewRegistry()
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: "test_grade_duration_seconds"}, []string{"grader_id"})
	errs := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_grade_errors_total"}, []string{"grader_id"})
	registry.MustRegister(duration, errs)

	m := &Metrics{GradeRequestDuration: duration, GradeErrors: errs}
	m.RecordGrade("grader-1", 0.5, nil)
	require.Equal(t, 0, testutil.CollectAndCount(errs))

	m.RecordGrade("grader-1", 0.5, errors.New("grading failed"))
	require.Equal(t, 1, testutil.CollectAndCount(errs))
}
