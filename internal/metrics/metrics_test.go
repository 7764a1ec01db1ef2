package metrics_test

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/liminalqa/liminal/internal/metrics"
)

func TestRegistry_ObserveTest(t *testing.T) {
	r := metrics.New()

	r.ObserveTest("checkout_flow", "checkout", "pass", 150, true)
	r.ObserveTest("checkout_flow", "checkout", "fail", 300, false)

	require.Equal(t, float64(1), testutil.ToFloat64(r.TestsPassed.WithLabelValues("checkout_flow", "checkout", "pass")))
	require.Equal(t, float64(1), testutil.ToFloat64(r.TestsFailed.WithLabelValues("checkout_flow", "checkout", "fail")))
}

func TestRegistry_SetBaseline(t *testing.T) {
	r := metrics.New()

	r.SetBaseline("checkout_flow", "checkout", 120.5, 15.2)

	require.Equal(t, 120.5, testutil.ToFloat64(r.BaselineMean.WithLabelValues("checkout_flow", "checkout")))
	require.Equal(t, 15.2, testutil.ToFloat64(r.BaselineStddev.WithLabelValues("checkout_flow", "checkout")))
}

func TestRegistry_GathererExposesMetricNames(t *testing.T) {
	r := metrics.New()
	r.ObserveTest("checkout_flow", "checkout", "pass", 50, true)

	mfs, err := r.Gatherer().Gather()
	require.NoError(t, err)

	var names []string
	for _, mf := range mfs {
		names = append(names, mf.GetName())
	}

	joined := strings.Join(names, ",")
	require.Contains(t, joined, "liminal_tests_total")
	require.Contains(t, joined, "liminal_test_duration_seconds")
}
