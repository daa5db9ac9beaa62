package execution_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/karva-go/karva/internal/execution"
	"github.com/karva-go/karva/internal/fixtures"
	"github.com/karva-go/karva/internal/guest"
	"github.com/karva-go/karva/pkg/observability"
)

func TestRunner_TracerRecordsOneSpanPerVariant(t *testing.T) {
	t.Parallel()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { require.NoError(t, tp.Shutdown(context.Background())) })

	test := &fixtures.TestDef{
		Qualified: qn("m", "test_ok"),
		Callable: &fakeCallable{name: "test_ok", fn: func(context.Context, guest.KWArgs) (guest.Value, error) {
			return nil, nil
		}},
	}

	r := execution.NewRunner(fixtures.DefaultBuiltIns(), nil, 0)
	r.Tracer = tp.Tracer("test")

	results, err := r.Run(context.Background(), treeWithTest(test, nil))
	require.NoError(t, err)
	require.Len(t, results, 1)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "execution.variant", spans[0].Name)
}

func TestRunner_MetricsRecordsErrorStatusOnFailure(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	red, err := observability.NewREDMetrics(mp.Meter("test"))
	require.NoError(t, err)

	failing := &fixtures.TestDef{
		Qualified: qn("m", "test_fail"),
		Callable: &fakeCallable{name: "test_fail", fn: func(context.Context, guest.KWArgs) (guest.Value, error) {
			return nil, errors.New("boom")
		}},
	}

	r := execution.NewRunner(fixtures.DefaultBuiltIns(), nil, 0)
	r.Metrics = red

	results, runErr := r.Run(context.Background(), treeWithTest(failing, nil))
	require.NoError(t, runErr)
	require.Len(t, results, 1)
	assert.Equal(t, execution.Failed, results[0].Outcome)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	found := false
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == "codefang.errors.total" {
				found = true
			}
		}
	}
	assert.True(t, found, "expected an error count recorded for the failed variant")
}

func TestRunner_NilTracerAndMetrics_NoPanic(t *testing.T) {
	t.Parallel()

	test := &fixtures.TestDef{
		Qualified: qn("m", "test_ok"),
		Callable: &fakeCallable{name: "test_ok", fn: func(context.Context, guest.KWArgs) (guest.Value, error) {
			return nil, nil
		}},
	}

	r := execution.NewRunner(fixtures.DefaultBuiltIns(), nil, 0)

	assert.NotPanics(t, func() {
		_, err := r.Run(context.Background(), treeWithTest(test, nil))
		require.NoError(t, err)
	})
}
