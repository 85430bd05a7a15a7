package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"

	"github.com/javajoker/crm-governance/internal/config"
)

func TestInitTracingDisabled(t *testing.T) {
	shutdown, err := InitTracing(config.TracingConfig{Enabled: false, ServiceName: "test"}, "test")
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))

	ctx, span := StartSpan(context.Background(), "decision.create", attribute.String("purpose", "Close"))
	assert.NotNil(t, ctx)
	span.AddAttributes(attribute.Int("steps", 2))
	span.End(errors.New("boom"))
}

func TestInitTracingStdout(t *testing.T) {
	shutdown, err := InitTracing(config.TracingConfig{
		Enabled:     true,
		ServiceName: "test",
		Exporter:    "stdout",
		SampleRatio: 1,
	}, "test")
	require.NoError(t, err)
	defer func() { _ = shutdown(context.Background()) }()

	_, span := StartSpan(context.Background(), "scoring.compute")
	assert.NotEmpty(t, span.TraceID())
	span.End(nil)
}

func TestObserveDecision(t *testing.T) {
	before := testutil.CollectAndCount(DecisionLatency)
	created := time.Now().Add(-time.Hour)
	ObserveDecision("Discount-test", "Approved", created, time.Now())
	assert.Equal(t, before+1, testutil.CollectAndCount(DecisionLatency))
}
