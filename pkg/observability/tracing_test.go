package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInit_RequiresOTLPEndpoint(t *testing.T) {
	_, err := Init(context.Background(), Config{ServiceName: "tracepilot"})
	require.Error(t, err)
}

func TestInit_ReturnsShutdownFunc(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{
		ServiceName:    "tracepilot",
		ServiceVersion: "test",
		Environment:    "test",
		OTLPEndpoint:   "localhost:4318",
		Insecure:       true,
	})
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	require.NoError(t, shutdown(context.Background()))
}

func TestTracer_ReturnsNonNilTracer(t *testing.T) {
	require.NotNil(t, Tracer("tracepilot/ingest"))
}
