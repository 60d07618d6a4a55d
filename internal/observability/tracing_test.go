package observability

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestInitTracing_None(t *testing.T) {
	before := otel.GetTracerProvider()

	for _, name := range []string{"", "none", "NONE"} {
		shutdown, err := InitTracing(context.Background(), TracingConfig{Exporter: name}, testLogger())
		require.NoError(t, err)
		require.NoError(t, shutdown(context.Background()))
	}

	assert.Equal(t, before, otel.GetTracerProvider(), "provider left untouched")
}

func TestInitTracing_Unknown(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), TracingConfig{Exporter: "zipkin"}, testLogger())
	assert.ErrorIs(t, err, ErrUnknownExporter)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
}

func TestInitTracing_Stdout(t *testing.T) {
	before := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(before) })

	var buf bytes.Buffer
	shutdown, err := InitTracing(context.Background(), TracingConfig{
		Exporter:    "stdout",
		ServiceName: "zinara-test",
		Writer:      &buf,
	}, testLogger())
	require.NoError(t, err)

	_, span := otel.Tracer("test").Start(context.Background(), "generation.submit")
	span.End()

	require.NoError(t, shutdown(context.Background()))
	assert.Contains(t, buf.String(), "generation.submit")
	assert.Contains(t, buf.String(), "zinara-test")
}
