package tracing

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/traffic-tacos/user-auth-api/internal/config"
)

func TestInit_Disabled(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	shutdown, err := Init(&config.Config{}, logger)
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestInit_StdoutExporter(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	cfg := &config.Config{}
	cfg.Observability.TracingEnabled = true
	cfg.Observability.TraceExporter = "stdout"
	cfg.Observability.SampleRate = 0

	shutdown, err := Init(cfg, logger)
	require.NoError(t, err)

	ctx, span := StartSpan(context.Background(), "test")
	assert.NotNil(t, ctx)
	RecordError(span, errors.New("boom"))
	RecordError(span, nil)
	span.End()

	assert.NoError(t, shutdown(context.Background()))
}
