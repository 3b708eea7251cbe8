package server

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SignalFuse/internal/services/fusion"
	"SignalFuse/internal/usecase"
	"SignalFuse/pkg/config"
)

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func TestShutdownStopsRunnerAndClosesInReverse(t *testing.T) {
	cfg, err := config.Default()
	require.NoError(t, err)

	runner := usecase.NewEngineRunner(fusion.NewEngine())
	require.NoError(t, runner.Start(context.Background()))

	var order []string
	app := New(cfg, nil, runner, nil)
	app.AddCloser("clickhouse", closerFunc(func() error { order = append(order, "clickhouse"); return nil }))
	app.AddCloser("redis", closerFunc(func() error { order = append(order, "redis"); return errors.New("boom") }))
	app.AddCloser("nil", nil)

	err = app.Shutdown(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis: boom")
	assert.Equal(t, []string{"redis", "clickhouse"}, order)

	_, err = runner.Predict(context.Background(), "AAPL", "")
	assert.ErrorIs(t, err, usecase.ErrRunnerStopped)
}

func TestShutdownWithoutStart(t *testing.T) {
	cfg, err := config.Default()
	require.NoError(t, err)
	app := New(cfg, nil, usecase.NewEngineRunner(fusion.NewEngine()), nil, WithCollector(nil), WithConsumer(nil))
	assert.NoError(t, app.Shutdown(context.Background()))
}
