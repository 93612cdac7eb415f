package main

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ja7ad/intrd/pkg/intrd"
	"github.com/ja7ad/intrd/pkg/kstat"
)

func TestFormatRFC3339Millis(t *testing.T) {
	ts := time.Date(2024, 3, 9, 7, 5, 4, 123_456_789, time.FixedZone("x", 3600))
	assert.Equal(t, "2024-03-09T06:05:04.123Z", formatRFC3339Millis(ts))
}

func TestNewLogger_Levels(t *testing.T) {
	ctx := context.Background()
	assert.False(t, newLogger(false).Enabled(ctx, slog.LevelDebug))
	assert.True(t, newLogger(true).Enabled(ctx, slog.LevelDebug))
}

func TestReplay_ImbalancedScenario(t *testing.T) {
	sc, err := kstat.LoadScenario("testdata/imbalanced.yaml")
	require.NoError(t, err)

	cfg := intrd.DefaultConfig()
	cfg.StatsLen = 20 * time.Second
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	binder, d, err := replay(ctx, log, cfg, sc)
	require.NoError(t, err)
	require.NotNil(t, d)
	require.NoError(t, ctx.Err(), "replay should end with the scenario, not the timeout")

	moves := binder.Moves()
	require.NotEmpty(t, moves)
	assert.Equal(t, uint64(2), moves[0].Ino)
	for _, m := range moves {
		assert.Equal(t, 0, m.OldCPU)
		assert.Equal(t, 1, m.CPU)
	}
}

func TestReplay_NoInterrupts(t *testing.T) {
	sc, err := kstat.ParseScenario([]byte(`
steps:
  - snaptime: 1
    cpus:
      - {id: 0}
      - {id: 1}
`))
	require.NoError(t, err)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	binder, d, err := replay(context.Background(), log, intrd.DefaultConfig(), sc)
	require.NoError(t, err)
	assert.Nil(t, d)
	assert.Nil(t, binder)
}
