package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/gorustyt/navquery/detour"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func smallConfig() *Config {
	cfg := DefaultConfig()
	cfg.World = WorldConfig{TilesX: 2, TilesZ: 2, CellsPerTile: 4, Seed: 3}
	cfg.Agents.Count = 8
	cfg.Agents.Speed = 0.5
	cfg.Ticks = 200
	cfg.IterBudget = 100
	return cfg
}

func TestRunBenchOpenWorld(t *testing.T) {
	cfg := smallConfig()
	res, err := RunBench(context.Background(), cfg)
	require.NoError(t, err)

	assert.Equal(t, cfg.Ticks, res.Ticks)
	assert.Positive(t, res.Requests)
	assert.Positive(t, res.Completed)
	assert.Positive(t, res.Iterations)
	assert.Positive(t, res.Arrived)
	// Every cell is reachable.
	assert.Zero(t, res.Partial)
	assert.Zero(t, res.Failed)
	assert.Zero(t, res.TileReloads)
	assert.LessOrEqual(t, res.MinWallDist, cfg.Agents.CollisionRange)
}

func TestRunBenchIsDeterministic(t *testing.T) {
	cfg := smallConfig()
	cfg.World.BlockedRatio = 0.2
	a, err := RunBench(context.Background(), cfg)
	require.NoError(t, err)
	b, err := RunBench(context.Background(), cfg)
	require.NoError(t, err)

	a.Elapsed, b.Elapsed = 0, 0
	assert.Equal(t, a, b)
}

func TestRunBenchTileReloads(t *testing.T) {
	cfg := smallConfig()
	cfg.Ticks = 100
	cfg.World.ReloadEvery = 10
	res, err := RunBench(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, 9, res.TileReloads)
	assert.Positive(t, res.Completed)
}

func TestRunBenchCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := RunBench(ctx, smallConfig())
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	assert.Zero(t, res.Ticks)
}

func TestRunBenchBadConfig(t *testing.T) {
	cfg := smallConfig()
	cfg.IterBudget = 0
	_, err := RunBench(context.Background(), cfg)
	assert.ErrorIs(t, err, errBadConfig)
}

func TestExportWorldMatchesBench(t *testing.T) {
	cfg := smallConfig()
	cfg.World.BlockedRatio = 0.2
	var buf bytes.Buffer
	require.NoError(t, ExportWorld(cfg, &buf))
	loaded, err := detour.LoadNavMeshSet(&buf)
	require.NoError(t, err)

	b, err := newBench(cfg)
	require.NoError(t, err)
	for _, c := range b.cells {
		ref := b.world.PolyRefAt(b.nav, c)
		require.NotZero(t, ref)
		assert.Equal(t, ref, b.world.PolyRefAt(loaded, c), "%v", c)
	}
}
