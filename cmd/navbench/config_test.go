package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "navbench.hjson")
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	path := writeConfig(t, "\xEF\xBB\xBF"+`{
  # only what differs from the defaults
  world: {
    tilesX: 2
    cellsPerTile: 4
  }
  ticks: 50
  queue: {
    keepAlive: 4
  }
  logger: {
    level: DEBUG
  }
}`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	def := DefaultConfig()
	assert.EqualValues(t, 2, cfg.World.TilesX)
	assert.Equal(t, def.World.TilesZ, cfg.World.TilesZ)
	assert.Equal(t, 4, cfg.World.CellsPerTile)
	assert.Equal(t, 50, cfg.Ticks)
	assert.Equal(t, def.IterBudget, cfg.IterBudget)
	assert.Equal(t, 4, cfg.Queue.KeepAlive)
	assert.Equal(t, def.Queue.MaxPathSize, cfg.Queue.MaxPathSize)
	assert.Equal(t, "DEBUG", cfg.Logger.Level)
	assert.Equal(t, def.Logger.AppName, cfg.Logger.AppName)
}

func TestConfigMarshalLoadsBack(t *testing.T) {
	cfg := DefaultConfig()
	cfg.World.ReloadEvery = 7
	cfg.Agents.Count = 5
	out, err := cfg.Marshal()
	require.NoError(t, err)

	loaded, err := LoadConfig(writeConfig(t, string(out)))
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.hjson"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = LoadConfig(writeConfig(t, "{ ticks: [ }"))
	assert.Error(t, err)

	_, err = LoadConfig(writeConfig(t, `{
  ticks: 0
  world: {
    blockedRatio: 1
  }
  logger: {
    level: LOUD
  }
}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, errBadConfig)
	assert.Contains(t, err.Error(), "ticks 0")
	assert.Contains(t, err.Error(), "blockedRatio")
	assert.Contains(t, err.Error(), "LOUD")
}

func TestConfigValidateAgents(t *testing.T) {
	cfg := DefaultConfig()
	cfg.World = WorldConfig{TilesX: 1, TilesZ: 1, CellsPerTile: 2}
	cfg.Agents.Count = 5
	err := cfg.Validate()
	assert.ErrorIs(t, err, errBadConfig)
	assert.Contains(t, err.Error(), "agent count 5")

	cfg.Agents.Count = 4
	assert.NoError(t, cfg.Validate())
}
