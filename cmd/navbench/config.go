package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/gorustyt/navquery/common/logger"
	"github.com/gorustyt/navquery/detour_crowd"
	"github.com/hjson/hjson-go/v4"
	"go.uber.org/multierr"
)

var errBadConfig = errors.New("navbench: bad config")

type WorldConfig struct {
	TilesX       int32   `json:"tilesX"`
	TilesZ       int32   `json:"tilesZ"`
	CellsPerTile int     `json:"cellsPerTile"`
	BlockedRatio float64 `json:"blockedRatio"` // share of cells turned into holes
	Seed         int64   `json:"seed"`
	// Every ReloadEvery ticks one tile is removed, re-encoded and added back
	// under a new salt. Zero disables it.
	ReloadEvery int `json:"reloadEvery"`
}

type AgentConfig struct {
	Count          int     `json:"count"`
	Speed          float32 `json:"speed"` // distance per tick
	MaxPath        int     `json:"maxPath"`
	CollisionRange float32 `json:"collisionRange"`
	OptimizeEvery  int     `json:"optimizeEvery"` // ticks between corridor optimizations
}

type Config struct {
	World      WorldConfig                    `json:"world"`
	Agents     AgentConfig                    `json:"agents"`
	Ticks      int                            `json:"ticks"`
	IterBudget int                            `json:"iterBudget"` // path queue iterations per tick
	Queue      detour_crowd.DtPathQueueConfig `json:"queue"`
	Logger     logger.Config                  `json:"logger"`
}

func DefaultConfig() *Config {
	return &Config{
		World: WorldConfig{
			TilesX:       4,
			TilesZ:       4,
			CellsPerTile: 8,
			BlockedRatio: 0.15,
			Seed:         1,
		},
		Agents: AgentConfig{
			Count:          32,
			Speed:          0.35,
			MaxPath:        256,
			CollisionRange: 1.5,
			OptimizeEvery:  8,
		},
		Ticks:      600,
		IterBudget: 200,
		Queue:      detour_crowd.DefaultDtPathQueueConfig(),
		Logger: logger.Config{
			AppName: "navbench",
			Level:   "INFO",
			Console: true,
		},
	}
}

// LoadConfig reads an HJSON config file over the defaults. An empty path
// returns the defaults.
func LoadConfig(path string) (*Config, error) {
	c := DefaultConfig()
	if path != "" {
		if err := c.load(path); err != nil {
			return nil, err
		}
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) load(path string) error {
	fileData, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	if len(fileData) >= 3 && fileData[0] == 0xEF && fileData[1] == 0xBB && fileData[2] == 0xBF {
		fileData = fileData[3:]
	}
	if err = hjson.Unmarshal(fileData, c); err != nil {
		return fmt.Errorf("parse config %v: %w", path, err)
	}
	return nil
}

func (c *Config) Validate() (err error) {
	w := c.World
	if w.TilesX <= 0 || w.TilesZ <= 0 || w.CellsPerTile <= 0 {
		err = multierr.Append(err, fmt.Errorf("%w: world %dx%d tiles of %d cells", errBadConfig, w.TilesX, w.TilesZ, w.CellsPerTile))
	}
	if w.BlockedRatio < 0 || w.BlockedRatio >= 1 {
		err = multierr.Append(err, fmt.Errorf("%w: blockedRatio %v not in [0,1)", errBadConfig, w.BlockedRatio))
	}
	if w.ReloadEvery < 0 {
		err = multierr.Append(err, fmt.Errorf("%w: reloadEvery %d", errBadConfig, w.ReloadEvery))
	}
	a := c.Agents
	if a.Count <= 0 || a.Count > int(w.TilesX*w.TilesZ)*w.CellsPerTile*w.CellsPerTile {
		err = multierr.Append(err, fmt.Errorf("%w: agent count %d", errBadConfig, a.Count))
	}
	if a.Speed <= 0 || a.MaxPath < 3 || a.CollisionRange <= 0 || a.OptimizeEvery < 0 {
		err = multierr.Append(err, fmt.Errorf("%w: agent speed %v maxPath %d collisionRange %v optimizeEvery %d",
			errBadConfig, a.Speed, a.MaxPath, a.CollisionRange, a.OptimizeEvery))
	}
	if c.Ticks <= 0 || c.IterBudget <= 0 {
		err = multierr.Append(err, fmt.Errorf("%w: ticks %d iterBudget %d", errBadConfig, c.Ticks, c.IterBudget))
	}
	if _, lerr := logger.ParseLogLevel(c.Logger.Level); lerr != nil {
		err = multierr.Append(err, fmt.Errorf("%w: %v", errBadConfig, lerr))
	}
	return err
}

// Marshal renders the config as HJSON, the format LoadConfig reads.
func (c *Config) Marshal() ([]byte, error) {
	return hjson.Marshal(c)
}
