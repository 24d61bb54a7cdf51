package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/gorustyt/navquery/common/logger"
	"github.com/spf13/cobra"
)

var VERSION = "UNKNOWN"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := RootCmd().ExecuteContext(ctx); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func RootCmd() *cobra.Command {
	c := &cobra.Command{
		Use:          "navbench",
		Short:        "tiled navmesh query bench",
		SilenceUsage: true,
	}
	c.AddCommand(RunCmd(), ConfigCmd(), ExportCmd(), VersionCmd())
	return c
}

func RunCmd() *cobra.Command {
	var (
		configFile string
		agents     int
		ticks      int
		budget     int
		seed       int64
		reload     int
		level      string
	)
	c := &cobra.Command{
		Use:   "run",
		Short: "move agents across a generated world through the path queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(configFile)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("agents") {
				cfg.Agents.Count = agents
			}
			if flags.Changed("ticks") {
				cfg.Ticks = ticks
			}
			if flags.Changed("budget") {
				cfg.IterBudget = budget
			}
			if flags.Changed("seed") {
				cfg.World.Seed = seed
			}
			if flags.Changed("reload") {
				cfg.World.ReloadEvery = reload
			}
			if flags.Changed("log-level") {
				cfg.Logger.Level = level
			}
			if err = cfg.Validate(); err != nil {
				return err
			}
			if err = logger.InitLogger(&cfg.Logger); err != nil {
				return err
			}
			defer logger.CloseLogger()

			res, err := RunBench(cmd.Context(), cfg)
			if res != nil {
				logger.Info("ticks %d requests %d rejected %d completed %d partial %d failed %d",
					res.Ticks, res.Requests, res.Rejected, res.Completed, res.Partial, res.Failed)
				logger.Info("iterations %d arrived %d replanned %d tile reloads %d min wall dist %.3f elapsed %v",
					res.Iterations, res.Arrived, res.Replanned, res.TileReloads, res.MinWallDist, res.Elapsed)
			}
			return err
		},
	}
	c.Flags().StringVar(&configFile, "config", "", "hjson config file")
	c.Flags().IntVar(&agents, "agents", 0, "agent count")
	c.Flags().IntVar(&ticks, "ticks", 0, "ticks to run")
	c.Flags().IntVar(&budget, "budget", 0, "path queue iterations per tick")
	c.Flags().Int64Var(&seed, "seed", 0, "world seed")
	c.Flags().IntVar(&reload, "reload", 0, "reload a tile every n ticks")
	c.Flags().StringVar(&level, "log-level", "", "DEBUG, INFO, WARN or ERROR")
	return c
}

// ConfigCmd prints the effective config as hjson.
func ConfigCmd() *cobra.Command {
	var configFile string
	c := &cobra.Command{
		Use:   "config",
		Short: "print the effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(configFile)
			if err != nil {
				return err
			}
			out, err := cfg.Marshal()
			if err != nil {
				return err
			}
			cmd.Println(string(out))
			return nil
		},
	}
	c.Flags().StringVar(&configFile, "config", "", "hjson config file")
	return c
}

// ExportCmd writes the generated world as a navmesh set file.
func ExportCmd() *cobra.Command {
	var configFile, out string
	c := &cobra.Command{
		Use:   "export",
		Short: "write the generated world as a navmesh set",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(configFile)
			if err != nil {
				return err
			}
			f, err := os.Create(out)
			if err != nil {
				return err
			}
			if err = ExportWorld(cfg, f); err != nil {
				_ = f.Close()
				return err
			}
			return f.Close()
		},
	}
	c.Flags().StringVar(&configFile, "config", "", "hjson config file")
	c.Flags().StringVarP(&out, "out", "o", "world.bin", "output file")
	return c
}

func VersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "print the version",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println(VERSION)
		},
	}
}
