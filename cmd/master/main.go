// Command master runs the swarm simulation's master process: it accepts
// exactly num_workers JOINs, negotiates universe parameters and the
// initial population, then drives the run to completion and writes the
// final-positions dump.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"swarmring/internal/buildinfo"
	"swarmring/internal/logging"
	"swarmring/internal/masterd"
	"swarmring/internal/netutil"
	"swarmring/internal/protocol"
	"swarmring/internal/runconfig"
	"swarmring/internal/telemetry"
	"swarmring/internal/worldcfg"
)

func main() {
	tp := telemetry.NewProvider()
	defer func() {
		_ = telemetry.Shutdown(context.Background(), tp)
	}()

	if err := logging.Configure(logging.LevelInfo); err != nil {
		_, _ = os.Stderr.WriteString("configure logger: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := rootCmd().Execute(); err != nil {
		slog.Error("command failed", "err", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		listenAddr string
		numWorkers int32
		population int32
		numUpdates int32
		worldSize  int32
		robotRange int32
		numBlocks  int32
		fovDegrees int32
		invert     bool
		debug      bool
		viz        bool
		seed       int64
		dumpPath   string
		configPath string
	)

	cmd := &cobra.Command{
		Use:     "master",
		Short:   "Run the swarm simulation master",
		Version: buildinfo.Version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := logging.LevelInfo
			if debug {
				level = logging.LevelDebug
			}
			return logging.Configure(level)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath != "" {
				rc, err := runconfig.Load(configPath)
				if err != nil {
					return err
				}
				applyRunConfig(rc, &numWorkers, &population, &numUpdates, &worldSize, &robotRange, &numBlocks, &fovDegrees, &invert, &debug, &viz, &dumpPath)
			}
			if numBlocks == 0 {
				numBlocks = worldcfg.MaxAdmissibleNumBlocks(worldSize, robotRange)
			}

			params := protocol.UniverseParameters{
				WorldSize:       worldSize,
				RobotRange:      robotRange,
				NumUpdates:      numUpdates,
				NumBlocks:       numBlocks,
				VisualizationOn: viz,
				FOVMilliradians: degreesToMilliradians(fovDegrees),
				InvertDirection: invert,
			}
			cfg := params.ToConfig(numWorkers, population)
			cfg.DebugOn = debug
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return masterd.Run(ctx, masterd.Options{
				ListenAddr: listenAddr,
				NumWorkers: numWorkers,
				Params:     params,
				Population: population,
				Seed:       seed,
				DumpPath:   dumpPath,
				DebugOn:    debug,
			})
		},
	}

	cmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging and the per-worker shutdown summary")
	cmd.Flags().StringVar(&listenAddr, "listen", fmt.Sprintf(":%d", netutil.ServerPort), "Lobby listen address")
	cmd.Flags().Int32Var(&numWorkers, "num-workers", 0, "Number of worker processes to expect (>=2, required)")
	cmd.Flags().Int32Var(&population, "population", 0, "Total agent population (>=1, required)")
	cmd.Flags().Int32Var(&numUpdates, "num-updates", -1, "Number of ticks to run (>=0; negative means unlimited)")
	cmd.Flags().Int32Var(&worldSize, "world-size", 1000, "Side length of the toroidal world")
	cmd.Flags().Int32Var(&robotRange, "robot-range", 100, "Sensor range of each agent")
	cmd.Flags().Int32Var(&numBlocks, "num-blocks", 0, "Grid blocks per side (0 = maximum admissible)")
	cmd.Flags().Int32Var(&fovDegrees, "fov-degrees", 270, "Sensor field of view in degrees")
	cmd.Flags().BoolVar(&invert, "invert", false, "Invert agent turning direction")
	cmd.Flags().BoolVar(&viz, "visualization", false, "Enable the block-density visualization feed")
	cmd.Flags().Int64Var(&seed, "seed", 0, "drand48 seed for the initial population")
	cmd.Flags().StringVar(&dumpPath, "dump-path", "robot_positions.txt", "Path for the final-positions dump")
	cmd.Flags().StringVar(&configPath, "config", "", "Optional scripted-run YAML file")

	cmd.MarkFlagRequired("num-workers")
	cmd.MarkFlagRequired("population")
	return cmd
}

func applyRunConfig(rc *runconfig.Config, numWorkers, population, numUpdates, worldSize, robotRange, numBlocks, fovDegrees *int32, invert, debug, viz *bool, dumpPath *string) {
	if rc.NumWorkers != 0 {
		*numWorkers = rc.NumWorkers
	}
	if rc.World.Population != 0 {
		*population = rc.World.Population
	}
	if rc.World.NumUpdates != 0 {
		*numUpdates = rc.World.NumUpdates
	}
	if rc.World.WorldSize != 0 {
		*worldSize = rc.World.WorldSize
	}
	if rc.World.RobotRange != 0 {
		*robotRange = rc.World.RobotRange
	}
	if rc.World.NumBlocks != 0 {
		*numBlocks = rc.World.NumBlocks
	}
	if rc.World.FOVDegrees != 0 {
		*fovDegrees = rc.World.FOVDegrees
	}
	*invert = *invert || rc.World.InvertDirection
	*debug = *debug || rc.World.DebugOn
	*viz = *viz || rc.World.VisualizationOn
	if rc.DumpPath != "" {
		*dumpPath = rc.DumpPath
	}
}

func degreesToMilliradians(deg int32) int32 {
	return int32(float64(deg) * float64(worldcfg.PiMilli) / 180.0)
}
