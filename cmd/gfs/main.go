package main

import (
	"context"
	"flag"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/brettbedarf/gfs/config"
	"github.com/brettbedarf/gfs/internal/util"
	"github.com/brettbedarf/gfs/requests"
	"github.com/brettbedarf/gfs/server"
	"github.com/dustin/go-humanize"
)

func main() {
	// Parse command line arguments
	var (
		configPath string
		envPath    string
		nodesPath  string
		verbose    int
		umount     bool
	)
	flag.StringVar(&configPath, "config", "", "Path to a YAML or JSON config file")
	flag.StringVar(&configPath, "c", "", "--config (shorthand)")
	flag.StringVar(&envPath, "env", "", "Path to a dotenv file of GFS_* settings, applied after --config")
	flag.StringVar(&nodesPath, "nodes", "", "Path to a JSON or YAML file of nodes to create before serving")
	flag.StringVar(&nodesPath, "n", "", "--nodes (shorthand)")
	flag.BoolVar(&umount, "umount", false,
		"Unmount the fs first if needed before mounting again. Useful for debuggers that don't exit properly.")
	flag.BoolVar(&umount, "u", false, "--umount (shorthand)")
	flag.IntVar(&verbose, "verbose", config.InfoVerbose, "Log verbosity level between 1 (error) and 5 (trace). Default is 3 (info).")
	flag.IntVar(&verbose, "v", config.InfoVerbose, "--verbose (shorthand)")
	flag.Parse()

	verboseSet := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "verbose" || f.Name == "v" {
			verboseSet = true
		}
	})

	// Initialize logger early so config errors are reported
	util.InitializeLogger(config.LevelFromVerbosity(verbose))
	logger := util.GetLogger("main")

	cfg := config.NewDefaultConfig()
	if configPath != "" {
		override, err := config.LoadConfigOverrideFile(configPath)
		if err != nil {
			logger.Fatal().Err(err).Str("config", configPath).Msg("Failed to load config file")
		}
		cfg.Merge(override)
	}
	if envPath != "" {
		override, err := config.LoadEnvOverrideFile(envPath)
		if err != nil {
			logger.Fatal().Err(err).Str("env", envPath).Msg("Failed to load env file")
		}
		cfg.Merge(override)
	}
	if verboseSet {
		cfg.Merge(&config.ConfigOverride{LogLvl: &verbose})
	}
	util.InitializeLogger(cfg.LogLvl)
	logger = util.GetLogger("main")

	mnt := flag.Arg(0)
	logger.Info().
		Int("logLevel", cfg.LogLvl).
		Str("config", configPath).
		Str("env", envPath).
		Str("nodes", nodesPath).
		Str("mnt", mnt).
		Msg("gfs server initializing")
	// Check if mount point is provided
	if mnt == "" {
		logger.Fatal().Msg("Mount point not specified; it must be passed as the argument")
	}
	// Try unmount if requested
	if umount { // send cli command
		cmd := exec.Command("fusermount", "-u", mnt)
		// we ignore error here if not already mounted
		cmd.Run() // nolint:errcheck
	}

	fs, err := server.New(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create filesystem")
	}

	if nodesPath != "" {
		reqs, err := requests.LoadFile(nodesPath)
		if err != nil {
			logger.Fatal().Err(err).Str("nodes", nodesPath).Msg("Failed to load nodes file")
		}
		res, err := requests.Apply(context.Background(), fs.FileSystem, reqs)
		if err != nil {
			logger.Warn().Err(err).Int("failed", res.Failed).Msg("Some nodes could not be created")
		}
		logger.Info().Int("created", res.Created).Msg("Loaded nodes")
	}

	// Serve
	if err := fs.Serve(mnt); err != nil {
		logger.Fatal().Err(err).Msg("Failed to mount filesystem")
	}

	// Setup signal handling for graceful shutdown
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	logger.Info().Str("mountpoint", mnt).Msg("Filesystem mounted successfully")

	// Wait for termination signal or an external unmount
	unmounted := make(chan struct{})
	go func() {
		fs.Wait()
		close(unmounted)
	}()
	select {
	case sig := <-signalChan:
		logger.Info().Str("signal", sig.String()).Msg("Received signal, unmounting filesystem")
	case <-unmounted:
		logger.Info().Msg("Filesystem unmounted externally")
	}

	stats := fs.Stats()
	// Unmount the filesystem
	if err := fs.Unmount(); err != nil {
		logger.Error().Err(err).Msg("Failed to unmount filesystem")
	} else {
		logger.Info().
			Str("nodes", humanize.Comma(int64(stats.Live))).
			Msg("Filesystem unmounted successfully")
	}
}
