package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/brettbedarf/treefs"
	"github.com/brettbedarf/treefs/config"
	"github.com/brettbedarf/treefs/filesystem"
	"github.com/brettbedarf/treefs/internal/util"
	"github.com/brettbedarf/treefs/persist"
	"github.com/brettbedarf/treefs/requests"
	"github.com/brettbedarf/treefs/server"
	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

func main() {
	// Parse command line arguments
	var (
		configPath string
		envFile    string
		scriptPath string
		output     string
		mnt        string
		verbose    int
		umount     bool
	)
	flag.StringVar(&configPath, "config", "", "Path to a .yaml or .json config file")
	flag.StringVar(&configPath, "c", "", "--config (shorthand)")
	flag.StringVar(&envFile, "env", "", "Path to a .env file with TREEFS_* overrides")
	flag.StringVar(&scriptPath, "script", "", "Path to a .yaml or .json batch of operations to run")
	flag.StringVar(&scriptPath, "s", "", "--script (shorthand)")
	flag.StringVar(&output, "output", "text", "Result format: text, json or yaml")
	flag.StringVar(&output, "o", "text", "--output (shorthand)")
	flag.StringVar(&mnt, "mount", "", "Expose the tree read-only at this mount point until interrupted")
	flag.StringVar(&mnt, "m", "", "--mount (shorthand)")
	flag.BoolVar(&umount, "umount", false,
		"Unmount the mount point first if needed. Useful for debuggers that don't exit properly.")
	flag.BoolVar(&umount, "u", false, "--umount (shorthand)")
	flag.IntVar(&verbose, "verbose", 3, "Log verbosity level between 1 (error) and 5 (trace). Default is 3 (info).")
	flag.IntVar(&verbose, "v", 3, "--verbose (shorthand)")
	flag.Parse()
	os.Exit(run(configPath, envFile, scriptPath, output, mnt, verbose, umount))
}

// run wires config, storage and the namespace and returns the exit code
func run(configPath, envFile, scriptPath, output, mnt string, verbose int, umount bool) int {
	// Initialize logger; stdout is reserved for results
	logLvl := util.VerbosityToLevel(verbose)
	util.InitializeLoggerTo(os.Stderr, logLvl)
	logger := util.GetLogger("main")

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			logger.Error().Err(err).Str("env", envFile).Msg("Failed to load env file")
			return 2
		}
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		logger.Error().Err(err).Msg("Invalid configuration")
		return 2
	}
	// the flag wins over config file and env
	if isFlagSet("verbose") || isFlagSet("v") {
		cfg.LogLvl = logLvl
	} else if cfg.LogLvl != logLvl {
		util.InitializeLoggerTo(os.Stderr, cfg.LogLvl)
		logger = util.GetLogger("main")
	}
	logger.Info().
		Str("storage", cfg.Storage.Type).
		Int("maxChildren", cfg.MaxChildren).
		Str("maxFileSize", humanize.IBytes(uint64(cfg.MaxFileSize))).
		Bool("followSymlinks", cfg.FollowSymlinks).
		Msg("TreeFS initializing")

	ctx := context.Background()
	persist.RegisterBuiltins()
	backend, err := persist.Open(ctx, cfg.Storage)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to open storage")
		return 1
	}
	defer func() {
		if err := backend.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close storage")
		}
	}()

	fs, err := filesystem.Bootstrap(ctx, cfg, backend)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to bootstrap filesystem")
		return 1
	}

	failed := 0
	if scriptPath != "" {
		ops, err := requests.LoadBatchFile(scriptPath)
		if err != nil {
			logger.Error().Err(err).Str("script", scriptPath).Msg("Failed to load script")
			return 2
		}
		logger.Debug().Str("script", scriptPath).Int("ops", len(ops)).Msg("Script loaded successfully")

		results := requests.Run(fs, ops)
		for _, res := range results {
			if !res.OK() {
				failed++
			}
		}
		if err := printResults(os.Stdout, output, results); err != nil {
			logger.Error().Err(err).Msg("Failed to print results")
		}
		logger.Info().Int("ops", len(results)).Int("failed", failed).Msg("Script finished")
	} else if mnt == "" {
		logger.Warn().Msg("No script or mount point provided")
	}

	if mnt != "" {
		serve(fs, mnt, umount)
	}

	if err := fs.Save(ctx, backend); err != nil {
		logger.Error().Err(err).Msg("Failed to save filesystem")
		return 1
	}
	logger.Info().Str("treeID", fs.TreeID()).Msg("Filesystem saved")
	if failed > 0 {
		return 1
	}
	return 0
}

// loadConfig layers defaults, the optional config file and TREEFS_* env
// variables, then validates the result
func loadConfig(path string) (*config.Config, error) {
	cfg := config.NewDefaultConfig()
	if path != "" {
		var err error
		if cfg, err = config.NewConfigFromFile(path); err != nil {
			return nil, err
		}
	}
	cfg.Merge(config.LoadEnvOverride(config.EnvPrefix))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func isFlagSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

// serve mounts fs at mnt and blocks until a termination signal
func serve(fs *filesystem.FileSystem, mnt string, umount bool) {
	logger := util.GetLogger("main")
	// Try unmount if requested
	if umount { // send cli command
		cmd := exec.Command("fusermount", "-u", mnt)
		// we ignore error here if not already mounted
		cmd.Run() // nolint:errcheck
	}

	srv := server.New(fs)
	if err := srv.Serve(mnt); err != nil {
		logger.Error().Err(err).Msg("Failed to mount filesystem")
		return
	}

	// Setup signal handling for graceful shutdown
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	logger.Info().Str("mountpoint", mnt).Msg("Filesystem mounted successfully")

	// Wait for termination signal
	sig := <-signalChan
	logger.Info().Str("signal", sig.String()).Msg("Received signal, unmounting filesystem")

	// Unmount the filesystem
	if err := srv.Unmount(); err != nil {
		logger.Error().Err(err).Msg("Failed to unmount filesystem")
	} else {
		logger.Info().Msg("Filesystem unmounted successfully")
	}
}

func printResults(w io.Writer, format string, results []requests.Result) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	case "yaml":
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(results)
	case "text", "":
		for _, res := range results {
			printText(w, res)
		}
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}
}

func printText(w io.Writer, res requests.Result) {
	if !res.OK() {
		fmt.Fprintf(w, "%s %s: error: %s\n", res.Op, res.Path, res.Error)
		return
	}
	switch {
	case res.Op == requests.OpList:
		fmt.Fprintf(w, "%s %s:\n", res.Op, res.Path)
		for _, e := range res.Entries {
			fmt.Fprintf(w, "  %s\n", formatEntry(e))
		}
	case res.Entry != nil:
		fmt.Fprintf(w, "%s %s: %s\n", res.Op, res.Path, formatEntry(*res.Entry))
	case res.Data != "":
		fmt.Fprintf(w, "%s %s: %q\n", res.Op, res.Path, res.Data)
	default:
		fmt.Fprintf(w, "%s %s: ok\n", res.Op, res.Path)
	}
}

// formatEntry renders an entry like "file 644 1 12 B notes.txt"
func formatEntry(e treefs.Entry) string {
	kind := e.Kind.String()
	name := e.Name
	if e.IsSymlink() {
		kind = "link"
		name += " -> " + e.SymlinkTarget
	}
	size := "-"
	if e.Kind == treefs.KindFile && !e.IsSymlink() {
		size = humanize.IBytes(e.Size)
	}
	return fmt.Sprintf("%-4s %03d %d %8s %s", kind, e.Permissions, e.Nlink, size, name)
}
