package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/prometheus/common/version"

	"github.com/ChipCracker/slurm-tui/internal/app/router"
	"github.com/ChipCracker/slurm-tui/internal/bookmarks"
	"github.com/ChipCracker/slurm-tui/internal/module/cluster"
	"github.com/ChipCracker/slurm-tui/internal/monitor"
	"github.com/ChipCracker/slurm-tui/internal/pkg/client/exec"
	"github.com/ChipCracker/slurm-tui/internal/pkg/client/slurm"
	"github.com/ChipCracker/slurm-tui/internal/pkg/config"
	"github.com/ChipCracker/slurm-tui/internal/pkg/log"
	"github.com/ChipCracker/slurm-tui/internal/script"
)

func main() {
	var (
		logOutput          string
		logFormat          string
		logFile            string
		logLevel           string
		configPath         string
		commandTimeout     time.Duration
		refreshInterval    time.Duration
		srvlisenAddr       string
		srvshutdownTimeout time.Duration
	)
	app := kingpin.New(filepath.Base(os.Args[0]), "slurm-tui control plane backend.")
	app.HelpFlag.Short('h')
	// Logging related flags
	app.Flag("log.level", "Log level, one of [debug, info, warn, error].").Default("info").EnumVar(&logLevel, "debug", "info", "warn", "error")
	app.Flag("log.output", "Log output, one of [stdout, stderr, file].").Default("stderr").EnumVar(&logOutput, "stdout", "stderr", "file")
	app.Flag("log.format", "Log format, one of [json, text].").Default("text").EnumVar(&logFormat, "json", "text")
	app.Flag("log.file", "Log file path when --output=file.").PlaceHolder("PATH").StringVar(&logFile)
	app.Flag("config", "Configuration file (YAML); defaults apply when omitted.").PlaceHolder("PATH").StringVar(&configPath)
	app.Flag("slurm.command-timeout", "Timeout for scheduler command invocations (Go duration, e.g. 5s, 1m).").Default("30s").DurationVar(&commandTimeout)
	app.Flag("slurm.refresh-interval", "Snapshot refresh interval; overrides the config file when set.").Default("0s").DurationVar(&refreshInterval)
	app.Flag("server.listen-addr", "Server listen address (e.g. :8080 or 127.0.0.1:8080)").Default(":8082").StringVar(&srvlisenAddr)
	app.Flag("server.shutdown-timeout", "Graceful shutdown timeout (e.g. 10s)").Default("10s").DurationVar(&srvshutdownTimeout)
	// Cross-flag validation
	app.PreAction(func(*kingpin.ParseContext) error {
		if strings.EqualFold(logOutput, "file") {
			if !isValidFilePath(logFile) {
				return fmt.Errorf("invalid --file path: %q", logFile)
			}
		}
		return nil
	})
	app.Version(version.Print("slurm-tui"))

	_, err := app.Parse(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, fmt.Errorf("failed to parse commandline arguments: %w", err))
		app.Usage(os.Args[1:])
		os.Exit(2)
	}
	logger, logClose, err := log.NewLogger(logOutput, logFormat, logFile, logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "unable to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logClose()

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Error("unable to load configuration", slog.Any("err", err))
		os.Exit(1)
	}
	if refreshInterval > 0 {
		cfg.RefreshInterval = refreshInterval
	}

	runner := exec.NewRunner(commandTimeout, logger)
	slurmClient := slurm.New(runner, logger)
	if !slurmClient.Available(context.Background()) {
		logger.Warn("scheduler commands not responding; serving stale/empty data until they are")
	}

	collector := monitor.NewCollector(slurmClient, cfg, logger)
	refresher := monitor.NewRefresher(cfg.RefreshInterval, collector.Collect,
		func(snap *monitor.Snapshot) {
			logger.Debug("snapshot published", slog.String("generation", snap.Generation), slog.Bool("stale", snap.Stale))
		}, logger)

	books, err := bookmarks.NewManager("")
	if err != nil {
		logger.Error("unable to open bookmark store", slog.Any("err", err))
		os.Exit(1)
	}
	mutator := script.NewEngine(logger)

	// Build router
	r := router.New()
	router.Register(
		cluster.NewRouter(refresher, mutator, slurmClient, books, logger),
	)
	router.Mount(r)
	srv := &http.Server{
		Addr:              srvlisenAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Refresh loop runs until shutdown; command calls never block the server.
	refreshCtx, refreshCancel := context.WithCancel(context.Background())
	defer refreshCancel()
	go refresher.Run(refreshCtx)

	// Start server in background
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", slog.String("addr", srvlisenAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serverErr:
		if err != nil {
			logger.Error("server failed", slog.Any("err", err))
			os.Exit(1)
		}
	case <-quit:
		// proceed to shutdown
	}
	logger.Info("shutting down server...")
	refreshCancel()
	ctx, cancel := context.WithTimeout(context.Background(), srvshutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", slog.Any("err", err))
	}
	logger.Info("server exiting")
}

// isValidFilePath performs a light-weight validation for file paths.
// It accepts both absolute and relative paths and rejects empty paths
// or paths that end with a path separator (which usually indicate a directory).
func isValidFilePath(p string) bool {
	if strings.TrimSpace(p) == "" {
		return false
	}
	// Reject paths that end with a separator, which imply directories
	if strings.HasSuffix(p, string(os.PathSeparator)) {
		return false
	}
	base := filepath.Base(p)
	if base == "." || base == string(os.PathSeparator) {
		return false
	}
	return true
}
