// Evesync keeps account keys, characters and markets from Eve Online
// in sync with a local database.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/juju/mutex/v2"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ErikKalkoken/evesync/internal/config"
)

const mutexName = "evesync"

// defined flags
var (
	levelFlag      logLevelFlag
	configFlag     = flag.String("config", "", "path to the config file")
	showConfigFlag = flag.Bool("show-config", false, "show the effective configuration and exit")
)

func init() {
	flag.Var(&levelFlag, "loglevel", "set log level (overrides config)")
	flag.Usage = func() {
		out := flag.CommandLine.Output()
		fmt.Fprintf(out, "Usage: evesync [flags] <command> [args]\n\nCommands:\n")
		for _, c := range commands {
			fmt.Fprintf(out, "  %-18s %s\n", c.usage, c.help)
		}
		fmt.Fprintf(out, "\nFlags:\n")
		flag.PrintDefaults()
	}
}

func main() {
	flag.Parse()
	cfg, err := config.LoadAndValidate(*configFlag)
	if err != nil {
		log.Fatal(err)
	}
	if *showConfigFlag {
		fmt.Printf("Config file: %s\nDatabase: %s\nRemote API: %s\n", *configFlag, cfg.Database.Path, cfg.Remote.BaseURL)
		return
	}
	if err := setupLogging(cfg); err != nil {
		log.Fatal(err)
	}
	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}
	cmd, ok := findCommand(args[0])
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	releaser, err := acquireMutex(ctx)
	if err != nil {
		log.Fatal(err)
	}
	defer releaser.Release()

	svc, err := newServices(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer svc.close()

	if err := cmd.run(ctx, svc, args[1:], os.Stdout); err != nil {
		var usageErr usageError
		if errors.As(err, &usageErr) {
			fmt.Fprintf(os.Stderr, "usage: evesync %s\n", cmd.usage)
			os.Exit(2)
		}
		slog.Error("Command failed", "command", cmd.name, "error", err)
		fmt.Fprintf(os.Stderr, "%s: %s\n", cmd.name, err)
		os.Exit(1)
	}
}

// setupLogging configures the default logger.
// Logs are written to a rotating file when configured.
func setupLogging(cfg *config.Config) error {
	level, err := cfg.LogLevel()
	if err != nil {
		return err
	}
	level = levelFlag.Level(level)
	var w io.Writer = os.Stderr
	if cfg.Log.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Log.File), os.ModePerm); err != nil {
			return err
		}
		w = &lumberjack.Logger{
			Filename:   cfg.Log.File,
			MaxSize:    50, // megabytes
			MaxBackups: 3,
		}
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
	return nil
}

// acquireMutex ensures only one process syncs the database at a time.
func acquireMutex(ctx context.Context) (mutex.Releaser, error) {
	r, err := mutex.Acquire(mutex.Spec{
		Name:    mutexName,
		Clock:   realClock{},
		Delay:   100 * time.Millisecond,
		Timeout: 5 * time.Second,
		Cancel:  ctx.Done(),
	})
	if errors.Is(err, mutex.ErrTimeout) {
		return nil, errors.New("another instance of evesync is already running")
	} else if err != nil {
		return nil, fmt.Errorf("acquire mutex: %w", err)
	}
	return r, nil
}

type realClock struct{}

func (realClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

func (realClock) Now() time.Time {
	return time.Now()
}
