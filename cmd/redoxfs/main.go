package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/ghatdev/redoxfs/internal/config"
	"github.com/ghatdev/redoxfs/internal/daemon"
	"github.com/ghatdev/redoxfs/internal/logging"
	"github.com/ghatdev/redoxfs/internal/selector"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	inv, err := selector.Parse(args)
	if err != nil {
		if errors.Is(err, selector.ErrHelp) {
			printHelp(stdout)
			return daemon.ExitOK
		}
		fmt.Fprintf(stderr, "redoxfs: %v\n", err)
		fmt.Fprintln(stderr, selector.Usage)
		fmt.Fprintln(stderr, selector.UsageHint)
		return daemon.ExitFailure
	}

	if daemon.IsDaemon() {
		return runDaemon(inv, stderr)
	}
	return runLauncher(args, inv, stderr)
}

// runLauncher validates the configuration up front, so a broken config is
// reported here instead of by a daemon nobody watches.
func runLauncher(args []string, inv *selector.Invocation, stderr io.Writer) int {
	cfg, err := config.Load(inv.ConfigPath)
	if err != nil {
		fmt.Fprintf(stderr, "redoxfs: %v\n", err)
		return daemon.ExitFailure
	}

	logger, closer, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(stderr, "redoxfs: %v\n", err)
		return daemon.ExitFailure
	}
	defer closer.Close()

	spawner := &daemon.ExecSpawner{
		Args:   args,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}

	ctx := context.Background()
	code, err := daemon.NewLauncher(spawner, logger).Launch(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "daemon did not report", "selector", inv.Selector.String(), "error", err)
		return daemon.ExitFatal
	}

	logger.DebugContext(ctx, "daemon finished handshake", "exit_code", code)
	return code
}

func printHelp(w io.Writer) {
	fmt.Fprintln(w, "usage: "+selector.Usage)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Mounts a disk, given by path or by filesystem uuid, from a background daemon.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "flags:")
	fmt.Fprintln(w, "      --uuid            the first argument is a filesystem uuid")
	fmt.Fprintln(w, "      --config string   path to the config file")
	fmt.Fprintln(w, "  -h, --help            show this help")
	fmt.Fprintln(w)
	fmt.Fprintln(w, selector.UsageHint)
}

// fallbackLogger is used until the configured logger exists.
func fallbackLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, nil))
}
