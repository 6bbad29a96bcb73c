package main

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ghatdev/redoxfs/internal/candidates"
	"github.com/ghatdev/redoxfs/internal/config"
	"github.com/ghatdev/redoxfs/internal/daemon"
	"github.com/ghatdev/redoxfs/internal/handshake"
	"github.com/ghatdev/redoxfs/internal/logging"
	"github.com/ghatdev/redoxfs/internal/registry"
	"github.com/ghatdev/redoxfs/internal/resolver"
	"github.com/ghatdev/redoxfs/internal/selector"
	"github.com/ghatdev/redoxfs/pkg/fs"
	"github.com/ghatdev/redoxfs/pkg/lock"
)

// runDaemon is the daemon side. Whatever happens, the launcher gets exactly
// one outcome byte before this returns.
func runDaemon(inv *selector.Invocation, stderr io.Writer) int {
	w, err := daemon.HandshakeWriter()
	if err != nil {
		fallbackLogger(stderr).Error("no handshake channel", "error", err)
		return daemon.ExitFatal
	}

	code := serve(inv, w, stderr)
	if !w.Reported() {
		fallbackLogger(stderr).Error("daemon stopped before resolving", "selector", inv.Selector.String())
		_ = w.Report(handshake.Exhausted)
	}
	return code
}

func serve(inv *selector.Invocation, w *handshake.Writer, stderr io.Writer) int {
	cfg, err := config.Load(inv.ConfigPath)
	if err != nil {
		fallbackLogger(stderr).Error("failed to load config", "error", err)
		return daemon.ExitFailure
	}

	logger, closer, err := logging.New(cfg.Logging)
	if err != nil {
		fallbackLogger(stderr).Error("failed to set up logging", "error", err)
		return daemon.ExitFailure
	}
	defer closer.Close()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, os.Interrupt)
	defer stop()

	engine, err := newEngine(cfg, logger)
	if err != nil {
		logger.ErrorContext(ctx, "failed to set up filesystem engine", "error", err)
		return daemon.ExitFailure
	}

	var recorder resolver.Recorder = registry.NewNoOpRecorder()
	if db := openRegistry(ctx, cfg, logger); db != nil {
		defer db.Close()
		recorder = registry.NewRecorder(db)
	}

	opts := []resolver.Option{
		resolver.WithLogger(logger),
		resolver.WithLocker(newLocker(cfg), cfg.Lock.Timeout),
		resolver.WithRecorder(recorder),
	}

	scanner := candidates.NewPlatformScanner(cfg.Discovery.Root, cfg.Discovery.Prefix, logger)
	req := resolver.Request{
		Candidates:  candidates.Enumerate(ctx, scanner, inv.Selector),
		Mountpoint:  inv.Mountpoint,
		Description: inv.Selector.String(),
	}
	if id, ok := inv.Selector.UUID(); ok {
		req.Target = &id
	}

	result := resolver.New(engine, opts...).Resolve(ctx, req, w)
	return exitCode(result)
}

func exitCode(result resolver.Result) int {
	if result.Status == resolver.Served {
		return daemon.ExitOK
	}
	return daemon.ExitFailure
}

func newEngine(cfg *config.Config, logger *slog.Logger) (*fs.Engine, error) {
	opts, err := cfg.Mount.KernelOptions()
	if err != nil {
		return nil, err
	}
	mounter := fs.NewKernelMounter(opts, cfg.Mount.PollInterval, cfg.Mount.UnmountTimeout, logger)
	return fs.NewEngine(mounter), nil
}

func newLocker(cfg *config.Config) lock.Locker {
	if cfg.Lock.Dir == "" {
		return lock.NewNoOpLocker()
	}
	return lock.NewFileLocker(cfg.Lock.Dir)
}

// openRegistry returns nil when the registry is disabled or unusable. Mounting
// then goes ahead with a NoOpRecorder.
func openRegistry(ctx context.Context, cfg *config.Config, logger *slog.Logger) *sql.DB {
	if !cfg.Registry.Enabled {
		return nil
	}
	db, err := registry.Open(ctx, cfg.Registry.Path)
	if err != nil {
		logger.WarnContext(ctx, "mount registry unavailable", "path", cfg.Registry.Path, "error", err)
		return nil
	}
	return db
}
