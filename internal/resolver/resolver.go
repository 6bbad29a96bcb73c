// Package resolver walks the candidate disks of a run, mounts the first one
// that opens and matches, and reports the outcome byte exactly once.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ghatdev/redoxfs/internal/handshake"
	"github.com/ghatdev/redoxfs/pkg/fs"
	"github.com/ghatdev/redoxfs/pkg/lock"
)

var errNotReady = errors.New("mount returned without signalling readiness")

type Resolver struct {
	engine      Engine
	locker      lock.Locker
	lockTimeout time.Duration
	recorder    Recorder
	logger      *slog.Logger

	lockDegraded sync.Once
}

type Option func(*Resolver)

// WithLocker guards every candidate with a disk lock. A candidate whose lock
// is held elsewhere past timeout is skipped. Any other locking failure is
// logged once and the candidate is tried unlocked.
func WithLocker(l lock.Locker, timeout time.Duration) Option {
	return func(r *Resolver) {
		r.locker = l
		r.lockTimeout = timeout
	}
}

func WithRecorder(rec Recorder) Option {
	return func(r *Resolver) {
		r.recorder = rec
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = l
	}
}

func New(engine Engine, opts ...Option) *Resolver {
	r := &Resolver{
		engine:   engine,
		locker:   lock.NewNoOpLocker(),
		recorder: nopRecorder{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve tries the candidates in order and never retries one. It reports
// handshake.Mounted when a mount becomes ready, or handshake.Exhausted when
// every candidate failed; nothing else is ever written to the reporter.
//
// On success Resolve blocks for as long as the mount is served.
func (r *Resolver) Resolve(ctx context.Context, req Request, reporter Reporter) Result {
	for _, path := range req.Candidates {
		if ctx.Err() != nil {
			r.logger.WarnContext(ctx, "stopping resolution", "reason", context.Cause(ctx))
			break
		}

		if result, done := r.try(ctx, path, req, reporter); done {
			return result
		}
	}

	r.logger.ErrorContext(ctx, "not able to mount "+req.Description, "selector", req.Description, "candidates", len(req.Candidates))
	if err := reporter.Report(handshake.Exhausted); err != nil {
		r.logger.WarnContext(ctx, "failed to report outcome", "error", err)
	}

	return Result{Status: Exhausted}
}

// try handles a single candidate. done is false when resolution should move on
// to the next candidate.
func (r *Resolver) try(ctx context.Context, path string, req Request, reporter Reporter) (Result, bool) {
	log := r.logger.With("path", path)

	release, err := r.lock(ctx, path)
	switch {
	case errors.Is(err, lock.ErrLocked):
		log.WarnContext(ctx, "disk is in use", "error", err)
		return Result{}, false
	case err != nil:
		r.lockDegraded.Do(func() {
			log.WarnContext(ctx, "disk locks unavailable, continuing without them", "error", err)
		})
		release = func() {}
	}
	defer release()

	log.InfoContext(ctx, "opening")

	disk, err := r.engine.OpenDisk(ctx, path)
	if err != nil {
		log.WarnContext(ctx, "failed to open image "+path, "error", err)
		return Result{}, false
	}

	fsys, err := r.engine.OpenFileSystem(ctx, disk)
	if err != nil {
		_ = disk.Close()
		log.WarnContext(ctx, "failed to open filesystem", "error", err)
		return Result{}, false
	}
	defer fsys.Close()

	id := fsys.UUID()
	log.InfoContext(ctx, fmt.Sprintf("opened filesystem on %s with uuid %s", path, id), "uuid", id)

	if req.Target != nil {
		if *req.Target != id {
			log.InfoContext(ctx, "filesystem does not match uuid", "uuid", *req.Target)
			return Result{}, false
		}
		log.InfoContext(ctx, "filesystem matches uuid", "uuid", *req.Target)
	}

	var recordID string
	token := newReadyToken(func() {
		log.InfoContext(ctx, fmt.Sprintf("mounted filesystem on %s to %s", path, req.Mountpoint), "mountpoint", req.Mountpoint)

		if err := reporter.Report(handshake.Mounted); err != nil {
			log.WarnContext(ctx, "failed to report outcome", "error", err)
		}

		recID, err := r.recorder.Mounted(ctx, MountInfo{
			DiskPath:   path,
			FSUUID:     id,
			Mountpoint: req.Mountpoint,
		})
		if err != nil {
			log.WarnContext(ctx, "failed to record mount", "error", err)
		}
		recordID = recID
	})

	err = r.engine.Mount(ctx, fsys, req.Mountpoint, token.Fire)
	if !token.Fired() {
		if err == nil {
			err = errNotReady
		}
		log.WarnContext(ctx, "failed to mount", "mountpoint", req.Mountpoint, "error", err)
		return Result{}, false
	}

	// the outcome byte is already out, the remaining bookkeeping must not be
	// cut short by the shutdown signal
	bg := context.WithoutCancel(ctx)

	if err != nil {
		log.ErrorContext(ctx, "lost mounted filesystem", "mountpoint", req.Mountpoint, "error", err)
		if rerr := r.recorder.Lost(bg, recordID, err); rerr != nil {
			log.WarnContext(ctx, "failed to record mount", "error", rerr)
		}
		return Result{Status: Lost, Path: path, Err: err}, true
	}

	log.InfoContext(ctx, "unmounted filesystem", "mountpoint", req.Mountpoint)
	if rerr := r.recorder.Unmounted(bg, recordID); rerr != nil {
		log.WarnContext(ctx, "failed to record unmount", "error", rerr)
	}
	return Result{Status: Served, Path: path}, true
}

func (r *Resolver) lock(ctx context.Context, path string) (func(), error) {
	lockCtx, cancel := context.WithTimeout(ctx, r.lockTimeout)
	defer cancel()

	lk, err := r.locker.AcquireLock(lockCtx, lock.KeyFor(path))
	if err != nil {
		return nil, err
	}

	return func() {
		if err := lk.Release(); err != nil {
			r.logger.Warn("failed to release disk lock", "path", path, "error", err)
		}
	}, nil
}

type nopRecorder struct{}

func (nopRecorder) Mounted(ctx context.Context, m MountInfo) (string, error) { return "", nil }
func (nopRecorder) Unmounted(ctx context.Context, id string) error           { return nil }
func (nopRecorder) Lost(ctx context.Context, id string, cause error) error   { return nil }

var _ Engine = (*fs.Engine)(nil)
