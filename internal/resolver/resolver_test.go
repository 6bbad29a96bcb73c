package resolver

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghatdev/redoxfs/internal/handshake"
	"github.com/ghatdev/redoxfs/pkg/fs"
	"github.com/ghatdev/redoxfs/pkg/lock"
)

type fakeDisk struct {
	path   string
	closed bool
}

func (d *fakeDisk) ReadAt(p []byte, off int64) (int, error) { return 0, errors.New("not implemented") }
func (d *fakeDisk) Path() string                            { return d.path }
func (d *fakeDisk) Size() int64                             { return 0 }
func (d *fakeDisk) IsBlockDevice() bool                     { return true }
func (d *fakeDisk) Close() error {
	d.closed = true
	return nil
}

type fakeFS struct {
	disk *fakeDisk
	id   uuid.UUID
}

func (f *fakeFS) Disk() fs.Disk   { return f.disk }
func (f *fakeFS) Type() string    { return "fake" }
func (f *fakeFS) UUID() uuid.UUID { return f.id }
func (f *fakeFS) Label() string   { return "" }
func (f *fakeFS) Close() error    { return f.disk.Close() }

// fakeBehavior describes how a candidate behaves.
type fakeBehavior struct {
	openErr   error
	fsErr     error
	id        uuid.UUID
	mountErr  error // returned before onReady
	serveErr  error // returned after onReady
	fireTwice bool
	skipReady bool
}

type fakeEngine struct {
	mu      sync.Mutex
	disks   map[string]fakeBehavior
	opened  []string
	mounted []string
	handles []*fakeDisk
}

func newFakeEngine(disks map[string]fakeBehavior) *fakeEngine {
	return &fakeEngine{disks: disks}
}

func (e *fakeEngine) OpenDisk(ctx context.Context, path string) (fs.Disk, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.opened = append(e.opened, path)
	b, ok := e.disks[path]
	if !ok {
		return nil, errors.New("no such device")
	}
	if b.openErr != nil {
		return nil, b.openErr
	}
	d := &fakeDisk{path: path}
	e.handles = append(e.handles, d)
	return d, nil
}

func (e *fakeEngine) OpenFileSystem(ctx context.Context, d fs.Disk) (fs.FileSystem, error) {
	b := e.disks[d.Path()]
	if b.fsErr != nil {
		return nil, b.fsErr
	}
	return &fakeFS{disk: d.(*fakeDisk), id: b.id}, nil
}

func (e *fakeEngine) Mount(ctx context.Context, fsys fs.FileSystem, mountpoint string, onReady func()) error {
	path := fsys.Disk().Path()
	b := e.disks[path]
	if b.mountErr != nil {
		return b.mountErr
	}
	if b.skipReady {
		return nil
	}

	e.mu.Lock()
	e.mounted = append(e.mounted, path)
	e.mu.Unlock()

	onReady()
	if b.fireTwice {
		onReady()
	}
	return b.serveErr
}

type byteReporter struct {
	mu     sync.Mutex
	writes []handshake.Outcome
}

func (r *byteReporter) Report(o handshake.Outcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes = append(r.writes, o)
	return nil
}

type fakeRecorder struct {
	mounted   []MountInfo
	unmounted []string
	lost      []string
}

func (f *fakeRecorder) Mounted(ctx context.Context, m MountInfo) (string, error) {
	f.mounted = append(f.mounted, m)
	return "rec-1", nil
}

func (f *fakeRecorder) Unmounted(ctx context.Context, id string) error {
	f.unmounted = append(f.unmounted, id)
	return nil
}

func (f *fakeRecorder) Lost(ctx context.Context, id string, cause error) error {
	f.lost = append(f.lost, id)
	return nil
}

func testLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestResolveZeroCandidates(t *testing.T) {
	reporter := &byteReporter{}
	res := New(newFakeEngine(nil)).Resolve(context.Background(), Request{
		Mountpoint:  "/mnt/x",
		Description: "uuid 123e4567-e89b-12d3-a456-426614174000",
	}, reporter)

	assert.Equal(t, Exhausted, res.Status)
	assert.Equal(t, []handshake.Outcome{handshake.Exhausted}, reporter.writes)
}

func TestResolveExplicitPathMounts(t *testing.T) {
	r := require.New(t)
	var logs bytes.Buffer

	engine := newFakeEngine(map[string]fakeBehavior{
		"/dev/sda1": {id: uuid.New()},
	})
	rec := &fakeRecorder{}
	reporter := &byteReporter{}

	res := New(engine, WithLogger(testLogger(&logs)), WithRecorder(rec)).Resolve(context.Background(), Request{
		Candidates: []string{"/dev/sda1"},
		Mountpoint: "/mnt/x",
	}, reporter)

	r.Equal(Served, res.Status)
	r.Equal("/dev/sda1", res.Path)
	r.Equal([]handshake.Outcome{handshake.Mounted}, reporter.writes)

	r.Len(rec.mounted, 1)
	r.Equal("/dev/sda1", rec.mounted[0].DiskPath)
	r.Equal("/mnt/x", rec.mounted[0].Mountpoint)
	r.Equal([]string{"rec-1"}, rec.unmounted)

	out := logs.String()
	opened := bytes.Index(logs.Bytes(), []byte("opened filesystem on /dev/sda1 with uuid "))
	mounted := bytes.Index(logs.Bytes(), []byte("mounted filesystem on /dev/sda1 to /mnt/x"))
	r.True(opened >= 0 && mounted > opened, "expected opened before mounted in:\n%s", out)
	r.Contains(out, "path=/dev/sda1")

	// filesystem handles are released once the mount is done
	r.True(engine.handles[0].closed)
}

func TestResolveOpenFailure(t *testing.T) {
	var logs bytes.Buffer
	engine := newFakeEngine(map[string]fakeBehavior{
		"/dev/sda1": {openErr: errors.New("permission denied")},
	})
	reporter := &byteReporter{}

	res := New(engine, WithLogger(testLogger(&logs))).Resolve(context.Background(), Request{
		Candidates:  []string{"/dev/sda1"},
		Mountpoint:  "/mnt/x",
		Description: "path /dev/sda1",
	}, reporter)

	assert.Equal(t, Exhausted, res.Status)
	assert.Equal(t, []handshake.Outcome{handshake.Exhausted}, reporter.writes)
	assert.Contains(t, logs.String(), `msg="failed to open image /dev/sda1" path=/dev/sda1`)
	assert.Contains(t, logs.String(), `msg="not able to mount path /dev/sda1"`)
}

func TestResolveFilesystemFailureClosesDisk(t *testing.T) {
	engine := newFakeEngine(map[string]fakeBehavior{
		"/dev/sda1": {fsErr: fs.ErrNotExt4},
		"/dev/sdb1": {id: uuid.New()},
	})
	reporter := &byteReporter{}

	res := New(engine).Resolve(context.Background(), Request{
		Candidates: []string{"/dev/sda1", "/dev/sdb1"},
		Mountpoint: "/mnt/x",
	}, reporter)

	assert.Equal(t, Served, res.Status)
	assert.Equal(t, "/dev/sdb1", res.Path)
	assert.True(t, engine.handles[0].closed)
	assert.Equal(t, []handshake.Outcome{handshake.Mounted}, reporter.writes)
}

func TestResolveUUIDMatchesRegardlessOfOrder(t *testing.T) {
	target := uuid.MustParse("123e4567-e89b-12d3-a456-426614174000")
	disks := map[string]fakeBehavior{
		"/dev/vda": {id: uuid.New()},
		"/dev/vdb": {id: target},
		"/dev/vdc": {id: uuid.New()},
		"/dev/vdd": {openErr: errors.New("no medium")},
	}

	orders := [][]string{
		{"/dev/vda", "/dev/vdb", "/dev/vdc", "/dev/vdd"},
		{"/dev/vdd", "/dev/vdc", "/dev/vdb", "/dev/vda"},
		{"/dev/vdb", "/dev/vda", "/dev/vdd", "/dev/vdc"},
	}

	for _, order := range orders {
		engine := newFakeEngine(disks)
		reporter := &byteReporter{}

		res := New(engine).Resolve(context.Background(), Request{
			Candidates: order,
			Target:     &target,
			Mountpoint: "/mnt/x",
		}, reporter)

		assert.Equal(t, Served, res.Status, "order %v", order)
		assert.Equal(t, "/dev/vdb", res.Path)
		assert.Equal(t, []string{"/dev/vdb"}, engine.mounted)
		assert.Equal(t, []handshake.Outcome{handshake.Mounted}, reporter.writes)
	}
}

func TestResolveUUIDNoMatch(t *testing.T) {
	target := uuid.MustParse("123e4567-e89b-12d3-a456-426614174000")
	engine := newFakeEngine(map[string]fakeBehavior{
		"/dev/vda": {id: uuid.New()},
		"/dev/vdb": {id: uuid.New()},
	})
	reporter := &byteReporter{}

	res := New(engine).Resolve(context.Background(), Request{
		Candidates: []string{"/dev/vda", "/dev/vdb"},
		Target:     &target,
		Mountpoint: "/mnt/x",
	}, reporter)

	assert.Equal(t, Exhausted, res.Status)
	assert.Empty(t, engine.mounted)
	assert.Equal(t, []string{"/dev/vda", "/dev/vdb"}, engine.opened)
	assert.Equal(t, []handshake.Outcome{handshake.Exhausted}, reporter.writes)
	for _, h := range engine.handles {
		assert.True(t, h.closed, "handle for %s left open", h.path)
	}
}

func TestResolveMountErrorMovesOn(t *testing.T) {
	engine := newFakeEngine(map[string]fakeBehavior{
		"/dev/vda": {id: uuid.New(), mountErr: errors.New("device busy")},
		"/dev/vdb": {id: uuid.New()},
	})
	reporter := &byteReporter{}

	res := New(engine).Resolve(context.Background(), Request{
		Candidates: []string{"/dev/vda", "/dev/vdb"},
		Mountpoint: "/mnt/x",
	}, reporter)

	assert.Equal(t, Served, res.Status)
	assert.Equal(t, "/dev/vdb", res.Path)
	assert.Equal(t, []handshake.Outcome{handshake.Mounted}, reporter.writes)
}

func TestResolveMountErrorOnLastCandidate(t *testing.T) {
	engine := newFakeEngine(map[string]fakeBehavior{
		"/dev/vda": {id: uuid.New(), mountErr: errors.New("device busy")},
	})
	reporter := &byteReporter{}

	res := New(engine).Resolve(context.Background(), Request{
		Candidates: []string{"/dev/vda"},
		Mountpoint: "/mnt/x",
	}, reporter)

	assert.Equal(t, Exhausted, res.Status)
	assert.Equal(t, []handshake.Outcome{handshake.Exhausted}, reporter.writes)
}

func TestResolveNoReadinessIsAMountFailure(t *testing.T) {
	engine := newFakeEngine(map[string]fakeBehavior{
		"/dev/vda": {id: uuid.New(), skipReady: true},
	})
	reporter := &byteReporter{}

	res := New(engine).Resolve(context.Background(), Request{
		Candidates: []string{"/dev/vda"},
		Mountpoint: "/mnt/x",
	}, reporter)

	assert.Equal(t, Exhausted, res.Status)
	assert.Equal(t, []handshake.Outcome{handshake.Exhausted}, reporter.writes)
}

func TestResolveLostAfterReady(t *testing.T) {
	serveErr := errors.New("transport endpoint is not connected")
	engine := newFakeEngine(map[string]fakeBehavior{
		"/dev/vda": {id: uuid.New(), serveErr: serveErr},
		"/dev/vdb": {id: uuid.New()},
	})
	rec := &fakeRecorder{}
	reporter := &byteReporter{}

	res := New(engine, WithRecorder(rec)).Resolve(context.Background(), Request{
		Candidates: []string{"/dev/vda", "/dev/vdb"},
		Mountpoint: "/mnt/x",
	}, reporter)

	assert.Equal(t, Lost, res.Status)
	assert.ErrorIs(t, res.Err, serveErr)
	assert.Equal(t, []string{"/dev/vda"}, engine.mounted)
	assert.Equal(t, []handshake.Outcome{handshake.Mounted}, reporter.writes)
	assert.Equal(t, []string{"rec-1"}, rec.lost)
}

func TestResolveReadyFiresOnce(t *testing.T) {
	engine := newFakeEngine(map[string]fakeBehavior{
		"/dev/vda": {id: uuid.New(), fireTwice: true},
	})
	rec := &fakeRecorder{}
	reporter := &byteReporter{}

	res := New(engine, WithRecorder(rec)).Resolve(context.Background(), Request{
		Candidates: []string{"/dev/vda"},
		Mountpoint: "/mnt/x",
	}, reporter)

	assert.Equal(t, Served, res.Status)
	assert.Equal(t, []handshake.Outcome{handshake.Mounted}, reporter.writes)
	assert.Len(t, rec.mounted, 1)
}

func TestResolveCancelledStopsBeforeNextCandidate(t *testing.T) {
	engine := newFakeEngine(map[string]fakeBehavior{
		"/dev/vda": {id: uuid.New()},
	})
	reporter := &byteReporter{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := New(engine).Resolve(ctx, Request{
		Candidates: []string{"/dev/vda"},
		Mountpoint: "/mnt/x",
	}, reporter)

	assert.Equal(t, Exhausted, res.Status)
	assert.Empty(t, engine.opened)
	assert.Equal(t, []handshake.Outcome{handshake.Exhausted}, reporter.writes)
}

type denyLocker struct {
	denied map[digest.Digest]bool
}

func (l denyLocker) AcquireLock(ctx context.Context, key digest.Digest) (lock.Lock, error) {
	if l.denied[key] {
		return nil, lock.ErrLocked
	}
	return lock.NewNoOpLocker().AcquireLock(ctx, key)
}

func TestResolveSkipsLockedDisk(t *testing.T) {
	engine := newFakeEngine(map[string]fakeBehavior{
		"/dev/vda": {id: uuid.New()},
		"/dev/vdb": {id: uuid.New()},
	})
	reporter := &byteReporter{}
	locker := denyLocker{denied: map[digest.Digest]bool{lock.KeyFor("/dev/vda"): true}}

	res := New(engine, WithLocker(locker, 0)).Resolve(context.Background(), Request{
		Candidates: []string{"/dev/vda", "/dev/vdb"},
		Mountpoint: "/mnt/x",
	}, reporter)

	assert.Equal(t, Served, res.Status)
	assert.Equal(t, "/dev/vdb", res.Path)
	assert.Equal(t, []string{"/dev/vdb"}, engine.opened)
}

func TestResolveWithFileLocker(t *testing.T) {
	locker := lock.NewFileLocker(filepath.Join(t.TempDir(), "locks"))

	held, err := locker.AcquireLock(context.Background(), lock.KeyFor("/dev/vda"))
	require.NoError(t, err)
	defer held.Release()

	engine := newFakeEngine(map[string]fakeBehavior{
		"/dev/vda": {id: uuid.New()},
	})
	reporter := &byteReporter{}

	res := New(engine, WithLocker(locker, 0)).Resolve(context.Background(), Request{
		Candidates: []string{"/dev/vda"},
		Mountpoint: "/mnt/x",
	}, reporter)

	assert.Equal(t, Exhausted, res.Status)
	assert.Empty(t, engine.opened)
}

func TestResolveBrokenLockDirIsNotAVeto(t *testing.T) {
	r := require.New(t)
	var logs bytes.Buffer

	// the lock dir would have to be created below a regular file
	file := filepath.Join(t.TempDir(), "not-a-dir")
	r.NoError(os.WriteFile(file, nil, 0o644))
	locker := lock.NewFileLocker(filepath.Join(file, "locks"))

	engine := newFakeEngine(map[string]fakeBehavior{
		"/dev/sda1": {openErr: errors.New("permission denied")},
		"/dev/sdb1": {id: uuid.New()},
	})
	reporter := &byteReporter{}

	res := New(engine, WithLocker(locker, 0), WithLogger(testLogger(&logs))).Resolve(context.Background(), Request{
		Candidates: []string{"/dev/sda1", "/dev/sdb1"},
		Mountpoint: "/mnt/x",
	}, reporter)

	r.Equal(Served, res.Status)
	r.Equal("/dev/sdb1", res.Path)
	r.Equal([]string{"/dev/sda1", "/dev/sdb1"}, engine.opened)
	r.Equal([]handshake.Outcome{handshake.Mounted}, reporter.writes)

	out := logs.String()
	r.Contains(out, "failed to open image /dev/sda1")
	r.NotContains(out, "disk is in use")
	r.Equal(1, strings.Count(out, "disk locks unavailable"))
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "served", Served.String())
	assert.Equal(t, "exhausted", Exhausted.String())
	assert.Equal(t, "lost", Lost.String())
}
