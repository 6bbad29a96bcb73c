package registry

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/ghatdev/redoxfs/internal/resolver"
	"github.com/ghatdev/redoxfs/pkg/utils"
)

// Recorder writes the mounts of this daemon process to the registry.
type Recorder struct {
	db  *sql.DB
	pid int
}

func NewRecorder(db *sql.DB) *Recorder {
	return &Recorder{db: db, pid: os.Getpid()}
}

func (r *Recorder) Mounted(ctx context.Context, info resolver.MountInfo) (string, error) {
	id, err := utils.NewUUID7()
	if err != nil {
		return "", fmt.Errorf("failed to generate mount id: %w", err)
	}

	m := &Mount{
		ID:         id,
		Pid:        r.pid,
		DiskPath:   info.DiskPath,
		FSUUID:     info.FSUUID.String(),
		Mountpoint: info.Mountpoint,
		Status:     StatusMounted,
	}
	if err := InsertMount(ctx, r.db, m); err != nil {
		return "", fmt.Errorf("failed to insert mount: %w", err)
	}

	return m.ID, nil
}

func (r *Recorder) Unmounted(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	return UpdateMountStatus(ctx, r.db, id, StatusUnmounted, "")
}

func (r *Recorder) Lost(ctx context.Context, id string, cause error) error {
	if id == "" {
		return nil
	}
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return UpdateMountStatus(ctx, r.db, id, StatusLost, msg)
}

type NoOpRecorder struct{}

func NewNoOpRecorder() *NoOpRecorder {
	return &NoOpRecorder{}
}

func (r *NoOpRecorder) Mounted(ctx context.Context, info resolver.MountInfo) (string, error) {
	return "", nil
}

func (r *NoOpRecorder) Unmounted(ctx context.Context, id string) error {
	return nil
}

func (r *NoOpRecorder) Lost(ctx context.Context, id string, cause error) error {
	return nil
}

var (
	_ resolver.Recorder = (*Recorder)(nil)
	_ resolver.Recorder = (*NoOpRecorder)(nil)
)
