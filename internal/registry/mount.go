package registry

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

var ErrNotFound = errors.New("mount record not found")

type Status string

const (
	StatusMounted   Status = "mounted"
	StatusUnmounted Status = "unmounted"
	StatusLost      Status = "lost"
)

// Mount is one mount served by a daemon.
type Mount struct {
	ID         string // UUIDv7, so ids sort by creation
	Pid        int    // daemon process serving the mount
	DiskPath   string
	FSUUID     string
	Mountpoint string
	Status     Status
	Error      string // cause of a lost mount
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// InsertMount saves a new Mount to the database.
func InsertMount(ctx context.Context, db *sql.DB, m *Mount) error {
	query := `
		INSERT INTO mounts (id, pid, disk_path, fs_uuid, mountpoint, status, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	now := time.Now().Unix()
	_, err := db.ExecContext(ctx, query,
		m.ID, m.Pid, m.DiskPath, m.FSUUID, m.Mountpoint,
		string(m.Status), m.Error, now, now)
	return err
}

// UpdateMountStatus moves a Mount to status, keeping cause when one is given.
func UpdateMountStatus(ctx context.Context, db *sql.DB, id string, status Status, cause string) error {
	query := `UPDATE mounts SET status = ?, error = ?, updated_at = ? WHERE id = ?`
	res, err := db.ExecContext(ctx, query, string(status), cause, time.Now().Unix(), id)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetMountByID retrieves a Mount by ID from the database.
func GetMountByID(ctx context.Context, db *sql.DB, id string) (*Mount, error) {
	query := `SELECT id, pid, disk_path, fs_uuid, mountpoint, status, error, created_at, updated_at FROM mounts WHERE id = ?`
	m, err := scanMount(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return m, err
}

// ListMounts retrieves all Mounts, newest first.
func ListMounts(ctx context.Context, db *sql.DB) ([]*Mount, error) {
	query := `SELECT id, pid, disk_path, fs_uuid, mountpoint, status, error, created_at, updated_at FROM mounts ORDER BY id DESC`
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var mounts []*Mount
	for rows.Next() {
		m, err := scanMount(rows)
		if err != nil {
			return nil, err
		}
		mounts = append(mounts, m)
	}

	return mounts, rows.Err()
}

// DeleteMount removes a Mount from the database.
func DeleteMount(ctx context.Context, db *sql.DB, id string) error {
	query := `DELETE FROM mounts WHERE id = ?`
	_, err := db.ExecContext(ctx, query, id)
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMount(row scanner) (*Mount, error) {
	var (
		status               string
		createdAt, updatedAt int64
	)
	m := &Mount{}
	if err := row.Scan(&m.ID, &m.Pid, &m.DiskPath, &m.FSUUID, &m.Mountpoint,
		&status, &m.Error, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	m.Status = Status(status)
	m.CreatedAt = time.Unix(createdAt, 0)
	m.UpdatedAt = time.Unix(updatedAt, 0)
	return m, nil
}

// PruneMounts deletes every Mount whose daemon is no longer alive and returns
// how many were removed.
func PruneMounts(ctx context.Context, db *sql.DB, alive func(pid int) bool) (int, error) {
	mounts, err := ListMounts(ctx, db)
	if err != nil {
		return 0, err
	}

	pruned := 0
	for _, m := range mounts {
		if alive(m.Pid) {
			continue
		}
		if err := DeleteMount(ctx, db, m.ID); err != nil {
			return pruned, err
		}
		pruned++
	}
	return pruned, nil
}
