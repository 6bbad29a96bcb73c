package fs

import (
	"fmt"

	"github.com/google/uuid"
)

// Ext4Device is an ext4 filesystem identified by its superblock.
type Ext4Device struct {
	disk      Disk
	id        uuid.UUID
	label     string
	sizeBytes int64
}

// OpenExt4 reads the superblock of d. The returned device owns d.
func OpenExt4(d Disk) (*Ext4Device, error) {
	sb, err := readSuperBlock(d)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", d.Path(), err)
	}

	return &Ext4Device{
		disk:      d,
		id:        uuid.UUID(sb.UUID),
		label:     sb.label(),
		sizeBytes: sb.sizeBytes(),
	}, nil
}

func (e *Ext4Device) Disk() Disk {
	return e.disk
}

func (e *Ext4Device) Type() string {
	return "ext4"
}

func (e *Ext4Device) UUID() uuid.UUID {
	return e.id
}

func (e *Ext4Device) Label() string {
	return e.label
}

func (e *Ext4Device) SizeBytes() int64 {
	return e.sizeBytes
}

func (e *Ext4Device) Close() error {
	return e.disk.Close()
}
