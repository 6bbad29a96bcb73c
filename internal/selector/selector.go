package selector

import (
	"fmt"

	"github.com/google/uuid"
)

// Kind tells how a disk is selected.
type Kind int

const (
	KindPath Kind = iota // explicit block device or image path
	KindUUID             // filesystem UUID found in the header
)

// DiskSelector names the filesystem to mount, either by path or by UUID.
// It is immutable once built.
type DiskSelector struct {
	kind Kind
	path string
	id   uuid.UUID
}

func ByPath(path string) DiskSelector {
	return DiskSelector{kind: KindPath, path: path}
}

func ByUUID(id uuid.UUID) DiskSelector {
	return DiskSelector{kind: KindUUID, id: id}
}

func (s DiskSelector) Kind() Kind {
	return s.kind
}

// Path returns the explicit path. Empty for UUID selectors.
func (s DiskSelector) Path() string {
	return s.path
}

// UUID returns the target filesystem UUID and whether the selector carries one.
func (s DiskSelector) UUID() (uuid.UUID, bool) {
	return s.id, s.kind == KindUUID
}

func (s DiskSelector) String() string {
	if s.kind == KindUUID {
		return fmt.Sprintf("uuid %s", s.id)
	}
	return fmt.Sprintf("path %s", s.path)
}
