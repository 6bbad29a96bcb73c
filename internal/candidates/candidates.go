package candidates

import (
	"context"

	"github.com/ghatdev/redoxfs/internal/selector"
)

// Scanner lists the disks that may carry a filesystem with a given UUID.
// Implementations are platform dependent.
type Scanner interface {
	Scan(ctx context.Context) []string
}

// Enumerate returns the ordered candidate paths for sel. An explicit path is
// always the only candidate; UUID selectors defer to the scanner.
func Enumerate(ctx context.Context, scanner Scanner, sel selector.DiskSelector) []string {
	if sel.Kind() == selector.KindPath {
		return []string{sel.Path()}
	}
	return scanner.Scan(ctx)
}

// NoOpScanner is used where disks cannot be enumerated. UUID resolution never
// succeeds with it.
type NoOpScanner struct{}

func NewNoOpScanner() *NoOpScanner {
	return &NoOpScanner{}
}

func (s *NoOpScanner) Scan(ctx context.Context) []string {
	return nil
}
