package candidates

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// DirScanner walks a two level namespace: Root holds namespaces whose names
// start with Prefix, and every entry of such a namespace is a candidate disk.
// On Linux this maps onto /dev/disk/by-*.
type DirScanner struct {
	Root   string
	Prefix string
	logger *slog.Logger
}

func NewDirScanner(root, prefix string, logger *slog.Logger) *DirScanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &DirScanner{
		Root:   root,
		Prefix: prefix,
		logger: logger,
	}
}

// Scan never fails as a whole. Unreadable namespaces are logged and skipped.
// Entries that resolve to a device already listed are dropped.
func (s *DirScanner) Scan(ctx context.Context) []string {
	entries, err := os.ReadDir(s.Root)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to list namespaces", "root", s.Root, "error", err)
		return nil
	}

	var namespaces []string
	for _, entry := range entries {
		if !strings.HasPrefix(entry.Name(), s.Prefix) {
			continue
		}
		namespace := filepath.Join(s.Root, entry.Name())
		s.logger.DebugContext(ctx, "found namespace", "namespace", namespace)
		namespaces = append(namespaces, namespace)
	}

	var (
		paths []string
		seen  = make(map[string]bool)
	)
	for _, namespace := range namespaces {
		if ctx.Err() != nil {
			break
		}

		entries, err := os.ReadDir(namespace)
		if err != nil {
			s.logger.WarnContext(ctx, "failed to list namespace", "namespace", namespace, "error", err)
			continue
		}

		for _, entry := range entries {
			path := filepath.Join(namespace, entry.Name())

			target, err := filepath.EvalSymlinks(path)
			if err != nil {
				target = path
			}
			if seen[target] {
				continue
			}
			seen[target] = true

			s.logger.DebugContext(ctx, "found path", "path", path)
			paths = append(paths, path)
		}
	}

	return paths
}
