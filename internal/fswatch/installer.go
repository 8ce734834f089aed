package fswatch

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/karrick/godirwalk"
	"go.uber.org/zap"
)

// Installer registers a watch on every directory below a root.
type Installer struct {
	registry *Registry
	logger   *zap.Logger
	scratch  []byte
}

// NewInstaller creates an installer that records watches in registry.
func NewInstaller(registry *Registry, logger *zap.Logger) *Installer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Installer{
		registry: registry,
		logger:   logger,
		scratch:  make([]byte, godirwalk.MinimumScratchBufferSize),
	}
}

// Install walks root depth-first and adds a watch for each directory strictly
// below it. The root is assumed to be watched already. Symbolic links are
// never followed. Unreadable subtrees and per-directory registration failures
// are logged and skipped; the walk stops early only when the registry fills.
// It returns the number of watches added.
func (in *Installer) Install(root string) (int, error) {
	root = filepath.Clean(root)
	added := 0

	err := godirwalk.Walk(root, &godirwalk.Options{
		FollowSymbolicLinks: false,
		Unsorted:            false,
		ScratchBuffer:       in.scratch,
		Callback: func(path string, de *godirwalk.Dirent) error {
			if path == root || !de.IsDir() {
				return nil
			}
			before := in.registry.Len()
			if _, err := in.registry.Add(path); err != nil {
				if errors.Is(err, ErrRegistryFull) {
					return err
				}
				// Already logged by the registry; keep descending.
				return nil
			}
			if in.registry.Len() > before {
				added++
			}
			return nil
		},
		ErrorCallback: func(path string, err error) godirwalk.ErrorAction {
			if errors.Is(err, ErrRegistryFull) {
				return godirwalk.Halt
			}
			in.logger.Error("failed to recursively watch", zap.String("path", path), zap.Error(err))
			return godirwalk.SkipNode
		},
	})
	if err != nil {
		return added, fmt.Errorf("recursive watch %s: %w", root, err)
	}
	return added, nil
}
