package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	errs "wosexport/pkg/errors"
	"wosexport/pkg/logger"
	"wosexport/pkg/pacing"
	"wosexport/pkg/plan"
	"wosexport/pkg/query"
)

// partialSuffixes mark files a browser is still writing
var partialSuffixes = []string{".crdownload", ".part", ".partial", ".tmp", ".download"}

// fileState is what a snapshot remembers about a file
type fileState struct {
	Size    int64
	ModTime time.Time
}

// Snapshot is the set of completed files present in the download directory
type Snapshot map[string]fileState

// Manager watches the browser's download directory and gives each export a
// deterministic name
type Manager struct {
	dir    string
	pacer  *pacing.Pacer
	poll   pacing.Range
	logger logger.Logger
}

// NewManager creates the download directory if needed
func NewManager(dir string, pacer *pacing.Pacer, poll pacing.Range, log logger.Logger) (*Manager, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create download directory: %w", err)
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	if pacer == nil {
		pacer = pacing.New()
	}
	return &Manager{dir: dir, pacer: pacer, poll: poll, logger: log}, nil
}

// Dir returns the watched directory
func (m *Manager) Dir() string {
	return m.dir
}

// Snapshot lists the completed files currently in the directory
func (m *Manager) Snapshot() (Snapshot, error) {
	snap, _, err := m.scan()
	return snap, err
}

// scan returns completed files and whether any partial download is present
func (m *Manager) scan() (Snapshot, bool, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read download directory: %w", err)
	}

	snap := make(Snapshot, len(entries))
	partial := false
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		if IsPartial(name) {
			partial = true
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// Renamed away between ReadDir and Info
			continue
		}
		snap[name] = fileState{Size: info.Size(), ModTime: info.ModTime()}
	}
	return snap, partial, nil
}

// IsPartial reports whether name looks like an in-progress download
func IsPartial(name string) bool {
	lower := strings.ToLower(name)
	for _, suffix := range partialSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}

// WaitForNew polls until a completed, non-empty file that was not in before
// appears, and returns its path. When several appear, the most recently
// modified wins. It gives up with an export-timeout error after timeout.
func (m *Manager) WaitForNew(ctx context.Context, before Snapshot, timeout time.Duration) (string, error) {
	deadline := time.Now().Add(timeout)

	for {
		snap, partial, err := m.scan()
		if err != nil {
			return "", err
		}

		var newest string
		var newestState fileState
		fresh := 0
		for name, state := range snap {
			if _, seen := before[name]; seen || state.Size == 0 {
				continue
			}
			fresh++
			if newest == "" || state.ModTime.After(newestState.ModTime) {
				newest, newestState = name, state
			}
		}

		if newest != "" {
			if fresh > 1 {
				m.logger.WarnWithFields("Several new files appeared, taking the newest", map[string]interface{}{
					"count": fresh,
					"file":  newest,
				})
			}
			return filepath.Join(m.dir, newest), nil
		}

		if time.Now().After(deadline) {
			return "", errs.ExportTimeout("await download",
				"no completed file in %s after %s (partial download present: %t)", m.dir, timeout, partial)
		}

		if err := m.pacer.Pause(ctx, m.poll); err != nil {
			return "", err
		}
	}
}

// FileName is the deterministic name an export of r for q is stored under
func FileName(q string, r plan.Range) string {
	return fmt.Sprintf("%s_%d-%d.txt", query.Key(q), r.Start, r.End)
}

// Claim renames a downloaded file to the deterministic name for its range
// and returns the new path. An older file with the same name is replaced.
func (m *Manager) Claim(path, q string, r plan.Range) (string, error) {
	target := filepath.Join(m.dir, FileName(q, r))
	if path == target {
		return target, nil
	}

	if _, err := os.Stat(target); err == nil {
		m.logger.WarnWithFields("Replacing earlier export of the same range", map[string]interface{}{
			"file": target,
		})
	}

	if err := os.Rename(path, target); err != nil {
		return "", fmt.Errorf("failed to rename %s: %w", filepath.Base(path), err)
	}
	return target, nil
}
