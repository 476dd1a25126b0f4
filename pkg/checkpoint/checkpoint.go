package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"wosexport/pkg/logger"
	"wosexport/pkg/plan"
	"wosexport/pkg/query"
)

// FilePrefix names manifest files inside the log directory
const FilePrefix = "download_task_"

// CurrentVersion is written into every new manifest
const CurrentVersion = 1

// Manifest records how a query's result set was partitioned and how far the
// export loop got
type Manifest struct {
	Query        string    `json:"query_content"`
	RunID        string    `json:"run_id"`
	Start        int       `json:"start_record"`
	End          int       `json:"end_record"`
	TotalRecords int       `json:"total_records"`
	Capacity     int       `json:"capacity"`
	NextIndex    int       `json:"next_index"`
	SortBy       string    `json:"sort_by,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Version      int       `json:"version"`
}

// Ranges rebuilds the planned range sequence
func (m *Manifest) Ranges() ([]plan.Range, error) {
	return plan.Window(m.Start, m.End, m.TotalRecords, m.Capacity)
}

// Done reports whether every planned range has been attempted
func (m *Manifest) Done() bool {
	ranges, err := m.Ranges()
	if err != nil {
		return false
	}
	return m.NextIndex >= len(ranges)
}

// Manager reads and writes manifests in one directory
type Manager struct {
	dir    string
	logger logger.Logger
}

// NewManager creates a new manifest manager rooted at dir
func NewManager(dir string, log logger.Logger) (*Manager, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create manifest directory: %w", err)
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Manager{dir: dir, logger: log}, nil
}

// Path returns the manifest file for q
func (m *Manager) Path(q string) string {
	return filepath.Join(m.dir, FilePrefix+query.Key(q)+".json")
}

// Create writes a fresh manifest for a planned window
func (m *Manager) Create(q, runID string, start, end, total, capacity int) (*Manifest, error) {
	now := time.Now()
	manifest := &Manifest{
		Query:        q,
		RunID:        runID,
		Start:        start,
		End:          end,
		TotalRecords: total,
		Capacity:     capacity,
		NextIndex:    0,
		CreatedAt:    now,
		Version:      CurrentVersion,
	}

	if _, err := manifest.Ranges(); err != nil {
		return nil, err
	}

	if err := m.Save(manifest); err != nil {
		return nil, fmt.Errorf("failed to save initial manifest: %w", err)
	}

	m.logger.InfoWithFields("Manifest created", map[string]interface{}{
		"query": q,
		"total": total,
		"path":  m.Path(q),
	})

	return manifest, nil
}

// Load loads the manifest for q. It returns nil, nil when none exists.
func (m *Manager) Load(q string) (*Manifest, error) {
	manifest, err := readManifest(m.Path(q))
	if err != nil || manifest == nil {
		return manifest, err
	}
	if manifest.Query != q {
		return nil, fmt.Errorf("manifest %s belongs to query %q", m.Path(q), manifest.Query)
	}

	m.logger.DebugWithFields("Manifest loaded", map[string]interface{}{
		"query":      q,
		"next_index": manifest.NextIndex,
		"updated_at": manifest.UpdatedAt,
	})
	return manifest, nil
}

func readManifest(path string) (*Manifest, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}
	defer file.Close()

	var manifest Manifest
	if err := json.NewDecoder(file).Decode(&manifest); err != nil {
		return nil, fmt.Errorf("failed to decode manifest %s: %w", path, err)
	}
	return &manifest, nil
}

// Save writes the manifest atomically
func (m *Manager) Save(manifest *Manifest) error {
	manifest.UpdatedAt = time.Now()
	path := m.Path(manifest.Query)

	// Write to a temp file in the same directory, then rename over the target
	tmp, err := os.CreateTemp(m.dir, ".manifest-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary manifest file: %w", err)
	}
	tempPath := tmp.Name()

	encoder := json.NewEncoder(tmp)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(manifest); err != nil {
		tmp.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode manifest: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync manifest file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close manifest file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace manifest file: %w", err)
	}

	return nil
}

// Advance records that ranges before next have been attempted
func (m *Manager) Advance(manifest *Manifest, next int) error {
	if next < manifest.NextIndex {
		return nil
	}
	manifest.NextIndex = next
	return m.Save(manifest)
}

// Delete removes the manifest for q
func (m *Manager) Delete(q string) error {
	if err := os.Remove(m.Path(q)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete manifest: %w", err)
	}
	m.logger.InfoWithFields("Manifest deleted", map[string]interface{}{"query": q})
	return nil
}

// Exists checks if a manifest exists for q
func (m *Manager) Exists(q string) bool {
	_, err := os.Stat(m.Path(q))
	return err == nil
}

// List returns every readable manifest in the directory, most recently
// updated first
func (m *Manager) List() ([]*Manifest, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list manifests: %w", err)
	}

	var manifests []*Manifest
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, FilePrefix) || filepath.Ext(name) != ".json" {
			continue
		}
		manifest, err := readManifest(filepath.Join(m.dir, name))
		if err != nil {
			m.logger.WithError(err).Warn("Skipping unreadable manifest")
			continue
		}
		if manifest != nil {
			manifests = append(manifests, manifest)
		}
	}

	sort.Slice(manifests, func(i, j int) bool {
		return manifests[i].UpdatedAt.After(manifests[j].UpdatedAt)
	})
	return manifests, nil
}
