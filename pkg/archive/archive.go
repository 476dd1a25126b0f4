// Package archive moves finished exports of one journal out of the working
// directories into a folder named after the journal.
//
// Export files are recognised by the SO (source) tag in their record
// header, compared case-insensitively against the whole journal name; the
// SN (ISSN) tag names the folder. Task logs, manifests and failure reports
// whose query mentions the journal follow the exports into the archive,
// prefixed with the folder name. A migration log listing every move is
// written next to the folder.
package archive

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	errs "wosexport/pkg/errors"
	"wosexport/pkg/logger"
	"wosexport/pkg/storage"
)

const (
	// LogSuffix ends the name of the migration log
	LogSuffix = "_migration_log.txt"

	// headerLines bounds how far into an export the first record is searched
	headerLines = 200
)

// Header holds the tags that identify the journal of an export file
type Header struct {
	Source string
	ISSN   string
}

// Folder returns the archive folder name, <source>_ISSN<issn>
func (h Header) Folder() string {
	name := strings.NewReplacer(" ", "_", "/", "_", `\`, "_").Replace(strings.TrimSpace(h.Source))
	if h.ISSN == "" {
		return name
	}
	return name + "_ISSN" + strings.TrimSpace(h.ISSN)
}

// ReadHeader scans the first record of a plain-text export for its SO and
// SN tags. A file without an SO tag yields an empty Header.
func ReadHeader(path string) (Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return Header{}, fmt.Errorf("failed to open export: %w", err)
	}
	defer f.Close()
	return parseHeader(f)
}

func parseHeader(r io.Reader) (Header, error) {
	var h Header
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for n := 0; sc.Scan() && n < headerLines; n++ {
		line := strings.TrimPrefix(sc.Text(), "\ufeff")
		switch {
		case h.Source == "" && strings.HasPrefix(line, "SO "):
			h.Source = strings.TrimSpace(line[3:])
		case h.ISSN == "" && strings.HasPrefix(line, "SN "):
			h.ISSN = strings.TrimSpace(line[3:])
		case line == "ER":
			return h, sc.Err()
		}
		if h.Source != "" && h.ISSN != "" {
			break
		}
	}
	return h, sc.Err()
}

// Request describes one relocation
type Request struct {
	// Journal is matched case-insensitively against SO tags and queries
	Journal string
	// Exports are walked for plain-text export files
	Exports []string
	// Logs are walked for task logs, manifests and failure reports
	Logs []string
	// Target receives the journal folder and the migration log
	Target string
	// DryRun reports the moves without touching any file
	DryRun bool
}

// Result summarises a relocation
type Result struct {
	Folder       string
	FolderPath   string
	ExportsFound int
	LogsFound    int
	Moved        int
	Entries      []string
	LogPath      string
}

// Relocator moves files for a journal
type Relocator struct {
	logger logger.Logger
}

// NewRelocator creates a Relocator
func NewRelocator(log logger.Logger) *Relocator {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Relocator{logger: log}
}

type match struct {
	path   string
	header Header
}

// Relocate moves every export whose SO tag names the journal into
// Target/<folder>, then moves the logs whose query mentions it into Target.
// Files that do not match are left where they are.
func (r *Relocator) Relocate(req Request) (*Result, error) {
	journal := strings.ToLower(strings.TrimSpace(req.Journal))
	if journal == "" {
		return nil, errs.Validation("archive.relocate", "journal name is empty")
	}
	if strings.TrimSpace(req.Target) == "" {
		return nil, errs.Validation("archive.relocate", "target directory is empty")
	}
	target, err := filepath.Abs(req.Target)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeValidation, "archive.relocate", err)
	}
	log := r.logger.WithFields(map[string]interface{}{"journal": req.Journal, "target": target})

	var exports []match
	err = walk(req.Exports, target, func(path string) error {
		if !strings.EqualFold(filepath.Ext(path), ".txt") || storage.IsPartial(path) || strings.HasSuffix(path, LogSuffix) {
			return nil
		}
		h, err := ReadHeader(path)
		if err != nil {
			log.WithError(err).WarnWithFields("Skipping unreadable export", map[string]interface{}{"file": path})
			return nil
		}
		if strings.EqualFold(strings.TrimSpace(h.Source), journal) {
			exports = append(exports, match{path: path, header: h})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var logs []string
	err = walk(req.Logs, target, func(path string) error {
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".json" && ext != ".jsonl" {
			return nil
		}
		q, err := readQuery(path)
		if err != nil {
			log.WithError(err).DebugWithFields("Skipping unreadable log", map[string]interface{}{"file": path})
			return nil
		}
		if strings.Contains(strings.ToLower(q), journal) {
			logs = append(logs, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	res := &Result{ExportsFound: len(exports), LogsFound: len(logs)}
	if len(exports) == 0 && len(logs) == 0 {
		log.Info("No files match the journal")
		return res, nil
	}
	res.Folder = folderFor(exports, req.Journal)
	res.FolderPath = filepath.Join(target, res.Folder)

	if !req.DryRun {
		if err := os.MkdirAll(res.FolderPath, 0755); err != nil {
			return nil, fmt.Errorf("failed to create archive folder: %w", err)
		}
	}

	for _, m := range exports {
		dest := filepath.Join(res.FolderPath, filepath.Base(m.path))
		if err := r.move(m.path, dest, req.DryRun); err != nil {
			return res, err
		}
		res.Moved++
		res.Entries = append(res.Entries, fmt.Sprintf("Moved export %s to %s", filepath.Base(m.path), res.FolderPath))
	}
	for _, path := range logs {
		dest := filepath.Join(target, res.Folder+"_"+filepath.Base(path))
		if err := r.move(path, dest, req.DryRun); err != nil {
			return res, err
		}
		res.Moved++
		res.Entries = append(res.Entries, fmt.Sprintf("Moved log %s to %s", filepath.Base(path), dest))
	}

	if !req.DryRun {
		res.LogPath = filepath.Join(target, res.Folder+LogSuffix)
		if err := writeMigrationLog(res.LogPath, res); err != nil {
			return res, err
		}
	}

	log.InfoWithFields("Relocation finished", map[string]interface{}{
		"folder":  res.Folder,
		"exports": res.ExportsFound,
		"logs":    res.LogsFound,
		"moved":   res.Moved,
		"dry_run": req.DryRun,
	})
	return res, nil
}

// folderFor names the folder after the first export that carries an ISSN,
// falling back to the first source tag and then to the journal itself
func folderFor(exports []match, journal string) string {
	for _, m := range exports {
		if m.header.ISSN != "" {
			return m.header.Folder()
		}
	}
	if len(exports) > 0 {
		return exports[0].header.Folder()
	}
	return Header{Source: strings.ToUpper(strings.TrimSpace(journal))}.Folder()
}

// walk visits the regular files under each root, skipping skip and
// everything inside it
func walk(roots []string, skip string, fn func(path string) error) error {
	seen := make(map[string]bool)
	for _, root := range roots {
		if root == "" {
			continue
		}
		abs, err := filepath.Abs(root)
		if err != nil {
			return err
		}
		err = filepath.Walk(abs, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				if os.IsNotExist(err) && path == abs {
					return filepath.SkipDir
				}
				return err
			}
			if info.IsDir() {
				if path == skip && path != abs {
					return filepath.SkipDir
				}
				return nil
			}
			if !info.Mode().IsRegular() || seen[path] || filepath.Dir(path) == skip {
				return nil
			}
			seen[path] = true
			return fn(path)
		})
		if err != nil {
			return fmt.Errorf("failed to scan %s: %w", root, err)
		}
	}
	return nil
}

// readQuery returns the query a task log, manifest or failure report
// belongs to. JSON-lines logs are identified by their first record.
func readQuery(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var doc struct {
		QueryContent string `json:"query_content"`
		Query        string `json:"query"`
	}
	if err := json.NewDecoder(f).Decode(&doc); err != nil {
		return "", err
	}
	if doc.QueryContent != "" {
		return doc.QueryContent, nil
	}
	return doc.Query, nil
}

func (r *Relocator) move(src, dest string, dryRun bool) error {
	r.logger.DebugWithFields("Moving file", map[string]interface{}{"from": src, "to": dest, "dry_run": dryRun})
	if dryRun {
		return nil
	}
	err := os.Rename(src, dest)
	if err == nil {
		return nil
	}
	if !errors.Is(err, syscall.EXDEV) {
		return fmt.Errorf("failed to move %s: %w", src, err)
	}
	return copyAndRemove(src, dest)
}

// copyAndRemove moves a file across filesystems
func copyAndRemove(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}

func writeMigrationLog(path string, res *Result) error {
	var b strings.Builder
	b.WriteString("Migration Log:\n")
	fmt.Fprintf(&b, "Export files matching journal: %d\n", res.ExportsFound)
	fmt.Fprintf(&b, "Log files matching journal: %d\n", res.LogsFound)
	fmt.Fprintf(&b, "Files moved: %d\n\n", res.Moved)
	b.WriteString(strings.Join(res.Entries, "\n"))
	b.WriteString("\n")

	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("failed to write migration log: %w", err)
	}
	return nil
}
