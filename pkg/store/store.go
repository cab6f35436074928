// Package store persists artifacts under one directory, one pair of files
// per item:
//
//	<dir>/<id>.json   full detail payload
//	<dir>/<id>.md     plaintext excerpt
//
// plus the run-level files index.json, list_raw.json, missing.txt and
// summary.csv. Every file is replaced atomically so a crash never leaves a
// truncated final file behind; at worst a hidden temp file remains.
package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/bulkfetch/pkg/artifact"
)

// ErrNotFound is returned by Get when an item has no valid artifact.
var ErrNotFound = errors.New("artifact not found")

// Run-level file names.
const (
	ManifestFile = "index.json"
	ListingFile  = "list_raw.json"
	MissingFile  = "missing.txt"
	SummaryFile  = "summary.csv"
)

// FileStore is a directory of artifacts. Safe for concurrent use: distinct
// IDs touch distinct files and the same ID is settled by the last rename.
type FileStore struct {
	dir string
}

// New opens (and creates) dir.
func New(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("store directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the store root.
func (s *FileStore) Dir() string {
	return s.dir
}

// Paths returns the JSON and excerpt paths for id.
func (s *FileStore) Paths(id int64) (jsonPath, mdPath string) {
	base := filepath.Join(s.dir, strconv.FormatInt(id, 10))
	return base + ".json", base + ".md"
}

// RelPaths returns Paths relative to the store root.
func (s *FileStore) RelPaths(id int64) (jsonPath, mdPath string) {
	name := strconv.FormatInt(id, 10)
	return name + ".json", name + ".md"
}

// ExistsValid reports whether id is fully persisted: the JSON file parses
// and the excerpt file exists.
func (s *FileStore) ExistsValid(id int64) bool {
	jsonPath, mdPath := s.Paths(id)

	data, err := os.ReadFile(jsonPath)
	if err != nil || !json.Valid(data) {
		return false
	}
	if _, err := os.Stat(mdPath); err != nil {
		return false
	}
	return true
}

// Put persists a. The JSON file commits the pair: any previous JSON is
// removed first and the new one is renamed into place after the excerpt, so
// an interrupted Put never satisfies ExistsValid. Writing the same ID again
// replaces both files.
func (s *FileStore) Put(a *artifact.Artifact) error {
	if a == nil {
		return fmt.Errorf("artifact cannot be nil")
	}
	jsonPath, mdPath := s.Paths(a.ID)

	var buf bytes.Buffer
	if err := json.Indent(&buf, a.Raw, "", "  "); err != nil {
		return fmt.Errorf("item %d: invalid payload: %w", a.ID, err)
	}
	buf.WriteByte('\n')

	if err := os.Remove(jsonPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("item %d: %w", a.ID, err)
	}
	if err := WriteFileAtomic(mdPath, []byte(a.Excerpt)); err != nil {
		return fmt.Errorf("item %d: %w", a.ID, err)
	}
	if err := WriteFileAtomic(jsonPath, buf.Bytes()); err != nil {
		return fmt.Errorf("item %d: %w", a.ID, err)
	}
	return nil
}

// Get returns the stored payload of id, or ErrNotFound when id is not
// fully persisted.
func (s *FileStore) Get(id int64) (json.RawMessage, error) {
	if !s.ExistsValid(id) {
		return nil, fmt.Errorf("item %d: %w", id, ErrNotFound)
	}
	jsonPath, _ := s.Paths(id)
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, fmt.Errorf("item %d: %w", id, err)
	}
	return json.RawMessage(data), nil
}

// Missing returns the sorted, deduplicated subset of ids that are not
// fully persisted.
func (s *FileStore) Missing(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	var missing []int64
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if !s.ExistsValid(id) {
			missing = append(missing, id)
		}
	}
	sort.Slice(missing, func(i, j int) bool { return missing[i] < missing[j] })
	return missing
}

// Manifest describes one run's target set.
type Manifest struct {
	DeclaredTotal int       `json:"declared_total"`
	UniqueCount   int       `json:"unique_count"`
	IDs           []int64   `json:"ids"`
	RootID        string    `json:"root_id,omitempty"`
	RunID         string    `json:"run_id,omitempty"`
	GeneratedAt   time.Time `json:"generated_at"`
}

// WriteManifest writes index.json.
func (s *FileStore) WriteManifest(m Manifest) error {
	if m.IDs == nil {
		m.IDs = []int64{}
	}
	return s.writeJSON(ManifestFile, m)
}

// ReadManifest reads index.json.
func (s *FileStore) ReadManifest() (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, ManifestFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("manifest: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	return &m, nil
}

// WriteListing dumps the raw listing items to list_raw.json.
func (s *FileStore) WriteListing(items []json.RawMessage) error {
	if items == nil {
		items = []json.RawMessage{}
	}
	return s.writeJSON(ListingFile, items)
}

// WriteMissing writes missing.txt, one ID per line.
func (s *FileStore) WriteMissing(ids []int64) error {
	var b strings.Builder
	for _, id := range ids {
		b.WriteString(strconv.FormatInt(id, 10))
		b.WriteByte('\n')
	}
	return WriteFileAtomic(filepath.Join(s.dir, MissingFile), []byte(b.String()))
}

// RemoveMissing deletes a stale missing.txt. Absence is not an error.
func (s *FileStore) RemoveMissing() error {
	err := os.Remove(filepath.Join(s.dir, MissingFile))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", MissingFile, err)
	}
	return nil
}

// WriteRunFile atomically writes a run-level file under the store root.
func (s *FileStore) WriteRunFile(name string, write func(w io.Writer) error) error {
	return WriteAtomic(filepath.Join(s.dir, name), write)
}

func (s *FileStore) writeJSON(name string, v any) error {
	return s.WriteRunFile(name, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(v)
	})
}
