// Package store tracks calculation cases on disk and in memory: one
// directory per run, named by timestamp and wind direction, with a JSON
// manifest as the authoritative index record and the directory-name suffix
// kept as a restore fallback for cases written before manifests existed.
package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/AzatSkyArchLab/wind-cfd-service/internal/domain"
	"github.com/AzatSkyArchLab/wind-cfd-service/internal/result"
	"github.com/jonboulle/clockwork"
)

// ManifestFile is the per-case index record written at case creation.
const ManifestFile = "manifest.json"

const casePrefix = "case_"

// directionSuffixRe recovers the wind direction from legacy directory
// names like "case_20240426_153000_270deg".
var directionSuffixRe = regexp.MustCompile(`_(\d+)deg$`)

// Manifest records how a case was generated, enabling centered resampling
// and restart recovery without re-parsing the request.
type Manifest struct {
	Direction      int                `json:"direction"`
	WindSpeed      float64            `json:"wind_speed"`
	SampleHeight   float64            `json:"sample_height"`
	CellSize       float64            `json:"cell_size"`
	Iterations     int                `json:"iterations"`
	MaxHeight      float64            `json:"max_height"`
	BuildingBounds domain.BoundingBox `json:"building_bounds"`
	CreatedAt      time.Time          `json:"created_at"`
}

// entry is the in-memory record for one known direction.
type entry struct {
	dir      string
	manifest *Manifest
	res      *result.Result
}

// Store is the process-wide case registry. All methods are safe for
// concurrent use; the calculation task and HTTP handlers share it.
type Store struct {
	root   string
	clock  clockwork.Clock
	logger *slog.Logger

	mu      sync.RWMutex
	cases   map[int]*entry
	current *int
}

// New creates a Store rooted at dir, creating it if needed.
func New(root string, clock clockwork.Clock, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create case root: %w", err)
	}
	return &Store{
		root:   root,
		clock:  clock,
		logger: logger,
		cases:  make(map[int]*entry),
	}, nil
}

// Restore scans the case root and re-registers completed cases: those with
// at least one positive output-time subdirectory. The manifest is the
// primary index; the directory-name suffix is the migration fallback.
// Returns the number of restored cases.
func (s *Store) Restore() int {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		s.logger.Warn("case root scan failed", "error", err)
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	restored := 0
	for _, ent := range entries {
		if !ent.IsDir() || len(ent.Name()) <= len(casePrefix) || ent.Name()[:len(casePrefix)] != casePrefix {
			continue
		}
		dir := filepath.Join(s.root, ent.Name())
		if !hasCompletedTime(dir) {
			continue
		}

		m, direction, ok := identify(dir, ent.Name())
		if !ok {
			s.logger.Warn("case directory without manifest or direction suffix, skipping", "dir", ent.Name())
			continue
		}
		s.cases[direction] = &entry{dir: dir, manifest: m}
		restored++
		s.logger.Info("restored case", "direction", direction, "dir", ent.Name())
	}
	return restored
}

// identify resolves a case's direction: manifest first, name parse second.
func identify(dir, name string) (*Manifest, int, bool) {
	if m, err := readManifest(dir); err == nil {
		return m, m.Direction, true
	}
	if match := directionSuffixRe.FindStringSubmatch(name); match != nil {
		d, err := strconv.Atoi(match[1])
		if err == nil {
			return nil, d, true
		}
	}
	return nil, 0, false
}

// hasCompletedTime reports whether the case has a non-zero output time
// directory, the marker of a finished solver run.
func hasCompletedTime(dir string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, ent := range entries {
		if !ent.IsDir() {
			continue
		}
		if v, err := strconv.ParseFloat(ent.Name(), 64); err == nil && v > 0 {
			return true
		}
	}
	return false
}

func readManifest(dir string) (*Manifest, error) {
	raw, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// CreateCase allocates a timestamped case directory for the direction and
// persists its manifest. Any previous entry for the direction is replaced
// in memory; its directory stays on disk until cleanup.
func (s *Store) CreateCase(m Manifest) (string, error) {
	m.CreatedAt = s.clock.Now()
	name := fmt.Sprintf("%s%s_%ddeg", casePrefix, m.CreatedAt.Format("20060102_150405"), m.Direction)
	dir := filepath.Join(s.root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create case directory: %w", err)
	}

	raw, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ManifestFile), raw, 0o644); err != nil {
		return "", fmt.Errorf("write manifest: %w", err)
	}

	s.mu.Lock()
	s.cases[m.Direction] = &entry{dir: dir, manifest: &m}
	s.mu.Unlock()
	return dir, nil
}

// CaseDir returns the directory registered for a direction.
func (s *Store) CaseDir(direction int) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.cases[direction]
	if !ok {
		return "", false
	}
	return e.dir, true
}

// Manifest returns the stored manifest for a direction, when one exists.
func (s *Store) Manifest(direction int) (Manifest, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.cases[direction]
	if !ok || e.manifest == nil {
		return Manifest{}, false
	}
	return *e.manifest, true
}

// SetResult caches the extracted grid for a direction; a later resample at
// the same direction supersedes it. The direction must have been registered
// by CreateCase or Restore: a grid without a case directory behind it has
// nowhere to re-extract from, so an unknown direction is dropped.
func (s *Store) SetResult(direction int, res result.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.cases[direction]
	if !ok {
		s.logger.Warn("result for unregistered direction dropped", "direction", direction)
		return
	}
	e.res = &res
}

// Result returns the cached grid for a direction.
func (s *Store) Result(direction int) (result.Result, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.cases[direction]
	if !ok || e.res == nil {
		return result.Result{}, false
	}
	return *e.res, true
}

// SetCurrent marks the direction of the most recent calculation.
func (s *Store) SetCurrent(direction int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := direction
	s.current = &d
}

// Current returns the most recent calculation's direction.
func (s *Store) Current() (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return 0, false
	}
	return *s.current, true
}

// DirectionInfo describes one known direction for the listing endpoint.
type DirectionInfo struct {
	CaseDir  string `json:"case_dir"`
	CaseName string `json:"case_name"`
	HasData  bool   `json:"has_data"`
}

// Directions lists every known direction with its case location and
// whether a grid is cached in memory.
func (s *Store) Directions() map[string]DirectionInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]DirectionInfo, len(s.cases))
	for d, e := range s.cases {
		out[strconv.Itoa(d)] = DirectionInfo{
			CaseDir:  e.dir,
			CaseName: filepath.Base(e.dir),
			HasData:  e.res != nil,
		}
	}
	return out
}

// CaseInfo describes one case for the listing endpoint.
type CaseInfo struct {
	Direction int    `json:"direction"`
	Path      string `json:"path"`
	HasResult bool   `json:"has_result"`
}

// Cases lists registered cases whose directories still exist on disk.
func (s *Store) Cases() []CaseInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]CaseInfo, 0, len(s.cases))
	for d, e := range s.cases {
		if _, err := os.Stat(e.dir); err != nil {
			continue
		}
		out = append(out, CaseInfo{Direction: d, Path: e.dir, HasResult: e.res != nil})
	}
	return out
}

// Cleanup deletes every persisted case directory and resets the in-memory
// registry. Returns the number of directories removed.
func (s *Store) Cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	entries, err := os.ReadDir(s.root)
	if err == nil {
		for _, ent := range entries {
			if !ent.IsDir() || len(ent.Name()) <= len(casePrefix) || ent.Name()[:len(casePrefix)] != casePrefix {
				continue
			}
			if err := os.RemoveAll(filepath.Join(s.root, ent.Name())); err != nil {
				s.logger.Warn("case delete failed", "dir", ent.Name(), "error", err)
				continue
			}
			deleted++
		}
	}

	s.cases = make(map[int]*entry)
	s.current = nil
	return deleted
}
