package store

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/AzatSkyArchLab/wind-cfd-service/internal/result"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) (*Store, string, *clockwork.FakeClock) {
	t.Helper()
	root := t.TempDir()
	clock := clockwork.NewFakeClockAt(time.Date(2024, 4, 26, 15, 30, 0, 0, time.UTC))
	s, err := New(root, clock, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	return s, root, clock
}

func TestCreateCase_NameAndManifest(t *testing.T) {
	s, root, _ := newStore(t)

	dir, err := s.CreateCase(Manifest{Direction: 270, WindSpeed: 4, SampleHeight: 1.75})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(root, "case_20240426_153000_270deg"), dir)
	raw, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"direction": 270`)

	got, ok := s.CaseDir(270)
	assert.True(t, ok)
	assert.Equal(t, dir, got)
}

func TestCreateCase_ReplacesDirectionEntry(t *testing.T) {
	s, _, clock := newStore(t)

	first, err := s.CreateCase(Manifest{Direction: 90})
	require.NoError(t, err)
	s.SetResult(90, result.Result{WindDirection: 90})

	clock.Advance(time.Minute)
	second, err := s.CreateCase(Manifest{Direction: 90})
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	got, _ := s.CaseDir(90)
	assert.Equal(t, second, got)
	_, ok := s.Result(90)
	assert.False(t, ok, "stale grid must not survive a new case")
	// The superseded directory stays on disk until cleanup.
	_, err = os.Stat(first)
	assert.NoError(t, err)
}

func TestResultCaching(t *testing.T) {
	s, _, _ := newStore(t)
	_, err := s.CreateCase(Manifest{Direction: 45})
	require.NoError(t, err)

	_, ok := s.Result(45)
	assert.False(t, ok)

	s.SetResult(45, result.Result{WindDirection: 45, WindSpeed: 6})
	res, ok := s.Result(45)
	require.True(t, ok)
	assert.Equal(t, 45, res.WindDirection)
	assert.InDelta(t, 6.0, res.WindSpeed, 1e-12)
}

func TestSetResult_UnregisteredDirectionDropped(t *testing.T) {
	s, _, _ := newStore(t)

	s.SetResult(135, result.Result{WindDirection: 135})

	_, ok := s.Result(135)
	assert.False(t, ok)
	assert.Empty(t, s.Directions(), "no phantom entry without a case directory")
	assert.Empty(t, s.Cases())
}

func TestCurrentDirection(t *testing.T) {
	s, _, _ := newStore(t)

	_, ok := s.Current()
	assert.False(t, ok)

	s.SetCurrent(180)
	d, ok := s.Current()
	assert.True(t, ok)
	assert.Equal(t, 180, d)
}

func seedCase(t *testing.T, root, name string, withManifest bool, timeDirs ...string) string {
	t.Helper()
	dir := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for _, td := range timeDirs {
		require.NoError(t, os.MkdirAll(filepath.Join(dir, td), 0o755))
	}
	if withManifest {
		require.NoError(t, os.WriteFile(filepath.Join(dir, ManifestFile),
			[]byte(`{"direction": 315, "wind_speed": 7.5}`), 0o644))
	}
	return dir
}

func TestRestore(t *testing.T) {
	s, root, _ := newStore(t)

	seedCase(t, root, "case_20240101_000000_315deg", true, "0", "400")
	seedCase(t, root, "case_20240102_000000_90deg", false, "400") // legacy, name only
	seedCase(t, root, "case_20240103_000000_180deg", false, "0")  // never solved
	seedCase(t, root, "scratch", false, "400")                    // not a case

	assert.Equal(t, 2, s.Restore())

	m, ok := s.Manifest(315)
	require.True(t, ok)
	assert.InDelta(t, 7.5, m.WindSpeed, 1e-12)

	_, ok = s.CaseDir(90)
	assert.True(t, ok)
	_, ok = s.Manifest(90)
	assert.False(t, ok, "legacy case has no manifest")

	_, ok = s.CaseDir(180)
	assert.False(t, ok)
}

func TestRestore_ManifestWinsOverName(t *testing.T) {
	s, root, _ := newStore(t)
	// A renamed directory: the manifest direction is authoritative.
	dir := seedCase(t, root, "case_20240101_000000_90deg", false, "400")
	require.NoError(t, os.WriteFile(filepath.Join(dir, ManifestFile),
		[]byte(`{"direction": 270}`), 0o644))

	require.Equal(t, 1, s.Restore())
	_, ok := s.CaseDir(270)
	assert.True(t, ok)
	_, ok = s.CaseDir(90)
	assert.False(t, ok)
}

func TestCleanup(t *testing.T) {
	s, root, _ := newStore(t)
	_, err := s.CreateCase(Manifest{Direction: 0})
	require.NoError(t, err)
	s.SetResult(0, result.Result{})
	s.SetCurrent(0)
	seedCase(t, root, "case_20230101_000000_45deg", false, "400")
	keep := filepath.Join(root, "notes.txt")
	require.NoError(t, os.WriteFile(keep, []byte("x"), 0o644))

	assert.Equal(t, 2, s.Cleanup())

	_, ok := s.CaseDir(0)
	assert.False(t, ok)
	_, ok = s.Current()
	assert.False(t, ok)
	_, err = os.Stat(keep)
	assert.NoError(t, err, "non-case files survive cleanup")
	assert.Empty(t, s.Cases())
}

func TestCases_SkipsMissingDirectories(t *testing.T) {
	s, _, _ := newStore(t)
	dir, err := s.CreateCase(Manifest{Direction: 30})
	require.NoError(t, err)
	_, err = s.CreateCase(Manifest{Direction: 60})
	require.NoError(t, err)

	require.NoError(t, os.RemoveAll(dir))

	cases := s.Cases()
	require.Len(t, cases, 1)
	assert.Equal(t, 60, cases[0].Direction)
}
