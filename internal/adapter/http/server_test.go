package http_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	httpadapter "github.com/AzatSkyArchLab/wind-cfd-service/internal/adapter/http"
	"github.com/AzatSkyArchLab/wind-cfd-service/internal/domain"
	"github.com/AzatSkyArchLab/wind-cfd-service/internal/observability"
	"github.com/AzatSkyArchLab/wind-cfd-service/internal/result"
	"github.com/AzatSkyArchLab/wind-cfd-service/internal/runner"
	"github.com/AzatSkyArchLab/wind-cfd-service/internal/store"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cutFixture = `POINTS 4 float
0 0 1.75 10 0 1.75
0 10 1.75 10 10 1.75
VECTORS U float
1 0 0 2 0 0
3 0 0 4 0 0
`

// toolchainFake stands in for the OpenFOAM binaries.
type toolchainFake struct{}

func (toolchainFake) Run(_ context.Context, dir, logName, name string, _ ...string) error {
	switch name {
	case "simpleFoam":
		if err := os.WriteFile(filepath.Join(dir, logName), []byte("Time = 400\n"), 0o644); err != nil {
			return err
		}
		return os.MkdirAll(filepath.Join(dir, "400"), 0o755)
	case "postProcess":
		out := filepath.Join(dir, "postProcessing", "sampleDict", "400")
		if err := os.MkdirAll(out, 0o755); err != nil {
			return err
		}
		return os.WriteFile(filepath.Join(out, "zSlice.vtk"), []byte(cutFixture), 0o644)
	}
	return nil
}

type fixture struct {
	srv   *httpadapter.Server
	calc  *runner.Calculator
	store *store.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	st, err := store.New(t.TempDir(), clockwork.NewRealClock(), logger)
	require.NoError(t, err)
	metrics := observability.NewMetricsForTesting()
	exec := toolchainFake{}
	calc := runner.New(runner.Options{
		Base:      domain.DefaultSizerConfig(),
		Store:     st,
		Exec:      exec,
		Extractor: result.NewExtractor(exec, 5, logger),
		Metrics:   metrics,
		Clock:     clockwork.NewRealClock(),
		Logger:    logger,
	})
	return &fixture{
		srv:   httpadapter.NewServer(":0", calc, st, metrics, logger),
		calc:  calc,
		store: st,
	}
}

func (f *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	f.srv.ServeHTTP(rec, req)
	return rec
}

const calculateBody = `{
	"wind": {"direction": 270, "speed": 4},
	"buildings": {
		"type": "FeatureCollection",
		"features": [{
			"type": "Feature",
			"properties": {"height": 12},
			"geometry": {"type": "Polygon",
				"coordinates": [[[0,0],[20,0],[20,20],[0,20],[0,0]]]}
		}]
	}
}`

func (f *fixture) runCalculation(t *testing.T) {
	t.Helper()
	rec := f.do(http.MethodPost, "/calculate", calculateBody)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	require.Eventually(t, func() bool {
		return f.calc.Tracker().Snapshot().State == runner.StateCompleted
	}, 5*time.Second, 10*time.Millisecond, "calculation did not finish")
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, body["version"])
}

func TestStatus_Idle(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodGet, "/status", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"idle"`)
}

func TestCalculate_FullRoundTrip(t *testing.T) {
	f := newFixture(t)
	f.runCalculation(t)

	rec := f.do(http.MethodGet, "/result", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var res result.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, 270, res.WindDirection)
	assert.Greater(t, res.Stats.Points, 0)
	assert.Greater(t, res.Grid.NX, 0)

	// Serving the result acknowledges completion.
	assert.Contains(t, f.do(http.MethodGet, "/status", "").Body.String(), `"status":"idle"`)
}

func TestCalculate_InvalidJSON(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodPost, "/calculate", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCalculate_NoBuildings(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodPost, "/calculate", `{"wind": {"direction": 0, "speed": 4}}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "building")
}

func TestCalculate_BusyConflict(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.calc.Tracker().Begin())

	rec := f.do(http.MethodPost, "/calculate", calculateBody)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestResult_ByAngle(t *testing.T) {
	f := newFixture(t)
	f.runCalculation(t)

	rec := f.do(http.MethodGet, "/result/270", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"wind_direction":270`)
}

func TestResult_UnknownAngle(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/result/45", "").Code)
}

func TestResult_BadAngle(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/result/north", "").Code)
}

func TestResult_NoCurrentCase(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/result", "").Code)
}

func TestResult_OnDemandExtraction(t *testing.T) {
	f := newFixture(t)
	f.runCalculation(t)
	caseDir, ok := f.store.CaseDir(270)
	require.True(t, ok)

	// A fresh process restoring the case from disk has no cached grid;
	// fetching the result must extract it on demand.
	logger := slog.New(slog.DiscardHandler)
	restored, err := store.New(filepath.Dir(caseDir), clockwork.NewRealClock(), logger)
	require.NoError(t, err)
	require.Equal(t, 1, restored.Restore())
	metrics := observability.NewMetricsForTesting()
	exec := toolchainFake{}
	calc := runner.New(runner.Options{
		Base:      domain.DefaultSizerConfig(),
		Store:     restored,
		Exec:      exec,
		Extractor: result.NewExtractor(exec, 5, logger),
		Metrics:   metrics,
		Clock:     clockwork.NewRealClock(),
		Logger:    logger,
	})
	srv := httpadapter.NewServer(":0", calc, restored, metrics, logger)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/result/270", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"sample_height":1.75`)
}

func TestResample(t *testing.T) {
	f := newFixture(t)
	f.runCalculation(t)

	rec := f.do(http.MethodPost, "/resample", `{"direction": 270, "height": 10}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"sample_height":10`)

	// The legacy "z" key is accepted too.
	rec = f.do(http.MethodPost, "/resample", `{"z": 2.5}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"sample_height":2.5`)
}

func TestResample_NoCase(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodPost, "/resample", `{"height": 2}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDirectionsAndCases(t *testing.T) {
	f := newFixture(t)
	f.runCalculation(t)

	rec := f.do(http.MethodGet, "/directions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var dirBody struct {
		Directions map[string]store.DirectionInfo `json:"directions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dirBody))
	require.Contains(t, dirBody.Directions, "270")
	assert.True(t, dirBody.Directions["270"].HasData)
	assert.NotEmpty(t, dirBody.Directions["270"].CaseName)

	rec = f.do(http.MethodGet, "/cases", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var caseBody struct {
		Cases []store.CaseInfo `json:"cases"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &caseBody))
	require.Len(t, caseBody.Cases, 1)
	assert.Equal(t, 270, caseBody.Cases[0].Direction)
	assert.True(t, caseBody.Cases[0].HasResult)
}

func TestCleanup(t *testing.T) {
	f := newFixture(t)
	f.runCalculation(t)

	rec := f.do(http.MethodPost, "/cleanup", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"deleted":1`)

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/result", "").Code)
	assert.Contains(t, f.do(http.MethodGet, "/status", "").Body.String(), `"status":"idle"`)
}

func TestStop(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.calc.Tracker().Begin())

	rec := f.do(http.MethodPost, "/stop", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, f.do(http.MethodGet, "/status", "").Body.String(), `"status":"stopped"`)
}

func TestParaviewExport(t *testing.T) {
	f := newFixture(t)
	f.runCalculation(t)

	rec := f.do(http.MethodGet, "/paraview/270", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "case.foam", body["foam_file"])

	caseDir, ok := f.store.CaseDir(270)
	require.True(t, ok)
	_, err := os.Stat(filepath.Join(caseDir, "case.foam"))
	assert.NoError(t, err, "marker file must exist")

	// POST /export without a direction targets the current case.
	rec = f.do(http.MethodPost, "/export", `{}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestParaview_UnknownDirection(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/paraview/90", "").Code)
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodOptions, "/calculate", "")

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodGet, "/metrics", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
