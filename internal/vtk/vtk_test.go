package vtk

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/AzatSkyArchLab/wind-cfd-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const vectorsCut = `# vtk DataFile Version 2.0
sampleSurface
ASCII
DATASET POLYDATA
POINTS 3 float
0 0 1.75 10 0 1.75
10 10 1.75
POLYGONS 1 4
3 0 1 2
POINT_DATA 3
VECTORS U float
1 0 0
0 2 0 3 4 0
`

const fieldCut = `# vtk DataFile Version 2.0
sampleSurface
ASCII
DATASET POLYDATA
POINTS 2 float
0 0 1.75
5 5 1.75
POINT_DATA 2
FIELD attributes 1
U 3 2 float
1 2 2
0 0 1
`

func TestParse_VectorsSection(t *testing.T) {
	points, err := Parse(vectorsCut)
	require.NoError(t, err)
	require.Len(t, points, 3)

	assert.InDelta(t, 0.0, points[0].X, 1e-12)
	assert.InDelta(t, 1.0, points[0].Speed, 1e-12)
	assert.InDelta(t, 1.0, points[0].VX, 1e-12)

	assert.InDelta(t, 10.0, points[1].X, 1e-12)
	assert.InDelta(t, 2.0, points[1].Speed, 1e-12)
	assert.InDelta(t, 2.0, points[1].VY, 1e-12)

	assert.InDelta(t, 5.0, points[2].Speed, 1e-12) // 3-4-5 triangle
}

func TestParse_FieldSection(t *testing.T) {
	points, err := Parse(fieldCut)
	require.NoError(t, err)
	require.Len(t, points, 2)

	// Speed includes the vertical component: |(1,2,2)| = 3.
	assert.InDelta(t, 3.0, points[0].Speed, 1e-12)
	assert.InDelta(t, 1.0, points[0].VX, 1e-12)
	assert.InDelta(t, 2.0, points[0].VY, 1e-12)

	// |(0,0,1)| = 1, but the 2D vector is zero.
	assert.InDelta(t, 1.0, points[1].Speed, 1e-12)
	assert.InDelta(t, 0.0, points[1].VX, 1e-12)
	assert.InDelta(t, 0.0, points[1].VY, 1e-12)
}

func TestParse_NoVelocitiesFails(t *testing.T) {
	_, err := Parse("POINTS 1 float\n0 0 0\n")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrExtraction)
}

func TestParse_EmptyFails(t *testing.T) {
	_, err := Parse("")
	assert.ErrorIs(t, err, domain.ErrExtraction)
}

func TestParse_TruncatedVelocityBlockPairsWhatItCan(t *testing.T) {
	content := `POINTS 3 float
0 0 0 1 0 0 2 0 0
VECTORS U float
1 0 0
2 0 0
`
	points, err := Parse(content)
	require.NoError(t, err)
	assert.Len(t, points, 2)
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zSlice.vtk")
	require.NoError(t, os.WriteFile(path, []byte(vectorsCut), 0o644))

	points, err := ParseFile(path)
	require.NoError(t, err)
	assert.Len(t, points, 3)

	_, err = ParseFile(filepath.Join(t.TempDir(), "missing.vtk"))
	assert.ErrorIs(t, err, domain.ErrExtraction)
}

func TestParse_SpeedIsEuclideanNorm(t *testing.T) {
	points, err := Parse(vectorsCut)
	require.NoError(t, err)
	for _, p := range points {
		assert.GreaterOrEqual(t, p.Speed+1e-12, math.Hypot(p.VX, p.VY))
	}
}
