package foam

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/AzatSkyArchLab/wind-cfd-service/internal/domain"
)

// SurfaceName is the obstacle surface registered with snappyHexMesh; it
// must match the STL solid name and file stem under constant/triSurface.
const SurfaceName = "buildings"

// sideFaces lists the vertical domain faces in a fixed emission order.
var sideFaces = []domain.Face{domain.FaceXMin, domain.FaceXMax, domain.FaceYMin, domain.FaceYMax}

// Case bundles everything the emitter needs to render a complete OpenFOAM
// case directory.
type Case struct {
	Spec    domain.DomainSpec
	Profile domain.InflowProfile
	Speed   float64 // reference wind speed in m/s
	Config  domain.SizerConfig
}

// Write renders the full case tree under dir: 0/ initial fields, system/
// dictionaries, and constant/ properties. The triSurface STL is written
// separately by the mesh package.
func (c Case) Write(dir string) error {
	for _, sub := range []string{"0", "system", filepath.Join("constant", "triSurface")} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return fmt.Errorf("create case directory: %w", err)
		}
	}

	files := map[string]string{
		filepath.Join("system", "blockMeshDict"):               c.blockMeshDict().File("dictionary", "blockMeshDict"),
		filepath.Join("system", "snappyHexMeshDict"):           c.snappyHexMeshDict().File("dictionary", "snappyHexMeshDict"),
		filepath.Join("system", "controlDict"):                 c.controlDict().File("dictionary", "controlDict"),
		filepath.Join("system", "fvSchemes"):                   fvSchemes().File("dictionary", "fvSchemes"),
		filepath.Join("system", "fvSolution"):                  fvSolution().File("dictionary", "fvSolution"),
		filepath.Join("system", "decomposeParDict"):            decomposeParDict().File("dictionary", "decomposeParDict"),
		filepath.Join("constant", "transportProperties"):       transportProperties().File("dictionary", "transportProperties"),
		filepath.Join("constant", "turbulenceProperties"):      turbulenceProperties().File("dictionary", "turbulenceProperties"),
		filepath.Join("0", "U"):                                c.velocityField().File("volVectorField", "U"),
		filepath.Join("0", "p"):                                c.pressureField().File("volScalarField", "p"),
		filepath.Join("0", "k"):                                c.kField().File("volScalarField", "k"),
		filepath.Join("0", "epsilon"):                          c.epsilonField().File("volScalarField", "epsilon"),
		filepath.Join("0", "nut"):                              c.nutField().File("volScalarField", "nut"),
	}
	for rel, content := range files {
		if err := os.WriteFile(filepath.Join(dir, rel), []byte(content), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", rel, err)
		}
	}
	return nil
}

// WriteSampleDict renders the cut-plane sampling dictionary at the given
// height. Called before every post-processing run, including resampling at
// a new height on an existing result.
func WriteSampleDict(dir string, height float64) error {
	d := NewDict().
		Set("type", "surfaces").
		Set("libs", `("libsampling.so")`).
		Set("interpolationScheme", "cellPoint").
		Set("surfaceFormat", "vtk").
		Set("fields", "( U )").
		Set("surfaces", List{Block("zSlice", NewDict().
			Set("type", "cuttingPlane").
			Set("planeType", "pointAndNormal").
			Set("pointAndNormalDict", NewDict().
				Set("point", Tuple{0, 0, height}).
				Set("normal", Tuple{0, 0, 1})).
			Set("interpolate", true))})

	path := filepath.Join(dir, "system", "sampleDict")
	if err := os.WriteFile(path, []byte(d.File("dictionary", "sampleDict")), 0o644); err != nil {
		return fmt.Errorf("write sampleDict: %w", err)
	}
	return nil
}

func (c Case) blockMeshDict() *Dict {
	b := c.Spec.Bounds
	z := c.Spec.Height

	vertices := List{
		Tuple{b.XMin, b.YMin, 0},
		Tuple{b.XMax, b.YMin, 0},
		Tuple{b.XMax, b.YMax, 0},
		Tuple{b.XMin, b.YMax, 0},
		Tuple{b.XMin, b.YMin, z},
		Tuple{b.XMax, b.YMin, z},
		Tuple{b.XMax, b.YMax, z},
		Tuple{b.XMin, b.YMax, z},
	}

	faceQuads := map[domain.Face]Tuple{
		domain.FaceXMin: {0, 4, 7, 3},
		domain.FaceXMax: {1, 2, 6, 5},
		domain.FaceYMin: {0, 1, 5, 4},
		domain.FaceYMax: {3, 7, 6, 2},
	}

	boundary := List{}
	for _, face := range sideFaces {
		boundary = append(boundary, Block(string(face), NewDict().
			Set("type", "patch").
			Set("faces", List{faceQuads[face]})))
	}
	boundary = append(boundary,
		Block("ground", NewDict().
			Set("type", "wall").
			Set("faces", List{Tuple{0, 1, 2, 3}})),
		Block("top", NewDict().
			Set("type", "patch").
			Set("faces", List{Tuple{4, 5, 6, 7}})),
	)

	return NewDict().
		Set("scale", 1).
		Set("vertices", vertices).
		Set("blocks", List{fmt.Sprintf("hex (0 1 2 3 4 5 6 7) (%d %d %d) simpleGrading (1 1 2)",
			c.Spec.NX, c.Spec.NY, c.Spec.NZ)}).
		Set("boundary", boundary)
}

func (c Case) snappyHexMeshDict() *Dict {
	cfg := c.Config
	return NewDict().
		Set("castellatedMesh", true).
		Set("snap", true).
		Set("addLayers", false).
		Set("geometry", NewDict().
			Set(SurfaceName+".stl", NewDict().
				Set("type", "triSurfaceMesh").
				Set("name", SurfaceName))).
		Set("castellatedMeshControls", NewDict().
			Set("maxLocalCells", 500000).
			Set("maxGlobalCells", 2000000).
			Set("minRefinementCells", 10).
			Set("nCellsBetweenLevels", 2).
			Set("resolveFeatureAngle", 30).
			Set("features", "()").
			Set("refinementSurfaces", NewDict().
				Set(SurfaceName, NewDict().
					Set("level", Tuple{cfg.RefinementMin, cfg.RefinementMax}).
					Set("patchInfo", NewDict().Set("type", "wall")))).
			Set("refinementRegions", NewDict()).
			Set("locationInMesh", Tuple{c.Spec.Seed.X, c.Spec.Seed.Y, c.Spec.Seed.Z}).
			Set("allowFreeStandingZoneFaces", true)).
		Set("snapControls", NewDict().
			Set("nSmoothPatch", 3).
			Set("tolerance", 2.0).
			Set("nSolveIter", 50).
			Set("nRelaxIter", 5)).
		Set("addLayersControls", NewDict().
			Set("layers", NewDict())).
		Set("meshQualityControls", NewDict().
			Set("maxNonOrtho", 65).
			Set("maxBoundarySkewness", 20).
			Set("maxInternalSkewness", 4).
			Set("maxConcave", 80).
			Set("minFlatness", 0.5).
			Set("minVol", "1e-13").
			Set("minArea", -1).
			Set("minTwist", 0.01).
			Set("minDeterminant", 0.001).
			Set("minFaceWeight", 0.02).
			Set("minVolRatio", 0.01).
			Set("minTriangleTwist", -1).
			Set("minTetQuality", "1e-30").
			Set("nSmoothScale", 4).
			Set("errorReduction", 0.75)).
		Set("mergeTolerance", "1e-6")
}

func (c Case) controlDict() *Dict {
	iters := c.Config.Iterations
	return NewDict().
		Set("application", "simpleFoam").
		Set("startFrom", "startTime").
		Set("startTime", 0).
		Set("stopAt", "endTime").
		Set("endTime", iters).
		Set("deltaT", 1).
		Set("writeControl", "timeStep").
		Set("writeInterval", iters).
		Set("purgeWrite", 1).
		Set("writeFormat", "ascii").
		Set("writePrecision", 8).
		Set("writeCompression", "off").
		Set("timeFormat", "general").
		Set("timePrecision", 6).
		Set("runTimeModifiable", true)
}

func fvSchemes() *Dict {
	return NewDict().
		Set("ddtSchemes", NewDict().Set("default", "steadyState")).
		Set("gradSchemes", NewDict().Set("default", "Gauss linear")).
		Set("divSchemes", NewDict().
			Set("default", "none").
			Set("div(phi,U)", "bounded Gauss linearUpwind grad(U)").
			Set("div(phi,k)", "bounded Gauss upwind").
			Set("div(phi,epsilon)", "bounded Gauss upwind").
			Set("div((nuEff*dev2(T(grad(U)))))", "Gauss linear")).
		Set("laplacianSchemes", NewDict().Set("default", "Gauss linear corrected")).
		Set("interpolationSchemes", NewDict().Set("default", "linear")).
		Set("snGradSchemes", NewDict().Set("default", "corrected")).
		Set("wallDist", NewDict().Set("method", "meshWave"))
}

func fvSolution() *Dict {
	smooth := func() *Dict {
		return NewDict().
			Set("solver", "smoothSolver").
			Set("smoother", "symGaussSeidel").
			Set("tolerance", "1e-06").
			Set("relTol", 0.01)
	}
	return NewDict().
		Set("solvers", NewDict().
			Set("p", NewDict().
				Set("solver", "GAMG").
				Set("tolerance", "1e-06").
				Set("relTol", 0.01).
				Set("smoother", "GaussSeidel")).
			Set("U", smooth()).
			Set("k", smooth()).
			Set("epsilon", smooth())).
		Set("SIMPLE", NewDict().
			Set("nNonOrthogonalCorrectors", 1).
			Set("consistent", "yes").
			Set("pRefCell", 0).
			Set("pRefValue", 0).
			Set("residualControl", NewDict().
				Set("p", "1e-4").
				Set("U", "1e-4").
				Set("k", "1e-4").
				Set("epsilon", "1e-4"))).
		Set("relaxationFactors", NewDict().
			Set("fields", NewDict().Set("p", 0.3)).
			Set("equations", NewDict().
				Set("U", 0.5).
				Set("k", 0.3).
				Set("epsilon", 0.3)))
}

func decomposeParDict() *Dict {
	procs := runtime.NumCPU()
	if procs > 4 {
		procs = 4
	}
	return NewDict().
		Set("numberOfSubdomains", procs).
		Set("method", "scotch")
}

func transportProperties() *Dict {
	return NewDict().
		Set("transportModel", "Newtonian").
		Set("nu", "nu [0 2 -1 0 0 0 0] 1.5e-05")
}

func turbulenceProperties() *Dict {
	return NewDict().
		Set("simulationType", "RAS").
		Set("RAS", NewDict().
			Set("RASModel", "kEpsilon").
			Set("turbulence", "on").
			Set("printCoeffs", "on"))
}

// velocityField assigns the flow velocity per patch: the analytic inflow
// on inlet faces, back-flow-tolerant inletOutlet on outlet and lateral
// faces, no-slip at ground and building surfaces, frictionless slip at the
// domain top.
func (c Case) velocityField() *Dict {
	u := Tuple{c.Spec.Flow.X * c.Speed, c.Spec.Flow.Y * c.Speed, 0}

	boundary := NewDict()
	for _, face := range sideFaces {
		switch c.Spec.Patches[face] {
		case domain.PatchInlet:
			boundary.Set(string(face), NewDict().
				Set("type", "fixedValue").
				Set("value", Uniform(u)))
		default:
			boundary.Set(string(face), NewDict().
				Set("type", "inletOutlet").
				Set("inletValue", Uniform(u)).
				Set("value", Uniform(u)))
		}
	}
	boundary.Set("ground", NewDict().Set("type", "noSlip"))
	boundary.Set("top", NewDict().Set("type", "slip"))
	boundary.Set(SurfaceName, NewDict().Set("type", "noSlip"))

	return NewDict().
		Set("dimensions", DimVelocity).
		Set("internalField", Uniform(u)).
		Set("boundaryField", boundary)
}

func (c Case) pressureField() *Dict {
	boundary := NewDict()
	for _, face := range sideFaces {
		switch c.Spec.Patches[face] {
		case domain.PatchInlet:
			boundary.Set(string(face), NewDict().Set("type", "zeroGradient"))
		default:
			boundary.Set(string(face), NewDict().
				Set("type", "totalPressure").
				Set("p0", Uniform(0)).
				Set("value", Uniform(0)))
		}
	}
	boundary.Set("ground", NewDict().Set("type", "zeroGradient"))
	boundary.Set("top", NewDict().Set("type", "slip"))
	boundary.Set(SurfaceName, NewDict().Set("type", "zeroGradient"))

	return NewDict().
		Set("dimensions", DimKinematicPressure).
		Set("internalField", Uniform(0)).
		Set("boundaryField", boundary)
}

func (c Case) kField() *Dict {
	k := c.Profile.TurbulentKineticEnergy
	return c.turbulenceField(DimKineticEnergy, k, "kqRWallFunction")
}

func (c Case) epsilonField() *Dict {
	eps := c.Profile.TurbulentDissipation
	return c.turbulenceField(DimDissipation, eps, "epsilonWallFunction")
}

// turbulenceField builds the shared k/epsilon layout: fixed profile value
// on inlets, inletOutlet elsewhere, wall functions on solid surfaces.
func (c Case) turbulenceField(dim Dimensions, value float64, wallFunction string) *Dict {
	boundary := NewDict()
	for _, face := range sideFaces {
		switch c.Spec.Patches[face] {
		case domain.PatchInlet:
			boundary.Set(string(face), NewDict().
				Set("type", "fixedValue").
				Set("value", Uniform(value)))
		default:
			boundary.Set(string(face), NewDict().
				Set("type", "inletOutlet").
				Set("inletValue", Uniform(value)).
				Set("value", Uniform(value)))
		}
	}
	wall := func() *Dict {
		return NewDict().
			Set("type", wallFunction).
			Set("value", Uniform(value))
	}
	boundary.Set("ground", wall())
	boundary.Set("top", NewDict().Set("type", "zeroGradient"))
	boundary.Set(SurfaceName, wall())

	return NewDict().
		Set("dimensions", dim).
		Set("internalField", Uniform(value)).
		Set("boundaryField", boundary)
}

func (c Case) nutField() *Dict {
	boundary := NewDict()
	for _, face := range sideFaces {
		boundary.Set(string(face), NewDict().
			Set("type", "calculated").
			Set("value", Uniform(0)))
	}
	wall := func() *Dict {
		return NewDict().
			Set("type", "nutkWallFunction").
			Set("value", Uniform(0))
	}
	boundary.Set("ground", wall())
	boundary.Set("top", NewDict().
		Set("type", "calculated").
		Set("value", Uniform(0)))
	boundary.Set(SurfaceName, wall())

	return NewDict().
		Set("dimensions", DimViscosity).
		Set("internalField", Uniform(0)).
		Set("boundaryField", boundary)
}
