// Package simulate generates synthetic rotation experiments with known beam
// divergence and mosaic spread. Every reflection is drawn as a Gaussian spot
// on a flat detector whose rocking curve follows the observed-fraction model.
package simulate

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"github.com/soniakeys/unit"
	xrand "golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"profilemodel/internal/models"
	"profilemodel/pkg/geometry"
)

// Params controls the simulated experiment. Angles are in radians.
type Params struct {
	// Frames is the number of images in the scan
	Frames int

	// FirstFrame is the array index of the first image
	FirstFrame int

	// StartAngle is the rotation angle at the start of the scan
	StartAngle float64

	// Oscillation is the rotation width of one image
	Oscillation float64

	// SigmaB is the e.s.d. of the beam divergence. The angular spread of a
	// spot about its centroid has an rms of SigmaB, so the per-axis spread
	// is SigmaB/sqrt(2).
	SigmaB float64

	// SigmaM is the e.s.d. of the mosaic spread
	SigmaM float64

	// Reflections is the number of reflections to generate
	Reflections int

	// Intensity is the mean total counts of a reflection
	Intensity float64

	// MinZeta rejects reflections too close to the rotation axis
	MinZeta float64

	// Noise adds Poisson counting noise to every pixel
	Noise bool

	// Seed makes the generation reproducible
	Seed uint64

	// Wavelength in Angstrom
	Wavelength float64

	// Distance of the detector from the sample in mm
	Distance float64

	// PixelSize in mm
	PixelSize float64

	// ImageSize is the detector width and height in pixels
	ImageSize int

	// CellLength is the edge of the cubic unit cell in Angstrom
	CellLength float64
}

// DefaultParams returns a 100 image sweep of 0.1 degree images with
// sigma_b = 0.05 and sigma_m = 0.1 degrees
func DefaultParams() Params {
	return Params{
		Frames:      100,
		FirstFrame:  0,
		StartAngle:  0,
		Oscillation: unit.AngleFromDeg(0.1).Rad(),
		SigmaB:      unit.AngleFromDeg(0.05).Rad(),
		SigmaM:      unit.AngleFromDeg(0.1).Rad(),
		Reflections: 1000,
		Intensity:   5000,
		MinZeta:     0.1,
		Seed:        1,
		Wavelength:  1.0,
		Distance:    200,
		PixelSize:   0.1,
		ImageSize:   2000,
		CellLength:  60,
	}
}

// Validate checks that the parameters describe a usable experiment
func (p Params) Validate() error {
	switch {
	case p.Frames <= 0:
		return fmt.Errorf("simulate: frames must be positive, got %d", p.Frames)
	case p.Oscillation <= 0:
		return fmt.Errorf("simulate: oscillation must be positive, got %g", p.Oscillation)
	case p.SigmaB <= 0 || p.SigmaM <= 0:
		return fmt.Errorf("simulate: sigma_b and sigma_m must be positive, got %g and %g", p.SigmaB, p.SigmaM)
	case p.Reflections < 0:
		return fmt.Errorf("simulate: reflections must be >= 0, got %d", p.Reflections)
	case p.Intensity <= 0:
		return fmt.Errorf("simulate: intensity must be positive, got %g", p.Intensity)
	case p.MinZeta < 0 || p.MinZeta >= 1:
		return fmt.Errorf("simulate: min zeta must be in [0, 1), got %g", p.MinZeta)
	case p.Wavelength <= 0 || p.Distance <= 0 || p.PixelSize <= 0 || p.ImageSize <= 0:
		return fmt.Errorf("simulate: invalid detector or beam parameters")
	case p.CellLength <= 0:
		return fmt.Errorf("simulate: cell length must be positive, got %g", p.CellLength)
	}
	return nil
}

// NewExperiment builds the experiment models described by p: a beam along
// -z, a single flat panel centred on the beam and a rotation about x
func NewExperiment(p Params) geometry.Experiment {
	centre := float64(p.ImageSize) / 2
	return geometry.Experiment{
		Crystal:    geometry.NewCubicCrystal(p.CellLength),
		Beam:       geometry.NewBeam(r3.Vector{Z: -1}, p.Wavelength),
		Detector:   geometry.Panels{geometry.NewFlatPanel(p.Distance, p.PixelSize, p.ImageSize, p.ImageSize, centre, centre)},
		Goniometer: geometry.SimpleGoniometer{Axis: r3.Vector{X: 1}},
		Scan: geometry.RotationScan{
			FirstIndex: p.FirstFrame,
			NumImages:  p.Frames,
			StartAngle: p.StartAngle,
			Width:      p.Oscillation,
		},
	}
}

// Generate returns the experiment and a reflection table with the miller
// index, s1, shoebox, observed centroid and calculated position columns.
// Zeta is left for the caller to compute from the geometry.
func Generate(p Params) (geometry.Experiment, *models.Table, error) {
	if err := p.Validate(); err != nil {
		return geometry.Experiment{}, nil, err
	}
	exp := NewExperiment(p)

	src := &xrand.PCGSource{}
	src.Seed(p.Seed)
	g := &generator{
		p:     p,
		exp:   exp,
		panel: exp.Detector.(geometry.Panels)[0].(*geometry.FlatPanel),
		scan:  exp.Scan.(geometry.RotationScan),
		rnd:   xrand.New(src),
		src:   src,
	}

	rows := make([]models.Reflection, 0, p.Reflections)
	for attempts := 0; len(rows) < p.Reflections; attempts++ {
		if attempts > 100*p.Reflections+100 {
			return geometry.Experiment{}, nil, fmt.Errorf("simulate: could only place %d of %d reflections", len(rows), p.Reflections)
		}
		r, ok, err := g.reflection()
		if err != nil {
			return geometry.Experiment{}, nil, err
		}
		if ok {
			rows = append(rows, r)
		}
	}

	table := models.NewTable(rows,
		models.ColumnMillerIndex,
		models.ColumnS1,
		models.ColumnShoebox,
		models.ColumnXYZObsPx,
		models.ColumnXYZCalMM,
	)
	return exp, table, nil
}

type generator struct {
	p     Params
	exp   geometry.Experiment
	panel *geometry.FlatPanel
	scan  geometry.RotationScan
	rnd   *xrand.Rand
	src   xrand.Source
}

// reflection draws one reflection. ok is false when the drawn position was
// rejected by the zeta cut.
func (g *generator) reflection() (models.Reflection, bool, error) {
	p := g.p
	margin := float64(p.ImageSize) / 4
	x := margin + g.rnd.Float64()*(float64(p.ImageSize)-2*margin)
	y := margin + g.rnd.Float64()*(float64(p.ImageSize)-2*margin)

	s0 := g.exp.Beam.S0()
	axis := g.exp.Goniometer.RotationAxis()
	s1 := g.panel.PixelToLab(x, y).Normalize().Mul(1 / p.Wavelength)
	zeta := geometry.ZetaFactor(axis, s0, s1)
	if math.Abs(zeta) < p.MinZeta || zeta == 0 {
		return models.Reflection{}, false, nil
	}

	// Rotation range covered by the rocking curve
	sigmaPhi := p.SigmaM / math.Abs(zeta)
	halfRange := 3.5*sigmaPhi + p.Oscillation
	scanStart := g.scan.AngleFromArrayIndex(float64(p.FirstFrame))
	scanEnd := g.scan.AngleFromArrayIndex(float64(p.FirstFrame + p.Frames))
	lo, hi := scanStart+halfRange, scanEnd-halfRange
	if hi <= lo {
		lo, hi = scanStart, scanEnd
	}
	phi := lo + g.rnd.Float64()*(hi-lo)

	z0 := int(math.Floor(g.scan.ArrayIndexFromAngle(phi - halfRange)))
	z1 := int(math.Ceil(g.scan.ArrayIndexFromAngle(phi + halfRange)))
	z0 = max(z0, p.FirstFrame)
	z1 = min(z1, p.FirstFrame+p.Frames)

	// Pixel extent of the spot
	perAxis := p.SigmaB / math.Sqrt2
	spread := perAxis * p.Distance / p.PixelSize
	half := int(math.Ceil(3.5*spread)) + 1
	bbox := models.BBox{
		X0: int(math.Floor(x)) - half, X1: int(math.Floor(x)) + half + 1,
		Y0: int(math.Floor(y)) - half, Y1: int(math.Floor(y)) + half + 1,
		Z0: z0, Z1: z1,
	}

	hkl, err := geometry.MillerIndex(g.exp.Crystal, axis, s0, s1, phi)
	if err != nil {
		return models.Reflection{}, false, err
	}

	sb := models.NewShoebox(0, bbox)
	g.fill(sb, x, y, phi, zeta, perAxis)

	return models.Reflection{
		MillerIndex: hkl,
		S1:          s1,
		Shoebox:     sb,
		XYZObsPx:    [3]float64{x, y, g.scan.ArrayIndexFromAngle(phi)},
		XYZCalMM:    [3]float64{x * p.PixelSize, y * p.PixelSize, phi},
	}, true, nil
}

// fill writes the expected (or noisy) counts and the mask of a spot
// centred on pixel (x, y) at rotation angle phi
func (g *generator) fill(sb *models.Shoebox, x, y, phi, zeta, perAxis float64) {
	p := g.p
	nz, ny, nx := sb.Size()
	centroid := g.panel.PixelToLab(x, y)

	spatial := make([]float64, ny*nx)
	total := 0.0
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			px := g.panel.PixelToLab(float64(sb.BBox.X0+i)+0.5, float64(sb.BBox.Y0+j)+0.5)
			a := px.Angle(centroid).Radians()
			w := math.Exp(-a * a / (2 * perAxis * perAxis))
			spatial[j*nx+i] = w
			total += w
		}
	}
	for i := range spatial {
		spatial[i] /= total
	}

	intensity := p.Intensity * (0.5 + g.rnd.Float64())
	scale := math.Abs(zeta) / (math.Sqrt2 * p.SigmaM)
	for k := 0; k < nz; k++ {
		f := float64(sb.BBox.Z0 + k)
		tau := (g.scan.AngleFromArrayIndex(f)+g.scan.AngleFromArrayIndex(f+1))/2 - phi
		frac := (math.Erf((tau+p.Oscillation/2)*scale) - math.Erf((tau-p.Oscillation/2)*scale)) / 2
		for idx, w := range spatial {
			expected := intensity * frac * w
			value := expected
			if p.Noise && expected > 0 {
				value = distuv.Poisson{Lambda: expected, Src: g.src}.Rand()
			}
			flat := k*ny*nx + idx
			sb.Data[flat] = value
			if expected >= 0.5 {
				sb.Mask[flat] = models.MaskValidForeground
			} else {
				sb.Mask[flat] = models.MaskValid | models.MaskBackground
			}
		}
	}
}
