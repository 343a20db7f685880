package geometry

import (
	"fmt"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// SimpleBeam is a monochromatic beam travelling along a fixed direction
type SimpleBeam struct {
	direction  r3.Vector
	wavelength float64
}

// NewBeam creates a beam travelling along direction with the given
// wavelength in Angstrom
func NewBeam(direction r3.Vector, wavelength float64) *SimpleBeam {
	return &SimpleBeam{direction: direction.Normalize(), wavelength: wavelength}
}

func (b *SimpleBeam) S0() r3.Vector       { return b.direction.Mul(1 / b.wavelength) }
func (b *SimpleBeam) Wavelength() float64 { return b.wavelength }

// FlatPanel is a rectangular detector panel described by its origin and
// orthonormal fast and slow axes, all in millimetres in the lab frame
type FlatPanel struct {
	Origin    r3.Vector
	Fast      r3.Vector
	Slow      r3.Vector
	PixelSize [2]float64
	ImageSize [2]int
}

// NewFlatPanel creates a panel perpendicular to the beam at the given
// distance, with the beam hitting pixel (beamX, beamY)
func NewFlatPanel(distance, pixelSize float64, width, height int, beamX, beamY float64) *FlatPanel {
	return &FlatPanel{
		Origin:    r3.Vector{X: -beamX * pixelSize, Y: beamY * pixelSize, Z: -distance},
		Fast:      r3.Vector{X: 1},
		Slow:      r3.Vector{Y: -1},
		PixelSize: [2]float64{pixelSize, pixelSize},
		ImageSize: [2]int{width, height},
	}
}

// PixelToLab implements Panel
func (p *FlatPanel) PixelToLab(x, y float64) r3.Vector {
	return p.Origin.
		Add(p.Fast.Mul(x * p.PixelSize[0])).
		Add(p.Slow.Mul(y * p.PixelSize[1]))
}

// RayIntersection returns the pixel coordinate where a ray from the sample
// along direction d hits the panel. ok is false when the ray points away.
func (p *FlatPanel) RayIntersection(d r3.Vector) (x, y float64, ok bool) {
	normal := p.Fast.Cross(p.Slow)
	denom := d.Dot(normal)
	if denom == 0 {
		return 0, 0, false
	}
	t := p.Origin.Dot(normal) / denom
	if t <= 0 {
		return 0, 0, false
	}
	rel := d.Mul(t).Sub(p.Origin)
	return rel.Dot(p.Fast) / p.PixelSize[0], rel.Dot(p.Slow) / p.PixelSize[1], true
}

// Panels is a detector made of an ordered list of panels
type Panels []Panel

// Panel implements Detector
func (d Panels) Panel(id int) (Panel, error) {
	if id < 0 || id >= len(d) {
		return nil, fmt.Errorf("geometry: panel %d out of range [0, %d)", id, len(d))
	}
	return d[id], nil
}

// NumPanels implements Detector
func (d Panels) NumPanels() int { return len(d) }

// SimpleGoniometer is a single-axis goniometer
type SimpleGoniometer struct {
	Axis r3.Vector
}

// RotationAxis implements Goniometer
func (g SimpleGoniometer) RotationAxis() r3.Vector { return g.Axis.Normalize() }

// RotationScan is a contiguous sweep of equally wide images
type RotationScan struct {
	// FirstIndex is the array index of the first image
	FirstIndex int

	// NumImages is the number of images in the sweep
	NumImages int

	// StartAngle is the rotation angle at the start of the first image, radians
	StartAngle float64

	// Width is the oscillation width of one image, radians
	Width float64
}

// ArrayRange implements Scan
func (s RotationScan) ArrayRange() (int, int) {
	return s.FirstIndex, s.FirstIndex + s.NumImages
}

// Oscillation implements Scan
func (s RotationScan) Oscillation() (float64, float64) {
	return s.StartAngle, s.Width
}

// AngleFromArrayIndex implements Scan
func (s RotationScan) AngleFromArrayIndex(index float64) float64 {
	return s.StartAngle + (index-float64(s.FirstIndex))*s.Width
}

// ArrayIndexFromAngle is the inverse of AngleFromArrayIndex
func (s RotationScan) ArrayIndexFromAngle(angle float64) float64 {
	return float64(s.FirstIndex) + (angle-s.StartAngle)/s.Width
}

// SimpleCrystal holds a fixed setting matrix
type SimpleCrystal struct {
	a *mat.Dense
}

// NewCrystal wraps a copy of the 3x3 setting matrix A
func NewCrystal(a mat.Matrix) *SimpleCrystal {
	return &SimpleCrystal{a: mat.DenseCopyOf(a)}
}

// NewCubicCrystal creates an unrotated crystal with a cubic cell of edge
// length a in Angstrom
func NewCubicCrystal(a float64) *SimpleCrystal {
	return &SimpleCrystal{a: mat.NewDense(3, 3, []float64{
		1 / a, 0, 0,
		0, 1 / a, 0,
		0, 0, 1 / a,
	})}
}

// A implements Crystal; the returned matrix is a copy
func (c *SimpleCrystal) A() *mat.Dense { return mat.DenseCopyOf(c.a) }
