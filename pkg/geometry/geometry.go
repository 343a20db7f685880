// Package geometry defines the read-only experiment models consumed by the
// profile estimators: beam, detector panels, goniometer, scan and crystal.
// Estimators only rely on the interfaces; the concrete types in this
// package are small reference implementations used by the simulator and
// the tests.
package geometry

import (
	"errors"
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// Beam gives access to the incident beam
type Beam interface {
	// S0 returns the incident beam vector with length 1/wavelength
	S0() r3.Vector

	// Wavelength returns the wavelength in Angstrom
	Wavelength() float64
}

// Panel maps detector pixel coordinates into the lab frame
type Panel interface {
	// PixelToLab returns the lab position (mm) of a pixel coordinate
	PixelToLab(x, y float64) r3.Vector
}

// Detector is an indexed collection of panels
type Detector interface {
	Panel(id int) (Panel, error)
	NumPanels() int
}

// Goniometer gives access to the rotation axis
type Goniometer interface {
	RotationAxis() r3.Vector
}

// Scan maps image array indices to rotation angles
type Scan interface {
	// ArrayRange returns the half open range of valid image indices
	ArrayRange() (first, last int)

	// Oscillation returns the start angle and per-image width in radians
	Oscillation() (start, width float64)

	// AngleFromArrayIndex returns the rotation angle in radians at a
	// (possibly fractional) array index
	AngleFromArrayIndex(index float64) float64
}

// Crystal gives access to the setting matrix A = UB
type Crystal interface {
	A() *mat.Dense
}

// Experiment groups the models describing one sweep. Goniometer and Scan
// are nil for still images.
type Experiment struct {
	Crystal    Crystal
	Beam       Beam
	Detector   Detector
	Goniometer Goniometer
	Scan       Scan
}

// ErrNoGoniometer is returned when a rotation-only quantity is requested
// for a still experiment
var ErrNoGoniometer = errors.New("geometry: experiment has no goniometer")

// IsStill reports whether the experiment has no usable rotation: no
// goniometer, no scan, or a zero oscillation width
func (e Experiment) IsStill() bool {
	if e.Goniometer == nil || e.Scan == nil {
		return true
	}
	_, width := e.Scan.Oscillation()
	return width == 0
}

// Zeta returns the lorentz factor coupling of a diffracted beam vector to
// the rotation axis
func (e Experiment) Zeta(s1 r3.Vector) (float64, error) {
	if e.Goniometer == nil {
		return 0, ErrNoGoniometer
	}
	if e.Beam == nil {
		return 0, errors.New("geometry: experiment has no beam")
	}
	return ZetaFactor(e.Goniometer.RotationAxis(), e.Beam.S0(), s1), nil
}

// ZetaFactor computes m2 . (s1 x s0) / |s1 x s0|
func ZetaFactor(m2, s0, s1 r3.Vector) float64 {
	e1 := s1.Cross(s0)
	n := e1.Norm()
	if n == 0 {
		return 0
	}
	return m2.Dot(e1) / n
}

// RotationMatrix returns the matrix rotating by angle (radians) about axis
func RotationMatrix(axis r3.Vector, angle float64) *mat.Dense {
	k := axis.Normalize()
	c, s := math.Cos(angle), math.Sin(angle)
	t := 1 - c
	return mat.NewDense(3, 3, []float64{
		c + k.X*k.X*t, k.X*k.Y*t - k.Z*s, k.X*k.Z*t + k.Y*s,
		k.Y*k.X*t + k.Z*s, c + k.Y*k.Y*t, k.Y*k.Z*t - k.X*s,
		k.Z*k.X*t - k.Y*s, k.Z*k.Y*t + k.X*s, c + k.Z*k.Z*t,
	})
}

// Rotate rotates v by angle (radians) about axis
func Rotate(v, axis r3.Vector, angle float64) r3.Vector {
	var out mat.VecDense
	out.MulVec(RotationMatrix(axis, angle), mat.NewVecDense(3, []float64{v.X, v.Y, v.Z}))
	return r3.Vector{X: out.AtVec(0), Y: out.AtVec(1), Z: out.AtVec(2)}
}

// MillerIndex assigns the nearest integer Miller index to a diffracted beam
// vector s1 observed at rotation angle phi
func MillerIndex(crystal Crystal, axis, s0, s1 r3.Vector, phi float64) ([3]int, error) {
	r0 := Rotate(s1.Sub(s0), axis, -phi)

	var h mat.VecDense
	if err := h.SolveVec(crystal.A(), mat.NewVecDense(3, []float64{r0.X, r0.Y, r0.Z})); err != nil {
		return [3]int{}, fmt.Errorf("solving for miller index: %w", err)
	}
	return [3]int{
		int(math.Round(h.AtVec(0))),
		int(math.Round(h.AtVec(1))),
		int(math.Round(h.AtVec(2))),
	}, nil
}
