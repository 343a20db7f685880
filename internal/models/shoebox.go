package models

import (
	"fmt"
)

// MaskCode classifies a single shoebox pixel. Codes are bit flags and a
// pixel usually carries several of them at once.
type MaskCode int32

const (
	// MaskValid marks a pixel that can be used at all
	MaskValid MaskCode = 1 << iota

	// MaskBackground marks a pixel in the background region
	MaskBackground

	// MaskForeground marks a pixel in the reflection's foreground region
	MaskForeground

	// MaskStrong marks a pixel found by spot finding
	MaskStrong

	// MaskBackgroundUsed marks a background pixel used in background modelling
	MaskBackgroundUsed

	// MaskOverlapped marks a pixel shared with a neighbouring reflection
	MaskOverlapped

	// MaskOverloaded marks a saturated pixel
	MaskOverloaded
)

// MaskValidForeground is the exact code of a usable signal pixel
const MaskValidForeground = MaskValid | MaskForeground

// BBox is the bounding box of a reflection in detector pixel and image
// frame coordinates. All ranges are half open: [X0, X1), [Y0, Y1), [Z0, Z1).
type BBox struct {
	X0, X1 int
	Y0, Y1 int
	Z0, Z1 int
}

// XSize returns the fast-axis extent of the box in pixels
func (b BBox) XSize() int { return b.X1 - b.X0 }

// YSize returns the slow-axis extent of the box in pixels
func (b BBox) YSize() int { return b.Y1 - b.Y0 }

// ZSize returns the number of image frames covered by the box
func (b BBox) ZSize() int { return b.Z1 - b.Z0 }

// Volume returns the number of pixels inside the box
func (b BBox) Volume() int {
	if b.XSize() <= 0 || b.YSize() <= 0 || b.ZSize() <= 0 {
		return 0
	}
	return b.XSize() * b.YSize() * b.ZSize()
}

// Shoebox is the 3D sub-volume of detector values around a reflection.
// Data and Mask are stored frame-major: index = k*ny*nx + j*nx + i, where
// k runs over frames, j over slow pixels and i over fast pixels.
type Shoebox struct {
	// Panel is the detector panel the reflection was recorded on
	Panel int

	// BBox is the extent of the shoebox
	BBox BBox

	// Data holds the pixel values
	Data []float64

	// Mask holds the per-pixel classification, parallel to Data
	Mask []MaskCode
}

// NewShoebox allocates a zeroed shoebox covering bbox on the given panel
func NewShoebox(panel int, bbox BBox) *Shoebox {
	n := bbox.Volume()
	return &Shoebox{
		Panel: panel,
		BBox:  bbox,
		Data:  make([]float64, n),
		Mask:  make([]MaskCode, n),
	}
}

// Size returns the number of frames, slow pixels and fast pixels
func (s *Shoebox) Size() (nz, ny, nx int) {
	return s.BBox.ZSize(), s.BBox.YSize(), s.BBox.XSize()
}

// Index returns the flat offset of frame k, row j, column i
func (s *Shoebox) Index(k, j, i int) int {
	return (k*s.BBox.YSize()+j)*s.BBox.XSize() + i
}

// Validate checks that the data and mask arrays match the bounding box
func (s *Shoebox) Validate() error {
	n := s.BBox.Volume()
	if n == 0 {
		return fmt.Errorf("shoebox has empty bounding box %+v", s.BBox)
	}
	if len(s.Data) != n {
		return fmt.Errorf("shoebox data has %d values, bounding box needs %d", len(s.Data), n)
	}
	if len(s.Mask) != n {
		return fmt.Errorf("shoebox mask has %d values, bounding box needs %d", len(s.Mask), n)
	}
	return nil
}

// Frame returns a copy of the k-th frame of the shoebox as a shoebox of
// its own, with a bounding box spanning exactly one image.
func (s *Shoebox) Frame(k int) *Shoebox {
	nz, ny, nx := s.Size()
	if k < 0 || k >= nz {
		return nil
	}

	bbox := s.BBox
	bbox.Z0 = s.BBox.Z0 + k
	bbox.Z1 = bbox.Z0 + 1

	start := k * ny * nx
	end := start + ny*nx
	out := &Shoebox{
		Panel: s.Panel,
		BBox:  bbox,
		Data:  make([]float64, ny*nx),
		Mask:  make([]MaskCode, ny*nx),
	}
	copy(out.Data, s.Data[start:end])
	copy(out.Mask, s.Mask[start:end])
	return out
}

// CountFrame returns how many pixels of frame k carry exactly the given code
func (s *Shoebox) CountFrame(k int, code MaskCode) int {
	_, ny, nx := s.Size()
	start := k * ny * nx
	count := 0
	for _, m := range s.Mask[start : start+ny*nx] {
		if m == code {
			count++
		}
	}
	return count
}

// SumFrame returns the summed value of the pixels of frame k whose mask is
// exactly the given code
func (s *Shoebox) SumFrame(k int, code MaskCode) float64 {
	_, ny, nx := s.Size()
	start := k * ny * nx
	sum := 0.0
	for idx := start; idx < start+ny*nx; idx++ {
		if s.Mask[idx] == code {
			sum += s.Data[idx]
		}
	}
	return sum
}
