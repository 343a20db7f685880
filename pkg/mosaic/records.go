package mosaic

import (
	"profilemodel/internal/models"
	"profilemodel/pkg/geometry"
)

// Records holds the frame-slice records of a set of reflections: one entry
// per (reflection, frame) pair that passed the selection. Records of the
// same reflection are contiguous; group g spans [Offsets[g], Offsets[g+1]).
type Records struct {
	Tau     []float64
	Zeta    []float64
	Weight  []float64
	Offsets []int

	// HalfWidth is half the oscillation width of one image, radians
	HalfWidth float64
}

// Len returns the number of records
func (r *Records) Len() int { return len(r.Tau) }

// Groups returns the number of reflections that contributed records
func (r *Records) Groups() int { return len(r.Offsets) - 1 }

// selector decides whether frame k of a shoebox yields a record and with
// which weight
type selector func(sb *models.Shoebox, k int) (weight float64, ok bool)

// observedFrames keeps frames holding at least one valid foreground pixel
func observedFrames(sb *models.Shoebox, k int) (float64, bool) {
	return 1, sb.CountFrame(k, models.MaskValidForeground) > 0
}

// intenseFrames keeps frames whose valid foreground pixels sum to a
// positive intensity, weighted by that sum
func intenseFrames(sb *models.Shoebox, k int) (float64, bool) {
	s := sb.SumFrame(k, models.MaskValidForeground)
	return s, s > 0
}

// newRecords computes tau for every selected frame of every reflection:
// the midpoint rotation angle of the frame minus the reflection's
// calculated rotation angle
func newRecords(scan geometry.Scan, rows []models.Reflection, keep selector) (*Records, error) {
	if scan == nil {
		return nil, ErrNoScan
	}
	_, width := scan.Oscillation()

	capacity := 0
	for i := range rows {
		if rows[i].Shoebox == nil {
			return nil, &models.MissingColumnError{Column: models.ColumnShoebox}
		}
		capacity += rows[i].Shoebox.BBox.ZSize()
	}

	rec := &Records{
		Tau:       make([]float64, 0, capacity),
		Zeta:      make([]float64, 0, capacity),
		Weight:    make([]float64, 0, capacity),
		Offsets:   make([]int, 1, len(rows)+1),
		HalfWidth: width / 2,
	}
	for i := range rows {
		r := &rows[i]
		sb := r.Shoebox
		if err := sb.Validate(); err != nil {
			return nil, err
		}
		phi := r.XYZCalMM[2]
		for k := 0; k < sb.BBox.ZSize(); k++ {
			w, ok := keep(sb, k)
			if !ok {
				continue
			}
			f := float64(sb.BBox.Z0 + k)
			phi0 := scan.AngleFromArrayIndex(f)
			phi1 := scan.AngleFromArrayIndex(f + 1)
			rec.Tau = append(rec.Tau, (phi0+phi1)/2-phi)
			rec.Zeta = append(rec.Zeta, r.Zeta)
			rec.Weight = append(rec.Weight, w)
		}
		if len(rec.Tau) > rec.Offsets[len(rec.Offsets)-1] {
			rec.Offsets = append(rec.Offsets, len(rec.Tau))
		}
	}
	return rec, nil
}
