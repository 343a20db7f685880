// Package divergence estimates the beam divergence of an experiment from
// the angular spread of reflection intensity around each observed centroid.
package divergence

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"profilemodel/internal/models"
	"profilemodel/pkg/geometry"
)

// ErrNoUsableReflections is returned when no reflection contributed a variance
var ErrNoUsableReflections = errors.New("divergence: no usable reflections")

// DegenerateReflectionError is returned for a reflection whose summed valid
// intensity is too small for the N-1 corrected variance
type DegenerateReflectionError struct {
	Index int
	Sum   float64
}

func (e *DegenerateReflectionError) Error() string {
	return fmt.Sprintf("divergence: reflection %d has summed intensity %g <= 1", e.Index, e.Sum)
}

// Result holds the beam divergence estimate together with per-reflection
// details
type Result struct {
	// Sigma is the e.s.d. of the beam divergence in radians
	Sigma float64

	// Variances holds the angular variance of each used reflection
	Variances []float64

	// Used is the number of reflections contributing to Sigma
	Used int

	// Skipped is the number of degenerate reflections left out
	Skipped int
}

// Estimate computes sigma_b = sqrt(mean variance) over all non-degenerate
// reflections. Degenerate reflections are counted in Result.Skipped.
func Estimate(det geometry.Detector, rows []models.Reflection) (Result, error) {
	res := Result{Variances: make([]float64, 0, len(rows))}
	for i := range rows {
		v, err := Variance(det, rows[i])
		if err != nil {
			var degenerate *DegenerateReflectionError
			if errors.As(err, &degenerate) {
				degenerate.Index = i
				res.Skipped++
				continue
			}
			return Result{}, fmt.Errorf("reflection %d: %w", i, err)
		}
		res.Variances = append(res.Variances, v)
	}

	res.Used = len(res.Variances)
	if res.Used == 0 {
		return res, ErrNoUsableReflections
	}
	res.Sigma = math.Sqrt(stat.Mean(res.Variances, nil))
	return res, nil
}

// Variance returns the intensity weighted angular variance of the valid
// shoebox pixels of r about its observed centroid:
//
//	sum(v * angle^2) / (sum(v) - 1)
func Variance(det geometry.Detector, r models.Reflection) (float64, error) {
	sb := r.Shoebox
	if sb == nil {
		return 0, errors.New("divergence: reflection has no shoebox")
	}
	if err := sb.Validate(); err != nil {
		return 0, err
	}
	panel, err := det.Panel(sb.Panel)
	if err != nil {
		return 0, err
	}

	centroid := panel.PixelToLab(r.XYZObsPx[0], r.XYZObsPx[1])
	nz, ny, nx := sb.Size()
	var sum, sumSq float64
	for k := 0; k < nz; k++ {
		for j := 0; j < ny; j++ {
			y := float64(sb.BBox.Y0+j) + 0.5
			for i := 0; i < nx; i++ {
				idx := sb.Index(k, j, i)
				if sb.Mask[idx]&models.MaskValid == 0 {
					continue
				}
				x := float64(sb.BBox.X0+i) + 0.5
				angle := panel.PixelToLab(x, y).Angle(centroid).Radians()
				sum += sb.Data[idx]
				sumSq += sb.Data[idx] * angle * angle
			}
		}
	}

	if sum <= 1 {
		return 0, &DegenerateReflectionError{Sum: sum}
	}
	return sumSq / (sum - 1), nil
}
