package mosaic

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// MomentEstimator estimates sigma_m as the unbiased sample standard
// deviation of tau*zeta pooled over every frame-slice record. It always
// terminates and is the fallback of the likelihood estimator.
type MomentEstimator struct{}

// Estimate implements Estimator. With fewer than two records the spread is
// undefined and a zero estimate is returned together with the record count.
func (MomentEstimator) Estimate(in Input) (Estimate, error) {
	rec, err := newRecords(in.Scan, in.Reflections, observedFrames)
	if err != nil {
		return Estimate{}, err
	}
	return momentEstimate(rec), nil
}

func momentEstimate(rec *Records) Estimate {
	est := Estimate{Method: MethodMoment, Records: rec.Len()}
	if rec.Len() < 2 {
		return est
	}
	x := make([]float64, rec.Len())
	for i := range x {
		x[i] = rec.Tau[i] * rec.Zeta[i]
	}
	est.Sigma = stat.StdDev(x, nil)
	if math.IsNaN(est.Sigma) {
		est.Sigma = 0
	}
	return est
}
