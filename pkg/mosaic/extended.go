package mosaic

import (
	"math"

	"github.com/soniakeys/unit"
)

const extendedTolerance = 1e-3

var (
	extendedStart = unit.AngleFromDeg(0.1)
	extendedStop  = unit.AngleFromDeg(1)
)

// ExtendedEstimator uses the summed foreground intensity of every frame as
// a weight. For reflection j with per-frame intensities n_i and total
// K_j = sum(n_i) the log likelihood is
//
//	L = sum_j [ sum_i n_i log(K_j z_i) - K_j log(sum_i z_i) ]
//
// where z_i is the clamped observed fraction of frame i. There is no
// fallback: failures are returned to the caller.
type ExtendedEstimator struct {
	// MaxIterations caps the optimiser; zero means DefaultMaxIterations
	MaxIterations int
}

// Estimate implements Estimator
func (e ExtendedEstimator) Estimate(in Input) (Estimate, error) {
	rec, err := newRecords(in.Scan, in.Reflections, intenseFrames)
	if err != nil {
		return Estimate{}, err
	}
	return e.estimate(rec)
}

func (e ExtendedEstimator) estimate(rec *Records) (Estimate, error) {
	est := Estimate{Method: MethodExtended, Records: rec.Len()}
	if rec.Len() == 0 {
		return est, &EstimationFailedError{Method: MethodExtended, Reason: "no frame-slice records", Err: ErrAllFractionsDegenerate}
	}

	groups := rec.Groups()
	total := make([]float64, groups)
	for g := 0; g < groups; g++ {
		for i := rec.Offsets[g]; i < rec.Offsets[g+1]; i++ {
			total[g] += rec.Weight[i]
		}
	}

	model := newFractionModel(rec)
	z := make([]float64, model.Len())
	target := func(sigma float64) (float64, error) {
		if err := model.fractions(sigma, z); err != nil {
			return 0, err
		}
		l := 0.0
		for g := 0; g < groups; g++ {
			k := total[g]
			sumZ := 0.0
			for i := rec.Offsets[g]; i < rec.Offsets[g+1]; i++ {
				l += rec.Weight[i] * math.Log(k*z[i])
				sumZ += z[i]
			}
			l -= k * math.Log(sumZ)
		}
		return -l, nil
	}

	res, err := minimizeLogSigma(MethodExtended, target, search{
		start:         extendedStart.Rad(),
		stop:          extendedStop.Rad(),
		tolerance:     extendedTolerance,
		maxIterations: e.MaxIterations,
	})
	est.Iterations = res.iterations
	est.Evaluations = res.evaluations
	if err != nil {
		return est, err
	}
	est.Sigma = res.sigma
	return est, nil
}
