package mosaic

import (
	"github.com/soniakeys/unit"
)

// likelihoodTolerance is the objective change below which the likelihood
// search is considered converged
const likelihoodTolerance = 1e-7

// Initial simplex of the likelihood search; 1 to 3 degrees is a sensible
// range for crystal mosaic spread.
var (
	likelihoodStart = unit.AngleFromDeg(1)
	likelihoodStop  = unit.AngleFromDeg(3)
)

// LikelihoodEstimator finds the sigma_m maximising the summed log observed
// fraction of every frame-slice record
type LikelihoodEstimator struct {
	// MaxIterations caps the optimiser; zero means DefaultMaxIterations
	MaxIterations int
}

// Estimate implements Estimator. A failure to converge is reported as an
// *EstimationFailedError.
func (e LikelihoodEstimator) Estimate(in Input) (Estimate, error) {
	rec, err := newRecords(in.Scan, in.Reflections, observedFrames)
	if err != nil {
		return Estimate{}, err
	}
	return e.estimate(rec)
}

func (e LikelihoodEstimator) estimate(rec *Records) (Estimate, error) {
	est := Estimate{Method: MethodLikelihood, Records: rec.Len()}
	if rec.Len() == 0 {
		return est, &EstimationFailedError{Method: MethodLikelihood, Reason: "no frame-slice records", Err: ErrAllFractionsDegenerate}
	}

	model := newFractionModel(rec)
	buf := make([]float64, model.Len())
	target := func(sigma float64) (float64, error) {
		sum, err := model.sumLogFraction(sigma, buf)
		return -sum, err
	}

	res, err := minimizeLogSigma(MethodLikelihood, target, search{
		start:         likelihoodStart.Rad(),
		stop:          likelihoodStop.Rad(),
		tolerance:     likelihoodTolerance,
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
