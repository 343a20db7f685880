package mosaic

import (
	"math"

	"gonum.org/v1/gonum/optimize"
)

// DefaultMaxIterations caps the optimiser's major iterations
const DefaultMaxIterations = 500

// convergenceWindow is the number of consecutive major iterations without
// an objective improvement larger than the tolerance after which the
// search is considered converged
const convergenceWindow = 20

// degeneratePenalty is the objective value reported for trial points at
// which the fraction model is degenerate. It is finite so the simplex can
// still order vertices and move away.
const degeneratePenalty = 1e300

// search describes a one dimensional minimisation over x = ln(sigma)
type search struct {
	// start and stop are the two initial simplex vertices, radians
	start, stop float64

	// tolerance is the absolute objective change regarded as converged
	tolerance float64

	// maxIterations caps the number of major iterations
	maxIterations int
}

type searchResult struct {
	sigma       float64
	iterations  int
	evaluations int
}

// minimizeLogSigma minimises objective over sigma > 0 by running a
// Nelder-Mead simplex over ln(sigma). Trial points returning
// ErrAllFractionsDegenerate or ErrInvalidParameter get a large penalty;
// the search fails if no trial point was usable or the iteration cap is hit.
func minimizeLogSigma(method Method, objective func(sigma float64) (float64, error), s search) (searchResult, error) {
	usable := 0
	var lastErr error
	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			v, err := objective(math.Exp(x[0]))
			if err != nil {
				lastErr = err
				return degeneratePenalty
			}
			usable++
			return v
		},
	}

	maxIter := s.maxIterations
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}
	settings := &optimize.Settings{
		MajorIterations: maxIter,
		Converger: &optimize.FunctionConverge{
			Absolute:   s.tolerance,
			Iterations: convergenceWindow,
		},
	}
	x0 := math.Log(s.start)
	nm := &optimize.NelderMead{SimplexSize: math.Log(s.stop) - x0}

	result, err := optimize.Minimize(problem, []float64{x0}, settings, nm)
	if result == nil {
		return searchResult{}, &EstimationFailedError{Method: method, Reason: "optimiser error", Err: err}
	}

	out := searchResult{
		iterations:  result.Stats.MajorIterations,
		evaluations: result.Stats.FuncEvaluations,
	}
	if usable == 0 || result.F >= degeneratePenalty {
		if lastErr == nil {
			lastErr = ErrAllFractionsDegenerate
		}
		return out, &EstimationFailedError{Method: method, Reason: "objective degenerate at every trial point", Err: lastErr}
	}
	switch result.Status {
	case optimize.FunctionConvergence, optimize.MethodConverge, optimize.Success:
	case optimize.IterationLimit:
		return out, &EstimationFailedError{Method: method, Reason: "iteration limit reached before convergence"}
	default:
		return out, &EstimationFailedError{Method: method, Reason: "optimiser stopped with status " + result.Status.String(), Err: err}
	}
	if err != nil {
		return out, &EstimationFailedError{Method: method, Reason: "optimiser error", Err: err}
	}

	out.sigma = math.Exp(result.X[0])
	if math.IsNaN(out.sigma) || math.IsInf(out.sigma, 0) || out.sigma <= Tiny {
		return out, &EstimationFailedError{Method: method, Reason: "solution outside the valid range", Err: ErrInvalidParameter}
	}
	return out, nil
}
