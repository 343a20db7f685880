// Package profile computes the Gaussian reciprocal-space profile model of an
// experiment: the e.s.d. of the beam divergence (sigma_b) and of the mosaic
// spread (sigma_m), either once per experiment or per image frame.
package profile

import (
	"errors"
	"fmt"
	"math"

	"github.com/soniakeys/unit"

	"profilemodel/internal/models"
	"profilemodel/pkg/divergence"
	"profilemodel/pkg/geometry"
	"profilemodel/pkg/mosaic"
)

// requiredColumns are the reflection columns both calculators need
var requiredColumns = []models.Column{
	models.ColumnMillerIndex,
	models.ColumnS1,
	models.ColumnShoebox,
	models.ColumnXYZObsPx,
	models.ColumnXYZCalMM,
}

// Calculator computes a static profile model per experiment
type Calculator struct {
	opts Options
}

// NewCalculator validates opts and returns a calculator
func NewCalculator(opts Options) (*Calculator, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Calculator{opts: opts}, nil
}

// Compute estimates sigma_b over every reflection and, for rotation data,
// sigma_m over the reflections passing the zeta cut. Still experiments get
// sigma_m = 0.
func (c *Calculator) Compute(exp geometry.Experiment, table *models.Table) (*Model, error) {
	if table == nil {
		return nil, errors.New("profile: nil reflection table")
	}
	if err := table.Require(requiredColumns...); err != nil {
		return nil, err
	}
	if exp.Detector == nil {
		return nil, errors.New("profile: experiment has no detector")
	}

	m := &Model{diag: Diagnostics{Reflections: table.Len()}}

	c.opts.logf("Calculating E.S.D Beam Divergence.")
	div, err := divergence.Estimate(exp.Detector, table.Rows)
	if err != nil {
		return nil, fmt.Errorf("beam divergence: %w", err)
	}
	m.sigmaB = div.Sigma
	m.diag.DivergenceUsed = div.Used
	m.diag.DivergenceSkipped = div.Skipped
	if div.Skipped > 0 {
		c.opts.logf("Skipped %d reflections with summed intensity <= 1", div.Skipped)
	}

	if exp.IsStill() {
		m.method = mosaic.MethodStill
	} else {
		filtered, err := filterByZeta(exp, table, c.opts.MinZeta)
		if err != nil {
			return nil, err
		}
		m.diag.ZetaAccepted = filtered.Len()

		c.opts.logf("Calculating E.S.D Reflecting Range.")
		in := mosaic.Input{Scan: exp.Scan, Reflections: filtered.Rows}
		est, fallback, err := estimateMosaic(c.opts, in)
		if err != nil {
			return nil, err
		}
		m.sigmaM = est.Sigma
		m.method = est.Method
		m.diag.MosaicRecords = est.Records
		m.diag.Evaluations = est.Evaluations
		m.diag.Fallback = fallback
	}

	c.opts.logf(" sigma b: %f degrees", unit.Angle(m.sigmaB).Deg())
	c.opts.logf(" sigma m: %f degrees", unit.Angle(m.sigmaM).Deg())
	return m, nil
}

// estimateMosaic runs the configured strategy. For the basic algorithm an
// *mosaic.EstimationFailedError from the likelihood estimator triggers the
// moment estimator, and the failure reason is returned as fallback.
func estimateMosaic(opts Options, in mosaic.Input) (est mosaic.Estimate, fallback string, err error) {
	switch opts.Algorithm {
	case AlgorithmExtended:
		est, err = mosaic.ExtendedEstimator{MaxIterations: opts.MaxIterations}.Estimate(in)
		return est, "", err
	case AlgorithmBasic:
		est, err = mosaic.LikelihoodEstimator{MaxIterations: opts.MaxIterations}.Estimate(in)
		var failed *mosaic.EstimationFailedError
		if !errors.As(err, &failed) {
			return est, "", err
		}
		opts.logf("Likelihood estimation failed (%v); using moment estimate", failed)
		est, err = mosaic.MomentEstimator{}.Estimate(in)
		return est, failed.Error(), err
	default:
		return mosaic.Estimate{}, "", fmt.Errorf("profile: invalid algorithm %v", opts.Algorithm)
	}
}

// filterByZeta returns the reflections with |zeta| >= minZeta, computing
// zeta from the geometry when the table does not carry it
func filterByZeta(exp geometry.Experiment, table *models.Table, minZeta float64) (*models.Table, error) {
	if !table.Has(models.ColumnZeta) {
		zeta := make([]float64, table.Len())
		for i := range table.Rows {
			z, err := exp.Zeta(table.Rows[i].S1)
			if err != nil {
				return nil, fmt.Errorf("computing zeta: %w", err)
			}
			zeta[i] = z
		}
		withZeta, err := table.WithZeta(zeta)
		if err != nil {
			return nil, err
		}
		table = withZeta
	}

	keep := make([]bool, table.Len())
	for i := range table.Rows {
		keep[i] = math.Abs(table.Rows[i].Zeta) >= minZeta
	}
	return table.Select(keep)
}
