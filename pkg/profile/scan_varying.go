package profile

import (
	"errors"
	"fmt"
	"sync"

	"github.com/soniakeys/unit"
	"golang.org/x/sync/errgroup"

	"profilemodel/internal/models"
	"profilemodel/pkg/divergence"
	"profilemodel/pkg/geometry"
	"profilemodel/pkg/mosaic"
	"profilemodel/pkg/smoothing"
)

// ErrNotRotation is returned when a scan-varying model is requested for an
// experiment without a rotation scan
var ErrNotRotation = errors.New("profile: scan-varying model needs a goniometer and a rotation scan")

// ScanVaryingCalculator computes sigma_b and sigma_m for every image of a
// scan and smooths both sequences. Mosaic spread always uses the basic
// algorithm.
type ScanVaryingCalculator struct {
	opts Options
}

// NewScanVaryingCalculator validates opts and returns a calculator
func NewScanVaryingCalculator(opts Options) (*ScanVaryingCalculator, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	opts.Algorithm = AlgorithmBasic
	return &ScanVaryingCalculator{opts: opts}, nil
}

// frameEstimate is the raw result for one image
type frameEstimate struct {
	sigmaB, sigmaM float64
	hasB, hasM     bool
	num            int
}

// Compute runs the per-frame pipeline. Frames are processed concurrently;
// smoothing starts once every frame has finished.
func (c *ScanVaryingCalculator) Compute(exp geometry.Experiment, table *models.Table) (*ScanVaryingModel, error) {
	if table == nil {
		return nil, errors.New("profile: nil reflection table")
	}
	if err := table.Require(requiredColumns...); err != nil {
		return nil, err
	}
	if exp.Detector == nil {
		return nil, errors.New("profile: experiment has no detector")
	}
	if exp.IsStill() {
		return nil, ErrNotRotation
	}

	filtered, err := filterByZeta(exp, table, c.opts.MinZeta)
	if err != nil {
		return nil, err
	}
	partials, err := filtered.SplitPartials()
	if err != nil {
		return nil, err
	}

	first, last := exp.Scan.ArrayRange()
	frames, outside, err := groupByFrame(partials.Rows, first, last)
	if err != nil {
		return nil, err
	}
	if outside > 0 {
		c.opts.logf("Ignored %d partials outside the scan range [%d, %d)", outside, first, last)
	}

	raw := make([]frameEstimate, len(frames))
	var (
		mu   sync.Mutex
		done int
		g    errgroup.Group
	)
	g.SetLimit(c.opts.workers())
	for i := range frames {
		i := i
		g.Go(func() error {
			fe, err := c.computeFrame(exp, frames[i])
			if err != nil {
				return fmt.Errorf("frame %d: %w", first+i, err)
			}
			raw[i] = fe

			mu.Lock()
			done++
			if c.opts.Progress != nil {
				c.opts.Progress(done, len(frames), fmt.Sprintf("frame %d", first+i))
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	n := len(raw)
	sigmaB := make([]float64, n)
	sigmaM := make([]float64, n)
	hasB := make([]bool, n)
	hasM := make([]bool, n)
	num := make([]int, n)
	for i, fe := range raw {
		sigmaB[i], sigmaM[i] = fe.sigmaB, fe.sigmaM
		hasB[i], hasM[i] = fe.hasB, fe.hasM
		num[i] = fe.num
	}

	smoothB, err := fillAndSmooth(sigmaB, hasB)
	if err != nil {
		return nil, fmt.Errorf("smoothing sigma_b: %w", err)
	}
	smoothM, err := fillAndSmooth(sigmaM, hasM)
	if err != nil {
		return nil, fmt.Errorf("smoothing sigma_m: %w", err)
	}

	m := &ScanVaryingModel{
		firstFrame: first,
		sigmaB:     smoothB,
		sigmaM:     smoothM,
		num:        num,
	}
	c.opts.logf(" sigma b: %f degrees", unit.Angle(m.MeanSigmaB()).Deg())
	c.opts.logf(" sigma m: %f degrees", unit.Angle(m.MeanSigmaM()).Deg())
	return m, nil
}

// computeFrame runs the static pipeline on the partials of one frame
func (c *ScanVaryingCalculator) computeFrame(exp geometry.Experiment, rows []models.Reflection) (frameEstimate, error) {
	fe := frameEstimate{num: len(rows)}
	if len(rows) > 0 {
		c.opts.logf("Computing profile model for frame %d", rows[0].Shoebox.BBox.Z0)
	}

	div, err := divergence.Estimate(exp.Detector, rows)
	switch {
	case errors.Is(err, divergence.ErrNoUsableReflections):
	case err != nil:
		return fe, err
	default:
		fe.sigmaB, fe.hasB = div.Sigma, true
	}

	est, _, err := estimateMosaic(c.opts, mosaic.Input{Scan: exp.Scan, Reflections: rows})
	if err != nil {
		return fe, err
	}
	fe.sigmaM = est.Sigma
	fe.hasM = est.Records >= 2
	return fe, nil
}

// groupByFrame buckets single-frame partials by their image index. Partials
// outside [first, last) are counted and dropped.
func groupByFrame(rows []models.Reflection, first, last int) ([][]models.Reflection, int, error) {
	if last <= first {
		return nil, 0, fmt.Errorf("profile: empty scan range [%d, %d)", first, last)
	}
	counts := make([]int, last-first)
	outside := 0
	for i := range rows {
		b := rows[i].Shoebox.BBox
		if b.Z1 != b.Z0+1 {
			return nil, 0, fmt.Errorf("profile: partial %d spans frames [%d, %d)", i, b.Z0, b.Z1)
		}
		if b.Z0 < first || b.Z0 >= last {
			outside++
			continue
		}
		counts[b.Z0-first]++
	}

	frames := make([][]models.Reflection, last-first)
	for i, n := range counts {
		frames[i] = make([]models.Reflection, 0, n)
	}
	for i := range rows {
		z := rows[i].Shoebox.BBox.Z0
		if z < first || z >= last {
			continue
		}
		frames[z-first] = append(frames[z-first], rows[i])
	}
	return frames, outside, nil
}

func fillAndSmooth(values []float64, valid []bool) ([]float64, error) {
	filled, err := smoothing.FillGaps(values, valid)
	if err != nil {
		return nil, err
	}
	return smoothing.Smooth(filled)
}
