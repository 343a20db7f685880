package profile

import (
	"bytes"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"profilemodel/internal/models"
	"profilemodel/pkg/geometry"
	"profilemodel/pkg/mosaic"
	"profilemodel/pkg/simulate"
)

// simulated generates a small rotation sweep; mutate may adjust the
// parameters before generation
func simulated(t *testing.T, mutate func(p *simulate.Params)) (simulate.Params, geometry.Experiment, *models.Table) {
	t.Helper()
	p := simulate.DefaultParams()
	p.Frames = 40
	p.Reflections = 150
	p.Seed = 42
	if mutate != nil {
		mutate(&p)
	}
	exp, table, err := simulate.Generate(p)
	require.NoError(t, err)
	return p, exp, table
}

func TestCalculatorBasic(t *testing.T) {
	p, exp, table := simulated(t, nil)

	calc, err := NewCalculator(DefaultOptions())
	require.NoError(t, err)
	model, err := calc.Compute(exp, table)
	require.NoError(t, err)

	assert.InEpsilon(t, p.SigmaB, model.SigmaB(), 0.1)
	assert.Positive(t, model.SigmaM())
	assert.Equal(t, mosaic.MethodLikelihood, model.Method())

	diag := model.Diagnostics()
	assert.Empty(t, diag.Fallback)
	assert.Positive(t, diag.Evaluations)
	assert.Equal(t, p.Reflections, diag.Reflections)
	assert.Equal(t, p.Reflections, diag.DivergenceUsed+diag.DivergenceSkipped)
	assert.Positive(t, diag.ZetaAccepted)
	assert.Positive(t, diag.MosaicRecords)
}

func TestCalculatorExtended(t *testing.T) {
	p, exp, table := simulated(t, func(p *simulate.Params) {
		p.Intensity = 1e5
	})

	opts := DefaultOptions()
	opts.Algorithm = AlgorithmExtended
	calc, err := NewCalculator(opts)
	require.NoError(t, err)
	model, err := calc.Compute(exp, table)
	require.NoError(t, err)

	assert.Equal(t, mosaic.MethodExtended, model.Method())
	assert.InEpsilon(t, p.SigmaM, model.SigmaM(), 0.2)
	assert.Empty(t, model.Diagnostics().Fallback)
}

func TestCalculatorStill(t *testing.T) {
	_, exp, table := simulated(t, nil)
	exp.Goniometer = nil
	exp.Scan = nil

	calc, err := NewCalculator(DefaultOptions())
	require.NoError(t, err)
	model, err := calc.Compute(exp, table)
	require.NoError(t, err)

	assert.Equal(t, 0.0, model.SigmaM())
	assert.Equal(t, mosaic.MethodStill, model.Method())
	assert.Positive(t, model.SigmaB())
	assert.Equal(t, 0, model.Diagnostics().ZetaAccepted)
}

func TestCalculatorBasicFallsBackWhenNothingPassesZeta(t *testing.T) {
	_, exp, table := simulated(t, nil)

	opts := DefaultOptions()
	opts.MinZeta = 2 // |zeta| never exceeds 1
	calc, err := NewCalculator(opts)
	require.NoError(t, err)
	model, err := calc.Compute(exp, table)
	require.NoError(t, err)

	assert.Equal(t, mosaic.MethodMoment, model.Method())
	assert.Equal(t, 0.0, model.SigmaM())
	assert.Equal(t, 0, model.Diagnostics().ZetaAccepted)
	assert.NotEmpty(t, model.Diagnostics().Fallback)
}

func TestCalculatorExtendedHasNoFallback(t *testing.T) {
	_, exp, table := simulated(t, nil)

	opts := DefaultOptions()
	opts.Algorithm = AlgorithmExtended
	opts.MinZeta = 2
	calc, err := NewCalculator(opts)
	require.NoError(t, err)

	_, err = calc.Compute(exp, table)
	var failed *mosaic.EstimationFailedError
	require.True(t, errors.As(err, &failed))
	assert.Equal(t, mosaic.MethodExtended, failed.Method)
}

func TestCalculatorMissingColumn(t *testing.T) {
	_, exp, table := simulated(t, nil)
	stripped := models.NewTable(table.Rows, models.ColumnMillerIndex, models.ColumnS1, models.ColumnXYZObsPx, models.ColumnXYZCalMM)

	calc, err := NewCalculator(DefaultOptions())
	require.NoError(t, err)
	_, err = calc.Compute(exp, stripped)

	var missing *models.MissingColumnError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, models.ColumnShoebox, missing.Column)

	_, err = calc.Compute(exp, nil)
	assert.Error(t, err)
}

func TestCalculatorUsesZetaColumn(t *testing.T) {
	_, exp, table := simulated(t, nil)

	// A zeta column of zeros rejects every reflection, even though the
	// geometry would accept them
	withZeta, err := table.WithZeta(make([]float64, table.Len()))
	require.NoError(t, err)

	calc, err := NewCalculator(DefaultOptions())
	require.NoError(t, err)
	model, err := calc.Compute(exp, withZeta)
	require.NoError(t, err)
	assert.Equal(t, 0, model.Diagnostics().ZetaAccepted)
}

func TestCalculatorLogs(t *testing.T) {
	_, exp, table := simulated(t, nil)

	var buf bytes.Buffer
	opts := DefaultOptions()
	opts.Logger = NewLogger(&buf)
	calc, err := NewCalculator(opts)
	require.NoError(t, err)
	_, err = calc.Compute(exp, table)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "[profile] ")
	assert.Contains(t, out, "Calculating E.S.D Beam Divergence.")
	assert.Contains(t, out, "sigma b:")
	assert.Contains(t, out, "sigma m:")
}

func TestFilterByZeta(t *testing.T) {
	_, exp, table := simulated(t, nil)

	filtered, err := filterByZeta(exp, table, 0.5)
	require.NoError(t, err)
	assert.True(t, filtered.Has(models.ColumnZeta))
	assert.Less(t, filtered.Len(), table.Len())
	for _, r := range filtered.Rows {
		assert.GreaterOrEqual(t, math.Abs(r.Zeta), 0.5)
	}

	exp.Goniometer = nil
	_, err = filterByZeta(exp, table, 0.5)
	assert.ErrorIs(t, err, geometry.ErrNoGoniometer)
}

func TestOptions(t *testing.T) {
	opts := DefaultOptions()
	assert.NoError(t, opts.Validate())
	assert.Equal(t, DefaultMinZeta, opts.MinZeta)

	opts.MinZeta = -0.1
	assert.Error(t, opts.Validate())
	_, err := NewCalculator(opts)
	assert.Error(t, err)
	_, err = NewScanVaryingCalculator(opts)
	assert.Error(t, err)

	opts = DefaultOptions()
	opts.Algorithm = Algorithm(7)
	assert.Error(t, opts.Validate())

	opts = DefaultOptions()
	opts.MaxIterations = -1
	assert.Error(t, opts.Validate())

	assert.Equal(t, 1, Options{}.workers())
	assert.Nil(t, NewLogger(nil))
}

func TestParseAlgorithm(t *testing.T) {
	tests := []struct {
		in      string
		want    Algorithm
		wantErr bool
	}{
		{"basic", AlgorithmBasic, false},
		{"", AlgorithmBasic, false},
		{" Extended ", AlgorithmExtended, false},
		{"simplex", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseAlgorithm(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
		assert.Equal(t, got, must(ParseAlgorithm(got.String())))
	}
}

func must(a Algorithm, err error) Algorithm {
	if err != nil {
		panic(err)
	}
	return a
}
