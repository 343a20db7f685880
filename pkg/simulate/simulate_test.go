package simulate

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"profilemodel/internal/models"
	"profilemodel/pkg/geometry"
)

func smallParams() Params {
	p := DefaultParams()
	p.Frames = 20
	p.Reflections = 40
	return p
}

func TestGenerate(t *testing.T) {
	p := smallParams()
	exp, table, err := Generate(p)
	require.NoError(t, err)

	assert.False(t, exp.IsStill())
	assert.Equal(t, p.Reflections, table.Len())
	assert.NoError(t, table.Require(
		models.ColumnMillerIndex, models.ColumnS1, models.ColumnShoebox,
		models.ColumnXYZObsPx, models.ColumnXYZCalMM,
	))
	assert.False(t, table.Has(models.ColumnZeta))

	first, last := exp.Scan.ArrayRange()
	for i, r := range table.Rows {
		require.NoError(t, r.Shoebox.Validate(), "row %d", i)
		assert.GreaterOrEqual(t, r.Shoebox.BBox.Z0, first, "row %d", i)
		assert.LessOrEqual(t, r.Shoebox.BBox.Z1, last, "row %d", i)
		assert.InDelta(t, 1/p.Wavelength, r.S1.Norm(), 1e-12)

		zeta, err := exp.Zeta(r.S1)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, math.Abs(zeta), p.MinZeta)

		found := false
		for k := 0; k < r.Shoebox.BBox.ZSize(); k++ {
			if r.Shoebox.CountFrame(k, models.MaskValidForeground) > 0 {
				found = true
				break
			}
		}
		assert.True(t, found, "row %d has no foreground", i)
	}
}

func TestGenerateIsReproducible(t *testing.T) {
	p := smallParams()
	_, a, err := Generate(p)
	require.NoError(t, err)
	_, b, err := Generate(p)
	require.NoError(t, err)
	require.Equal(t, a.Len(), b.Len())
	for i := range a.Rows {
		assert.Equal(t, a.Rows[i].XYZCalMM, b.Rows[i].XYZCalMM)
		assert.Equal(t, a.Rows[i].Shoebox.Data, b.Rows[i].Shoebox.Data)
	}

	p.Seed++
	_, c, err := Generate(p)
	require.NoError(t, err)
	assert.NotEqual(t, a.Rows[0].XYZCalMM, c.Rows[0].XYZCalMM)
}

func TestGenerateNoise(t *testing.T) {
	p := smallParams()
	p.Noise = true
	_, table, err := Generate(p)
	require.NoError(t, err)
	for _, r := range table.Rows {
		for _, v := range r.Shoebox.Data {
			assert.Equal(t, math.Round(v), v, "noisy counts are integers")
			assert.GreaterOrEqual(t, v, 0.0)
		}
	}
}

func TestGenerateCentroid(t *testing.T) {
	// Without noise the intensity weighted centroid of a spot lies on its
	// observed position
	p := smallParams()
	exp, table, err := Generate(p)
	require.NoError(t, err)
	panel, err := exp.Detector.Panel(0)
	require.NoError(t, err)
	scan := exp.Scan.(geometry.RotationScan)

	r := table.Rows[0]
	sb := r.Shoebox
	nz, ny, nx := sb.Size()
	var sx, sy, sw float64
	for k := 0; k < nz; k++ {
		for j := 0; j < ny; j++ {
			for i := 0; i < nx; i++ {
				v := sb.Data[sb.Index(k, j, i)]
				sx += v * (float64(sb.BBox.X0+i) + 0.5)
				sy += v * (float64(sb.BBox.Y0+j) + 0.5)
				sw += v
			}
		}
	}
	assert.InDelta(t, r.XYZObsPx[0], sx/sw, 0.05)
	assert.InDelta(t, r.XYZObsPx[1], sy/sw, 0.05)
	assert.InDelta(t, scan.AngleFromArrayIndex(r.XYZObsPx[2]), r.XYZCalMM[2], 1e-12)
	assert.NotNil(t, panel)
}

func TestParamsValidate(t *testing.T) {
	tests := map[string]func(p *Params){
		"frames":      func(p *Params) { p.Frames = 0 },
		"oscillation": func(p *Params) { p.Oscillation = 0 },
		"sigma":       func(p *Params) { p.SigmaM = 0 },
		"reflections": func(p *Params) { p.Reflections = -1 },
		"intensity":   func(p *Params) { p.Intensity = 0 },
		"zeta":        func(p *Params) { p.MinZeta = 1 },
		"detector":    func(p *Params) { p.PixelSize = 0 },
		"cell":        func(p *Params) { p.CellLength = -1 },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			p := DefaultParams()
			mutate(&p)
			assert.Error(t, p.Validate())
			_, _, err := Generate(p)
			assert.Error(t, err)
		})
	}
	assert.NoError(t, DefaultParams().Validate())
}
