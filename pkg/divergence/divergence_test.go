package divergence

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"profilemodel/internal/models"
	"profilemodel/pkg/geometry"
)

func testDetector() (geometry.Panels, *geometry.FlatPanel) {
	p := geometry.NewFlatPanel(100, 0.1, 1000, 1000, 500, 500)
	return geometry.Panels{p}, p
}

// spot builds a single-frame reflection with the given pixel values laid
// out in a row starting at (x0, y0); the centroid is placed at centroid
func spot(x0, y0 int, values []float64, mask models.MaskCode, centroid [2]float64) models.Reflection {
	sb := models.NewShoebox(0, models.BBox{X0: x0, X1: x0 + len(values), Y0: y0, Y1: y0 + 1, Z0: 0, Z1: 1})
	copy(sb.Data, values)
	for i := range sb.Mask {
		sb.Mask[i] = mask
	}
	return models.Reflection{
		Shoebox:  sb,
		XYZObsPx: [3]float64{centroid[0], centroid[1], 0.5},
	}
}

func TestVarianceSinglePixelAtCentroid(t *testing.T) {
	det, _ := testDetector()
	r := spot(600, 400, []float64{100}, models.MaskValidForeground, [2]float64{600.5, 400.5})

	v, err := Variance(det, r)
	require.NoError(t, err)
	assert.InDelta(t, 0, v, 1e-20)
}

func TestVarianceTwoPixels(t *testing.T) {
	det, p := testDetector()
	r := spot(600, 400, []float64{50, 50}, models.MaskValidForeground, [2]float64{601, 400.5})

	centroid := p.PixelToLab(601, 400.5)
	a := p.PixelToLab(600.5, 400.5).Angle(centroid).Radians()
	b := p.PixelToLab(601.5, 400.5).Angle(centroid).Radians()
	want := (50*a*a + 50*b*b) / 99

	v, err := Variance(det, r)
	require.NoError(t, err)
	assert.InDelta(t, want, v, want*1e-9)
}

func TestVarianceIgnoresInvalidPixels(t *testing.T) {
	det, _ := testDetector()
	r := spot(600, 400, []float64{100, 1e6}, models.MaskValidForeground, [2]float64{600.5, 400.5})
	r.Shoebox.Mask[1] = models.MaskForeground

	v, err := Variance(det, r)
	require.NoError(t, err)
	assert.InDelta(t, 0, v, 1e-20)
}

func TestVarianceDegenerate(t *testing.T) {
	det, _ := testDetector()
	r := spot(600, 400, []float64{0.5, 0.5}, models.MaskValidForeground, [2]float64{601, 400.5})

	_, err := Variance(det, r)
	var degenerate *DegenerateReflectionError
	require.True(t, errors.As(err, &degenerate))
	assert.Equal(t, 1.0, degenerate.Sum)
}

func TestEstimate(t *testing.T) {
	det, _ := testDetector()
	rows := []models.Reflection{
		spot(600, 400, []float64{50, 50}, models.MaskValidForeground, [2]float64{601, 400.5}),
		spot(300, 700, []float64{20, 80}, models.MaskValidForeground, [2]float64{300.9, 700.5}),
		spot(100, 100, []float64{0.2}, models.MaskValidForeground, [2]float64{100.5, 100.5}),
	}

	res, err := Estimate(det, rows)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Used)
	assert.Equal(t, 1, res.Skipped)
	require.Len(t, res.Variances, 2)

	want := math.Sqrt((res.Variances[0] + res.Variances[1]) / 2)
	assert.InDelta(t, want, res.Sigma, 1e-15)
	assert.Greater(t, res.Sigma, 0.0)
}

func TestEstimateSpotsOnCentroid(t *testing.T) {
	det, _ := testDetector()
	rows := []models.Reflection{
		spot(600, 400, []float64{100}, models.MaskValidForeground, [2]float64{600.5, 400.5}),
		spot(120, 880, []float64{5000}, models.MaskValidForeground, [2]float64{120.5, 880.5}),
		spot(950, 30, []float64{2.5}, models.MaskValid, [2]float64{950.5, 30.5}),
		spot(333, 666, []float64{40}, models.MaskValidForeground, [2]float64{333.5, 666.5}),
	}

	res, err := Estimate(det, rows)
	require.NoError(t, err)
	assert.Equal(t, len(rows), res.Used)
	assert.Equal(t, 0, res.Skipped)
	assert.InDelta(t, 0, res.Sigma, 1e-12)
}

func TestEstimateNoUsableReflections(t *testing.T) {
	det, _ := testDetector()

	_, err := Estimate(det, nil)
	assert.ErrorIs(t, err, ErrNoUsableReflections)

	rows := []models.Reflection{spot(100, 100, []float64{0.2}, models.MaskValidForeground, [2]float64{100.5, 100.5})}
	res, err := Estimate(det, rows)
	assert.ErrorIs(t, err, ErrNoUsableReflections)
	assert.Equal(t, 1, res.Skipped)
}

func TestEstimateBadPanel(t *testing.T) {
	det, _ := testDetector()
	r := spot(600, 400, []float64{100}, models.MaskValidForeground, [2]float64{600.5, 400.5})
	r.Shoebox.Panel = 3

	_, err := Estimate(det, []models.Reflection{r})
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoUsableReflections)
}
