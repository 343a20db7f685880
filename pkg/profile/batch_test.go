package profile

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"profilemodel/internal/models"
	"profilemodel/pkg/simulate"
)

func TestComputeAll(t *testing.T) {
	_, expA, tableA := simulated(t, nil)
	_, expB, tableB := simulated(t, func(p *simulate.Params) { p.Seed = 7 })
	broken := models.NewTable(tableB.Rows, models.ColumnS1)

	jobs := []Job{
		{Name: "a", Experiment: expA, Reflections: tableA},
		{Name: "broken", Experiment: expB, Reflections: broken},
		{Name: "b", Experiment: expB, Reflections: tableB},
	}

	progress := 0
	opts := DefaultOptions()
	opts.Workers = 2
	opts.Progress = func(completed, total int, message string) {
		progress = completed
		assert.Equal(t, len(jobs), total)
	}

	results, err := ComputeAll(jobs, opts)
	require.NoError(t, err)
	require.Len(t, results, len(jobs))
	assert.Equal(t, len(jobs), progress)

	for i, r := range results {
		assert.Equal(t, jobs[i].Name, r.Name)
	}
	assert.NoError(t, results[0].Err)
	assert.NotNil(t, results[0].Model)
	assert.NoError(t, results[2].Err)
	assert.NotNil(t, results[2].Model)

	var missing *models.MissingColumnError
	assert.True(t, errors.As(results[1].Err, &missing))
	assert.Nil(t, results[1].Model)

	// Each job matches a standalone run
	calc, err := NewCalculator(DefaultOptions())
	require.NoError(t, err)
	single, err := calc.Compute(expA, tableA)
	require.NoError(t, err)
	assert.Equal(t, single.SigmaB(), results[0].Model.SigmaB())
	assert.Equal(t, single.SigmaM(), results[0].Model.SigmaM())
}

func TestComputeAllInvalidOptions(t *testing.T) {
	opts := DefaultOptions()
	opts.MinZeta = -1
	_, err := ComputeAll(nil, opts)
	assert.Error(t, err)

	results, err := ComputeAll(nil, DefaultOptions())
	require.NoError(t, err)
	assert.Empty(t, results)
}
