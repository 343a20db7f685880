package profile

import (
	"profilemodel/internal/models"
	"profilemodel/pkg/geometry"
)

// Job is one experiment together with its reflections
type Job struct {
	Name        string
	Experiment  geometry.Experiment
	Reflections *models.Table
}

// Result is the outcome of one Job. Exactly one of Model and Err is set.
type Result struct {
	Name  string
	Model *Model
	Err   error
}

// ComputeAll computes a static profile model for every job, running up to
// opts.Workers experiments at once. Failures are reported per job and never
// stop the other jobs; the returned error only reports invalid options.
// Results are in job order.
func ComputeAll(jobs []Job, opts Options) ([]Result, error) {
	calc, err := NewCalculator(opts)
	if err != nil {
		return nil, err
	}

	type jobResult struct {
		index int
		model *Model
		err   error
	}
	resultChan := make(chan jobResult)
	sem := make(chan struct{}, opts.workers())

	for i := range jobs {
		go func(index int, job Job) {
			sem <- struct{}{}
			defer func() { <-sem }()

			model, err := calc.Compute(job.Experiment, job.Reflections)
			resultChan <- jobResult{index: index, model: model, err: err}
		}(i, jobs[i])
	}

	results := make([]Result, len(jobs))
	for completed := 0; completed < len(jobs); completed++ {
		res := <-resultChan
		results[res.index] = Result{
			Name:  jobs[res.index].Name,
			Model: res.model,
			Err:   res.err,
		}
		if res.err != nil {
			opts.logf("Experiment %q failed: %v", jobs[res.index].Name, res.err)
		}
		if opts.Progress != nil {
			opts.Progress(completed+1, len(jobs), jobs[res.index].Name)
		}
	}
	return results, nil
}
