package pipeline

import (
	"context"

	"golang.org/x/sync/errgroup"

	"pdf-layout-translator/internal/logger"
)

// Job is one document to process
type Job struct {
	InputPath  string
	TargetLang string
	Debug      bool
}

// JobResult pairs a job with its outcome. Err is a DocumentError when the
// document could not be processed.
type JobResult struct {
	Job    Job
	Result *Result
	Err    error
}

// Batch processes several documents concurrently. Pages inside a document
// stay sequential.
type Batch struct {
	pipeline    *DocumentPipeline
	concurrency int
}

// NewBatch creates a batch running at most concurrency documents at a time
func NewBatch(p *DocumentPipeline, concurrency int) *Batch {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Batch{pipeline: p, concurrency: concurrency}
}

// Run processes jobs and returns one result per job in job order. A failing
// document does not stop the others.
func (b *Batch) Run(ctx context.Context, jobs []Job) []JobResult {
	out := make([]JobResult, len(jobs))

	var g errgroup.Group
	g.SetLimit(b.concurrency)
	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			res, err := b.pipeline.ProcessDocument(ctx, job.InputPath, job.TargetLang, job.Debug)
			out[i] = JobResult{Job: job, Result: res, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	var failed int
	for _, r := range out {
		if r.Err != nil {
			failed++
		}
	}
	logger.Info("batch finished",
		logger.Int("documents", len(jobs)),
		logger.Int("failed", failed),
		logger.Int("concurrency", b.concurrency))
	return out
}
