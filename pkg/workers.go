package ageing

import (
	"context"
	"fmt"
	"time"
)

// FitJob is one (dataset, channel) fit handed to the worker pool. The
// histogram is read-only; the result is applied to the dataset by the
// draining goroutine only, so workers never touch shared state.
type FitJob struct {
	DatasetIdx int
	ModuleIdx  int
	ChannelIdx int
	Hist       Histogram
}

type FitOutcome struct {
	DatasetIdx int
	ModuleIdx  int
	ChannelIdx int
	Result     FitResult
	Err        error
}

func fitWorker(ctx context.Context, id int, config Configuration, jobs <-chan FitJob, results chan<- FitOutcome) {
	for job := range jobs {
		results <- runFitJob(ctx, id, config, job)
	}
}

// runFitJob fits one job. The recover is scoped to the job so a panicking
// fit turns into a failed outcome and the worker keeps draining the queue;
// a dead worker would wedge the orchestrator, which waits for one outcome
// per job.
func runFitJob(ctx context.Context, id int, config Configuration, job FitJob) (outcome FitOutcome) {
	outcome = FitOutcome{
		DatasetIdx: job.DatasetIdx,
		ModuleIdx:  job.ModuleIdx,
		ChannelIdx: job.ChannelIdx,
	}
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("worker %d recovered from panic: %v", id, r)
			logger.Error(err.Error())
			outcome.Result = FitResult{Valid: false, Reason: err.Error()}
			outcome.Err = err
		}
	}()

	fitCtx := ctx
	cancel := context.CancelFunc(func() {})
	if config.FitTimeoutMs > 0 {
		fitCtx, cancel = context.WithTimeout(ctx, time.Duration(config.FitTimeoutMs)*time.Millisecond)
	}
	defer cancel()
	outcome.Result, outcome.Err = FitGaussian(fitCtx, job.Hist, config)
	return outcome
}

func sendFitsToWorkers(datasets []Dataset, jobs chan<- FitJob) {
	for di := range datasets {
		for mi := range datasets[di].Modules {
			for ci := range datasets[di].Modules[mi].Channels {
				jobs <- FitJob{
					DatasetIdx: di,
					ModuleIdx:  mi,
					ChannelIdx: ci,
					Hist:       datasets[di].Modules[mi].Channels[ci].Hist,
				}
			}
		}
	}
	close(jobs)
}

func countFits(datasets []Dataset) int {
	count := 0
	for di := range datasets {
		for mi := range datasets[di].Modules {
			count += len(datasets[di].Modules[mi].Channels)
		}
	}
	return count
}
