package ageing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// A histogram whose counts array is shorter than its bins array makes the
// window slicing index past the counts and panic inside the fit.
func mismatchedHist() Histogram {
	hist := Histogram{Bins: make([]float64, 100), Counts: make([]float64, 50)}
	for i := range hist.Bins {
		hist.Bins[i] = float64(i)
	}
	for i := range hist.Counts {
		hist.Counts[i] = 1
	}
	hist.Counts[49] = 500
	return hist
}

func TestFitWorkerSurvivesPanickingJob(t *testing.T) {
	jobs := make(chan FitJob, 2)
	results := make(chan FitOutcome, 2)
	jobs <- FitJob{ChannelIdx: 0, Hist: mismatchedHist()}
	jobs <- FitJob{ChannelIdx: 1, Hist: gaussianHist(1000, 100, 8, 0, nil)}
	close(jobs)

	go fitWorker(context.Background(), 1, testConfig(), jobs, results)

	// The orchestrator waits for one outcome per job, so the worker must
	// keep draining the queue after a recovered panic.
	outcomes := make(map[int]FitOutcome, 2)
	for n := 0; n < 2; n++ {
		select {
		case outcome := <-results:
			outcomes[outcome.ChannelIdx] = outcome
		case <-time.After(5 * time.Second):
			t.Fatal("worker stopped draining jobs after a recovered panic")
		}
	}

	require.Error(t, outcomes[0].Err)
	assert.False(t, outcomes[0].Result.Valid)
	assert.Contains(t, outcomes[0].Err.Error(), "panic")

	require.NoError(t, outcomes[1].Err)
	assert.True(t, outcomes[1].Result.Valid)
}
