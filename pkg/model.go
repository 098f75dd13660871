package ageing

import "time"

// Histogram holds one channel's binned counts. Bins are bin centers in
// ascending order, Counts[i] is the count recorded for Bins[i].
type Histogram struct {
	Bins   []float64
	Counts []float64
}

func (h Histogram) Empty() bool {
	return len(h.Bins) == 0
}

func (h Histogram) TotalCount() float64 {
	total := 0.0
	for _, c := range h.Counts {
		total += c
	}
	return total
}

// PeakBin returns the index of the maximum-count bin.
func (h Histogram) PeakBin() int {
	peak := 0
	for i, c := range h.Counts {
		if c > h.Counts[peak] {
			peak = i
		}
	}
	return peak
}

// BinWidth returns the mean bin spacing. Exports with a single bin get width 1.
func (h Histogram) BinWidth() float64 {
	if len(h.Bins) < 2 {
		return 1
	}
	return (h.Bins[len(h.Bins)-1] - h.Bins[0]) / float64(len(h.Bins)-1)
}

type Channel struct {
	Module string
	Index  int
	Name   string
	Hist   Histogram

	// Computed artifacts, attached by the calculator only.
	Fit    *FitResult
	Charge *ChargeResult
}

// Module groups the channels of one detector module. RefIndex is the index
// into Channels of the reference channel, or -1 when the module has none.
type Module struct {
	Name     string
	Channels []Channel
	RefIndex int
}

// Dataset is one timestamped measurement snapshot.
type Dataset struct {
	Time    time.Time
	Modules []Module
	Source  string
	Format  string
}

// FitResult holds the Gaussian fit parameters for one channel histogram.
// Background is the constant offset, BackgroundSlope the linear term (zero
// unless the linear background model is configured).
type FitResult struct {
	Amplitude       float64
	Mean            float64
	StdDev          float64
	Background      float64
	BackgroundSlope float64
	Chi2            float64 // reduced chi-square
	Iterations      int
	WindowLow       float64
	WindowHigh      float64
	Valid           bool
	Reason          string
}

type ChargeMethod string

const (
	ChargeFromFit ChargeMethod = "fit"
	ChargeFromSum ChargeMethod = "sum"
)

// ChargeResult is the integrated charge of one channel in one dataset.
// Method records whether the value came from the fitted curve or from
// direct summation of the observed counts.
type ChargeResult struct {
	Value      float64
	Method     ChargeMethod
	WindowLow  float64
	WindowHigh float64
}

// ChannelStage tracks how far a channel got through the pipeline for one
// dataset.
type ChannelStage int

const (
	StagePending ChannelStage = iota
	StageFitted
	StageNormalized
	StageAgeingComputed
	StageFailed
)

func (s ChannelStage) String() string {
	switch s {
	case StagePending:
		return "pending"
	case StageFitted:
		return "fitted"
	case StageNormalized:
		return "normalized"
	case StageAgeingComputed:
		return "ageing_computed"
	case StageFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// AgeingPoint is one entry of a channel's ageing trend.
type AgeingPoint struct {
	Time       time.Time
	Charge     float64
	Factor     float64
	Normalized bool
	Method     ChargeMethod
	Stage      ChannelStage
	Reason     string
}

// AgeingRecord is the time-ordered ageing trend of one channel. BaselineTime
// is the timestamp of the dataset the factors are relative to.
type AgeingRecord struct {
	Module       string
	Channel      string
	ChannelIndex int
	BaselineTime time.Time
	Points       []AgeingPoint
}

// FailureEvent records one channel-level failure for the run manifest.
type FailureEvent struct {
	Time    time.Time
	Source  string
	Module  string
	Channel string
	Err     error
}

// ResultBundle is the read-only output of one analysis run.
type ResultBundle struct {
	Datasets []Dataset
	Records  []AgeingRecord
	Failures []FailureEvent
}
