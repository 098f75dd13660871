package ageing

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/exp/maps"
)

// Calculator orchestrates the whole pipeline over an ordered collection of
// datasets: concurrent Gaussian fitting, per-channel charge integration,
// per-module normalization, then the single-threaded temporal pass that
// turns per-dataset charges into ageing trends.
type Calculator struct {
	config Configuration
}

func NewCalculator(config Configuration) *Calculator {
	return &Calculator{config: config}
}

// channelKey identifies one physical channel across datasets.
type channelKey struct {
	Module  string
	Channel string
}

// datasetPoint is the per-(channel, dataset) intermediate the temporal pass
// consumes.
type datasetPoint struct {
	present    bool
	charge     ChargeResult
	normalized bool
	refResp    float64
	stage      ChannelStage
	reason     string
}

// Run executes the pipeline. Channel-level failures are captured in the
// result bundle, never raised; only an empty dataset collection is an error.
func (c *Calculator) Run(ctx context.Context, datasets []Dataset) (*ResultBundle, error) {
	if len(datasets) == 0 {
		return nil, fmt.Errorf("no datasets to analyze")
	}

	sort.SliceStable(datasets, func(i, j int) bool {
		if datasets[i].Time.Equal(datasets[j].Time) {
			return datasets[i].Source < datasets[j].Source
		}
		return datasets[i].Time.Before(datasets[j].Time)
	})

	bundle := &ResultBundle{Datasets: datasets}

	c.runFits(ctx, datasets, bundle)
	c.integrateCharges(datasets)
	norms := c.normalize(datasets, bundle)
	c.computeAgeing(datasets, norms, bundle)
	return bundle, nil
}

// runFits is the parallel stage: one job per (dataset, channel), results
// applied to the datasets by this goroutine only.
func (c *Calculator) runFits(ctx context.Context, datasets []Dataset, bundle *ResultBundle) {
	workers := c.config.NumWorkers
	if workers < 1 {
		workers = 1
	}
	jobs := make(chan FitJob, workers)
	results := make(chan FitOutcome, workers)

	for w := 1; w <= workers; w++ {
		go fitWorker(ctx, w, c.config, jobs, results)
	}
	go sendFitsToWorkers(datasets, jobs)

	total := countFits(datasets)
	for n := 0; n < total; n++ {
		outcome := <-results
		ds := &datasets[outcome.DatasetIdx]
		ch := &ds.Modules[outcome.ModuleIdx].Channels[outcome.ChannelIdx]
		result := outcome.Result
		ch.Fit = &result
		if outcome.Err != nil {
			bundle.Failures = append(bundle.Failures, FailureEvent{
				Time:    ds.Time,
				Source:  ds.Source,
				Module:  ch.Module,
				Channel: ch.Name,
				Err:     outcome.Err,
			})
			if c.config.Verbosity > 0 {
				message := fmt.Sprintf("Fit failed for channel %s in dataset %s: %v",
					ch.Name, ds.Source, outcome.Err)
				logger.Info(message, "fit")
			}
		}
	}
}

func (c *Calculator) integrateCharges(datasets []Dataset) {
	for di := range datasets {
		for mi := range datasets[di].Modules {
			channels := datasets[di].Modules[mi].Channels
			for ci := range channels {
				charge := IntegrateCharge(channels[ci].Hist, channels[ci].Fit, c.config)
				channels[ci].Charge = &charge
			}
		}
	}
}

// normalize runs the reference service per (dataset, module). A failed
// reference degrades that module's channels to unnormalizable for that
// dataset and is logged, it never aborts the run.
func (c *Calculator) normalize(datasets []Dataset, bundle *ResultBundle) map[int]map[string]*Normalization {
	norms := make(map[int]map[string]*Normalization, len(datasets))
	for di := range datasets {
		norms[di] = make(map[string]*Normalization)
		for mi := range datasets[di].Modules {
			mod := &datasets[di].Modules[mi]
			norm, err := NormalizeModule(mod, c.config)
			if err != nil {
				bundle.Failures = append(bundle.Failures, FailureEvent{
					Time:   datasets[di].Time,
					Source: datasets[di].Source,
					Module: mod.Name,
					Err:    err,
				})
				message := fmt.Sprintf("Reference unavailable for module %s in dataset %s: %v",
					mod.Name, datasets[di].Source, err)
				logger.Error(message)
				continue
			}
			n := norm
			norms[di][mod.Name] = &n
		}
	}
	return norms
}

// computeAgeing is the sequential temporal pass. For every channel the
// baseline is the first dataset in time order with a usable charge; each
// later point's factor is its charge over the baseline's, so the baseline
// factor is exactly 1. Normalized and raw charges live in different units
// (raw counts vs counts per reference response), so each representation
// keeps its own baseline: normalized points divide by the first normalized
// charge, raw points by the first raw charge. Channels whose module lost
// its reference for a dataset still contribute that point with the raw
// charge, flagged as unnormalized rather than dropped.
func (c *Calculator) computeAgeing(datasets []Dataset, norms map[int]map[string]*Normalization, bundle *ResultBundle) {
	points := make(map[channelKey][]datasetPoint)
	indices := make(map[channelKey]int)

	for di := range datasets {
		for mi := range datasets[di].Modules {
			mod := &datasets[di].Modules[mi]
			norm := norms[di][mod.Name]
			for ci := range mod.Channels {
				ch := &mod.Channels[ci]
				key := channelKey{Module: ch.Module, Channel: ch.Name}
				if _, ok := points[key]; !ok {
					points[key] = make([]datasetPoint, len(datasets))
					indices[key] = ch.Index
				}
				point := datasetPoint{present: true}
				point.charge = *ch.Charge
				usable := ch.Charge.Value > 0
				if !usable {
					point.stage = StageFailed
					point.reason = "no charge in integration window"
					if ch.Fit != nil && !ch.Fit.Valid {
						point.reason = ch.Fit.Reason
					}
				} else if norm != nil {
					point.normalized = true
					point.refResp = norm.RefResponse
					point.stage = StageNormalized
				} else {
					point.stage = StageFitted
					point.reason = "reference unavailable, using raw charge"
				}
				points[key][di] = point
			}
		}
	}

	keys := maps.Keys(points)
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Module == keys[j].Module {
			return keys[i].Channel < keys[j].Channel
		}
		return keys[i].Module < keys[j].Module
	})

	for _, key := range keys {
		record := AgeingRecord{
			Module:       key.Module,
			Channel:      key.Channel,
			ChannelIndex: indices[key],
		}
		var baselineRaw, baselineNorm float64
		haveRaw, haveNorm := false, false
		for di, point := range points[key] {
			if !point.present {
				continue
			}
			ap := AgeingPoint{
				Time:       datasets[di].Time,
				Charge:     point.charge.Value,
				Normalized: point.normalized,
				Method:     point.charge.Method,
				Stage:      point.stage,
				Reason:     point.reason,
			}
			if point.stage != StageFailed {
				raw := point.charge.Value
				if !haveRaw {
					haveRaw = true
					baselineRaw = raw
					record.BaselineTime = datasets[di].Time
				}
				// A factor is only ever taken against a baseline in the same
				// representation. AgeingComputed means the factor is a ratio
				// of normalized charges; raw ratios stay at the degraded
				// stage so consumers can filter them.
				if point.normalized {
					norm := raw / point.refResp
					if !haveNorm {
						haveNorm = true
						baselineNorm = norm
					}
					ap.Factor = norm / baselineNorm
					ap.Stage = StageAgeingComputed
				} else {
					ap.Factor = raw / baselineRaw
				}
			}
			record.Points = append(record.Points, ap)
		}
		bundle.Records = append(bundle.Records, record)
	}
}
