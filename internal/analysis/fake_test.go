package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chrissnell/chromatrace/internal/chrom"
	"github.com/chrissnell/chromatrace/internal/filtration"
)

var t0 = time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)

func at(sec int) time.Time {
	return t0.Add(time.Duration(sec) * time.Second)
}

func f64(v float64) *float64 {
	return &v
}

func intp(v int) *int {
	return &v
}

var errBroken = errors.New("broken store")

type fakeRun struct {
	info      *chrom.RunInfo
	samples   []chrom.Sample
	logs      []chrom.LogEvent
	fractions []chrom.FractionEvent
}

// fakeSource serves fixed runs and experiments and counts trace fetches.
type fakeSource struct {
	runs        map[string]fakeRun
	experiments map[string]filtration.Experiment
	weights     map[string][]filtration.WeightPoint

	traceCalls  atomic.Int32
	weightCalls atomic.Int32

	mu    sync.Mutex
	saved map[string]filtration.MassBalance
}

func (f *fakeSource) FetchSensorTrace(_ context.Context, runID string) (*chrom.SensorTrace, error) {
	f.traceCalls.Add(1)
	if runID == "broken" {
		return nil, errBroken
	}
	return chrom.NewSensorTrace(f.runs[runID].samples), nil
}

func (f *fakeSource) FetchLogEvents(_ context.Context, runID string) ([]chrom.LogEvent, error) {
	return f.runs[runID].logs, nil
}

func (f *fakeSource) FetchFractionEvents(_ context.Context, runID string) ([]chrom.FractionEvent, error) {
	return f.runs[runID].fractions, nil
}

func (f *fakeSource) FetchWeightTrace(_ context.Context, experimentID string, step filtration.UnitStep) ([]filtration.WeightPoint, error) {
	f.weightCalls.Add(1)
	return f.weights[fmt.Sprintf("%s/%d", experimentID, step)], nil
}

func (f *fakeSource) FetchRunInfo(_ context.Context, runID string) (chrom.RunInfo, error) {
	run, ok := f.runs[runID]
	if !ok || run.info == nil {
		return chrom.RunInfo{}, fmt.Errorf("run %s: %w", runID, ErrRunNotFound)
	}
	return *run.info, nil
}

func (f *fakeSource) FetchFiltrationInfo(_ context.Context, experimentID string) (filtration.Experiment, error) {
	exp, ok := f.experiments[experimentID]
	if !ok {
		return filtration.Experiment{}, fmt.Errorf("experiment %s: %w", experimentID, ErrExperimentNotFound)
	}
	return exp, nil
}

func (f *fakeSource) SaveMassBalance(_ context.Context, experimentID string, mb filtration.MassBalance) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saved == nil {
		f.saved = make(map[string]filtration.MassBalance)
	}
	f.saved[experimentID] = mb
	return nil
}

// memoryCache is a Cache that stores JSON in a map.
type memoryCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: make(map[string][]byte)}
}

func (c *memoryCache) Get(_ context.Context, kind, key string, dst any) (bool, error) {
	c.mu.Lock()
	raw, ok := c.data[kind+":"+key]
	c.mu.Unlock()
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dst)
}

func (c *memoryCache) Set(_ context.Context, kind, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.data[kind+":"+key] = raw
	c.mu.Unlock()
	return nil
}

// newFakeSource returns a source with:
//
//   - run "r1": 101 samples one second apart, volume rising 0.25 mL/s, a
//     constant 100 mAU on uv_1_280; Sample Application from 10 s to 30 s
//     (2.5-7.5 mL), Elution from 40 s to 80 s (10-20 mL) and the collector
//     switching at 44, 52, 60 and 68 s (11, 13, 15 and 17 mL), the third
//     time to waste.
//   - run "r2": no data and no header.
//   - experiment "vf1": 1 m² filter, 10 g/L feed, three product
//     filtration readings.
func newFakeSource() *fakeSource {
	const end = "End Phase (Issued)(Processing)(Completed)"

	var samples []chrom.Sample
	for i := 0; i <= 100; i++ {
		samples = append(samples, chrom.Sample{
			Time:     at(i),
			Volume:   float64(i) / 4,
			Channels: map[string]*float64{"uv_1_280": f64(100), "cond": f64(12)},
		})
	}

	return &fakeSource{
		runs: map[string]fakeRun{
			"r1": {
				info:    &chrom.RunInfo{ResultID: "r1", ReportName: "Capture 1", Method: "ProteinA", ColumnName: "MabSelect", ColumnVolume: 4.7},
				samples: samples,
				logs: []chrom.LogEvent{
					{Time: at(10), Text: "Phase Sample Application (Issued)(Processing)"},
					{Time: at(30), Text: end},
					{Time: at(40), Text: "Phase Elution (Issued)(Processing)"},
					{Time: at(80), Text: end},
				},
				fractions: []chrom.FractionEvent{
					{Time: at(44), Label: "Fraction A1"},
					{Time: at(52), Label: "Fraction A2"},
					{Time: at(60), Label: "Waste"},
					{Time: at(68), Label: "Fraction A3"},
				},
			},
		},
		experiments: map[string]filtration.Experiment{
			"vf1": {
				ID:                 "vf1",
				FilterArea:         1,
				LoadConcentration:  10,
				LoadVolume:         25,
				FinalVolume:        30,
				FinalConcentration: 7.6,
			},
		},
		weights: map[string][]filtration.WeightPoint{
			"vf1/3": {
				{Time: 0, Weight: 0},
				{Time: 1, Weight: 1000},
				{Time: 2, Weight: 2500},
			},
		},
	}
}
