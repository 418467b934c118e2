// Package filtration derives flow rate, flux and flux decay from the
// cumulative filtrate weight recorded during a viral filtration run.
package filtration

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/stat"
)

// MinSmoothingSeconds is the smallest smoothing window that is applied.
// Shorter windows leave the raw flow rate unsmoothed.
const MinSmoothingSeconds = 10

const (
	gramsPerKilogram = 1000.0
	lphToMLPerMin    = 16.666
	secondsPerHour   = 3600.0
	weightPlaces     = 1
	timePlaces       = 6
)

// UnitStep identifies the stage of a filtration experiment.
type UnitStep int

const (
	UnitStepWaterFlush        UnitStep = 1
	UnitStepBufferFlush       UnitStep = 2
	UnitStepProductFiltration UnitStep = 3
)

func (u UnitStep) String() string {
	switch u {
	case UnitStepWaterFlush:
		return "Water Flush"
	case UnitStepBufferFlush:
		return "Buffer Flush"
	case UnitStepProductFiltration:
		return "Product Filtration"
	}
	return "Unknown"
}

// Valid reports whether u is a known unit step.
func (u UnitStep) Valid() bool {
	return u >= UnitStepWaterFlush && u <= UnitStepProductFiltration
}

// WeightPoint is one reading of the filtrate balance. Time is process time in
// hours, Weight is cumulative filtrate in grams. NaN marks a missing value.
type WeightPoint struct {
	Time   float64
	Weight float64
}

// FluxParams configures ComputeFlux.
type FluxParams struct {
	// FilterArea is the membrane area in m².
	FilterArea float64
	// FeedConcentration is the product concentration of the feed in g/L.
	FeedConcentration float64
	// SmoothingSeconds is the rolling-mean window, counted in rows. Values
	// below MinSmoothingSeconds disable smoothing.
	SmoothingSeconds int
	// ReferenceFlux is the water flush flux (L/m²/hr) used for flux decay.
	ReferenceFlux *float64
}

// FluxSample is one derived row of the flux series.
type FluxSample struct {
	Time             float64  `json:"process_time"`
	TimeSeconds      float64  `json:"process_time_seconds"`
	CumulativeWeight float64  `json:"cumulative_weight"`
	LoadDensity      float64  `json:"load_density"`
	DiffWeight       float64  `json:"diff_weight"`
	DiffTime         float64  `json:"diff_time"`
	FlowRate         float64  `json:"flow_rate"`
	FlowRateMLMin    float64  `json:"flow_rate_ml_min"`
	FlowRateSmoothed float64  `json:"flow_rate_smoothed"`
	Flux             float64  `json:"flux"`
	MassFlux         float64  `json:"mass_flux"`
	FluxDecayPct     *float64 `json:"flux_decay_pct,omitempty"`
}

// FluxResult is the derived series plus the overall flux of the step.
type FluxResult struct {
	Samples    []FluxSample `json:"samples"`
	OverallLMH float64      `json:"overall_lmh"`
}

// ComputeFlux derives the flux series of one unit step.
//
// Readings are ordered by time, rounded (weight to 0.1 g, time to 1e-6 h) and
// repeated weights are dropped. Flow rate is the successive weight difference
// in kg over the time difference in hours. Rows with a non-positive or
// undefined flow rate are dropped before smoothing, rows with a non-positive
// or undefined flux after it.
func ComputeFlux(points []WeightPoint, params FluxParams) FluxResult {
	series := prepare(points)
	if len(series) < 2 {
		return FluxResult{Samples: []FluxSample{}}
	}

	rows := make([]FluxSample, 0, len(series)-1)
	for i := 1; i < len(series); i++ {
		prev, cur := series[i-1], series[i]
		dw := (cur.Weight - prev.Weight) / gramsPerKilogram
		dt := cur.Time - prev.Time

		rate := math.NaN()
		if dt > 0 {
			rate = dw / dt
		}
		if !(rate > 0) {
			continue
		}

		rows = append(rows, FluxSample{
			Time:             cur.Time,
			TimeSeconds:      cur.Time * secondsPerHour,
			CumulativeWeight: cur.Weight,
			LoadDensity:      LoadDensity(cur.Weight, params.FeedConcentration, params.FilterArea),
			DiffWeight:       dw,
			DiffTime:         dt,
			FlowRate:         rate,
			FlowRateMLMin:    rate * lphToMLPerMin,
		})
	}

	rates := make([]float64, len(rows))
	for i, r := range rows {
		rates[i] = r.FlowRate
	}
	smoothed := RollingMean(rates, params.SmoothingSeconds)

	samples := make([]FluxSample, 0, len(rows))
	for i, r := range rows {
		r.FlowRateSmoothed = smoothed[i]
		if !(params.FilterArea > 0) {
			continue
		}
		r.Flux = r.FlowRateSmoothed / params.FilterArea
		if !(r.Flux > 0) {
			continue
		}
		r.MassFlux = r.Flux * params.FeedConcentration
		r.FluxDecayPct = FluxDecay(params.ReferenceFlux, r.Flux)
		samples = append(samples, r)
	}

	last := series[len(series)-1]
	return FluxResult{
		Samples:    samples,
		OverallLMH: OverallLMH(last.Weight, last.Time, params.FilterArea),
	}
}

// RollingMean returns the trailing mean of the last window values at each
// position. Positions before the first full window are NaN. A window below
// MinSmoothingSeconds returns a copy of values.
func RollingMean(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	if window < MinSmoothingSeconds {
		copy(out, values)
		return out
	}
	for i := range values {
		if i+1 < window {
			out[i] = math.NaN()
			continue
		}
		out[i] = stat.Mean(values[i+1-window:i+1], nil)
	}
	return out
}

// FluxDecay returns the percentage drop of flux relative to the reference
// flux, or nil without a usable reference. Zero and non-finite references
// are not usable.
func FluxDecay(reference *float64, flux float64) *float64 {
	if reference == nil || *reference == 0 || math.IsNaN(*reference) || math.IsInf(*reference, 0) {
		return nil
	}
	decay := (*reference - flux) / *reference * 100
	return &decay
}

// OverallLMH is the mean flux over the whole step: final filtrate volume in
// litres over elapsed hours and filter area. Degenerate inputs give zero.
func OverallLMH(finalWeight, finalTime, filterArea float64) float64 {
	if !(finalTime > 0) || !(filterArea > 0) {
		return 0
	}
	lmh := (finalWeight / gramsPerKilogram) / (finalTime * filterArea)
	if math.IsNaN(lmh) || math.IsInf(lmh, 0) {
		return 0
	}
	return lmh
}

// LoadDensity is the product mass loaded per m² of membrane (g/m²).
func LoadDensity(weight, feedConcentration, filterArea float64) float64 {
	if !(filterArea > 0) {
		return 0
	}
	return weight * feedConcentration / gramsPerKilogram / filterArea
}

// prepare orders readings by time (missing times last), rounds them and
// keeps the first reading of each distinct weight.
func prepare(points []WeightPoint) []WeightPoint {
	sorted := make([]WeightPoint, len(points))
	copy(sorted, points)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].Time, sorted[j].Time
		if math.IsNaN(b) {
			return !math.IsNaN(a)
		}
		return a < b
	})

	seen := make(map[float64]struct{}, len(sorted))
	seenNaN := false
	out := make([]WeightPoint, 0, len(sorted))
	for _, p := range sorted {
		p.Weight = roundEven(p.Weight, weightPlaces)
		p.Time = roundEven(p.Time, timePlaces)

		if math.IsNaN(p.Weight) {
			if seenNaN {
				continue
			}
			seenNaN = true
		} else {
			if _, dup := seen[p.Weight]; dup {
				continue
			}
			seen[p.Weight] = struct{}{}
		}
		out = append(out, p)
	}
	return out
}

func roundEven(v float64, places int) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	return scalar.RoundEven(v, places)
}
