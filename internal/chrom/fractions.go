package chrom

import (
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/integrate"
)

// minPhaseOverlap is the share of a fraction's own span that must fall
// inside a phase before the phase label is attached to the fraction.
const minPhaseOverlap = 0.10

// phaseLabelSep joins multiple matched phase labels.
const phaseLabelSep = " / "

// roundPlaces is the precision of every number in the fraction table.
const roundPlaces = 2

// FractionOptions controls fraction annotation.
type FractionOptions struct {
	// Channel is the absorbance channel to integrate. Empty means DefaultChannel.
	Channel string
	// E1Percent is the 1% extinction coefficient of the product.
	E1Percent float64
	// PathLength is the flow cell path length in cm. Zero means DefaultPathLength.
	PathLength float64
	// Offset is subtracted from the reported start and end volumes after all
	// integrals are computed. It is used to zero the axis at a reference phase.
	Offset float64
}

func (o FractionOptions) channel() string {
	if o.Channel == "" {
		return DefaultChannel
	}
	return o.Channel
}

func (o FractionOptions) pathLength() float64 {
	if o.PathLength == 0 {
		return DefaultPathLength
	}
	return o.PathLength
}

// ExtinctionCoefficient converts an E1% value and path length (cm) into the
// divisor that turns an absorbance integral (mAU*mL) into mass (mg).
func ExtinctionCoefficient(e1Percent, pathLength float64) float64 {
	return e1Percent * pathLength * 100
}

// FractionMass returns auc / extinction, or 0 when the coefficient is zero.
func FractionMass(auc, extinction float64) float64 {
	if extinction == 0 || math.IsNaN(extinction) {
		return 0
	}
	return auc / extinction
}

// FractionConcentration returns mass / span, or 0 for a non-positive span.
func FractionConcentration(mass, span float64) float64 {
	if !(span > 0) {
		return 0
	}
	return mass / span
}

// IsWaste reports whether a fraction label names a waste outlet.
func IsWaste(label string) bool {
	return strings.Contains(strings.ToLower(label), "waste")
}

// TrapezoidAUC integrates a channel against volume over [lo, hi]. Missing
// readings count as zero. Fewer than two samples in the window give zero.
func TrapezoidAUC(trace *SensorTrace, channel string, lo, hi float64) float64 {
	window := trace.Window(lo, hi)
	if len(window) < 2 {
		return 0
	}
	x := make([]float64, len(window))
	f := make([]float64, len(window))
	for i, s := range window {
		x[i] = s.Volume
		if v := s.Channel(channel); v != nil && !math.IsNaN(*v) {
			f[i] = *v
		}
	}
	return integrate.Trapezoidal(x, f)
}

// collectFractions orders events by time, keeps the first event per label
// and drops waste outlets.
func collectFractions(events []FractionEvent) []FractionEvent {
	sorted := make([]FractionEvent, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Time.Before(sorted[j].Time)
	})

	seen := make(map[string]struct{}, len(sorted))
	out := make([]FractionEvent, 0, len(sorted))
	for _, ev := range sorted {
		if _, dup := seen[ev.Label]; dup {
			continue
		}
		seen[ev.Label] = struct{}{}
		if IsWaste(ev.Label) {
			continue
		}
		out = append(out, ev)
	}
	return out
}

// MatchPhases returns the labels of phases that cover at least 10% of the
// fraction window [start, end]. Phases without volumes never match and a
// non-positive window matches nothing.
func MatchPhases(start, end float64, phases []Phase) []string {
	span := end - start
	if !(span > 0) {
		return nil
	}
	var matched []string
	for _, p := range phases {
		if !p.HasVolumes() {
			continue
		}
		overlap := math.Min(end, *p.EndVolume) - math.Max(start, *p.StartVolume)
		if overlap < 0 {
			overlap = 0
		}
		if overlap/span >= minPhaseOverlap {
			matched = append(matched, p.Label)
		}
	}
	return matched
}

// AnnotateFractions places fraction events on the trace's volume axis and
// computes their integrals. Waste events are filtered out before the end
// shift, so each fraction ends where the next non-waste fraction begins and
// the last fraction is dropped. Fractions that cannot be placed on the volume
// axis are dropped as well.
func AnnotateFractions(phases []Phase, trace *SensorTrace, events []FractionEvent, opts FractionOptions) []AnnotatedFraction {
	fractions := collectFractions(events)
	if len(fractions) < 2 || trace.Len() == 0 {
		return []AnnotatedFraction{}
	}

	starts := make([]*float64, len(fractions))
	for i, f := range fractions {
		starts[i] = trace.VolumeAt(f.Time)
	}

	channel := opts.channel()
	extinction := ExtinctionCoefficient(opts.E1Percent, opts.pathLength())

	out := make([]AnnotatedFraction, 0, len(fractions)-1)
	for i := 0; i < len(fractions)-1; i++ {
		start, end := starts[i], starts[i+1]
		if start == nil || end == nil {
			continue
		}

		span := *end - *start
		auc := TrapezoidAUC(trace, channel, *start, *end)
		mass := FractionMass(auc, extinction)
		matched := MatchPhases(*start, *end, phases)

		out = append(out, AnnotatedFraction{
			Label:          fractions[i].Label,
			Phase:          strings.Join(matched, phaseLabelSep),
			MatchedPhases:  matched,
			StartVolume:    round(*start - opts.Offset),
			EndVolume:      round(*end - opts.Offset),
			VolumeSpan:     round(span),
			AreaUnderCurve: round(auc),
			Mass:           round(mass),
			Concentration:  round(FractionConcentration(mass, span)),
		})
	}
	return out
}

func round(v float64) float64 {
	return scalar.RoundEven(v, roundPlaces)
}
