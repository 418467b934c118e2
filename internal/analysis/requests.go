package analysis

import (
	"fmt"
	"math"

	"github.com/chrissnell/chromatrace/internal/chrom"
	"github.com/chrissnell/chromatrace/internal/filtration"
)

// Defaults fills request fields the caller left empty.
type Defaults struct {
	Channel          string
	E1Percent        float64
	PathLength       float64
	SmoothingSeconds int
	ReferencePhase   string
	Titer            float64
	MaxParallelRuns  int
}

// DefaultDefaults returns the built-in analysis defaults.
func DefaultDefaults() Defaults {
	return Defaults{
		Channel:          chrom.DefaultChannel,
		E1Percent:        1.0,
		PathLength:       chrom.DefaultPathLength,
		SmoothingSeconds: 0,
		ReferencePhase:   chrom.ReferencePhase,
		Titer:            1.0,
		MaxParallelRuns:  4,
	}
}

func (d Defaults) withFallbacks() Defaults {
	base := DefaultDefaults()
	if d.Channel == "" {
		d.Channel = base.Channel
	}
	if d.PathLength <= 0 {
		d.PathLength = base.PathLength
	}
	if d.ReferencePhase == "" {
		d.ReferencePhase = base.ReferencePhase
	}
	if d.Titer <= 0 {
		d.Titer = base.Titer
	}
	if d.MaxParallelRuns <= 0 {
		d.MaxParallelRuns = base.MaxParallelRuns
	}
	return d
}

// FractionRequest asks for the annotated fraction table of one run.
type FractionRequest struct {
	RunID   string `json:"run_id"`
	Channel string `json:"channel,omitempty"`
	// E1Percent and PathLength fall back to the service defaults when nil.
	E1Percent  *float64 `json:"e1_percent,omitempty"`
	PathLength *float64 `json:"path_length,omitempty"`
	// ZeroAtReference shifts volumes so the reference phase starts at 0.
	ZeroAtReference bool `json:"zero_at_reference,omitempty"`
}

func (r FractionRequest) validate() error {
	if r.E1Percent != nil && !nonNegative(*r.E1Percent) {
		return fmt.Errorf("e1 percent %v: %w", *r.E1Percent, ErrInvalidExtinctionCoefficient)
	}
	if r.PathLength != nil && (!nonNegative(*r.PathLength) || *r.PathLength == 0) {
		return fmt.Errorf("path length %v: %w", *r.PathLength, ErrInvalidPathLength)
	}
	return nil
}

func (r FractionRequest) options(d Defaults, offset float64) chrom.FractionOptions {
	opts := chrom.FractionOptions{
		Channel:    r.Channel,
		E1Percent:  d.E1Percent,
		PathLength: d.PathLength,
		Offset:     offset,
	}
	if opts.Channel == "" {
		opts.Channel = d.Channel
	}
	if r.E1Percent != nil {
		opts.E1Percent = *r.E1Percent
	}
	if r.PathLength != nil {
		opts.PathLength = *r.PathLength
	}
	return opts
}

func (r FractionRequest) cacheKey(d Defaults) string {
	o := r.options(d, 0)
	return fmt.Sprintf("%s|%s|%g|%g|%t", r.RunID, o.Channel, o.E1Percent, o.PathLength, r.ZeroAtReference)
}

// FluxRequest asks for the flux series of one unit step. Nil fields fall
// back to the experiment metadata or the service defaults.
type FluxRequest struct {
	ExperimentID      string              `json:"experiment_id"`
	Step              filtration.UnitStep `json:"unit_step"`
	FilterArea        *float64            `json:"filter_area,omitempty"`
	FeedConcentration *float64            `json:"feed_concentration,omitempty"`
	SmoothingSeconds  *int                `json:"smoothing_seconds,omitempty"`
	ReferenceFlux     *float64            `json:"reference_flux,omitempty"`
}

func (r FluxRequest) validate() error {
	if !r.Step.Valid() {
		return fmt.Errorf("unit step %d: %w", r.Step, ErrInvalidUnitStep)
	}
	if r.SmoothingSeconds != nil && *r.SmoothingSeconds < 0 {
		return fmt.Errorf("smoothing window %d: %w", *r.SmoothingSeconds, ErrInvalidSmoothingWindow)
	}
	if r.FilterArea != nil && !nonNegative(*r.FilterArea) {
		return fmt.Errorf("filter area %v: %w", *r.FilterArea, ErrInvalidFilterArea)
	}
	if r.FeedConcentration != nil && !nonNegative(*r.FeedConcentration) {
		return fmt.Errorf("feed concentration %v: %w", *r.FeedConcentration, ErrInvalidFeedConcentration)
	}
	if r.ReferenceFlux != nil && (math.IsNaN(*r.ReferenceFlux) || math.IsInf(*r.ReferenceFlux, 0)) {
		return fmt.Errorf("reference flux %v: %w", *r.ReferenceFlux, ErrInvalidReferenceFlux)
	}
	return nil
}

func (r FluxRequest) cacheKey(p filtration.FluxParams) string {
	ref := "none"
	if p.ReferenceFlux != nil {
		ref = fmt.Sprintf("%g", *p.ReferenceFlux)
	}
	return fmt.Sprintf("%s|%d|%g|%g|%d|%s", r.ExperimentID, r.Step, p.FilterArea, p.FeedConcentration, p.SmoothingSeconds, ref)
}

// LoadRequest asks for the load summary of one run.
type LoadRequest struct {
	RunID string `json:"run_id"`
	// Titer in g/L; zero means the default titer.
	Titer           float64 `json:"titer,omitempty"`
	ZeroAtReference bool    `json:"zero_at_reference,omitempty"`
}

// FigureRequest asks for the single run figure. With no channels selected
// the default channel is drawn on the left axis.
type FigureRequest struct {
	RunID           string   `json:"run_id"`
	LeftChannels    []string `json:"left_channels,omitempty"`
	RightChannels   []string `json:"right_channels,omitempty"`
	ShowFractions   bool     `json:"show_fractions,omitempty"`
	ZeroAtReference bool     `json:"zero_at_reference,omitempty"`
	E1Percent       *float64 `json:"e1_percent,omitempty"`
	PathLength      *float64 `json:"path_length,omitempty"`
}

func (r FigureRequest) fractions() FractionRequest {
	return FractionRequest{
		RunID:           r.RunID,
		E1Percent:       r.E1Percent,
		PathLength:      r.PathLength,
		ZeroAtReference: r.ZeroAtReference,
	}
}

// OverlayRequest asks for one channel of several runs on a shared axis.
type OverlayRequest struct {
	RunIDs          []string `json:"run_ids"`
	Channel         string   `json:"channel,omitempty"`
	ZeroAtReference bool     `json:"zero_at_reference,omitempty"`
}

// FluxFigureRequest asks for a flux figure of one unit step.
type FluxFigureRequest struct {
	Flux    FluxRequest `json:"flux"`
	Columns []string    `json:"columns,omitempty"`
	X       string      `json:"x,omitempty"`
}

// RunAnalysis bundles everything derived for one run.
type RunAnalysis struct {
	RunID     string                    `json:"run_id"`
	Info      chrom.RunInfo             `json:"info"`
	Phases    []chrom.Phase             `json:"phases"`
	Fractions []chrom.AnnotatedFraction `json:"fractions"`
	Load      *chrom.LoadSummary        `json:"load,omitempty"`
	Offset    float64                   `json:"offset"`
}

func nonNegative(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}
