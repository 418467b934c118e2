// Package analysis exposes the chromatography and filtration calculations
// as request-level operations over a results Source.
package analysis

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/chrissnell/chromatrace/internal/chrom"
	"github.com/chrissnell/chromatrace/internal/filtration"
	"github.com/chrissnell/chromatrace/internal/log"
	"github.com/chrissnell/chromatrace/internal/plot"
)

// Cache kinds.
const (
	KindPhases    = "phases"
	KindFractions = "fractions"
	KindFlux      = "flux"
)

// CacheKinds lists every kind the service caches.
func CacheKinds() []string {
	return []string{KindPhases, KindFractions, KindFlux}
}

// Service runs analyses against a Source. It holds no per-request state and
// is safe for concurrent use.
type Service struct {
	source    Source
	cache     Cache
	defaults  Defaults
	extractor *chrom.Extractor
	logger    *zap.SugaredLogger
}

// NewService creates a service. cache and logger may be nil.
func NewService(source Source, cache Cache, defaults Defaults, logger *zap.SugaredLogger) *Service {
	logger = log.OrNop(logger)
	return &Service{
		source:    source,
		cache:     cache,
		defaults:  defaults.withFallbacks(),
		extractor: chrom.NewExtractor(logger),
		logger:    logger,
	}
}

// Defaults returns the defaults in effect.
func (s *Service) Defaults() Defaults {
	return s.defaults
}

type runInputs struct {
	trace     *chrom.SensorTrace
	logs      []chrom.LogEvent
	fractions []chrom.FractionEvent
}

// fetchRun loads the trace, the run log and optionally the fraction events
// of a run in parallel.
func (s *Service) fetchRun(ctx context.Context, runID string, withFractions bool) (runInputs, error) {
	var in runInputs
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		trace, err := s.source.FetchSensorTrace(gctx, runID)
		in.trace = trace
		return err
	})
	g.Go(func() error {
		logs, err := s.source.FetchLogEvents(gctx, runID)
		in.logs = logs
		return err
	})
	if withFractions {
		g.Go(func() error {
			fractions, err := s.source.FetchFractionEvents(gctx, runID)
			in.fractions = fractions
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return runInputs{}, fmt.Errorf("error loading run %s: %w", runID, err)
	}
	if in.trace == nil {
		in.trace = chrom.NewSensorTrace(nil)
	}
	return in, nil
}

func (s *Service) phases(runID string, in runInputs) []chrom.Phase {
	extraction := s.extractor.Extract(in.logs)
	if len(extraction.Abandoned) > 0 {
		s.logger.Debugw("run log has abandoned phases", "run", runID, "count", len(extraction.Abandoned))
	}
	return chrom.ResolvePhaseVolumes(extraction.Phases, in.trace)
}

func (s *Service) offset(phases []chrom.Phase, zero bool) float64 {
	if !zero {
		return 0
	}
	offset, _ := chrom.ZeroOffset(phases, s.defaults.ReferencePhase)
	return offset
}

// ExtractPhases returns the labelled phases of a run with volumes resolved
// against its sensor trace.
func (s *Service) ExtractPhases(ctx context.Context, runID string) ([]chrom.Phase, error) {
	var phases []chrom.Phase
	if s.cached(ctx, KindPhases, runID, &phases) {
		return phases, nil
	}

	in, err := s.fetchRun(ctx, runID, false)
	if err != nil {
		return nil, err
	}
	phases = s.phases(runID, in)
	s.store(ctx, KindPhases, runID, phases)
	return phases, nil
}

// AnnotateFractions returns the fraction table of a run.
func (s *Service) AnnotateFractions(ctx context.Context, req FractionRequest) ([]chrom.AnnotatedFraction, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	key := req.cacheKey(s.defaults)
	var fractions []chrom.AnnotatedFraction
	if s.cached(ctx, KindFractions, key, &fractions) {
		return fractions, nil
	}

	in, err := s.fetchRun(ctx, req.RunID, true)
	if err != nil {
		return nil, err
	}
	phases := s.phases(req.RunID, in)
	opts := req.options(s.defaults, s.offset(phases, req.ZeroAtReference))
	fractions = chrom.AnnotateFractions(phases, in.trace, in.fractions, opts)

	s.store(ctx, KindFractions, key, fractions)
	return fractions, nil
}

// LoadSummary returns the load volume and mass of the reference phase.
func (s *Service) LoadSummary(ctx context.Context, req LoadRequest) (chrom.LoadSummary, error) {
	phases, err := s.ExtractPhases(ctx, req.RunID)
	if err != nil {
		return chrom.LoadSummary{}, err
	}

	titer := req.Titer
	if titer <= 0 {
		titer = s.defaults.Titer
	}
	summary, ok := chrom.SummarizeLoad(phases, s.defaults.ReferencePhase, titer, s.offset(phases, req.ZeroAtReference))
	if !ok {
		return chrom.LoadSummary{}, fmt.Errorf("run %s has no %q phase: %w", req.RunID, s.defaults.ReferencePhase, ErrPhaseNotFound)
	}
	return summary, nil
}

// RunInfo returns the stored header of a run.
func (s *Service) RunInfo(ctx context.Context, runID string) (chrom.RunInfo, error) {
	return s.source.FetchRunInfo(ctx, runID)
}

// runInfoOrID returns the run header, or a header carrying only the id when
// the run has none.
func (s *Service) runInfoOrID(ctx context.Context, runID string) (chrom.RunInfo, error) {
	info, err := s.source.FetchRunInfo(ctx, runID)
	if errors.Is(err, ErrRunNotFound) {
		return chrom.RunInfo{ResultID: runID}, nil
	}
	if err != nil {
		return chrom.RunInfo{}, err
	}
	return info, nil
}

// RunFigure assembles the single run chromatogram figure.
func (s *Service) RunFigure(ctx context.Context, req FigureRequest) (plot.Figure, error) {
	fr := req.fractions()
	if err := fr.validate(); err != nil {
		return plot.Figure{}, err
	}

	info, err := s.runInfoOrID(ctx, req.RunID)
	if err != nil {
		return plot.Figure{}, err
	}
	in, err := s.fetchRun(ctx, req.RunID, req.ShowFractions)
	if err != nil {
		return plot.Figure{}, err
	}

	phases := s.phases(req.RunID, in)
	offset := s.offset(phases, req.ZeroAtReference)

	var fractions []chrom.AnnotatedFraction
	if req.ShowFractions {
		fractions = chrom.AnnotateFractions(phases, in.trace, in.fractions, fr.options(s.defaults, offset))
	}

	left := req.LeftChannels
	if len(left) == 0 && len(req.RightChannels) == 0 {
		left = []string{s.defaults.Channel}
	}
	return plot.SingleRunFigure(info, in.trace, phases, fractions, plot.SingleRunOptions{
		LeftChannels:  left,
		RightChannels: req.RightChannels,
		Offset:        offset,
	}), nil
}

// forEachRun calls fn for every run id with bounded parallelism. fn receives
// the index of the run so results can be stored in order.
func (s *Service) forEachRun(ctx context.Context, runIDs []string, fn func(ctx context.Context, i int, runID string) error) error {
	if len(runIDs) == 0 {
		return ErrNoRuns
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.defaults.MaxParallelRuns)
	for i, id := range runIDs {
		g.Go(func() error {
			return fn(gctx, i, id)
		})
	}
	return g.Wait()
}

// AnalyzeRuns derives phases, fractions and the load summary of several
// runs in parallel. tmpl supplies the fraction options; its RunID is
// ignored. Results are in the order of runIDs.
func (s *Service) AnalyzeRuns(ctx context.Context, runIDs []string, tmpl FractionRequest) ([]RunAnalysis, error) {
	if err := tmpl.validate(); err != nil {
		return nil, err
	}

	results := make([]RunAnalysis, len(runIDs))
	err := s.forEachRun(ctx, runIDs, func(ctx context.Context, i int, runID string) error {
		info, err := s.runInfoOrID(ctx, runID)
		if err != nil {
			return err
		}
		in, err := s.fetchRun(ctx, runID, true)
		if err != nil {
			return err
		}

		phases := s.phases(runID, in)
		offset := s.offset(phases, tmpl.ZeroAtReference)
		req := tmpl
		req.RunID = runID

		ra := RunAnalysis{
			RunID:     runID,
			Info:      info,
			Phases:    phases,
			Fractions: chrom.AnnotateFractions(phases, in.trace, in.fractions, req.options(s.defaults, offset)),
			Offset:    offset,
		}
		if load, ok := chrom.SummarizeLoad(phases, s.defaults.ReferencePhase, s.defaults.Titer, offset); ok {
			ra.Load = &load
		}
		results[i] = ra
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debugw("analyzed runs", "count", len(results))
	return results, nil
}

// OverlayFigure draws one channel of several runs on a shared volume axis.
func (s *Service) OverlayFigure(ctx context.Context, req OverlayRequest) (plot.Figure, error) {
	runs := make([]plot.OverlayRun, len(req.RunIDs))
	err := s.forEachRun(ctx, req.RunIDs, func(ctx context.Context, i int, runID string) error {
		info, err := s.runInfoOrID(ctx, runID)
		if err != nil {
			return err
		}
		in, err := s.fetchRun(ctx, runID, false)
		if err != nil {
			return err
		}
		runs[i] = plot.OverlayRun{
			Info:   info,
			Trace:  in.trace,
			Offset: s.offset(s.phases(runID, in), req.ZeroAtReference),
		}
		return nil
	})
	if err != nil {
		return plot.Figure{}, err
	}

	channel := req.Channel
	if channel == "" {
		channel = s.defaults.Channel
	}
	return plot.OverlayFigure(runs, channel), nil
}

func (s *Service) fluxParams(req FluxRequest, exp filtration.Experiment) filtration.FluxParams {
	params := filtration.FluxParams{
		FilterArea:        exp.FilterArea,
		FeedConcentration: exp.LoadConcentration,
		SmoothingSeconds:  s.defaults.SmoothingSeconds,
		ReferenceFlux:     req.ReferenceFlux,
	}
	if req.FilterArea != nil {
		params.FilterArea = *req.FilterArea
	}
	if req.FeedConcentration != nil {
		params.FeedConcentration = *req.FeedConcentration
	}
	if req.SmoothingSeconds != nil {
		params.SmoothingSeconds = *req.SmoothingSeconds
	}
	return params
}

// ComputeFlux derives the flux series of one unit step of an experiment.
func (s *Service) ComputeFlux(ctx context.Context, req FluxRequest) (filtration.FluxResult, error) {
	if err := req.validate(); err != nil {
		return filtration.FluxResult{}, err
	}

	exp, err := s.source.FetchFiltrationInfo(ctx, req.ExperimentID)
	if err != nil {
		return filtration.FluxResult{}, err
	}
	params := s.fluxParams(req, exp)
	if !nonNegative(params.FilterArea) {
		return filtration.FluxResult{}, fmt.Errorf("stored filter area %v: %w", params.FilterArea, ErrInvalidFilterArea)
	}

	key := req.cacheKey(params)
	var result filtration.FluxResult
	if s.cached(ctx, KindFlux, key, &result) {
		return result, nil
	}

	points, err := s.source.FetchWeightTrace(ctx, req.ExperimentID, req.Step)
	if err != nil {
		return filtration.FluxResult{}, fmt.Errorf("error loading weight trace: %w", err)
	}
	result = filtration.ComputeFlux(points, params)

	s.store(ctx, KindFlux, key, result)
	return result, nil
}

// FluxFigure assembles the flux figure of one unit step and returns the
// underlying result with it.
func (s *Service) FluxFigure(ctx context.Context, req FluxFigureRequest) (plot.Figure, filtration.FluxResult, error) {
	result, err := s.ComputeFlux(ctx, req.Flux)
	if err != nil {
		return plot.Figure{}, filtration.FluxResult{}, err
	}
	columns := req.Columns
	if len(columns) == 0 {
		columns = []string{"flux"}
	}
	fig := plot.FluxFigure(req.Flux.ExperimentID, req.Flux.Step, result.Samples, columns, req.X)
	return fig, result, nil
}

// MassBalance computes the mass balance of an experiment from its metadata.
func (s *Service) MassBalance(ctx context.Context, experimentID string) (filtration.MassBalance, error) {
	exp, err := s.source.FetchFiltrationInfo(ctx, experimentID)
	if err != nil {
		return filtration.MassBalance{}, err
	}
	return exp.MassBalance(), nil
}

// SaveMassBalance computes the mass balance of an experiment and stores it
// if the source supports writes.
func (s *Service) SaveMassBalance(ctx context.Context, experimentID string) (filtration.MassBalance, error) {
	writer, ok := s.source.(MassBalanceWriter)
	if !ok {
		return filtration.MassBalance{}, ErrReadOnly
	}
	mb, err := s.MassBalance(ctx, experimentID)
	if err != nil {
		return filtration.MassBalance{}, err
	}
	if err := writer.SaveMassBalance(ctx, experimentID, mb); err != nil {
		return filtration.MassBalance{}, err
	}
	s.logger.Infow("stored mass balance", "experiment", experimentID, "yield_pct", mb.YieldPct)
	return mb, nil
}

func (s *Service) cached(ctx context.Context, kind, key string, dst any) bool {
	if s.cache == nil {
		return false
	}
	ok, err := s.cache.Get(ctx, kind, key, dst)
	if err != nil {
		s.logger.Warnw("cache read failed", "kind", kind, "key", key, "error", err)
		return false
	}
	return ok
}

func (s *Service) store(ctx context.Context, kind, key string, value any) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, kind, key, value); err != nil {
		s.logger.Warnw("cache write failed", "kind", kind, "key", key, "error", err)
	}
}
