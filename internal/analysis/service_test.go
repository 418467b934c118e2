package analysis

import (
	"context"
	"encoding/json"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/chrissnell/chromatrace/internal/chrom"
	"github.com/chrissnell/chromatrace/internal/filtration"
)

func newTestService(src Source, cache Cache) *Service {
	return NewService(src, cache, DefaultDefaults(), nil)
}

func TestExtractPhasesResolvesVolumes(t *testing.T) {
	svc := newTestService(newFakeSource(), nil)

	phases, err := svc.ExtractPhases(context.Background(), "r1")
	require.NoError(t, err)

	expected := []chrom.Phase{
		{Label: "Sample Application", StartTime: at(10), EndTime: at(30), StartVolume: f64(2.5), EndVolume: f64(7.5)},
		{Label: "Elution", StartTime: at(40), EndTime: at(80), StartVolume: f64(10), EndVolume: f64(20)},
	}
	if diff := cmp.Diff(expected, phases); diff != "" {
		t.Errorf("phases mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractPhasesUnknownRunIsEmpty(t *testing.T) {
	svc := newTestService(newFakeSource(), nil)

	phases, err := svc.ExtractPhases(context.Background(), "r2")
	require.NoError(t, err)
	assert.Empty(t, phases)
}

func TestAnnotateFractions(t *testing.T) {
	svc := newTestService(newFakeSource(), nil)

	fractions, err := svc.AnnotateFractions(context.Background(), FractionRequest{RunID: "r1"})
	require.NoError(t, err)
	require.Len(t, fractions, 2)

	a1, a2 := fractions[0], fractions[1]
	assert.Equal(t, "Fraction A1", a1.Label)
	assert.Equal(t, "Elution", a1.Phase)
	assert.Equal(t, 11.0, a1.StartVolume)
	assert.Equal(t, 13.0, a1.EndVolume)
	assert.Equal(t, 200.0, a1.AreaUnderCurve)
	// extinction 1.0 * 0.2 * 100 = 20
	assert.Equal(t, 10.0, a1.Mass)
	assert.Equal(t, 5.0, a1.Concentration)

	// the waste outlet is skipped, so A2 runs up to A3
	assert.Equal(t, "Fraction A2", a2.Label)
	assert.Equal(t, 4.0, a2.VolumeSpan)
	assert.Equal(t, 20.0, a2.Mass)
}

func TestAnnotateFractionsZeroAtReference(t *testing.T) {
	svc := newTestService(newFakeSource(), nil)

	fractions, err := svc.AnnotateFractions(context.Background(), FractionRequest{
		RunID:           "r1",
		E1Percent:       f64(2),
		PathLength:      f64(0.5),
		ZeroAtReference: true,
	})
	require.NoError(t, err)
	require.NotEmpty(t, fractions)

	assert.Equal(t, 8.5, fractions[0].StartVolume)
	assert.Equal(t, 10.5, fractions[0].EndVolume)
	assert.Equal(t, 200.0, fractions[0].AreaUnderCurve)
	assert.Equal(t, 2.0, fractions[0].Mass)
}

func TestValidation(t *testing.T) {
	svc := newTestService(newFakeSource(), nil)
	ctx := context.Background()

	_, err := svc.AnnotateFractions(ctx, FractionRequest{RunID: "r1", E1Percent: f64(math.NaN())})
	assert.ErrorIs(t, err, ErrInvalidExtinctionCoefficient)

	_, err = svc.AnnotateFractions(ctx, FractionRequest{RunID: "r1", PathLength: f64(0)})
	assert.ErrorIs(t, err, ErrInvalidPathLength)

	_, err = svc.ComputeFlux(ctx, FluxRequest{ExperimentID: "vf1", Step: 9})
	assert.ErrorIs(t, err, ErrInvalidUnitStep)

	_, err = svc.ComputeFlux(ctx, FluxRequest{ExperimentID: "vf1", Step: filtration.UnitStepProductFiltration, SmoothingSeconds: intp(-1)})
	assert.ErrorIs(t, err, ErrInvalidSmoothingWindow)

	_, err = svc.ComputeFlux(ctx, FluxRequest{ExperimentID: "vf1", Step: filtration.UnitStepProductFiltration, FilterArea: f64(-2)})
	assert.ErrorIs(t, err, ErrInvalidFilterArea)
	assert.True(t, IsValidation(err))
	assert.False(t, IsNotFound(err))
}

func TestComputeFluxRejectsNonFiniteInputs(t *testing.T) {
	src := newFakeSource()
	svc := newTestService(src, nil)
	ctx := context.Background()
	step := filtration.UnitStepProductFiltration

	tests := []struct {
		name string
		req  FluxRequest
		want error
	}{
		{name: "NaN feed", req: FluxRequest{ExperimentID: "vf1", Step: step, FeedConcentration: f64(math.NaN())}, want: ErrInvalidFeedConcentration},
		{name: "infinite feed", req: FluxRequest{ExperimentID: "vf1", Step: step, FeedConcentration: f64(math.Inf(1))}, want: ErrInvalidFeedConcentration},
		{name: "negative feed", req: FluxRequest{ExperimentID: "vf1", Step: step, FeedConcentration: f64(-1)}, want: ErrInvalidFeedConcentration},
		{name: "infinite reference", req: FluxRequest{ExperimentID: "vf1", Step: step, ReferenceFlux: f64(math.Inf(1))}, want: ErrInvalidReferenceFlux},
		{name: "NaN reference", req: FluxRequest{ExperimentID: "vf1", Step: step, ReferenceFlux: f64(math.NaN())}, want: ErrInvalidReferenceFlux},
		{name: "infinite area", req: FluxRequest{ExperimentID: "vf1", Step: step, FilterArea: f64(math.Inf(1))}, want: ErrInvalidFilterArea},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ComputeFlux(ctx, tt.req)
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, IsValidation(err))
		})
	}
	assert.Zero(t, src.weightCalls.Load())

	result, err := svc.ComputeFlux(ctx, FluxRequest{ExperimentID: "vf1", Step: step, FeedConcentration: f64(2), ReferenceFlux: f64(2)})
	require.NoError(t, err)
	_, err = json.Marshal(result)
	assert.NoError(t, err)
}

func TestLoadSummary(t *testing.T) {
	svc := newTestService(newFakeSource(), nil)
	ctx := context.Background()

	summary, err := svc.LoadSummary(ctx, LoadRequest{RunID: "r1", Titer: 2, ZeroAtReference: true})
	require.NoError(t, err)
	assert.Equal(t, chrom.LoadSummary{
		Phase:       "Sample Application",
		StartVolume: 0,
		EndVolume:   5,
		LoadVolume:  5,
		Titer:       2,
		LoadMass:    10,
	}, summary)

	summary, err = svc.LoadSummary(ctx, LoadRequest{RunID: "r1"})
	require.NoError(t, err)
	assert.Equal(t, 1.0, summary.Titer)
	assert.Equal(t, 2.5, summary.StartVolume)

	_, err = svc.LoadSummary(ctx, LoadRequest{RunID: "r2"})
	assert.ErrorIs(t, err, ErrPhaseNotFound)
	assert.True(t, IsNotFound(err))
}

func TestComputeFlux(t *testing.T) {
	src := newFakeSource()
	cache := newMemoryCache()
	svc := newTestService(src, cache)
	ctx := context.Background()

	req := FluxRequest{ExperimentID: "vf1", Step: filtration.UnitStepProductFiltration, ReferenceFlux: f64(1)}
	result, err := svc.ComputeFlux(ctx, req)
	require.NoError(t, err)
	require.Len(t, result.Samples, 2)
	assert.InDelta(t, 1.25, result.OverallLMH, 1e-12)
	assert.InDelta(t, 10, result.Samples[0].MassFlux, 1e-9)
	require.NotNil(t, result.Samples[1].FluxDecayPct)
	assert.InDelta(t, -50, *result.Samples[1].FluxDecayPct, 1e-9)

	again, err := svc.ComputeFlux(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, int32(1), src.weightCalls.Load())
	if diff := cmp.Diff(result, again); diff != "" {
		t.Errorf("cached flux differs (-first +second):\n%s", diff)
	}

	_, err = svc.ComputeFlux(ctx, FluxRequest{ExperimentID: "nope", Step: filtration.UnitStepWaterFlush})
	assert.ErrorIs(t, err, ErrExperimentNotFound)
}

func TestComputeFluxOverrides(t *testing.T) {
	svc := newTestService(newFakeSource(), nil)

	result, err := svc.ComputeFlux(context.Background(), FluxRequest{
		ExperimentID:      "vf1",
		Step:              filtration.UnitStepProductFiltration,
		FilterArea:        f64(2),
		FeedConcentration: f64(1),
	})
	require.NoError(t, err)
	require.Len(t, result.Samples, 2)
	assert.InDelta(t, 0.5, result.Samples[0].Flux, 1e-12)
	assert.InDelta(t, 0.5, result.Samples[0].MassFlux, 1e-12)
	assert.InDelta(t, 0.625, result.OverallLMH, 1e-12)
}

func TestPhasesAreCached(t *testing.T) {
	src := newFakeSource()
	svc := newTestService(src, newMemoryCache())
	ctx := context.Background()

	first, err := svc.ExtractPhases(ctx, "r1")
	require.NoError(t, err)
	second, err := svc.ExtractPhases(ctx, "r1")
	require.NoError(t, err)

	assert.Equal(t, int32(1), src.traceCalls.Load())
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("cached phases differ (-first +second):\n%s", diff)
	}
}

func TestAnalyzeRuns(t *testing.T) {
	defer goleak.VerifyNone(t)

	svc := newTestService(newFakeSource(), nil)
	results, err := svc.AnalyzeRuns(context.Background(), []string{"r2", "r1"}, FractionRequest{ZeroAtReference: true})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "r2", results[0].RunID)
	assert.Equal(t, "r2", results[0].Info.ResultID)
	assert.Empty(t, results[0].Phases)
	assert.Empty(t, results[0].Fractions)
	assert.Nil(t, results[0].Load)

	assert.Equal(t, "Capture 1", results[1].Info.ReportName)
	assert.Equal(t, 2.5, results[1].Offset)
	assert.Len(t, results[1].Fractions, 2)
	require.NotNil(t, results[1].Load)
	assert.Equal(t, 5.0, results[1].Load.LoadVolume)
}

func TestAnalyzeRunsErrors(t *testing.T) {
	defer goleak.VerifyNone(t)

	svc := newTestService(newFakeSource(), nil)
	ctx := context.Background()

	_, err := svc.AnalyzeRuns(ctx, nil, FractionRequest{})
	assert.ErrorIs(t, err, ErrNoRuns)

	_, err = svc.AnalyzeRuns(ctx, []string{"r1", "broken"}, FractionRequest{})
	assert.ErrorIs(t, err, errBroken)
}

func TestRunFigure(t *testing.T) {
	svc := newTestService(newFakeSource(), nil)
	ctx := context.Background()

	fig, err := svc.RunFigure(ctx, FigureRequest{RunID: "r1", ShowFractions: true, ZeroAtReference: true})
	require.NoError(t, err)
	require.Len(t, fig.Data, 1)
	assert.Equal(t, "y", fig.Data[0].YAxis)
	assert.Equal(t, "Result: Capture 1 - Method: ProteinA - Column: MabSelect - CV: 4.7 mL", fig.Layout.Title.Text)
	assert.Equal(t, []float64{-2.5, 22.5}, fig.Layout.XAxis.Range)
	// two phases with two posts each, two fractions with a band and two posts each
	assert.Len(t, fig.Layout.Shapes, 10)

	fig, err = svc.RunFigure(ctx, FigureRequest{RunID: "r2", RightChannels: []string{"cond"}})
	require.NoError(t, err)
	assert.Equal(t, "Result ID: r2", fig.Layout.Title.Text)
	assert.Empty(t, fig.Data)
}

func TestOverlayFigure(t *testing.T) {
	defer goleak.VerifyNone(t)

	svc := newTestService(newFakeSource(), nil)
	fig, err := svc.OverlayFigure(context.Background(), OverlayRequest{RunIDs: []string{"r1", "r2"}, ZeroAtReference: true})
	require.NoError(t, err)
	require.Len(t, fig.Data, 1)
	assert.Equal(t, "Capture 1", fig.Data[0].Name)
	assert.Equal(t, []float64{-2.5, 22.5}, fig.Layout.XAxis.Range)

	_, err = svc.OverlayFigure(context.Background(), OverlayRequest{})
	assert.ErrorIs(t, err, ErrNoRuns)
}

func TestFluxFigure(t *testing.T) {
	svc := newTestService(newFakeSource(), nil)

	fig, result, err := svc.FluxFigure(context.Background(), FluxFigureRequest{
		Flux: FluxRequest{ExperimentID: "vf1", Step: filtration.UnitStepProductFiltration},
	})
	require.NoError(t, err)
	assert.Len(t, result.Samples, 2)
	require.Len(t, fig.Data, 1)
	assert.Equal(t, "Experiment vf1 - Unit Step 3", fig.Layout.Title.Text)
	assert.Equal(t, "Flux (L/m²/hr)", fig.Data[0].Name)
}

func TestMassBalance(t *testing.T) {
	src := newFakeSource()
	svc := newTestService(src, nil)
	ctx := context.Background()

	mb, err := svc.MassBalance(ctx, "vf1")
	require.NoError(t, err)
	assert.Equal(t, filtration.MassBalance{LoadMass: 250, ProductMass: 228, YieldPct: 91.2}, mb)

	saved, err := svc.SaveMassBalance(ctx, "vf1")
	require.NoError(t, err)
	assert.Equal(t, mb, saved)
	assert.Equal(t, mb, src.saved["vf1"])

	_, err = svc.MassBalance(ctx, "missing")
	assert.ErrorIs(t, err, ErrExperimentNotFound)
}

func TestSaveMassBalanceReadOnlySource(t *testing.T) {
	readOnly := struct{ Source }{newFakeSource()}
	svc := NewService(readOnly, nil, DefaultDefaults(), nil)

	_, err := svc.SaveMassBalance(context.Background(), "vf1")
	assert.ErrorIs(t, err, ErrReadOnly)
	assert.False(t, IsValidation(err))
	assert.False(t, IsNotFound(err))
}
