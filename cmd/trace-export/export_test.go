package main

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chrissnell/chromatrace/internal/analysis"
	"github.com/chrissnell/chromatrace/internal/chrom"
	"github.com/chrissnell/chromatrace/internal/filtration"
)

type stubExport struct {
	fractions []chrom.AnnotatedFraction
	flux      filtration.FluxResult
	err       error
}

func (s stubExport) AnnotateFractions(ctx context.Context, req analysis.FractionRequest) ([]chrom.AnnotatedFraction, error) {
	return s.fractions, s.err
}

func (s stubExport) ComputeFlux(ctx context.Context, req analysis.FluxRequest) (filtration.FluxResult, error) {
	return s.flux, s.err
}

func TestExportFractions(t *testing.T) {
	var buf bytes.Buffer
	stub := stubExport{fractions: []chrom.AnnotatedFraction{
		{Label: "A1", Phase: "Elution", StartVolume: 11, EndVolume: 13, VolumeSpan: 2, AreaUnderCurve: 200, Mass: 10, Concentration: 5},
	}}

	require.NoError(t, exportFractions(context.Background(), stub, &buf, analysis.FractionRequest{RunID: "r1"}))
	assert.Equal(t,
		"fraction,phase,start_ml,end_ml,volume_ml,auc,mass,concentration\nA1,Elution,11,13,2,200,10,5\n",
		buf.String())
}

func TestExportFlux(t *testing.T) {
	var buf bytes.Buffer
	decay := -50.0
	stub := stubExport{flux: filtration.FluxResult{Samples: []filtration.FluxSample{
		{Time: 1, CumulativeWeight: 1000, LoadDensity: 10, FlowRate: 1, FlowRateMLMin: 16.5, FlowRateSmoothed: 1, Flux: 1, MassFlux: 10},
		{Time: 2, CumulativeWeight: 2500, LoadDensity: 25, FlowRate: 1.5, FlowRateMLMin: 25, FlowRateSmoothed: 1.5, Flux: 1.5, MassFlux: 15, FluxDecayPct: &decay},
	}}}

	require.NoError(t, exportFlux(context.Background(), stub, &buf, analysis.FluxRequest{ExperimentID: "vf1", Step: 3}))
	assert.Equal(t,
		"process_time,cumulative_weight,load_density,flow_rate,flow_rate_ml_min,flow_rate_smoothed,flux,mass_flux,flux_decay_pct\n"+
			"1,1000,10,1,16.5,1,1,10,\n"+
			"2,2500,25,1.5,25,1.5,1.5,15,-50\n",
		buf.String())
}

func TestExportPropagatesErrors(t *testing.T) {
	var buf bytes.Buffer
	stub := stubExport{err: analysis.ErrRunNotFound}
	err := exportFractions(context.Background(), stub, &buf, analysis.FractionRequest{RunID: "nope"})
	assert.True(t, errors.Is(err, analysis.ErrRunNotFound))
	assert.Empty(t, buf.String())
}
