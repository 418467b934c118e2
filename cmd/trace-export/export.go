package main

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"

	"github.com/chrissnell/chromatrace/internal/analysis"
	"github.com/chrissnell/chromatrace/internal/chrom"
	"github.com/chrissnell/chromatrace/internal/filtration"
)

type fractionAnnotator interface {
	AnnotateFractions(ctx context.Context, req analysis.FractionRequest) ([]chrom.AnnotatedFraction, error)
}

type fluxComputer interface {
	ComputeFlux(ctx context.Context, req analysis.FluxRequest) (filtration.FluxResult, error)
}

var fractionHeader = []string{"fraction", "phase", "start_ml", "end_ml", "volume_ml", "auc", "mass", "concentration"}

var fluxHeader = []string{
	"process_time", "cumulative_weight", "load_density", "flow_rate", "flow_rate_ml_min",
	"flow_rate_smoothed", "flux", "mass_flux", "flux_decay_pct",
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func exportFractions(ctx context.Context, a fractionAnnotator, w io.Writer, req analysis.FractionRequest) error {
	fractions, err := a.AnnotateFractions(ctx, req)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(fractionHeader); err != nil {
		return err
	}
	for _, f := range fractions {
		err := cw.Write([]string{
			f.Label,
			f.Phase,
			formatFloat(f.StartVolume),
			formatFloat(f.EndVolume),
			formatFloat(f.VolumeSpan),
			formatFloat(f.AreaUnderCurve),
			formatFloat(f.Mass),
			formatFloat(f.Concentration),
		})
		if err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func exportFlux(ctx context.Context, c fluxComputer, w io.Writer, req analysis.FluxRequest) error {
	result, err := c.ComputeFlux(ctx, req)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(fluxHeader); err != nil {
		return err
	}
	for _, s := range result.Samples {
		decay := ""
		if s.FluxDecayPct != nil {
			decay = formatFloat(*s.FluxDecayPct)
		}
		err := cw.Write([]string{
			formatFloat(s.Time),
			formatFloat(s.CumulativeWeight),
			formatFloat(s.LoadDensity),
			formatFloat(s.FlowRate),
			formatFloat(s.FlowRateMLMin),
			formatFloat(s.FlowRateSmoothed),
			formatFloat(s.Flux),
			formatFloat(s.MassFlux),
			decay,
		})
		if err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
