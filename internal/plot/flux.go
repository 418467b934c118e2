package plot

import (
	"fmt"

	"github.com/chrissnell/chromatrace/internal/filtration"
)

// DefaultFluxX is the default x axis of a flux figure.
const DefaultFluxX = "process_time"

const fluxFigureHeight = 800

// FluxColumns lists the series a flux figure can draw.
func FluxColumns() []string {
	return []string{
		"process_time", "process_time_seconds", "cumulative_weight", "load_density",
		"flow_rate", "flow_rate_ml_min", "flow_rate_smoothed", "flux", "mass_flux",
		"flux_decay_pct",
	}
}

// fluxValue returns the named column of s. ok is false for unknown columns.
func fluxValue(s filtration.FluxSample, column string) (v *float64, ok bool) {
	var f float64
	switch column {
	case "process_time":
		f = s.Time
	case "process_time_seconds":
		f = s.TimeSeconds
	case "cumulative_weight":
		f = s.CumulativeWeight
	case "load_density":
		f = s.LoadDensity
	case "diff_weight":
		f = s.DiffWeight
	case "diff_time":
		f = s.DiffTime
	case "flow_rate":
		f = s.FlowRate
	case "flow_rate_ml_min":
		f = s.FlowRateMLMin
	case "flow_rate_smoothed":
		f = s.FlowRateSmoothed
	case "flux":
		f = s.Flux
	case "mass_flux":
		f = s.MassFlux
	case "flux_decay_pct":
		if s.FluxDecayPct == nil {
			return nil, true
		}
		f = *s.FluxDecayPct
	default:
		return nil, false
	}
	return &f, true
}

// FluxFigure draws the selected columns of a flux series against xKey, one
// y axis per column alternating between the right and left side. Unknown
// columns are skipped but still consume their axis slot.
func FluxFigure(experimentID string, step filtration.UnitStep, samples []filtration.FluxSample, columns []string, xKey string) Figure {
	if _, ok := fluxValue(filtration.FluxSample{}, xKey); !ok || xKey == "flux_decay_pct" {
		xKey = DefaultFluxX
	}

	xs := make([]float64, len(samples))
	for i, s := range samples {
		v, _ := fluxValue(s, xKey)
		xs[i] = *v
	}

	fig := Figure{
		Data: []Trace{},
		Layout: Layout{
			Title: Title{
				Text:    fmt.Sprintf("Experiment %s - Unit Step %d", experimentID, int(step)),
				X:       float64Ptr(0.5),
				XAnchor: "center",
				YAnchor: "top",
			},
			Height:     fluxFigureHeight,
			XAxis:      Axis{Title: Title{Text: AxisLabel(xKey)}},
			YAxes:      make(map[string]Axis),
			ShowLegend: true,
			HoverMode:  "x unified",
		},
	}

	for i, column := range columns {
		if _, ok := fluxValue(filtration.FluxSample{}, column); !ok {
			continue
		}
		ys := make([]*float64, len(samples))
		for j, s := range samples {
			ys[j], _ = fluxValue(s, column)
		}
		key, ref := axisName(i + 1)
		fig.Data = append(fig.Data, Trace{
			Type:  "scatter",
			Mode:  "lines",
			Name:  AxisLabel(column),
			X:     xs,
			Y:     ys,
			YAxis: ref,
			Line:  Line{Color: fluxColor(i)},
		})

		axis := Axis{
			Title:    Title{Text: AxisLabel(column)},
			Side:     "left",
			ShowGrid: boolPtr(false),
		}
		if i%2 == 0 {
			axis.Side = "right"
		}
		if i > 0 {
			axis.Overlaying = "y"
		}
		fig.Layout.YAxes[key] = axis
	}

	return fig
}
