package plot

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/chrissnell/chromatrace/internal/chrom"
)

const (
	gridColor     = "#eee"
	fractionColor = "#d62728"
	fractionFill  = "rgba(214, 39, 40, 0.1)"

	phasePostTop    = 0.05
	phaseLabelY     = 0.01
	fractionPostLow = 0.06
	fractionPostTop = 0.11

	axisStep        = 0.05
	maxLeftPosition = 0.4
	minRightPos     = 0.6

	runFigureHeight = 650
)

// SingleRunOptions selects what a single run figure shows.
type SingleRunOptions struct {
	LeftChannels  []string
	RightChannels []string
	// Offset is subtracted from every volume on the x axis. Fractions are
	// drawn as given and must already be shifted by the same offset.
	Offset float64
}

// OverlayRun is one run drawn on an overlay figure.
type OverlayRun struct {
	Info   chrom.RunInfo
	Trace  *chrom.SensorTrace
	Offset float64
}

func baseAxis() Axis {
	return Axis{
		ShowLine:  true,
		LineWidth: 1,
		LineColor: "black",
		Mirror:    true,
		Ticks:     "inside",
		TickWidth: 1,
		TickColor: "black",
		TickLen:   6,
		ShowGrid:  boolPtr(true),
		GridColor: gridColor,
		Minor: &MinorTicks{
			Ticks:     "inside",
			TickLen:   3,
			TickColor: "black",
			ShowGrid:  false,
		},
	}
}

func centeredTitle(text string) Title {
	return Title{
		Text:    text,
		X:       float64Ptr(0.5),
		XAnchor: "center",
		Font:    &Font{Size: 16},
	}
}

// channelSeries returns the x (volume minus offset) and y values of channel
// over samples, with missing or NaN readings as nil.
func channelSeries(samples []chrom.Sample, channel string, offset float64) ([]float64, []*float64) {
	xs := make([]float64, len(samples))
	ys := make([]*float64, len(samples))
	for i, s := range samples {
		xs[i] = s.Volume - offset
		if v := s.Channel(channel); v != nil && !math.IsNaN(*v) {
			val := *v
			ys[i] = &val
		}
	}
	return xs, ys
}

// yRange pads the data range so traces clear the goal posts at the bottom
// of the plot. ok is false when ys holds no value.
func yRange(ys []*float64) (lo, hi float64, ok bool) {
	minV, maxV := math.Inf(1), math.Inf(-1)
	for _, y := range ys {
		if y == nil {
			continue
		}
		minV = math.Min(minV, *y)
		maxV = math.Max(maxV, *y)
	}
	if math.IsInf(maxV, -1) {
		return 0, 0, false
	}
	hi = maxV * 1.05
	lo = minV - 1.5*(hi-maxV)
	return lo, hi, true
}

func xRange(xs []float64) []float64 {
	if len(xs) == 0 {
		return nil
	}
	lo, hi := xs[0], xs[0]
	for _, x := range xs[1:] {
		lo = math.Min(lo, x)
		hi = math.Max(hi, x)
	}
	return []float64{lo, hi}
}

// SingleRunFigure draws the selected channels of one run against volume,
// each on its own y axis, with phase goal posts along the bottom and, if
// any are given, fraction goal posts just above them.
func SingleRunFigure(info chrom.RunInfo, trace *chrom.SensorTrace, phases []chrom.Phase, fractions []chrom.AnnotatedFraction, opts SingleRunOptions) Figure {
	fig := Figure{
		Data: []Trace{},
		Layout: Layout{
			Title:    centeredTitle(runTitle(info)),
			Height:   runFigureHeight,
			YAxes:    make(map[string]Axis),
			Template: "plotly_white",
			Legend:   &Legend{Orientation: "h", YAnchor: "bottom", Y: 1.02, XAnchor: "right", X: 1},
			Margin:   &Margin{T: 60, B: 60, L: 60, R: 20},
		},
	}

	var samples []chrom.Sample
	if trace != nil {
		samples = trace.SamplesByVolume()
	}

	counter := 1
	addAxis := func(channel, side string, idx int) {
		if trace == nil || !trace.HasChannel(channel) {
			return
		}
		key, ref := axisName(counter)
		color := Color(counter - 1)
		label := AxisLabel(channel)
		xs, ys := channelSeries(samples, channel, opts.Offset)

		fig.Data = append(fig.Data, Trace{
			Type:        "scatter",
			Mode:        "lines",
			Name:        label,
			X:           xs,
			Y:           ys,
			YAxis:       ref,
			Line:        Line{Color: color},
			ConnectGaps: true,
		})

		axis := baseAxis()
		axis.Title = Title{Text: label, Font: &Font{Color: color}}
		axis.Side = side
		if lo, hi, ok := yRange(ys); ok {
			axis.Range = []float64{lo, hi}
		}
		if counter > 1 {
			axis.Overlaying = "y"
			axis.Anchor = "free"
			axis.Position = float64Ptr(axisPosition(side, idx))
		}
		fig.Layout.YAxes[key] = axis
		counter++
	}
	for i, ch := range opts.LeftChannels {
		addAxis(ch, "left", i)
	}
	for j, ch := range opts.RightChannels {
		addAxis(ch, "right", j)
	}

	for _, p := range phases {
		if !p.HasVolumes() {
			continue
		}
		start, end := *p.StartVolume-opts.Offset, *p.EndVolume-opts.Offset
		for _, x := range []float64{start, end} {
			fig.Layout.Shapes = append(fig.Layout.Shapes, Shape{
				Type:  "line",
				X0:    x,
				X1:    x,
				YRef:  "paper",
				Y0:    0,
				Y1:    phasePostTop,
				Line:  Line{Width: float64Ptr(1)},
				Layer: "above",
			})
		}
		fig.Layout.Annotations = append(fig.Layout.Annotations, Annotation{
			X:       (start + end) / 2,
			Y:       phaseLabelY,
			YRef:    "paper",
			Text:    strings.ReplaceAll(p.Label, " ", "<br>"),
			XAnchor: "center",
			YAnchor: "bottom",
			Font:    Font{Size: 10},
		})
	}

	addFractionPosts(&fig.Layout, fractions)

	xaxis := baseAxis()
	xaxis.Title = Title{Text: "ml"}
	xs := make([]float64, len(samples))
	for i, s := range samples {
		xs[i] = s.Volume - opts.Offset
	}
	xaxis.Range = xRange(xs)
	fig.Layout.XAxis = xaxis

	return fig
}

func addFractionPosts(layout *Layout, fractions []chrom.AnnotatedFraction) {
	for _, f := range fractions {
		layout.Shapes = append(layout.Shapes, Shape{
			Type:      "rect",
			X0:        f.StartVolume,
			X1:        f.EndVolume,
			YRef:      "paper",
			Y0:        fractionPostLow,
			Y1:        fractionPostTop,
			FillColor: fractionFill,
			Line:      Line{Width: float64Ptr(0)},
			Layer:     "below",
		})
		for _, x := range []float64{f.StartVolume, f.EndVolume} {
			layout.Shapes = append(layout.Shapes, Shape{
				Type:  "line",
				X0:    x,
				X1:    x,
				YRef:  "paper",
				Y0:    fractionPostLow,
				Y1:    fractionPostTop,
				Line:  Line{Color: fractionColor, Width: float64Ptr(2)},
				Layer: "above",
			})
		}
		layout.Annotations = append(layout.Annotations, Annotation{
			X:       (f.StartVolume + f.EndVolume) / 2,
			Y:       (fractionPostLow + fractionPostTop) / 2,
			YRef:    "paper",
			Text:    fractionDisplayName(f.Label),
			XAnchor: "center",
			YAnchor: "middle",
			Font:    Font{Size: 10, Color: fractionColor, Weight: "bold"},
		})
	}
}

// fractionDisplayName shortens "Fraction A1" style labels to "A1".
func fractionDisplayName(label string) string {
	if !strings.Contains(label, "Fraction") {
		return label
	}
	parts := strings.Fields(label)
	if len(parts) > 1 {
		return parts[len(parts)-1]
	}
	return label
}

func axisPosition(side string, idx int) float64 {
	if side == "right" {
		return math.Max(1-axisStep*float64(idx), minRightPos)
	}
	return math.Min(axisStep*float64(idx), maxLeftPosition)
}

func runTitle(info chrom.RunInfo) string {
	if info.ReportName == "" && info.Method == "" && info.ColumnName == "" {
		return fmt.Sprintf("Result ID: %s", info.ResultID)
	}
	return fmt.Sprintf("Result: %s - Method: %s - Column: %s - CV: %s mL",
		info.ReportName, info.Method, info.ColumnName, formatVolume(info.ColumnVolume))
}

// formatVolume prints whole numbers with a trailing ".0" so column volumes
// read the same as in stored reports.
func formatVolume(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eEIN") {
		s += ".0"
	}
	return s
}

// OverlayFigure draws one channel of several runs on a shared axis. Each
// run's volumes are shifted by its own offset. An empty channel selects
// chrom.DefaultChannel.
func OverlayFigure(runs []OverlayRun, channel string) Figure {
	if channel == "" {
		channel = chrom.DefaultChannel
	}
	label := AxisLabel(channel)

	fig := Figure{
		Data: []Trace{},
		Layout: Layout{
			Title:      centeredTitle("Overlay Plot - " + label),
			Height:     runFigureHeight,
			YAxes:      make(map[string]Axis),
			Template:   "plotly_white",
			ShowLegend: true,
			Legend:     &Legend{Orientation: "v", YAnchor: "top", Y: 1, XAnchor: "left", X: 1.02},
			Margin:     &Margin{T: 60, B: 60, L: 60, R: 150},
		},
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for i, run := range runs {
		if run.Trace == nil || run.Trace.Len() == 0 || !run.Trace.HasChannel(channel) {
			continue
		}
		xs, ys := channelSeries(run.Trace.SamplesByVolume(), channel, run.Offset)
		fig.Data = append(fig.Data, Trace{
			Type:        "scatter",
			Mode:        "lines",
			Name:        run.Info.ReportName,
			X:           xs,
			Y:           ys,
			Line:        Line{Color: Color(i), Width: float64Ptr(2)},
			ConnectGaps: true,
		})
		if r := xRange(xs); r != nil {
			lo = math.Min(lo, r[0])
			hi = math.Max(hi, r[1])
		}
	}

	xaxis := baseAxis()
	xaxis.Title = Title{Text: "ml"}
	if math.IsInf(lo, 1) {
		xaxis.Range = []float64{0, 100}
	} else {
		xaxis.Range = []float64{lo, hi}
	}
	fig.Layout.XAxis = xaxis

	yaxis := baseAxis()
	yaxis.Title = Title{Text: label}
	fig.Layout.YAxes["yaxis"] = yaxis

	return fig
}
