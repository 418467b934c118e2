package plot

import (
	"bytes"
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/chrissnell/chromatrace/internal/chrom"
	"github.com/chrissnell/chromatrace/internal/filtration"
)

var epoch = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func v(f float64) *float64 { return &f }

func testTrace() *chrom.SensorTrace {
	var samples []chrom.Sample
	for i := 0; i <= 10; i++ {
		samples = append(samples, chrom.Sample{
			Time:   epoch.Add(time.Duration(i) * time.Second),
			Volume: float64(i),
			Channels: map[string]*float64{
				"uv_1_280": v(float64(i * 10)),
				"cond":     v(5),
			},
		})
	}
	samples[3].Channels["uv_1_280"] = nil
	return chrom.NewSensorTrace(samples)
}

func TestAxisLabelAndColor(t *testing.T) {
	assert.Equal(t, "UV 280 nm (mAU)", AxisLabel("uv_1_280"))
	assert.Equal(t, "Flux (L/m²/hr)", AxisLabel("flux"))
	assert.Equal(t, "mystery", AxisLabel("mystery"))
	assert.Len(t, ChromatogramChannels(), 16)

	assert.Equal(t, "#1f77b4", Color(0))
	assert.Equal(t, "#17becf", Color(9))
	assert.Equal(t, Color(0), Color(10))
}

func TestSingleRunFigureAxes(t *testing.T) {
	info := chrom.RunInfo{ResultID: "r1", ReportName: "Run 1", Method: "CaptureA", ColumnName: "MabSelect", ColumnVolume: 5}
	fig := SingleRunFigure(info, testTrace(), nil, nil, SingleRunOptions{
		LeftChannels:  []string{"uv_1_280", "missing"},
		RightChannels: []string{"cond"},
	})

	assert.Equal(t, "Result: Run 1 - Method: CaptureA - Column: MabSelect - CV: 5.0 mL", fig.Layout.Title.Text)
	require.Len(t, fig.Data, 2)
	assert.Equal(t, "y", fig.Data[0].YAxis)
	assert.Equal(t, "y2", fig.Data[1].YAxis)
	assert.Nil(t, fig.Data[0].Y[3])

	first := fig.Layout.YAxes["yaxis"]
	assert.Equal(t, "left", first.Side)
	assert.Empty(t, first.Overlaying)
	require.Len(t, first.Range, 2)
	assert.InDelta(t, 105, first.Range[1], 1e-9)
	assert.InDelta(t, -7.5, first.Range[0], 1e-9)

	second := fig.Layout.YAxes["yaxis2"]
	assert.Equal(t, "right", second.Side)
	assert.Equal(t, "y", second.Overlaying)
	require.NotNil(t, second.Position)
	assert.InDelta(t, 1.0, *second.Position, 1e-9)

	assert.Equal(t, []float64{0, 10}, fig.Layout.XAxis.Range)
}

func TestAxisPosition(t *testing.T) {
	assert.InDelta(t, 0.1, axisPosition("left", 2), 1e-9)
	assert.InDelta(t, 0.4, axisPosition("left", 20), 1e-9)
	assert.InDelta(t, 0.9, axisPosition("right", 2), 1e-9)
	assert.InDelta(t, 0.6, axisPosition("right", 20), 1e-9)
}

func TestSingleRunFigureGoalPosts(t *testing.T) {
	phases := []chrom.Phase{
		{Label: "Sample Application", StartVolume: v(2), EndVolume: v(6)},
		{Label: "No Volumes"},
	}
	fractions := []chrom.AnnotatedFraction{{Label: "Fraction A1", StartVolume: 1, EndVolume: 3}}

	fig := SingleRunFigure(chrom.RunInfo{ResultID: "r1"}, testTrace(), phases, fractions, SingleRunOptions{
		LeftChannels: []string{"uv_1_280"},
		Offset:       2,
	})

	assert.Equal(t, "Result ID: r1", fig.Layout.Title.Text)
	assert.Equal(t, []float64{-2, 8}, fig.Layout.XAxis.Range)

	// two phase posts, one fraction rect and two fraction posts
	require.Len(t, fig.Layout.Shapes, 5)
	assert.Equal(t, 0.0, fig.Layout.Shapes[0].X0)
	assert.Equal(t, 4.0, fig.Layout.Shapes[1].X0)
	assert.Equal(t, 0.05, fig.Layout.Shapes[0].Y1)

	rect := fig.Layout.Shapes[2]
	assert.Equal(t, "rect", rect.Type)
	assert.Equal(t, "below", rect.Layer)
	assert.Equal(t, fractionFill, rect.FillColor)
	require.NotNil(t, rect.Line.Width)
	assert.Equal(t, 0.0, *rect.Line.Width)

	require.Len(t, fig.Layout.Annotations, 2)
	assert.Equal(t, "Sample<br>Application", fig.Layout.Annotations[0].Text)
	assert.Equal(t, 2.0, fig.Layout.Annotations[0].X)
	assert.Equal(t, "A1", fig.Layout.Annotations[1].Text)
	assert.InDelta(t, 0.085, fig.Layout.Annotations[1].Y, 1e-9)
	assert.Equal(t, "bold", fig.Layout.Annotations[1].Font.Weight)
}

func TestFractionDisplayName(t *testing.T) {
	assert.Equal(t, "A1", fractionDisplayName("Fraction A1"))
	assert.Equal(t, "Fraction", fractionDisplayName("Fraction"))
	assert.Equal(t, "Pool 3", fractionDisplayName("Pool 3"))
}

func TestOverlayFigure(t *testing.T) {
	runs := []OverlayRun{
		{Info: chrom.RunInfo{ReportName: "A"}, Trace: testTrace(), Offset: 2},
		{Info: chrom.RunInfo{ReportName: "empty"}, Trace: chrom.NewSensorTrace(nil)},
		{Info: chrom.RunInfo{ReportName: "B"}, Trace: testTrace(), Offset: -5},
	}
	fig := OverlayFigure(runs, "")

	assert.Equal(t, "Overlay Plot - UV 280 nm (mAU)", fig.Layout.Title.Text)
	require.Len(t, fig.Data, 2)
	assert.Equal(t, "A", fig.Data[0].Name)
	assert.Equal(t, Color(0), fig.Data[0].Line.Color)
	assert.Equal(t, Color(2), fig.Data[1].Line.Color)
	assert.Equal(t, []float64{-2, 15}, fig.Layout.XAxis.Range)
	assert.True(t, fig.Layout.ShowLegend)

	empty := OverlayFigure(nil, "cond")
	assert.Equal(t, []float64{0, 100}, empty.Layout.XAxis.Range)
	assert.Empty(t, empty.Data)
}

func TestFluxFigure(t *testing.T) {
	samples := []filtration.FluxSample{
		{Time: 0.5, Flux: 100, FlowRate: 1},
		{Time: 1.0, Flux: 90, FlowRate: 0.9, FluxDecayPct: v(10)},
	}
	fig := FluxFigure("VF-7", filtration.UnitStepProductFiltration, samples, []string{"flux", "bogus", "flux_decay_pct"}, "")

	assert.Equal(t, "Experiment VF-7 - Unit Step 3", fig.Layout.Title.Text)
	assert.Equal(t, "Time (hours)", fig.Layout.XAxis.Title.Text)
	assert.Equal(t, "x unified", fig.Layout.HoverMode)
	require.Len(t, fig.Data, 2)

	assert.Equal(t, "y", fig.Data[0].YAxis)
	assert.Equal(t, "blue", fig.Data[0].Line.Color)
	assert.Equal(t, "y3", fig.Data[1].YAxis)
	assert.Equal(t, "green", fig.Data[1].Line.Color)
	assert.Nil(t, fig.Data[1].Y[0])
	assert.Equal(t, 10.0, *fig.Data[1].Y[1])

	assert.Equal(t, "right", fig.Layout.YAxes["yaxis"].Side)
	assert.Equal(t, "right", fig.Layout.YAxes["yaxis3"].Side)
	assert.Equal(t, "y", fig.Layout.YAxes["yaxis3"].Overlaying)
	assert.Equal(t, []float64{0.5, 1.0}, fig.Data[0].X)
}

func TestLayoutEncodingFlattensAxes(t *testing.T) {
	fig := SingleRunFigure(chrom.RunInfo{ResultID: "r1"}, testTrace(), nil, nil, SingleRunOptions{
		LeftChannels: []string{"uv_1_280", "cond"},
	})

	raw, err := json.Marshal(fig)
	require.NoError(t, err)

	var decoded struct {
		Data   []map[string]any `json:"data"`
		Layout map[string]any   `json:"layout"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Contains(t, decoded.Layout, "yaxis")
	assert.Contains(t, decoded.Layout, "yaxis2")
	assert.Contains(t, decoded.Layout, "xaxis")
	assert.NotContains(t, decoded.Layout, "YAxes")
	ys := decoded.Data[0]["y"].([]any)
	assert.Nil(t, ys[3])

	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	require.NoError(t, enc.Encode(fig))

	var viaMsgpack map[string]any
	require.NoError(t, msgpack.Unmarshal(buf.Bytes(), &viaMsgpack))
	layout, ok := viaMsgpack["layout"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, layout, "yaxis2")
}

func TestYRangeIgnoresMissing(t *testing.T) {
	_, _, ok := yRange([]*float64{nil, nil})
	assert.False(t, ok)

	lo, hi, ok := yRange([]*float64{v(-10), nil, v(10)})
	require.True(t, ok)
	assert.InDelta(t, 10.5, hi, 1e-9)
	assert.InDelta(t, -10.75, lo, 1e-9)
	assert.False(t, math.IsNaN(lo))
}
