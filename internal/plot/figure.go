package plot

import (
	"encoding/json"
	"strconv"

	"github.com/vmihailenco/msgpack/v5"
)

// Figure is a plotly figure: a list of traces and a layout.
type Figure struct {
	Data   []Trace `json:"data"`
	Layout Layout  `json:"layout"`
}

// Font styles titles and annotation text.
type Font struct {
	Size   int    `json:"size,omitempty"`
	Color  string `json:"color,omitempty"`
	Weight string `json:"weight,omitempty"`
}

// Line styles a trace or shape outline. A nil Width uses the plotly default.
type Line struct {
	Color string   `json:"color,omitempty"`
	Width *float64 `json:"width,omitempty"`
}

// Trace is a single scatter line. Missing y values encode as null.
type Trace struct {
	Type        string     `json:"type"`
	Mode        string     `json:"mode"`
	Name        string     `json:"name"`
	X           []float64  `json:"x"`
	Y           []*float64 `json:"y"`
	YAxis       string     `json:"yaxis,omitempty"`
	Line        Line       `json:"line"`
	ConnectGaps bool       `json:"connectgaps,omitempty"`
}

// Title is an axis or figure title. X positions it in paper coordinates.
type Title struct {
	Text    string   `json:"text"`
	X       *float64 `json:"x,omitempty"`
	XAnchor string   `json:"xanchor,omitempty"`
	YAnchor string   `json:"yanchor,omitempty"`
	Font    *Font    `json:"font,omitempty"`
}

// MinorTicks configures the minor tick marks of an axis.
type MinorTicks struct {
	Ticks     string `json:"ticks"`
	TickLen   int    `json:"ticklen"`
	TickColor string `json:"tickcolor"`
	ShowGrid  bool   `json:"showgrid"`
}

// Axis is a plotly axis. Fields left at their zero value are omitted.
type Axis struct {
	Title      Title       `json:"title"`
	Side       string      `json:"side,omitempty"`
	Range      []float64   `json:"range,omitempty"`
	Overlaying string      `json:"overlaying,omitempty"`
	Anchor     string      `json:"anchor,omitempty"`
	Position   *float64    `json:"position,omitempty"`
	ShowLine   bool        `json:"showline,omitempty"`
	LineWidth  int         `json:"linewidth,omitempty"`
	LineColor  string      `json:"linecolor,omitempty"`
	Mirror     bool        `json:"mirror,omitempty"`
	Ticks      string      `json:"ticks,omitempty"`
	TickWidth  int         `json:"tickwidth,omitempty"`
	TickColor  string      `json:"tickcolor,omitempty"`
	TickLen    int         `json:"ticklen,omitempty"`
	ShowGrid   *bool       `json:"showgrid,omitempty"`
	GridColor  string      `json:"gridcolor,omitempty"`
	Minor      *MinorTicks `json:"minor,omitempty"`
}

// Shape is a layout shape: the phase boundary posts and the fraction bands.
// With YRef "paper" the Y bounds are fractions of the plot height.
type Shape struct {
	Type      string  `json:"type"`
	X0        float64 `json:"x0"`
	X1        float64 `json:"x1"`
	YRef      string  `json:"yref"`
	Y0        float64 `json:"y0"`
	Y1        float64 `json:"y1"`
	FillColor string  `json:"fillcolor,omitempty"`
	Line      Line    `json:"line"`
	Layer     string  `json:"layer,omitempty"`
}

// Annotation is a text label placed at (X, Y), used for phase labels.
type Annotation struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	YRef      string  `json:"yref"`
	Text      string  `json:"text"`
	ShowArrow bool    `json:"showarrow"`
	XAnchor   string  `json:"xanchor,omitempty"`
	YAnchor   string  `json:"yanchor,omitempty"`
	Font      Font    `json:"font"`
}

// Legend positions the trace legend.
type Legend struct {
	Orientation string  `json:"orientation"`
	XAnchor     string  `json:"xanchor"`
	X           float64 `json:"x"`
	YAnchor     string  `json:"yanchor"`
	Y           float64 `json:"y"`
}

// Margin is the plot margin in pixels.
type Margin struct {
	T int `json:"t"`
	B int `json:"b"`
	L int `json:"l"`
	R int `json:"r"`
}

// Layout is the plotly layout. YAxes holds "yaxis", "yaxis2", ... and is
// flattened into the layout object on encoding.
type Layout struct {
	Title       Title           `json:"title"`
	Height      int             `json:"height,omitempty"`
	XAxis       Axis            `json:"xaxis"`
	YAxes       map[string]Axis `json:"-" msgpack:"-"`
	Shapes      []Shape         `json:"shapes,omitempty"`
	Annotations []Annotation    `json:"annotations,omitempty"`
	Template    string          `json:"template,omitempty"`
	ShowLegend  bool            `json:"showlegend"`
	Legend      *Legend         `json:"legend,omitempty"`
	Margin      *Margin         `json:"margin,omitempty"`
	HoverMode   string          `json:"hovermode,omitempty"`
}

// fields returns the layout as a generic object with the y axes inlined.
func (l Layout) fields() (map[string]any, error) {
	type plain Layout
	raw, err := json.Marshal(plain(l))
	if err != nil {
		return nil, err
	}
	out := make(map[string]any)
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	for name, axis := range l.YAxes {
		b, err := json.Marshal(axis)
		if err != nil {
			return nil, err
		}
		var v map[string]any
		if err := json.Unmarshal(b, &v); err != nil {
			return nil, err
		}
		out[name] = v
	}
	return out, nil
}

// MarshalJSON implements json.Marshaler.
func (l Layout) MarshalJSON() ([]byte, error) {
	m, err := l.fields()
	if err != nil {
		return nil, err
	}
	return json.Marshal(m)
}

// EncodeMsgpack implements msgpack.CustomEncoder.
func (l Layout) EncodeMsgpack(enc *msgpack.Encoder) error {
	m, err := l.fields()
	if err != nil {
		return err
	}
	return enc.Encode(m)
}

// axisName returns the layout key and trace reference of the n-th y axis
// (1-based): "yaxis"/"y", "yaxis2"/"y2", ...
func axisName(n int) (layoutKey, ref string) {
	if n <= 1 {
		return "yaxis", "y"
	}
	suffix := strconv.Itoa(n)
	return "yaxis" + suffix, "y" + suffix
}

func boolPtr(b bool) *bool {
	return &b
}

func float64Ptr(v float64) *float64 {
	return &v
}
