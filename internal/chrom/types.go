// Package chrom turns raw chromatography run data (sensor trace, run log and
// fraction collector events) into labelled phases and annotated fractions.
//
// Everything in this package is a pure function of its inputs. Nothing here
// performs I/O or returns an error: missing or malformed data degrades to
// empty output or zero values.
package chrom

import "time"

// DefaultChannel is the primary absorbance channel used for fraction integrals.
const DefaultChannel = "uv_1_280"

// DefaultPathLength is the flow cell path length in cm.
const DefaultPathLength = 0.2

// ReferencePhase is the phase whose start volume zeroes the volume axis.
const ReferencePhase = "Sample Application"

// Sample is one row of a chromatogram: a timestamp, the cumulative volume at
// that instant and the readings of every channel recorded by the system.
// A nil channel value means the instrument reported nothing.
type Sample struct {
	Time     time.Time
	Volume   float64
	Channels map[string]*float64
}

// Channel returns the named reading, or nil if it is missing.
func (s Sample) Channel(name string) *float64 {
	if s.Channels == nil {
		return nil
	}
	return s.Channels[name]
}

// LogEvent is one line of the run log.
type LogEvent struct {
	Time   time.Time
	Volume *float64
	Text   string
}

// Phase is a named stage of a run bounded by log markers.
type Phase struct {
	Label       string    `json:"label"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	StartVolume *float64  `json:"start_ml"`
	EndVolume   *float64  `json:"end_ml"`
}

// HasVolumes reports whether both ends of the phase sit on the volume axis.
func (p Phase) HasVolumes() bool {
	return p.StartVolume != nil && p.EndVolume != nil
}

// FractionEvent marks the moment the fraction collector moved to a new tube.
type FractionEvent struct {
	Time  time.Time
	Label string
}

// AnnotatedFraction is a fraction placed on the volume axis together with
// its absorbance integral and the phases it overlaps.
type AnnotatedFraction struct {
	Label          string   `json:"fraction"`
	Phase          string   `json:"phase"`
	MatchedPhases  []string `json:"matched_phases,omitempty"`
	StartVolume    float64  `json:"start_ml"`
	EndVolume      float64  `json:"end_ml"`
	VolumeSpan     float64  `json:"volume_ml"`
	AreaUnderCurve float64  `json:"auc"`
	Mass           float64  `json:"mass"`
	Concentration  float64  `json:"concentration"`
}

// RunInfo is the descriptive metadata of one chromatography result.
type RunInfo struct {
	ResultID     string    `json:"result_id"`
	ReportName   string    `json:"report_name"`
	Method       string    `json:"method"`
	ColumnName   string    `json:"column_name"`
	ColumnVolume float64   `json:"column_volume"`
	Date         time.Time `json:"date"`
}

func float64Ptr(v float64) *float64 {
	return &v
}
