package chrom

import (
	"testing"
	"time"
)

// linearTrace returns n+1 samples one second apart whose volume rises by
// step per second and whose uv reading is constant.
func linearTrace(n int, step, uv float64) *SensorTrace {
	samples := make([]Sample, 0, n+1)
	for i := 0; i <= n; i++ {
		samples = append(samples, Sample{
			Time:     at(i),
			Volume:   float64(i) * step,
			Channels: map[string]*float64{DefaultChannel: ml(uv)},
		})
	}
	return NewSensorTrace(samples)
}

func TestVolumeAt(t *testing.T) {
	trace := NewSensorTrace([]Sample{
		{Time: at(20), Volume: 2.0},
		{Time: at(0), Volume: 0.0},
		{Time: at(10), Volume: 1.0},
	})

	tests := []struct {
		name     string
		ts       time.Time
		expected *float64
	}{
		{name: "exact match", ts: at(10), expected: ml(1.0)},
		{name: "before first sample", ts: at(-30), expected: ml(0.0)},
		{name: "after last sample", ts: at(99), expected: ml(2.0)},
		{name: "nearest later sample", ts: at(16), expected: ml(2.0)},
		{name: "nearest earlier sample", ts: at(13), expected: ml(1.0)},
		{name: "tie prefers earlier sample", ts: at(15), expected: ml(1.0)},
		{name: "zero timestamp", ts: time.Time{}, expected: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := trace.VolumeAt(tt.ts)
			switch {
			case tt.expected == nil && got != nil:
				t.Fatalf("expected nil, got %v", *got)
			case tt.expected != nil && got == nil:
				t.Fatalf("expected %v, got nil", *tt.expected)
			case tt.expected != nil && *got != *tt.expected:
				t.Errorf("expected %v, got %v", *tt.expected, *got)
			}
		})
	}
}

func TestVolumeAtEmptyTrace(t *testing.T) {
	var nilTrace *SensorTrace
	if v := nilTrace.VolumeAt(at(0)); v != nil {
		t.Errorf("nil trace: expected nil, got %v", *v)
	}
	if v := NewSensorTrace(nil).VolumeAt(at(0)); v != nil {
		t.Errorf("empty trace: expected nil, got %v", *v)
	}
}

func TestResolvePhaseVolumes(t *testing.T) {
	// volume climbs 0 -> 100 over t = 0..10
	trace := linearTrace(10, 10, 0)
	phases := ExtractPhases([]LogEvent{
		{Time: at(0), Text: "Phase Load (Issued)(Processing)"},
		{Time: at(10), Text: "End Phase (Issued)(Processing)(Completed)"},
	})
	if len(phases) != 1 || phases[0].Label != "Load" {
		t.Fatalf("expected a single Load phase, got %+v", phases)
	}

	resolved := ResolvePhaseVolumes(phases, trace)
	if phases[0].StartVolume != nil {
		t.Errorf("input phases must not be modified")
	}
	p := resolved[0]
	if !p.HasVolumes() {
		t.Fatalf("expected both volumes to be resolved")
	}
	if *p.StartVolume != 0 || *p.EndVolume != 100 {
		t.Errorf("expected 0..100, got %v..%v", *p.StartVolume, *p.EndVolume)
	}
}

func TestResolvePhaseVolumesKeepsLogVolumesWithoutTrace(t *testing.T) {
	phases := []Phase{{Label: "Wash", StartTime: at(0), EndTime: at(1), StartVolume: ml(3), EndVolume: ml(4)}}
	resolved := ResolvePhaseVolumes(phases, NewSensorTrace(nil))
	if *resolved[0].StartVolume != 3 || *resolved[0].EndVolume != 4 {
		t.Errorf("expected log volumes to be kept, got %+v", resolved[0])
	}
}

func TestWindow(t *testing.T) {
	trace := linearTrace(10, 1, 0)

	if got := len(trace.Window(2, 5)); got != 4 {
		t.Errorf("expected 4 samples in [2,5], got %d", got)
	}
	if got := len(trace.Window(5, 2)); got != 0 {
		t.Errorf("expected empty window for inverted bounds, got %d", got)
	}
	if got := len(trace.Window(20, 30)); got != 0 {
		t.Errorf("expected empty window beyond trace, got %d", got)
	}
}
