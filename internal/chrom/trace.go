package chrom

import (
	"sort"
	"time"
)

// SensorTrace is a chromatogram indexed twice: by time for timestamp lookups
// and by volume for windowed integration. It is immutable once built.
type SensorTrace struct {
	byTime   []Sample
	byVolume []Sample
}

// NewSensorTrace copies samples and sorts them. The caller's slice is not
// modified.
func NewSensorTrace(samples []Sample) *SensorTrace {
	byTime := make([]Sample, len(samples))
	copy(byTime, samples)
	sort.SliceStable(byTime, func(i, j int) bool {
		return byTime[i].Time.Before(byTime[j].Time)
	})

	byVolume := make([]Sample, len(byTime))
	copy(byVolume, byTime)
	sort.SliceStable(byVolume, func(i, j int) bool {
		return byVolume[i].Volume < byVolume[j].Volume
	})

	return &SensorTrace{byTime: byTime, byVolume: byVolume}
}

// Len returns the number of samples.
func (t *SensorTrace) Len() int {
	if t == nil {
		return 0
	}
	return len(t.byTime)
}

// Samples returns the samples in time order.
func (t *SensorTrace) Samples() []Sample {
	if t == nil {
		return nil
	}
	return t.byTime
}

// SamplesByVolume returns the samples in volume order.
func (t *SensorTrace) SamplesByVolume() []Sample {
	if t == nil {
		return nil
	}
	return t.byVolume
}

// Channels returns the sorted set of channel names present in any sample.
func (t *SensorTrace) Channels() []string {
	seen := make(map[string]struct{})
	for _, s := range t.Samples() {
		for name := range s.Channels {
			seen[name] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasChannel reports whether at least one sample carries the channel.
func (t *SensorTrace) HasChannel(name string) bool {
	for _, s := range t.Samples() {
		if _, ok := s.Channels[name]; ok {
			return true
		}
	}
	return false
}

// VolumeRange returns the smallest and largest volume in the trace.
func (t *SensorTrace) VolumeRange() (lo, hi float64, ok bool) {
	if t.Len() == 0 {
		return 0, 0, false
	}
	return t.byVolume[0].Volume, t.byVolume[len(t.byVolume)-1].Volume, true
}

// Window returns the samples whose volume lies in [lo, hi], in volume order.
func (t *SensorTrace) Window(lo, hi float64) []Sample {
	if t.Len() == 0 || hi < lo {
		return nil
	}
	start := sort.Search(len(t.byVolume), func(i int) bool {
		return t.byVolume[i].Volume >= lo
	})
	end := sort.Search(len(t.byVolume), func(i int) bool {
		return t.byVolume[i].Volume > hi
	})
	if start >= end {
		return nil
	}
	return t.byVolume[start:end]
}

// VolumeAt maps a timestamp onto the volume axis using the sample nearest in
// time. On an exact tie the earlier sample wins. A zero timestamp or an empty
// trace yields nil.
func (t *SensorTrace) VolumeAt(ts time.Time) *float64 {
	if t.Len() == 0 || ts.IsZero() {
		return nil
	}
	idx := t.nearest(ts)
	return float64Ptr(t.byTime[idx].Volume)
}

// VolumesAt maps each timestamp with VolumeAt.
func (t *SensorTrace) VolumesAt(times []time.Time) []*float64 {
	out := make([]*float64, len(times))
	for i, ts := range times {
		out[i] = t.VolumeAt(ts)
	}
	return out
}

func (t *SensorTrace) nearest(ts time.Time) int {
	n := len(t.byTime)
	i := sort.Search(n, func(i int) bool {
		return !t.byTime[i].Time.Before(ts)
	})
	switch {
	case i == 0:
		return 0
	case i == n:
		return n - 1
	}
	before := ts.Sub(t.byTime[i-1].Time)
	after := t.byTime[i].Time.Sub(ts)
	if after < before {
		return i
	}
	return i - 1
}

// ResolvePhaseVolumes places phase boundaries on the trace's volume axis.
// Volumes recorded in the run log are kept only where the trace cannot
// supply one. The input slice is not modified.
func ResolvePhaseVolumes(phases []Phase, trace *SensorTrace) []Phase {
	out := make([]Phase, len(phases))
	for i, p := range phases {
		if v := trace.VolumeAt(p.StartTime); v != nil {
			p.StartVolume = v
		}
		if v := trace.VolumeAt(p.EndTime); v != nil {
			p.EndVolume = v
		}
		out[i] = p
	}
	return out
}
