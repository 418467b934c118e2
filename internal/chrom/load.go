package chrom

// LoadSummary describes how much material was loaded during the reference
// phase of a run.
type LoadSummary struct {
	Phase       string  `json:"phase"`
	StartVolume float64 `json:"start_ml"`
	EndVolume   float64 `json:"end_ml"`
	LoadVolume  float64 `json:"load_volume"`
	Titer       float64 `json:"titer"`
	LoadMass    float64 `json:"load_mass"`
}

// FindPhase returns the first phase with the given label that has volumes.
func FindPhase(phases []Phase, label string) (Phase, bool) {
	for _, p := range phases {
		if p.Label == label && p.HasVolumes() {
			return p, true
		}
	}
	return Phase{}, false
}

// ZeroOffset returns the start volume of the first phase named label. The
// boolean is false if no such phase has a start volume.
func ZeroOffset(phases []Phase, label string) (float64, bool) {
	for _, p := range phases {
		if p.Label == label && p.StartVolume != nil {
			return *p.StartVolume, true
		}
	}
	return 0, false
}

// SummarizeLoad computes the load volume and mass of the reference phase.
// Start and end are reported relative to offset. The boolean is false when
// the run has no such phase.
func SummarizeLoad(phases []Phase, label string, titer, offset float64) (LoadSummary, bool) {
	p, ok := FindPhase(phases, label)
	if !ok {
		return LoadSummary{}, false
	}
	volume := round(*p.EndVolume - *p.StartVolume)
	return LoadSummary{
		Phase:       p.Label,
		StartVolume: round(*p.StartVolume - offset),
		EndVolume:   round(*p.EndVolume - offset),
		LoadVolume:  volume,
		Titer:       titer,
		LoadMass:    round(titer * volume),
	}, true
}
