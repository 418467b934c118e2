package filtration

import "gonum.org/v1/gonum/floats/scalar"

// MassBalance summarises product recovery across a filtration.
type MassBalance struct {
	LoadMass    float64 `json:"load_mass"`
	ProductMass float64 `json:"product_mass"`
	YieldPct    float64 `json:"yield_percentage"`
}

// ComputeMassBalance derives load mass, product mass and yield from the
// load and pool volumes and concentrations. A zero load mass is treated as
// one so the yield stays finite.
func ComputeMassBalance(loadConcentration, loadVolume, finalVolume, finalConcentration float64) MassBalance {
	load := loadConcentration * loadVolume
	product := finalVolume * finalConcentration

	denominator := load
	if denominator == 0 {
		denominator = 1
	}

	return MassBalance{
		LoadMass:    scalar.RoundEven(load, 2),
		ProductMass: scalar.RoundEven(product, 2),
		YieldPct:    scalar.RoundEven(product/denominator*100, 2),
	}
}

// Experiment is the stored description of one viral filtration run.
type Experiment struct {
	ID                 string  `json:"result_id"`
	Name               string  `json:"experiment_name"`
	FilterArea         float64 `json:"filter_area"`
	LoadConcentration  float64 `json:"load_concentration"`
	LoadVolume         float64 `json:"load_volume"`
	FinalVolume        float64 `json:"final_volume"`
	FinalConcentration float64 `json:"final_concentration"`
}

// MassBalance computes the mass balance of the experiment.
func (e Experiment) MassBalance() MassBalance {
	return ComputeMassBalance(e.LoadConcentration, e.LoadVolume, e.FinalVolume, e.FinalConcentration)
}
