// Package plot assembles plotly-compatible figure descriptions for
// chromatograms and filtration flux series. It owns the presentation
// contract: channel labels, colours and axis layout.
package plot

// chromatogramLabels maps chromatogram channel keys to axis titles.
var chromatogramLabels = map[string]string{
	"uv_1_280":           "UV 280 nm (mAU)",
	"uv_2_0":             "UV 2.0 (mAU)",
	"uv_3_0":             "UV 3.0 (mAU)",
	"cond":               "Conductivity (mS/cm)",
	"conc_b":             "Concentration B (%)",
	"pH":                 "pH",
	"system_flow":        "System Flow (mL/min)",
	"system_linear_flow": "System Linear Flow (cm/h)",
	"system_pressure":    "System Pressure (bar)",
	"cond_temp":          "Conductivity Temp (°C)",
	"sample_flow":        "Sample Flow (mL/min)",
	"sample_linear_flow": "Sample Linear Flow (cm/h)",
	"sample_pressure":    "Sample Pressure (bar)",
	"preC_pressure":      "Pre-column Pressure (bar)",
	"deltaC_pressure":    "Delta Column Pressure (bar)",
	"postC_pressure":     "Post-column Pressure (bar)",
}

// fluxLabels maps flux series columns to axis titles.
var fluxLabels = map[string]string{
	"process_time":       "Time (hours)",
	"load_density":       "Load Density (g/m²)",
	"cumulative_weight":  "Volume (mL)",
	"flow_rate":          "Flow Rate (L/hr)",
	"flow_rate_ml_min":   "Flow Rate (mL/min)",
	"flux":               "Flux (L/m²/hr)",
	"mass_flux":          "Mass Flux (g/m²/hr)",
	"flux_decay_pct":     "Flux Decay (%)",
	"flow_rate_smoothed": "Smoothed Flow Rate (L/hr)",
}

// palette is the colour cycle for chromatogram traces.
var palette = []string{
	"#1f77b4", "#ff7f0e", "#2ca02c", "#d62728",
	"#9467bd", "#8c564b", "#e377c2", "#7f7f7f",
	"#bcbd22", "#17becf",
}

// fluxPalette is the colour cycle for flux series traces.
var fluxPalette = []string{"blue", "red", "green", "orange", "purple", "brown", "pink", "gray"}

// AxisLabel returns the human readable title for a channel or series key,
// or the key itself when it is unknown.
func AxisLabel(key string) string {
	if label, ok := chromatogramLabels[key]; ok {
		return label
	}
	if label, ok := fluxLabels[key]; ok {
		return label
	}
	return key
}

// ChromatogramChannels returns every known chromatogram channel key.
func ChromatogramChannels() []string {
	return []string{
		"uv_1_280", "uv_2_0", "uv_3_0", "cond", "conc_b", "pH",
		"system_flow", "system_linear_flow", "system_pressure", "cond_temp",
		"sample_flow", "sample_linear_flow", "sample_pressure",
		"preC_pressure", "deltaC_pressure", "postC_pressure",
	}
}

// Color returns the fixed colour of the i-th trace.
func Color(i int) string {
	if i < 0 {
		i = -i
	}
	return palette[i%len(palette)]
}

func fluxColor(i int) string {
	return fluxPalette[i%len(fluxPalette)]
}
