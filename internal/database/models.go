package database

import (
	"time"

	"github.com/chrissnell/chromatrace/internal/chrom"
)

// AktaResult is the header row of one chromatography run.
type AktaResult struct {
	ResultID     string    `gorm:"primaryKey;column:result_id"`
	ReportName   string    `gorm:"column:report_name"`
	ColumnVolume float64   `gorm:"column:column_volume"`
	ColumnName   string    `gorm:"column:column_name"`
	Method       string    `gorm:"column:method"`
	Date         time.Time `gorm:"column:date"`
}

// TableName specifies the table name for AktaResult
func (AktaResult) TableName() string {
	return "akta_result"
}

func (r AktaResult) info() chrom.RunInfo {
	return chrom.RunInfo{
		ResultID:     r.ResultID,
		ReportName:   r.ReportName,
		Method:       r.Method,
		ColumnName:   r.ColumnName,
		ColumnVolume: r.ColumnVolume,
		Date:         r.Date,
	}
}

// AktaChromatogram is one sensor row of a run. Every channel may be null.
type AktaChromatogram struct {
	ID               uint       `gorm:"primaryKey;autoIncrement;column:id"`
	ResultID         string     `gorm:"column:result_id;index"`
	ML               *float64   `gorm:"column:ml"`
	DateTime         *time.Time `gorm:"column:date_time"`
	UV1280           *float64   `gorm:"column:uv_1_280"`
	UV20             *float64   `gorm:"column:uv_2_0"`
	UV30             *float64   `gorm:"column:uv_3_0"`
	Cond             *float64   `gorm:"column:cond"`
	ConcB            *float64   `gorm:"column:conc_b"`
	PH               *float64   `gorm:"column:pH"`
	SystemFlow       *float64   `gorm:"column:system_flow"`
	SystemLinearFlow *float64   `gorm:"column:system_linear_flow"`
	SystemPressure   *float64   `gorm:"column:system_pressure"`
	CondTemp         *float64   `gorm:"column:cond_temp"`
	SampleFlow       *float64   `gorm:"column:sample_flow"`
	SampleLinearFlow *float64   `gorm:"column:sample_linear_flow"`
	SamplePressure   *float64   `gorm:"column:sample_pressure"`
	PreCPressure     *float64   `gorm:"column:preC_pressure"`
	DeltaCPressure   *float64   `gorm:"column:deltaC_pressure"`
	PostCPressure    *float64   `gorm:"column:postC_pressure"`
}

// TableName specifies the table name for AktaChromatogram
func (AktaChromatogram) TableName() string {
	return "akta_chromatogram"
}

// channels maps the row's readings onto the chromatogram channel keys.
func (c AktaChromatogram) channels() map[string]*float64 {
	return map[string]*float64{
		"uv_1_280":           c.UV1280,
		"uv_2_0":             c.UV20,
		"uv_3_0":             c.UV30,
		"cond":               c.Cond,
		"conc_b":             c.ConcB,
		"pH":                 c.PH,
		"system_flow":        c.SystemFlow,
		"system_linear_flow": c.SystemLinearFlow,
		"system_pressure":    c.SystemPressure,
		"cond_temp":          c.CondTemp,
		"sample_flow":        c.SampleFlow,
		"sample_linear_flow": c.SampleLinearFlow,
		"sample_pressure":    c.SamplePressure,
		"preC_pressure":      c.PreCPressure,
		"deltaC_pressure":    c.DeltaCPressure,
		"postC_pressure":     c.PostCPressure,
	}
}

// AktaFraction records the fraction collector switching to a new tube.
type AktaFraction struct {
	ID       uint       `gorm:"primaryKey;autoIncrement;column:id"`
	ResultID string     `gorm:"column:result_id;index"`
	DateTime *time.Time `gorm:"column:date_time"`
	Fraction string     `gorm:"column:fraction"`
}

// TableName specifies the table name for AktaFraction
func (AktaFraction) TableName() string {
	return "akta_fraction"
}

// AktaRunLog is one line of the instrument's run log.
type AktaRunLog struct {
	ID       uint       `gorm:"primaryKey;autoIncrement;column:id"`
	ResultID string     `gorm:"column:result_id;index"`
	DateTime *time.Time `gorm:"column:date_time"`
	ML       *float64   `gorm:"column:ml"`
	LogText  string     `gorm:"column:log_text"`
}

// TableName specifies the table name for AktaRunLog
func (AktaRunLog) TableName() string {
	return "akta_run_log"
}

// VFMetadata describes a viral filtration experiment. The filter area in m²
// is stored in FilterType.
type VFMetadata struct {
	ResultID           string    `gorm:"primaryKey;column:result_id"`
	ExperimentName     string    `gorm:"column:experiment_name"`
	FilterType         string    `gorm:"column:filter_type"`
	LoadConcentration  *float64  `gorm:"column:load_concentration"`
	LoadVolume         *float64  `gorm:"column:load_volume"`
	FinalVolume        *float64  `gorm:"column:final_volume"`
	FinalConcentration *float64  `gorm:"column:final_concentration"`
	LoadMass           *float64  `gorm:"column:load_mass"`
	ProductMass        *float64  `gorm:"column:product_mass"`
	YieldPercentage    *float64  `gorm:"column:yield_percentage"`
	CreatedAt          time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName specifies the table name for VFMetadata
func (VFMetadata) TableName() string {
	return "vf_metadata"
}

// VFTimeSeriesData is one balance and pressure reading of a filtration
// unit step. ProcessTime is in hours and WIR2700 is the filtrate weight in g.
type VFTimeSeriesData struct {
	ID          uint     `gorm:"primaryKey;autoIncrement;column:id"`
	ResultID    string   `gorm:"column:result_id;index"`
	UnitStep    int      `gorm:"column:unit_step;index"`
	ProcessTime *float64 `gorm:"column:process_time"`
	WIR2700     *float64 `gorm:"column:wir2700"`
	PIR2700     *float64 `gorm:"column:pir2700"`
}

// TableName specifies the table name for VFTimeSeriesData
func (VFTimeSeriesData) TableName() string {
	return "vf_time_series_data"
}

// AllModels lists every table owned by this package, in migration order.
func AllModels() []any {
	return []any{
		&AktaResult{},
		&AktaChromatogram{},
		&AktaFraction{},
		&AktaRunLog{},
		&VFMetadata{},
		&VFTimeSeriesData{},
	}
}
