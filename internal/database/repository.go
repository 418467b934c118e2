package database

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"github.com/chrissnell/chromatrace/internal/analysis"
	"github.com/chrissnell/chromatrace/internal/chrom"
	"github.com/chrissnell/chromatrace/internal/filtration"
)

// Repository reads runs and experiments for the analysis service.
type Repository struct {
	db *gorm.DB
}

var _ analysis.Source = (*Repository)(nil)

// NewRepository wraps an open gorm connection.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FetchSensorTrace returns the chromatogram of a run. Rows without a
// timestamp or volume are skipped.
func (r *Repository) FetchSensorTrace(ctx context.Context, runID string) (*chrom.SensorTrace, error) {
	var rows []AktaChromatogram
	if err := r.db.WithContext(ctx).
		Where("result_id = ?", runID).
		Order("date_time").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("error querying chromatogram of run %s: %w", runID, err)
	}

	samples := make([]chrom.Sample, 0, len(rows))
	for _, row := range rows {
		if row.DateTime == nil || row.ML == nil {
			continue
		}
		samples = append(samples, chrom.Sample{
			Time:     *row.DateTime,
			Volume:   *row.ML,
			Channels: row.channels(),
		})
	}
	return chrom.NewSensorTrace(samples), nil
}

// FetchLogEvents returns the run log of a run in time order.
func (r *Repository) FetchLogEvents(ctx context.Context, runID string) ([]chrom.LogEvent, error) {
	var rows []AktaRunLog
	if err := r.db.WithContext(ctx).
		Where("result_id = ?", runID).
		Order("date_time").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("error querying run log of run %s: %w", runID, err)
	}

	events := make([]chrom.LogEvent, 0, len(rows))
	for _, row := range rows {
		if row.DateTime == nil {
			continue
		}
		events = append(events, chrom.LogEvent{
			Time:   *row.DateTime,
			Volume: row.ML,
			Text:   row.LogText,
		})
	}
	return events, nil
}

// FetchFractionEvents returns the fraction collector events of a run.
func (r *Repository) FetchFractionEvents(ctx context.Context, runID string) ([]chrom.FractionEvent, error) {
	var rows []AktaFraction
	if err := r.db.WithContext(ctx).
		Where("result_id = ?", runID).
		Order("date_time").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("error querying fractions of run %s: %w", runID, err)
	}

	events := make([]chrom.FractionEvent, 0, len(rows))
	for _, row := range rows {
		if row.DateTime == nil {
			continue
		}
		events = append(events, chrom.FractionEvent{Time: *row.DateTime, Label: row.Fraction})
	}
	return events, nil
}

// FetchWeightTrace returns the filtrate balance readings of one unit step.
// Missing values become NaN.
func (r *Repository) FetchWeightTrace(ctx context.Context, experimentID string, step filtration.UnitStep) ([]filtration.WeightPoint, error) {
	var rows []VFTimeSeriesData
	if err := r.db.WithContext(ctx).
		Where("result_id = ? AND unit_step = ?", experimentID, int(step)).
		Order("process_time").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("error querying time series of experiment %s step %d: %w", experimentID, step, err)
	}

	points := make([]filtration.WeightPoint, 0, len(rows))
	for _, row := range rows {
		points = append(points, filtration.WeightPoint{
			Time:   valueOrNaN(row.ProcessTime),
			Weight: valueOrNaN(row.WIR2700),
		})
	}
	return points, nil
}

// FetchRunInfo returns the header of a run, or analysis.ErrRunNotFound.
func (r *Repository) FetchRunInfo(ctx context.Context, runID string) (chrom.RunInfo, error) {
	var row AktaResult
	err := r.db.WithContext(ctx).Where("result_id = ?", runID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return chrom.RunInfo{}, fmt.Errorf("run %s: %w", runID, analysis.ErrRunNotFound)
	}
	if err != nil {
		return chrom.RunInfo{}, fmt.Errorf("error querying run %s: %w", runID, err)
	}
	return row.info(), nil
}

// FetchFiltrationInfo returns an experiment's metadata, or
// analysis.ErrExperimentNotFound. An unparseable filter type yields a zero
// filter area.
func (r *Repository) FetchFiltrationInfo(ctx context.Context, experimentID string) (filtration.Experiment, error) {
	var row VFMetadata
	err := r.db.WithContext(ctx).Where("result_id = ?", experimentID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return filtration.Experiment{}, fmt.Errorf("experiment %s: %w", experimentID, analysis.ErrExperimentNotFound)
	}
	if err != nil {
		return filtration.Experiment{}, fmt.Errorf("error querying experiment %s: %w", experimentID, err)
	}

	area, err := strconv.ParseFloat(strings.TrimSpace(row.FilterType), 64)
	if err != nil || math.IsNaN(area) {
		area = 0
	}
	return filtration.Experiment{
		ID:                 row.ResultID,
		Name:               row.ExperimentName,
		FilterArea:         area,
		LoadConcentration:  valueOrZero(row.LoadConcentration),
		LoadVolume:         valueOrZero(row.LoadVolume),
		FinalVolume:        valueOrZero(row.FinalVolume),
		FinalConcentration: valueOrZero(row.FinalConcentration),
	}, nil
}

// SaveMassBalance stores the derived mass balance on the experiment row.
func (r *Repository) SaveMassBalance(ctx context.Context, experimentID string, mb filtration.MassBalance) error {
	res := r.db.WithContext(ctx).Model(&VFMetadata{}).
		Where("result_id = ?", experimentID).
		Updates(map[string]any{
			"load_mass":        mb.LoadMass,
			"product_mass":     mb.ProductMass,
			"yield_percentage": mb.YieldPct,
		})
	if res.Error != nil {
		return fmt.Errorf("error updating mass balance of experiment %s: %w", experimentID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("experiment %s: %w", experimentID, analysis.ErrExperimentNotFound)
	}
	return nil
}

func valueOrNaN(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}

func valueOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
