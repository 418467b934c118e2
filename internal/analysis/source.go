package analysis

import (
	"context"

	"github.com/chrissnell/chromatrace/internal/chrom"
	"github.com/chrissnell/chromatrace/internal/filtration"
)

// Source is the read side of the results store. Collection methods return
// empty results, not errors, when nothing is recorded.
type Source interface {
	FetchSensorTrace(ctx context.Context, runID string) (*chrom.SensorTrace, error)
	FetchLogEvents(ctx context.Context, runID string) ([]chrom.LogEvent, error)
	FetchFractionEvents(ctx context.Context, runID string) ([]chrom.FractionEvent, error)
	FetchWeightTrace(ctx context.Context, experimentID string, step filtration.UnitStep) ([]filtration.WeightPoint, error)
	FetchRunInfo(ctx context.Context, runID string) (chrom.RunInfo, error)
	FetchFiltrationInfo(ctx context.Context, experimentID string) (filtration.Experiment, error)
}

// MassBalanceWriter is implemented by sources that can store a computed
// mass balance.
type MassBalanceWriter interface {
	SaveMassBalance(ctx context.Context, experimentID string, mb filtration.MassBalance) error
}

// Cache stores derived results. Get reports whether key was found and
// decoded into dst.
type Cache interface {
	Get(ctx context.Context, kind, key string, dst any) (bool, error)
	Set(ctx context.Context, kind, key string, value any) error
}
