// Command trace-export writes the annotated fraction table of a run or the
// flux series of a filtration step as CSV.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"io"
	"os"

	_ "github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/chrissnell/chromatrace/internal/analysis"
	"github.com/chrissnell/chromatrace/internal/database"
	"github.com/chrissnell/chromatrace/internal/filtration"
	"github.com/chrissnell/chromatrace/internal/log"
)

func main() {
	var (
		dsn        = flag.String("dsn", os.Getenv("CHROMATRACE_DATABASE_DSN"), "PostgreSQL connection string (default: $CHROMATRACE_DATABASE_DSN)")
		mode       = flag.String("mode", "fractions", "What to export: fractions or flux")
		runID      = flag.String("run", "", "Chromatography result id (fractions mode)")
		zero       = flag.Bool("zero", false, "Shift volumes so the sample application phase starts at 0")
		e1         = flag.Float64("e1", 1.0, "Extinction coefficient E1% (fractions mode)")
		pathLength = flag.Float64("path-length", 0.2, "UV path length in cm (fractions mode)")
		experiment = flag.String("experiment", "", "Filtration experiment id (flux mode)")
		step       = flag.Int("step", int(filtration.UnitStepProductFiltration), "Unit step: 1 water flush, 2 buffer flush, 3 product filtration")
		smoothing  = flag.Int("smoothing", 0, "Flow rate smoothing window in rows, below 10 disables smoothing (flux mode)")
		output     = flag.String("output", "-", "Output file, '-' for stdout")
		debug      = flag.Bool("debug", false, "Turn on debugging output")
	)
	flag.Parse()

	if err := log.Init(*debug); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if *dsn == "" {
		log.Fatalf("-dsn or CHROMATRACE_DATABASE_DSN is required")
	}

	// Open through lib/pq and hand the pool to gorm
	sqlDB, err := sql.Open("postgres", *dsn)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer sqlDB.Close()

	db, err := database.CreateConnection(postgres.New(postgres.Config{Conn: sqlDB}))
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	var out io.Writer = os.Stdout
	if *output != "-" {
		f, err := os.Create(*output)
		if err != nil {
			log.Fatalf("Failed to create output file: %v", err)
		}
		defer f.Close()
		out = f
	}

	ctx := context.Background()
	svc := newService(db)

	switch *mode {
	case "fractions":
		if *runID == "" {
			log.Fatalf("-run is required in fractions mode")
		}
		err = exportFractions(ctx, svc, out, analysis.FractionRequest{
			RunID:           *runID,
			E1Percent:       e1,
			PathLength:      pathLength,
			ZeroAtReference: *zero,
		})
	case "flux":
		if *experiment == "" {
			log.Fatalf("-experiment is required in flux mode")
		}
		err = exportFlux(ctx, svc, out, analysis.FluxRequest{
			ExperimentID:     *experiment,
			Step:             filtration.UnitStep(*step),
			SmoothingSeconds: smoothing,
		})
	default:
		log.Fatalf("Invalid mode: %s. Must be fractions or flux", *mode)
	}
	if err != nil {
		log.Fatalf("Export failed: %v", err)
	}
}

func newService(db *gorm.DB) *analysis.Service {
	return analysis.NewService(database.NewRepository(db), nil, analysis.DefaultDefaults(), log.GetSugaredLogger())
}
