package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chrissnell/chromatrace/internal/database"
	"github.com/chrissnell/chromatrace/internal/log"
)

type BackupFormat string

const (
	FormatCSV  BackupFormat = "csv"
	FormatJSON BackupFormat = "json"
	FormatSQL  BackupFormat = "sql"
)

type Config struct {
	DSN    string
	Tables []string
	Format BackupFormat
	Output string
	Where  string
}

// resultTables are the tables written by the instrument export jobs.
func resultTables() []string {
	return []string{
		database.AktaResult{}.TableName(),
		database.AktaChromatogram{}.TableName(),
		database.AktaFraction{}.TableName(),
		database.AktaRunLog{}.TableName(),
		database.VFMetadata{}.TableName(),
		database.VFTimeSeriesData{}.TableName(),
	}
}

func main() {
	var cfg Config

	// Parse command line flags
	flag.StringVar(&cfg.DSN, "dsn", os.Getenv("CHROMATRACE_DATABASE_DSN"), "PostgreSQL connection string (default: $CHROMATRACE_DATABASE_DSN)")
	tables := flag.String("tables", strings.Join(resultTables(), ","), "Comma separated list of tables to back up")
	formatStr := flag.String("format", "csv", "Backup format: csv, json, or sql")
	flag.StringVar(&cfg.Output, "output", "chromatrace_backup", "Output directory")
	flag.StringVar(&cfg.Where, "where", "", "Optional WHERE clause applied to every table (e.g., \"result_id = 'R-102'\")")
	debug := flag.Bool("debug", false, "Turn on debugging output")
	flag.Parse()

	if err := log.Init(*debug); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Validate format
	switch BackupFormat(*formatStr) {
	case FormatCSV, FormatJSON, FormatSQL:
		cfg.Format = BackupFormat(*formatStr)
	default:
		log.Fatalf("Invalid format: %s. Must be csv, json, or sql", *formatStr)
	}

	var err error
	if cfg.Tables, err = selectTables(*tables); err != nil {
		log.Fatalf("%v", err)
	}
	if cfg.DSN == "" {
		log.Fatalf("-dsn or CHROMATRACE_DATABASE_DSN is required")
	}

	// Connect to database
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	if err := os.MkdirAll(cfg.Output, 0o755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}

	for _, table := range cfg.Tables {
		query, countQuery := buildQueries(table, cfg.Where)

		// Get total count for progress tracking
		var totalCount int64
		if err := pool.QueryRow(ctx, countQuery).Scan(&totalCount); err != nil {
			log.Fatalf("Failed to count %s: %v", table, err)
		}
		log.Infow("backing up table", "table", table, "records", totalCount)

		filename := filepath.Join(cfg.Output, table+"."+string(cfg.Format))
		b := &backup{table: table, total: totalCount}

		switch cfg.Format {
		case FormatCSV:
			err = b.toCSV(ctx, pool, query, filename)
		case FormatJSON:
			err = b.toJSON(ctx, pool, query, filename)
		case FormatSQL:
			err = b.toSQL(ctx, pool, query, filename)
		}
		if err != nil {
			log.Fatalf("Backup of %s failed: %v", table, err)
		}
	}

	log.Info("backup completed successfully")
}

// selectTables checks a comma separated table list against the known tables.
func selectTables(list string) ([]string, error) {
	known := map[string]bool{}
	for _, t := range resultTables() {
		known[t] = true
	}

	var out []string
	for _, t := range strings.Split(list, ",") {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if !known[t] {
			return nil, fmt.Errorf("unknown table %q", t)
		}
		out = append(out, t)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no tables selected")
	}
	return out, nil
}

func buildQueries(table, where string) (query, countQuery string) {
	query = "SELECT * FROM " + table
	countQuery = "SELECT COUNT(*) FROM " + table
	if where != "" {
		query += " WHERE " + where
		countQuery += " WHERE " + where
	}
	query += " ORDER BY 1"
	return query, countQuery
}
