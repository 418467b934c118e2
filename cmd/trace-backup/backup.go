package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chrissnell/chromatrace/internal/log"
)

// backup writes one table and reports progress at each percentage point.
type backup struct {
	table        string
	total        int64
	count        int64
	lastProgress int
}

func (b *backup) progress() {
	b.count++
	if b.total > 0 {
		progress := int(b.count * 100 / b.total)
		if progress != b.lastProgress {
			log.Debugf("%s: %d%% (%d/%d records)", b.table, progress, b.count, b.total)
			b.lastProgress = progress
		}
	} else if b.count%10000 == 0 {
		log.Debugf("%s: processed %d records...", b.table, b.count)
	}
}

func (b *backup) done(filename string) {
	log.Infow("exported table", "table", b.table, "records", b.count, "file", filename)
}

func (b *backup) toCSV(ctx context.Context, pool *pgxpool.Pool, query string, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	rows, err := pool.Query(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	// Get column names from the query result
	fieldDescs := rows.FieldDescriptions()
	columns := make([]string, len(fieldDescs))
	for i, fd := range fieldDescs {
		columns[i] = fd.Name
	}

	if err := writer.Write(columns); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}

	b.lastProgress = -1
	for rows.Next() {
		values, err := pgx.RowToMap(rows)
		if err != nil {
			return fmt.Errorf("failed to scan row: %w", err)
		}
		if err := writer.Write(csvRecord(columns, values)); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
		b.progress()
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("row iteration error: %w", err)
	}

	b.done(filename)
	return nil
}

func (b *backup) toJSON(ctx context.Context, pool *pgxpool.Pool, query string, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	// Start JSON array
	if _, err := file.WriteString("[\n"); err != nil {
		return err
	}

	rows, err := pool.Query(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("  ", "  ")

	b.lastProgress = -1
	first := true
	for rows.Next() {
		values, err := pgx.RowToMap(rows)
		if err != nil {
			return fmt.Errorf("failed to scan row: %w", err)
		}

		// Add comma between records
		if !first {
			if _, err := file.WriteString(",\n"); err != nil {
				return err
			}
		}
		first = false

		if _, err := file.WriteString("  "); err != nil {
			return err
		}
		if err := encoder.Encode(values); err != nil {
			return fmt.Errorf("failed to encode record: %w", err)
		}
		b.progress()
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("row iteration error: %w", err)
	}

	// Close JSON array
	if _, err := file.WriteString("\n]"); err != nil {
		return err
	}

	b.done(filename)
	return nil
}

func (b *backup) toSQL(ctx context.Context, pool *pgxpool.Pool, query string, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	// Write header
	fmt.Fprintf(file, "-- %s backup generated on %s\n", b.table, time.Now().Format(time.RFC3339))
	fmt.Fprintf(file, "-- Query: %s\n", query)
	fmt.Fprintln(file, "\nBEGIN;")
	fmt.Fprintln(file)

	rows, err := pool.Query(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	b.lastProgress = -1
	for rows.Next() {
		values, err := pgx.RowToMap(rows)
		if err != nil {
			return fmt.Errorf("failed to scan row: %w", err)
		}
		fmt.Fprintln(file, insertStatement(b.table, values))
		b.progress()
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("row iteration error: %w", err)
	}

	fmt.Fprintln(file, "\nCOMMIT;")

	b.done(filename)
	return nil
}

func csvRecord(columns []string, values map[string]any) []string {
	record := make([]string, len(columns))
	for i, col := range columns {
		if val, ok := values[col]; ok && val != nil {
			switch v := val.(type) {
			case time.Time:
				record[i] = v.Format(time.RFC3339Nano)
			default:
				record[i] = fmt.Sprintf("%v", v)
			}
		}
	}
	return record
}

// insertStatement renders one row with explicit, sorted column names so the
// output is stable and survives column reordering.
func insertStatement(table string, values map[string]any) string {
	cols := make([]string, 0, len(values))
	for col := range values {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	quoted := make([]string, len(cols))
	vals := make([]string, len(cols))
	for i, col := range cols {
		quoted[i] = `"` + col + `"`
		vals[i] = sqlLiteral(values[col])
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s);", table, strings.Join(quoted, ", "), strings.Join(vals, ", "))
}

func sqlLiteral(val any) string {
	switch v := val.(type) {
	case nil:
		return "NULL"
	case string:
		return "'" + strings.ReplaceAll(v, "'", "''") + "'"
	case time.Time:
		return "'" + v.Format(time.RFC3339Nano) + "'"
	case bool:
		return fmt.Sprintf("%t", v)
	case int, int16, int32, int64:
		return fmt.Sprintf("%d", v)
	case float32:
		if lit, ok := nonFiniteLiteral(float64(v)); ok {
			return lit
		}
		return fmt.Sprintf("%v", v)
	case float64:
		if lit, ok := nonFiniteLiteral(v); ok {
			return lit
		}
		return fmt.Sprintf("%v", v)
	default:
		return "'" + strings.ReplaceAll(fmt.Sprintf("%v", v), "'", "''") + "'"
	}
}

// nonFiniteLiteral spells NaN and the infinities the way PostgreSQL reads
// them back into a float column.
func nonFiniteLiteral(f float64) (string, bool) {
	switch {
	case math.IsNaN(f):
		return "'NaN'", true
	case math.IsInf(f, 1):
		return "'Infinity'", true
	case math.IsInf(f, -1):
		return "'-Infinity'", true
	}
	return "", false
}
