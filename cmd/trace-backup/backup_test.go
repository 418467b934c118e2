package main

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertStatement(t *testing.T) {
	ts := time.Date(2024, 3, 5, 10, 30, 0, 0, time.UTC)
	got := insertStatement("akta_run_log", map[string]any{
		"result_id": "R-102",
		"ml":        12.5,
		"log_text":  "Block Sample Application (Issued) O'Neil",
		"date_time": ts,
		"id":        int64(7),
		"note":      nil,
	})
	assert.Equal(t,
		`INSERT INTO akta_run_log ("date_time", "id", "log_text", "ml", "note", "result_id") VALUES ('2024-03-05T10:30:00Z', 7, 'Block Sample Application (Issued) O''Neil', 12.5, NULL, 'R-102');`,
		got)
}

func TestSQLLiteralFloats(t *testing.T) {
	tests := []struct {
		name string
		val  any
		want string
	}{
		{name: "finite", val: 12.5, want: "12.5"},
		{name: "float32", val: float32(0.5), want: "0.5"},
		{name: "NaN", val: math.NaN(), want: "'NaN'"},
		{name: "positive infinity", val: math.Inf(1), want: "'Infinity'"},
		{name: "negative infinity", val: math.Inf(-1), want: "'-Infinity'"},
		{name: "float32 NaN", val: float32(math.NaN()), want: "'NaN'"},
		{name: "float32 infinity", val: float32(math.Inf(-1)), want: "'-Infinity'"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sqlLiteral(tt.val))
		})
	}

	got := insertStatement("vf_weight", map[string]any{"weight": math.NaN(), "id": int64(1)})
	assert.Equal(t, `INSERT INTO vf_weight ("id", "weight") VALUES (1, 'NaN');`, got)
}

func TestCSVRecord(t *testing.T) {
	rec := csvRecord([]string{"result_id", "ml", "pH"}, map[string]any{"result_id": "R-1", "ml": 1.25, "pH": nil})
	assert.Equal(t, []string{"R-1", "1.25", ""}, rec)
}

func TestSelectTables(t *testing.T) {
	got, err := selectTables(" akta_fraction, vf_metadata ,")
	require.NoError(t, err)
	assert.Equal(t, []string{"akta_fraction", "vf_metadata"}, got)

	_, err = selectTables("weather")
	assert.Error(t, err)

	_, err = selectTables("")
	assert.Error(t, err)
}

func TestBuildQueries(t *testing.T) {
	q, c := buildQueries("akta_fraction", "result_id = 'R-1'")
	assert.Equal(t, "SELECT * FROM akta_fraction WHERE result_id = 'R-1' ORDER BY 1", q)
	assert.Equal(t, "SELECT COUNT(*) FROM akta_fraction WHERE result_id = 'R-1'", c)
}
