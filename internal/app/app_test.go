package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chrissnell/chromatrace/internal/analysis"
	"github.com/chrissnell/chromatrace/pkg/config"
)

func TestDefaultsFromValidatedConfig(t *testing.T) {
	cfg := &config.ConfigData{Database: config.DatabaseData{ConnectionString: "postgres://localhost/results"}}
	cfg.Analysis.SmoothingSeconds = 30
	require.NoError(t, cfg.Validate())

	got := Defaults(cfg.Analysis)
	want := analysis.DefaultDefaults()
	want.SmoothingSeconds = 30
	assert.Equal(t, want, got)
}
