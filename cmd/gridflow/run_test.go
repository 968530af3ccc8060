package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jgoulah/gridflow/internal/config"
)

func TestApplyRunFlags(t *testing.T) {
	defer func() { runOutDir, runXLSX, runMetricsFile = "", "", "" }()

	cfg := &config.Config{Input: "from-config.csv"}
	applyRunFlags(cfg, nil)
	assert.Equal(t, "from-config.csv", cfg.GetInput())
	assert.Equal(t, "cleaned_measurements.csv", cfg.GetCleanPath())

	runOutDir, runXLSX, runMetricsFile = "out", "report.xlsx", "gridflow.prom"
	applyRunFlags(cfg, []string{"cli.csv"})
	assert.Equal(t, "cli.csv", cfg.GetInput())
	assert.Equal(t, "out/cleaned_measurements.csv", cfg.GetCleanPath())
	assert.Equal(t, "out/report.xlsx", cfg.GetXLSXPath())
	assert.Equal(t, "gridflow.prom", cfg.MetricsFile)
}

func TestFormatFailures(t *testing.T) {
	failures := map[string]int{"grid_feedin": 1200, "date": 3}
	assert.Equal(t, 1203, totalFailures(failures))
	assert.Equal(t, "date: 3, grid_feedin: 1,200", formatFailures(failures))
	assert.Equal(t, "", formatFailures(nil))
}
