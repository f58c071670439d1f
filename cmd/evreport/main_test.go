package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evdash/internal/shared/testutil"
	"evdash/pkg/contracts"
	"evdash/pkg/contracts/domain"
)

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRun_JSON(t *testing.T) {
	path := testutil.WriteRebateWorkbook(t, testutil.SampleRebateRows())

	code, stdout, stderr := runCLI(t, "-in", path)
	require.Equal(t, exitOK, code, stderr)

	var report domain.DashboardReport
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))
	assert.Equal(t, []string{"BEV", "PHEV"}, report.Categories)
	assert.Equal(t, []domain.ScaledEstimate{{PostalCode: "02118", RawCount: 1, EstimatedTotal: 3}}, report.Estimates)
	assert.Contains(t, stderr, "pipeline completed", "logs go to stderr")
	assert.Contains(t, stderr, `"trace_id"`, "every run carries a trace id")
}

func TestRun_TextWithOverrides(t *testing.T) {
	path := testutil.WriteRebateWorkbook(t, testutil.SampleRebateRows())

	code, stdout, stderr := runCLI(t, "-in", path, "-format", "text", "-category", "PHEV", "-rate", "0.5")
	require.Equal(t, exitOK, code, stderr)
	assert.Contains(t, stdout, "PHEV at 50% participation")
	assert.Regexp(t, `01608\s+1\s+2`, stdout)
}

func TestRun_WritesExports(t *testing.T) {
	path := testutil.WriteRebateWorkbook(t, testutil.SampleRebateRows())
	out := t.TempDir()

	code, stdout, stderr := runCLI(t, "-in", path, "-format", "none",
		"-xlsx", filepath.Join(out, "dashboard.xlsx"),
		"-csv", filepath.Join(out, "csv"))
	require.Equal(t, exitOK, code, stderr)
	assert.Empty(t, stdout)

	assert.FileExists(t, filepath.Join(out, "dashboard.xlsx"))
	for _, name := range []string{"counties", "postal-codes", "estimates", "totals"} {
		assert.FileExists(t, filepath.Join(out, "csv", name+".csv"))
	}
}

func TestRun_Errors(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantCode int
		wantErr  string
	}{
		{"unknown flag", []string{"-bogus"}, exitUsage, "flag provided but not defined"},
		{"unknown format", []string{"-format", "yaml"}, exitUsage, "unknown format"},
		{"rate out of range", []string{"-in", "x.xlsx", "-rate", "1.5"}, exitUsage, "participation rate"},
		{"missing workbook", []string{"-in", filepath.Join("testdata", "missing.xlsx")}, exitError, "evreport:"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, stderr := runCLI(t, tt.args...)
			assert.Equal(t, tt.wantCode, code)
			assert.Contains(t, stderr, tt.wantErr)
		})
	}
}

func TestRun_Version(t *testing.T) {
	code, stdout, _ := runCLI(t, "-version")
	assert.Equal(t, exitOK, code)
	assert.Contains(t, stdout, contracts.Version)
}
