package dataprocessing

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	apperrors "evdash/internal/errors"
	"evdash/pkg/contracts/domain"
)

func newTestSheetsSource(t *testing.T, handler http.HandlerFunc) *SheetsSource {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	src, err := NewSheetsSource(context.Background(),
		SheetsConfig{SpreadsheetID: "sheet-123", TTL: time.Minute},
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)
	return src
}

func TestSheetsSource_Load(t *testing.T) {
	var gotPath string
	src := newTestSheetsSource(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"range": "Data!A1:E3",
			"majorDimension": "ROWS",
			"values": [
				["Applicant: County", "Applicant: Postal Code", "Vehicle Category", "Total Amount"],
				["Suffolk", "02118", "BEV", 3500],
				["Worcester", "01608", "PHEV"]
			]
		}`))
	})

	table, err := src.Load(context.Background())
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(gotPath, "/spreadsheets/sheet-123/values/Data"), gotPath)
	assert.Equal(t, domain.RequiredColumns, table.Columns)
	require.Equal(t, 2, table.Len())

	amount, ok := table.Value(0, domain.ColumnTotalAmount)
	assert.True(t, ok)
	assert.Equal(t, "3500", amount)

	_, ok = table.Value(1, domain.ColumnTotalAmount)
	assert.False(t, ok)
}

func TestSheetsSource_LoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantMsg string
	}{
		{"spreadsheet missing", http.StatusNotFound, "spreadsheet not found"},
		{"sheet missing", http.StatusBadRequest, `sheet "Data" not found`},
		{"forbidden", http.StatusForbidden, "spreadsheet access denied"},
		{"conflict", http.StatusConflict, "cannot read spreadsheet"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := newTestSheetsSource(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = fmt.Fprintf(w, `{"error": {"code": %d, "message": "failed"}}`, tt.status)
			})

			_, err := src.Load(context.Background())
			require.Error(t, err)
			assert.True(t, apperrors.IsDataSourceError(err))
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestSheetsSource_Version(t *testing.T) {
	src := newTestSheetsSource(t, func(w http.ResponseWriter, r *http.Request) {})
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	src.now = func() time.Time { return base.Add(10 * time.Second) }
	v1, err := src.Version(context.Background())
	require.NoError(t, err)

	src.now = func() time.Time { return base.Add(50 * time.Second) }
	v2, _ := src.Version(context.Background())
	assert.Equal(t, v1, v2)

	src.now = func() time.Time { return base.Add(70 * time.Second) }
	v3, _ := src.Version(context.Background())
	assert.NotEqual(t, v1, v3)

	assert.True(t, strings.HasPrefix(v1, "gsheet:sheet-123#Data@"))
}

func TestNewSheetsSource_RequiresID(t *testing.T) {
	_, err := NewSheetsSource(context.Background(), SheetsConfig{})
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeConfig))
}
