package dataprocessing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	apperrors "evdash/internal/errors"
	"evdash/pkg/contracts/domain"
)

// SheetsSource reads the rebate sheet from a Google spreadsheet. The Sheets
// API exposes no modification time, so Version changes once per TTL window.
type SheetsSource struct {
	service       *sheets.Service
	spreadsheetID string
	sheet         string
	ttl           time.Duration
	now           func() time.Time
}

// SheetsConfig configures a SheetsSource
type SheetsConfig struct {
	SpreadsheetID   string
	Sheet           string
	CredentialsJSON []byte
	TTL             time.Duration
}

// NewSheetsSource creates a Sheets client from service account credentials.
// Extra client options are appended after the credentials option.
func NewSheetsSource(ctx context.Context, cfg SheetsConfig, opts ...option.ClientOption) (*SheetsSource, error) {
	if cfg.SpreadsheetID == "" {
		return nil, apperrors.NewConfigError("spreadsheet id is required", nil)
	}
	if cfg.Sheet == "" {
		cfg.Sheet = DefaultSheet
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Minute
	}

	clientOpts := make([]option.ClientOption, 0, len(opts)+1)
	if len(cfg.CredentialsJSON) > 0 {
		clientOpts = append(clientOpts, option.WithCredentialsJSON(cfg.CredentialsJSON))
	}
	clientOpts = append(clientOpts, opts...)

	srv, err := sheets.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, apperrors.NewDataSourceError("cannot create sheets client", err)
	}

	return &SheetsSource{
		service:       srv,
		spreadsheetID: cfg.SpreadsheetID,
		sheet:         cfg.Sheet,
		ttl:           cfg.TTL,
		now:           time.Now,
	}, nil
}

// Load implements Source
func (s *SheetsSource) Load(ctx context.Context) (*domain.Table, error) {
	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, s.sheet).Context(ctx).Do()
	if err != nil {
		return nil, s.wrapError(err)
	}

	rows := make([][]string, len(resp.Values))
	for i, row := range resp.Values {
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = fmt.Sprint(v)
		}
		rows[i] = cells
	}
	table := TableFromRows(rows)

	slog.InfoContext(ctx, "spreadsheet loaded",
		slog.String("spreadsheet_id", s.spreadsheetID),
		slog.String("sheet", s.sheet),
		slog.Int("columns", len(table.Columns)),
		slog.Int("rows", table.Len()))

	return table, nil
}

// Version implements Source
func (s *SheetsSource) Version(context.Context) (string, error) {
	bucket := s.now().Truncate(s.ttl).Unix()
	return fmt.Sprintf("%s@%d", s.Describe(), bucket), nil
}

// Describe implements Source
func (s *SheetsSource) Describe() string {
	return fmt.Sprintf("gsheet:%s#%s", s.spreadsheetID, s.sheet)
}

func (s *SheetsSource) wrapError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	msg := "cannot read spreadsheet"
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusNotFound:
			msg = "spreadsheet not found"
		case http.StatusBadRequest:
			// the API rejects a range naming an unknown sheet
			msg = fmt.Sprintf("sheet %q not found", s.sheet)
		case http.StatusForbidden, http.StatusUnauthorized:
			msg = "spreadsheet access denied"
		}
	}
	return apperrors.NewDataSourceError(msg, err).
		WithContext("spreadsheet_id", s.spreadsheetID).
		WithContext("sheet", s.sheet)
}
