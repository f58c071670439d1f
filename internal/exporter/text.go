package exporter

import (
	"fmt"
	"io"
	"text/tabwriter"

	"evdash/pkg/contracts/domain"
)

// TextWriter renders the report as aligned plain-text tables for a terminal
type TextWriter struct{}

// NewTextWriter creates a text writer
func NewTextWriter() *TextWriter {
	return &TextWriter{}
}

// Write renders the summary followed by every table of the report
func (t *TextWriter) Write(w io.Writer, report *domain.DashboardReport) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "Source:\t%s\n", report.Source)
	fmt.Fprintf(tw, "Fingerprint:\t%s\n", report.Fingerprint)
	fmt.Fprintf(tw, "Rows:\t%d read, %d missing values, %d unknown county, %d analysed\n",
		report.Clean.InputRows, report.Clean.MissingDropped, report.Clean.UnknownCountyDropped, report.Clean.Kept)
	fmt.Fprintf(tw, "Estimation:\t%s at %.0f%% participation\n",
		report.Estimation.Category, report.Estimation.ParticipationRate*100)

	sections := []struct {
		title string
		table Table
	}{
		{"Totals", TableTotals},
		{"Top counties", TableCounties},
		{"Top postal codes", TablePostalCodes},
		{fmt.Sprintf("Estimated %s totals", report.Estimation.Category), TableEstimates},
	}
	for _, s := range sections {
		headers, rows, err := Rows(report, s.table)
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "\n%s\n", s.title)
		writeTabRow(tw, headers)
		if len(rows) == 0 {
			fmt.Fprintln(tw, "(none)")
		}
		for _, row := range rows {
			writeTabRow(tw, row)
		}
	}
	return tw.Flush()
}

func writeTabRow(w io.Writer, cells []string) {
	for i, c := range cells {
		if i > 0 {
			fmt.Fprint(w, "\t")
		}
		fmt.Fprint(w, c)
	}
	fmt.Fprintln(w)
}
