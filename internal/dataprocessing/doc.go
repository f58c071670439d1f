// Package dataprocessing turns the rebate application sheet into the
// dashboard report.
//
// # Architecture
//
// A Source yields the raw table. WorkbookSource reads a local .xlsx file
// with excelize and SheetsSource reads a Google spreadsheet. The Pipeline
// then runs four steps, each usable on its own:
//
//  1. Load: read the sheet and check the required columns
//  2. Clean: keep county, postal code, category and amount, drop rows with
//     a missing value or the "unknown" county
//  3. Aggregate: rank the top counties and postal codes per vehicle category
//  4. Estimate: scale BEV counts per postal code by 1 / participation rate
//
// # Usage
//
//	p := dataprocessing.NewPipeline(logger, dataprocessing.PipelineConfig{})
//	report, err := p.Run(ctx, dataprocessing.NewWorkbookSource("rebates.xlsx", "Data"))
//	if err != nil {
//	    return err
//	}
//
// Load failures are data source errors (see internal/errors) and never
// produce a partial report. Every step is traced with OpenTelemetry and
// timed into the pipeline metrics when metrics are configured.
package dataprocessing
