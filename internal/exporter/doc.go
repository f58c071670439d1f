// Package exporter writes the dashboard report as files.
//
// CSVWriter writes one report table as CSV with a UTF-8 BOM so Excel
// detects the encoding. WorkbookExporter writes the whole report as an
// .xlsx workbook with one sheet per table. TextWriter renders the same
// tables for a terminal.
//
//	tables := exporter.TableNames()
//	err := exporter.NewCSVWriter().WriteTable(w, report, exporter.TableCounties)
//	err = exporter.NewWorkbookExporter().Write(w, report)
package exporter
