// Command evreport builds the rebate dashboard report once and prints it.
//
//	evreport -in rebates.xlsx                 JSON report on stdout
//	evreport -in rebates.xlsx -format text    aligned tables
//	evreport -xlsx out/dashboard.xlsx -csv out/
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"

	"evdash/internal/app"
	"evdash/internal/config"
	"evdash/internal/exporter"
	"evdash/internal/infrastructure"
	"evdash/pkg/contracts"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type options struct {
	configPath string
	in         string
	sheet      string
	category   string
	rate       float64
	top        int
	format     string
	xlsxOut    string
	csvDir     string
	version    bool
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("evreport", flag.ContinueOnError)
	fs.SetOutput(stderr)

	o := &options{}
	fs.StringVar(&o.configPath, "config", "", "path to config.yaml")
	fs.StringVar(&o.in, "in", "", "rebate workbook (.xlsx), overrides the configured source")
	fs.StringVar(&o.sheet, "sheet", "", "worksheet name (default from config, \"Data\")")
	fs.StringVar(&o.category, "category", "", "vehicle category to estimate")
	fs.Float64Var(&o.rate, "rate", 0, "participation rate in (0, 1]")
	fs.IntVar(&o.top, "top", 0, "number of ranked groups per category")
	fs.StringVar(&o.format, "format", "json", "stdout format: json, text or none")
	fs.StringVar(&o.xlsxOut, "xlsx", "", "also write the report workbook to this path")
	fs.StringVar(&o.csvDir, "csv", "", "also write one CSV per table into this directory")
	fs.BoolVar(&o.version, "version", false, "print version information and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	switch o.format {
	case "json", "text", "none":
	default:
		return nil, fmt.Errorf("unknown format %q", o.format)
	}
	return o, nil
}

// apply overrides cfg with the flags that were set
func (o *options) apply(cfg *config.Config) error {
	if o.in != "" {
		cfg.Source.Kind = config.SourceKindWorkbook
		cfg.Source.Path = o.in
	}
	if o.sheet != "" {
		cfg.Source.Sheet = o.sheet
	}
	if o.category != "" {
		cfg.Estimation.Category = o.category
	}
	if o.rate != 0 {
		cfg.Estimation.ParticipationRate = o.rate
	}
	if o.top != 0 {
		cfg.Estimation.TopN = o.top
	}
	return cfg.Validate()
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintf(stderr, "evreport: %v\n", err)
		return exitUsage
	}
	if opts.version {
		fmt.Fprintln(stdout, contracts.GetFullVersionString())
		return exitOK
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stderr, "evreport: %v\n", err)
		return exitUsage
	}
	if err := opts.apply(cfg); err != nil {
		fmt.Fprintf(stderr, "evreport: invalid options: %v\n", err)
		return exitUsage
	}

	logger := infrastructure.NewWriterLogger(stderr, cfg.Logging)
	ctx = infrastructure.EnsureTraceID(ctx)

	src, err := app.NewSource(ctx, cfg.Source)
	if err != nil {
		fmt.Fprintf(stderr, "evreport: %v\n", err)
		return exitError
	}

	report, err := app.NewPipeline(cfg.Estimation, nil, logger).Run(ctx, src)
	if err != nil {
		fmt.Fprintf(stderr, "evreport: %v\n", err)
		return exitError
	}

	switch opts.format {
	case "json":
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		err = enc.Encode(report)
	case "text":
		err = exporter.NewTextWriter().Write(stdout, report)
	}
	if err != nil {
		fmt.Fprintf(stderr, "evreport: write report: %v\n", err)
		return exitError
	}

	if opts.xlsxOut != "" {
		if err := exporter.NewWorkbookExporter().WriteFile(opts.xlsxOut, report); err != nil {
			fmt.Fprintf(stderr, "evreport: %v\n", err)
			return exitError
		}
	}
	if opts.csvDir != "" {
		csv := exporter.NewCSVWriter()
		for _, table := range exporter.TableNames() {
			path := filepath.Join(opts.csvDir, string(table)+".csv")
			if err := csv.WriteTableFile(path, report, table); err != nil {
				fmt.Fprintf(stderr, "evreport: %v\n", err)
				return exitError
			}
		}
	}

	return exitOK
}
