// Package app wires the dashboard server together and manages its
// lifecycle.
//
// # Initialization Flow
//
//  1. Load configuration from defaults, YAML file and EVDASH_* variables
//  2. Initialize logging and OpenTelemetry
//  3. Create the data source (local workbook or Google Sheet)
//  4. Create the pipeline, report cache, WebSocket hub and services
//  5. Set up the chi router and middleware
//  6. Start the hub, the source watcher and the HTTP server
//
// # Usage
//
//	application, err := app.NewApplication("")
//	if err != nil {
//	    return err
//	}
//	return application.Run()
//
// Run blocks until SIGINT or SIGTERM and then shuts down gracefully: the
// server drains active requests, the watcher stops, WebSocket clients are
// closed and telemetry is flushed. Errors are returned to the caller; the
// package never calls os.Exit.
package app
