// Package services holds the business layer between the HTTP handlers and
// the data processing pipeline.
//
// ReportCache memoizes the dashboard report per source version and
// collapses concurrent builds of the same version into one. DashboardService
// answers the dashboard queries from the cached report and announces new
// reports to WebSocket clients. HealthService backs the health endpoints.
package services
