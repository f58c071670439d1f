// Package http implements the HTTP handlers of the dashboard API.
// Handlers stay thin: they parse and validate the request, call a service
// and render the result with go-chi/render.
//
// # Routes
//
//	GET  /api/dashboard                                  full report
//	GET  /api/dashboard/columns                          source sheet header
//	GET  /api/dashboard/categories                       categories and totals
//	GET  /api/dashboard/categories/{category}/counties   top counties
//	GET  /api/dashboard/categories/{category}/postal-codes
//	GET  /api/dashboard/estimates                        scaled estimates
//	GET  /api/dashboard/export.xlsx                      workbook export
//	GET  /api/dashboard/export.csv?table=                one table as CSV
//	POST /api/dashboard/refresh                          force a rebuild
//	GET  /api/health, /api/health/ready, /api/health/live
//	GET  /api/version, /api/stats, /metrics
//
// Report responses carry the report fingerprint as ETag and answer
// If-None-Match with 304 Not Modified.
//
// # Error Handling
//
// All errors follow RFC 7807 Problem Details:
//
//	{
//	    "type": "/errors/data/not-found",
//	    "title": "Not Found",
//	    "status": 404,
//	    "detail": "vehicle category \"FCEV\" not found",
//	    "instance": "/api/dashboard/categories/FCEV/counties"
//	}
package http
