// Package shared holds helpers used by more than one layer of the dashboard.
//
// The testutil subpackage provides a capturing slog handler and builders
// for rebate workbooks written with excelize, so loader, service and HTTP
// tests can share the same fixtures.
package shared
