// Package config loads the evdash configuration.
//
// Values are layered, lowest priority first:
//
//  1. Default()
//  2. a YAML file (path argument, EVDASH_CONFIG, config.yaml or configs/config.yaml)
//  3. EVDASH_* environment variables
//
// Environment variable names follow the section and field, for example:
//
//	EVDASH_SERVER_PORT=8080
//	EVDASH_SOURCE_KIND=gsheet
//	EVDASH_SOURCE_SPREADSHEET_ID=1AbC...
//	EVDASH_ESTIMATION_PARTICIPATION_RATE=0.30
//	EVDASH_LOGGING_LEVEL=debug
//
// Load validates the merged result before returning it.
package config
