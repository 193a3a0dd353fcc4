// Package config loads the pitpipe configuration.
//
// # Configuration Sources
//
// Values are resolved in order of precedence:
//
//  1. Environment variables (highest priority)
//  2. The YAML configuration file
//  3. Default values (lowest priority)
//
// # Environment Variables
//
// All environment variables use the PIT_ prefix followed by the section and
// field name:
//
//	PIT_SERVER_PORT=8080
//	PIT_LOGGING_LEVEL=debug
//	PIT_DATA_QUERY_TIME=16:00
//	PIT_DATA_QUERY_TIMEZONE=America/New_York
//
// Dataset sources are a list and can only be set in the file:
//
//	data:
//	  calendar_start: "2014-01-01"
//	  calendar_end: "2014-12-31"
//	  store_path: data/events.db
//	  sources:
//	    - dataset: EarningsCalendar
//	      kind: csv
//	      path: data/earnings.csv
//	    - dataset: CashDividends
//	      kind: sqlite
//
// The merged configuration is validated with struct tags before use.
package config
