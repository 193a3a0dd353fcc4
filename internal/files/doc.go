// Package files finds and checks event files on disk.
//
// Discovery lists the CSV and XLSX files in a directory whose names start
// with a dataset name, so a drop directory can be ingested without naming
// every file:
//
//	discovery := files.NewDiscovery("/data/drop")
//	found, err := discovery.FindEventFiles("2014")
//	// CashDividends_2014-01.csv  -> dataset CashDividends, kind csv
//	// earnings-calendar.xlsx     -> dataset EarningsCalendar, kind xlsx
//
// ValidateFile checks a single file before it is read.
package files
