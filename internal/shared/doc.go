// Package shared holds helpers used across pitpipe packages that belong to
// no single layer.
//
// # Test Utilities
//
// The testutil subpackage provides:
//
//   - NewTestLogger, a slog logger that buffers records for assertions
//   - Event fixtures: small raw row sets for every dataset and writers
//     that lay them out as CSV, XLSX or SQLite sources in a temp dir
//
// Example usage:
//
//	func TestSomething(t *testing.T) {
//	    logger, logs := testutil.NewTestLogger(t)
//	    files := testutil.WriteEventFiles(t, t.TempDir())
//	    ...
//	    testutil.AssertNoErrors(t, logs)
//	}
//
// Nothing here is imported by non-test code.
package shared
