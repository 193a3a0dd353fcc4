// Package sources supplies raw event rows to the loaders.
//
// A Source returns every row whose knowledge timestamp is at or before an
// upper bound. Implementations read CSV files, Excel workbooks, a SQLite
// store or an in-memory slice; the tabular ones share a Schema per dataset
// so files written by WriteCSV or WriteExcel can be read back unchanged.
package sources
