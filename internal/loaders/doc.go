// Package loaders turns reconciled event frames into AdjustedArrays.
//
// Every loader answers LoadAdjustedArray for a set of columns, a day index
// and an asset list. EventsLoader serves one dataset from in-memory tables,
// SourceLoader pulls rows from a sources.Source per request and FrameLoader
// serves a single precomputed frame.
package loaders
