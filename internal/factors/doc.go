// Package factors computes business-day distances between each calendar day
// and the event dates held in reconciled frames or loaded date columns.
//
// Distances count Monday to Friday with no holiday calendar and are always
// non-negative. Missing event dates yield NaN, never zero.
package factors
