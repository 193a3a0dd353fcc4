// Package api contains the HTTP API contract of pitpipe.
// Version v1 represents the current stable API version.
package api

import "pitpipe/pkg/contracts/domain"

// DateRangeRequest represents an inclusive range of calendar days
type DateRangeRequest struct {
	From string `json:"from" validate:"required,datetime=2006-01-02"`
	To   string `json:"to" validate:"required,datetime=2006-01-02"`
}

// LoadRequest asks for point-in-time columns of one dataset
type LoadRequest struct {
	DateRangeRequest
	Dataset string   `json:"dataset" validate:"required"`
	Columns []string `json:"columns" validate:"required,min=1,dive,required"`
	Assets  []int64  `json:"assets" validate:"required,min=1,dive,gte=0"`
	// Mask, when present, has one row per calendar day in the range and one
	// entry per asset; false cells are returned as missing.
	Mask [][]bool `json:"mask,omitempty"`
}

// FactorRequest asks for a business-day distance factor
type FactorRequest struct {
	DateRangeRequest
	// Dataset, when set, must be the dataset of the factor's input column
	Dataset string  `json:"dataset,omitempty"`
	Factor  string  `json:"factor" validate:"required"`
	Assets  []int64 `json:"assets" validate:"required,min=1,dive,gte=0"`
}

// DatasetInfo describes a served dataset
type DatasetInfo struct {
	Name    string          `json:"name"`
	Columns []domain.Column `json:"columns"`
	Source  string          `json:"source,omitempty"`
}

// DatasetsResponse lists the served datasets
type DatasetsResponse struct {
	Datasets []DatasetInfo `json:"datasets"`
}

// ColumnValues holds one loaded column. Values has one row per date and one
// entry per asset: date strings for datetime columns, numbers for numeric
// ones and null for missing cells.
type ColumnValues struct {
	Name   string  `json:"name"`
	DType  string  `json:"dtype"`
	Values [][]any `json:"values"`
}

// LoadResponse is the answer to a LoadRequest
type LoadResponse struct {
	Dataset string         `json:"dataset"`
	Dates   []string       `json:"dates"`
	Assets  []int64        `json:"assets"`
	Columns []ColumnValues `json:"columns"`
}

// FactorResponse is the answer to a FactorRequest. Missing cells are null.
type FactorResponse struct {
	Factor string       `json:"factor"`
	Dates  []string     `json:"dates"`
	Assets []int64      `json:"assets"`
	Values [][]*float64 `json:"values"`
}

// FactorInfo describes a named factor
type FactorInfo struct {
	Name      string        `json:"name"`
	Input     domain.Column `json:"input"`
	Direction string        `json:"direction"`
}

// CalendarResponse lists the trading days in a requested range
type CalendarResponse struct {
	Dates []string `json:"dates"`
}
