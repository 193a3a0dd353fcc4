package services

import "errors"

// Event service errors
var (
	// Request errors
	ErrInvalidRequest  = errors.New("services: invalid request")
	ErrInvalidRange    = errors.New("services: invalid date range")
	ErrRequestTooLarge = errors.New("services: request too large")

	// Lookup errors
	ErrUnknownDataset = errors.New("services: unknown dataset")
	ErrUnknownFactor  = errors.New("services: unknown factor")

	// Registration errors
	ErrDuplicateDataset = errors.New("services: dataset already registered")
)
