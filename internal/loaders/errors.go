package loaders

import "errors"

var (
	// ErrUnknownColumn is returned when a loader has no strategy for a column
	ErrUnknownColumn = errors.New("loaders: don't know how to load column")

	// ErrColumnSetMismatch is returned when none of the requested columns
	// belong to the loader's dataset.
	ErrColumnSetMismatch = errors.New("loaders: requested columns do not match dataset")

	// ErrMisalignedResult is returned when merged single-column results
	// disagree on shape.
	ErrMisalignedResult = errors.New("loaders: merged results are misaligned")

	// ErrInvalidRow is returned when a source row fails validation
	ErrInvalidRow = errors.New("loaders: invalid source row")

	// ErrUnknownDataset is returned when no loader exists for a dataset
	ErrUnknownDataset = errors.New("loaders: unknown dataset")
)
