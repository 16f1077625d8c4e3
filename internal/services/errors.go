package services

import "errors"

var (
	// ErrItemNotFound is returned for an item absent from the dataset
	ErrItemNotFound = errors.New("item not found")

	// ErrRunNotFound is returned for an unknown or pruned run ID
	ErrRunNotFound = errors.New("pipeline run not found")

	// ErrRunInProgress is returned when another run holds the run lock
	ErrRunInProgress = errors.New("pipeline run already in progress")

	// ErrServiceClosed is returned once the service is shutting down
	ErrServiceClosed = errors.New("service is shutting down")
)
