// Package domain contains the core records of the curation pipeline: entries,
// their submissions, recurrence rules, publish channels and publish jobs.
package domain

import "errors"

// ErrNotFound is returned when an entity is not found in the store.
var ErrNotFound = errors.New("entity not found")

// ErrValidation is returned when a record is created with an invalid field set.
// Callers wrap it with the offending field, e.g. fmt.Errorf("%w: hour is required", ErrValidation).
var ErrValidation = errors.New("validation failed")
