package services

import "errors"

// Service error taxonomy. Handlers map these onto HTTP statuses; only
// ErrTransactionConflict is ever retried automatically.
var (
	// ErrNotFound means a referenced user, balance row or transfer request
	// does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState means a transfer request was reviewed while not in
	// the pending state.
	ErrInvalidState = errors.New("request is not pending")

	// ErrTransactionConflict means a concurrent balance write won the race.
	// Callers retry a bounded number of times before surfacing it.
	ErrTransactionConflict = errors.New("transaction conflict")

	// ErrUploadFailure means the receipt image could not be persisted.
	ErrUploadFailure = errors.New("receipt upload failed")

	// ErrValidation means the input failed a domain check, such as a
	// non-positive amount or an unknown box or activity type.
	ErrValidation = errors.New("validation failed")
)
