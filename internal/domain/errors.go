package domain

import "errors"

var (
	// ErrEntityNotFound means a candidate's entity hint matched no
	// registered entity.
	ErrEntityNotFound = errors.New("entity not found")

	// ErrEntryNotFound means a catalog entry id is unknown.
	ErrEntryNotFound = errors.New("catalog entry not found")

	// ErrTaskNotFound means a manual task id is unknown.
	ErrTaskNotFound = errors.New("manual task not found")

	// ErrIllegalTransition means a requested status change is not part of
	// the processing state machine.
	ErrIllegalTransition = errors.New("illegal status transition")

	// ErrContentInvalid marks a fetched payload that failed content-type or
	// structural validation. Retrying the same URL is futile; it escalates.
	ErrContentInvalid = errors.New("content validation failed")

	// ErrRetriesExhausted marks a download that ran out of attempts.
	ErrRetriesExhausted = errors.New("retries exhausted")
)
