package storage

import "errors"

var (
	// ErrSlotTaken is the conflict outcome: another record already holds the
	// same (date, start) key. The transport reacts by regenerating slots.
	ErrSlotTaken = errors.New("slot already taken")

	// ErrAlreadyBookedThatDay means the subject holds a booking on the date.
	// Advisory pre-check only; it is not the concurrency safeguard.
	ErrAlreadyBookedThatDay = errors.New("subject already booked that day")

	// ErrNotFound marks a cancel/unblock target that no longer exists. Callers
	// treat it as already satisfied, not as a failure.
	ErrNotFound = errors.New("booking record not found")
)
