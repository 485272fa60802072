package annotation

import "errors"

var (
	// ErrNoImage is returned by operations that need an open image.
	ErrNoImage = errors.New("no image is open")

	// ErrUnknownEntry is returned when an EntryID is not part of the set.
	ErrUnknownEntry = errors.New("unknown annotation entry")

	// ErrAlreadyTracked is returned when the same shape is added twice.
	ErrAlreadyTracked = errors.New("shape is already in the set")
)
