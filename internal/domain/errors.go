package domain

import "errors"

// ErrTooManyActive indicates the session already has the maximum number of
// downloads in flight.
var ErrTooManyActive = errors.New("too many active downloads for session")

// ErrInfoTimeout indicates the metadata lookup exceeded its deadline.
var ErrInfoTimeout = errors.New("timed out fetching media info")
