package repository

import "errors"

// ErrStale is returned when a guarded update finds the row no longer in the
// state the caller read. The transaction is rolled back; nothing was written.
var ErrStale = errors.New("contract state changed since read")
