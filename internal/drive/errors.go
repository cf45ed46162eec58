package drive

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates that no remote object exists under the requested
// name. Callers treat this as an expected outcome, not a fault.
var ErrNotFound = errors.New("remote object not found")

// TransferError reports a non-2xx response from the object-store API during
// search, upload, or download.
type TransferError struct {
	Status int
	Body   string
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("transfer failed: status %d: %s", e.Status, e.Body)
}
