// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package mediafire

import (
	"errors"
	"fmt"
)

// Common errors returned by the library.
var (
	// ErrNotFound is returned when the catalog response has no entry for a key.
	ErrNotFound = errors.New("not found")

	// ErrUnresolvable is returned when no strategy finds a transfer URL on a
	// download page.
	ErrUnresolvable = errors.New("download link could not be resolved")

	// ErrZeroBytes is returned when a transfer completes without any data.
	ErrZeroBytes = errors.New("0 bytes received")

	// ErrInvalidLink is returned when a URL is not a MediaFire file or folder link.
	ErrInvalidLink = errors.New("invalid mediafire link")

	// ErrMissingKey is returned when a catalog call is made with an empty key.
	ErrMissingKey = errors.New("missing key")
)

// APIError is a non-200 response from the catalog, a download page or a
// transfer URL.
type APIError struct {
	StatusCode int
	Status     string
	URL        string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("http error %d (%s)", e.StatusCode, e.Status)
}

// Is implements errors.Is for common error comparisons.
func (e *APIError) Is(target error) bool {
	return e.StatusCode == 404 && target == ErrNotFound
}

// TransferError wraps a per-file failure with the file name.
type TransferError struct {
	Name string
	Err  error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("download %s: %v", e.Name, e.Err)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}
