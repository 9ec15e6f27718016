package coverage

import (
	"errors"
	"fmt"
)

// ErrorCode classifies failures surfaced by the replication engine and the backends.
type ErrorCode int

const (
	Unknown ErrorCode = iota
	// UnsupportedDestination is returned when the destination reference is not pyramidal.
	UnsupportedDestination
	// NotGeoreferenced marks a plain source whose CRS is an image CRS. Reported as a warning.
	NotGeoreferenced
	// TransformFailure wraps read, straighten or reduce-to-domain failures on the rebuild path.
	TransformFailure
	// TileWriteFailure marks a single tile that could not be written. Reported as a warning.
	TileWriteFailure
	// TileStreamFailure marks a tile that could not be read or decoded from the source stream.
	TileStreamFailure
	FileIOError
	BlobNotFound
	// BackendIOError marks a transient failure talking to a remote blob backend.
	BackendIOError
)

// ErrBlobNotFound is returned (possibly wrapped) by blob stores when a blob does not exist.
var ErrBlobNotFound = errors.New("blob not found")

// Error is the custom error carrying a code and optional user data, e.g. the tile position.
type Error struct {
	Code     ErrorCode
	Err      error
	UserData any
}

func (e Error) Error() string {
	if e.UserData != nil {
		return fmt.Sprintf("error code: %d, user data: %v, details: %v", e.Code, e.UserData, e.Err)
	}
	return fmt.Sprintf("error code: %d, details: %v", e.Code, e.Err)
}

func (e Error) Unwrap() error {
	return e.Err
}

// HasCode reports whether err is, or wraps, an Error with the given code.
func HasCode(err error, code ErrorCode) bool {
	var e Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	var pe *Error
	if errors.As(err, &pe) && pe != nil {
		return pe.Code == code
	}
	return false
}
