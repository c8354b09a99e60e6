package services

import (
	"errors"
	"fmt"
)

// ErrSourceUnavailable signals that the external session source could not be
// reached or answered with garbage. Callers retry on the next cycle without
// touching any persisted state.
var ErrSourceUnavailable = errors.New("session source unavailable")

// DecodeError is a terminal failure while turning a replay artifact into a
// structured outcome: the artifact could not be fetched, decompressed, or is
// missing the minimal markup structure. The parse worker maps it to
// parse_status = "error".
type DecodeError struct {
	Stage string // "fetch", "decompress", "parse", "participants"
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("replay decode failed at %s: %v", e.Stage, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func newDecodeError(stage string, err error) *DecodeError {
	return &DecodeError{Stage: stage, Err: err}
}

// IsDecodeError reports whether err (or anything it wraps) is a DecodeError.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}
