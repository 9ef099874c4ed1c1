package queue

import (
	"context"
	"encoding/json"
	"errors"
)

// Job handles the messages of one type.
type Job interface {
	// Name identifies the job in logs.
	Name() string

	// Type is the message type the job is registered under.
	Type() string

	// Handle processes one message payload. Returning an error schedules a
	// retry unless the error is marked with Permanent.
	Handle(ctx context.Context, payload json.RawMessage) error
}

type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying: the message goes straight to
// the dead letter list.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p permanentError
	return errors.As(err, &p)
}
