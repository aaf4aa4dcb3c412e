package githubapi

import (
	"errors"
	"fmt"

	"github.com/google/go-github/v58/github"
)

// Error is a failed GitHub call. Status is zero when no HTTP response was
// received (network failure, cancelled context).
type Error struct {
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("githubapi: %s: %d %s", e.Op, e.Status, e.Message)
	}
	return fmt.Sprintf("githubapi: %s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	e := &Error{Op: op, Message: err.Error(), Err: err}

	var ge *github.ErrorResponse
	if errors.As(err, &ge) {
		e.Message = ge.Message
		if ge.Response != nil {
			e.Status = ge.Response.StatusCode
		}
	}
	return e
}

// StatusCode returns the HTTP status carried by err, or zero.
func StatusCode(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return 0
}
