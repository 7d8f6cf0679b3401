// Package autherr defines the failure taxonomy shared by the credential cache
// and the acquisition pipeline.
//
// A cache miss is never an error: reads report it through a boolean.
package autherr

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrPromptCancelled = errors.New("interactive sign-in cancelled")
	ErrExchangeFailed  = errors.New("token exchange failed")
	ErrUnsupported     = errors.New("operation not supported")
)

// InvalidArgumentError indicates a malformed target or secret. It is raised
// before any state is touched.
type InvalidArgumentError struct {
	Field  string
	Reason string
}

func (e InvalidArgumentError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e InvalidArgumentError) Is(target error) bool {
	return target == ErrInvalidArgument
}

// InvalidArgument is shorthand for constructing an InvalidArgumentError.
func InvalidArgument(field, reason string) error {
	return InvalidArgumentError{Field: field, Reason: reason}
}

// PromptError reports that the interactive step did not yield an assertion.
// It matches ErrPromptCancelled when the user declined or the request context
// was cancelled.
type PromptError struct {
	Target string
	Err    error
}

func (e PromptError) Error() string {
	if e.Cancelled() {
		return fmt.Sprintf("sign-in for %s cancelled", e.Target)
	}
	return fmt.Sprintf("sign-in for %s failed: %v", e.Target, e.Err)
}

func (e PromptError) Unwrap() error {
	return e.Err
}

func (e PromptError) Is(target error) bool {
	return target == ErrPromptCancelled && e.Cancelled()
}

// Cancelled is true when the cause is a user or context cancellation rather
// than a prompt malfunction.
func (e PromptError) Cancelled() bool {
	return errors.Is(e.Err, ErrPromptCancelled) || errors.Is(e.Err, context.Canceled)
}

// Exchange stages.
const (
	StageAcquire = "acquire"
	StageMint    = "mint"
)

// ExchangeError indicates that the authority rejected or could not complete a
// request. Stage identifies whether the failure was while acquiring the raw
// token or minting the durable credential.
type ExchangeError struct {
	Target string
	Stage  string
	Err    error
}

func (e ExchangeError) Error() string {
	return fmt.Sprintf("token exchange (%s) for %s failed: %v", e.Stage, e.Target, e.Err)
}

func (e ExchangeError) Unwrap() error {
	return e.Err
}

func (e ExchangeError) Is(target error) bool {
	return target == ErrExchangeFailed
}

// UnsupportedError is returned by operations a concrete implementation does
// not provide.
type UnsupportedError struct {
	Operation string
}

func (e UnsupportedError) Error() string {
	return fmt.Sprintf("%s is not supported", e.Operation)
}

func (e UnsupportedError) Is(target error) bool {
	return target == ErrUnsupported
}
