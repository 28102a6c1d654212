// Package result holds the uniform success/failure shape returned by every
// dashboard operation.
package result

import "time"

// Kind classifies a failure.
type Kind string

const (
	KindNone           Kind = ""
	KindInvalidInput   Kind = "invalid_input"
	KindNotFound       Kind = "not_found"
	KindRateLimited    Kind = "rate_limited"
	KindOriginRejected Kind = "origin_rejected"
	KindStoreFailure   Kind = "store_failure"
)

// Result is either Ok(Data) or Err(Kind, Error). Only a rate-limited failure
// carries ResetAt.
type Result[T any] struct {
	Success bool       `json:"success"`
	Data    T          `json:"data,omitempty"`
	Error   string     `json:"error,omitempty"`
	ResetAt *time.Time `json:"resetAt,omitempty"`
	Kind    Kind       `json:"-"`
}

// Ok wraps a successful value.
func Ok[T any](v T) Result[T] {
	return Result[T]{Success: true, Data: v}
}

// Err builds a failure of the given kind with a user-facing message.
func Err[T any](kind Kind, message string) Result[T] {
	return Result[T]{Kind: kind, Error: message}
}

// RateLimited builds a failure carrying the time the window resets.
func RateLimited[T any](resetAt time.Time) Result[T] {
	return Result[T]{
		Kind:    KindRateLimited,
		Error:   "Too many requests. Please try again later.",
		ResetAt: &resetAt,
	}
}

// Outcome is "ok" for a success and the failure kind otherwise.
func (r Result[T]) Outcome() string {
	if r.Success {
		return "ok"
	}
	return string(r.Kind)
}

// Failure is the error form of a rejected admission, used to carry a guard
// outcome into a Result of any type.
type Failure struct {
	Kind    Kind
	ResetAt time.Time
}

func (f *Failure) Error() string {
	return string(f.Kind)
}

// From converts a guard failure into a Result. Origin rejections use the
// operation's generic message so they look like any other failure.
func From[T any](f *Failure, genericMessage string) Result[T] {
	if f.Kind == KindRateLimited {
		return RateLimited[T](f.ResetAt)
	}
	return Err[T](f.Kind, genericMessage)
}
