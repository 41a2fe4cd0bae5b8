package synckit

import "fmt"

type resourceState uint8

const (
	stateLoading resourceState = iota
	stateSuccess
	stateError
)

// Resource is the result of an operation as seen by a UI: still loading,
// succeeded with a value, or failed with an error. Build it with Loading,
// Success or Failure; the zero value is Loading.
type Resource[T any] struct {
	state resourceState
	data  T
	err   error
}

func Loading[T any]() Resource[T] {
	return Resource[T]{state: stateLoading}
}

func Success[T any](v T) Resource[T] {
	return Resource[T]{state: stateSuccess, data: v}
}

// Failure wraps err. A nil err is replaced so that IsError always has a cause.
func Failure[T any](err error) Resource[T] {
	if err == nil {
		err = fmt.Errorf("unknown failure")
	}
	return Resource[T]{state: stateError, err: err}
}

func (r Resource[T]) IsLoading() bool { return r.state == stateLoading }
func (r Resource[T]) IsSuccess() bool { return r.state == stateSuccess }
func (r Resource[T]) IsError() bool   { return r.state == stateError }

// Data returns the value of a Success, or the zero value.
func (r Resource[T]) Data() T { return r.data }

// Err returns the cause of a Failure, or nil.
func (r Resource[T]) Err() error { return r.err }

// Match calls exactly one of the callbacks. All three are required.
func (r Resource[T]) Match(onLoading func(), onSuccess func(T), onError func(error)) {
	switch r.state {
	case stateSuccess:
		onSuccess(r.data)
	case stateError:
		onError(r.err)
	default:
		onLoading()
	}
}

// Fold reduces r to a single value.
func Fold[T, R any](r Resource[T], onLoading func() R, onSuccess func(T) R, onError func(error) R) R {
	switch r.state {
	case stateSuccess:
		return onSuccess(r.data)
	case stateError:
		return onError(r.err)
	default:
		return onLoading()
	}
}

// MapResource transforms the value of a Success and passes the other states through.
func MapResource[T, R any](r Resource[T], fn func(T) R) Resource[R] {
	return Fold(r,
		Loading[R],
		func(v T) Resource[R] { return Success(fn(v)) },
		Failure[R],
	)
}

func (r Resource[T]) String() string {
	return Fold(r,
		func() string { return "Loading" },
		func(v T) string { return fmt.Sprintf("Success(%v)", v) },
		func(err error) string { return fmt.Sprintf("Error(%v)", err) },
	)
}
