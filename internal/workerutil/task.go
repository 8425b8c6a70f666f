package workerutil

import (
	"fmt"
	"sync"
)

// Result is the outcome of a task started with RunTask.
type Result[T any] struct {
	Value T
	Err   error
}

// PanicError reports a task that panicked instead of returning.
type PanicError struct {
	Task  string
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("%s panicked: %v", e.Task, e.Value)
}

// RunTask runs fn once on a new goroutine and delivers its outcome on the
// returned channel, which receives exactly one value and is then closed. A
// panic in fn is logged with its stack and delivered as a *PanicError.
// When wg is non-nil the goroutine is tracked by it.
//
// There is no cancellation: the task always runs to completion, and the
// buffered channel lets it finish even if nobody receives the result.
func RunTask[T any](wg *sync.WaitGroup, name string, fn func() (T, error)) <-chan Result[T] {
	out := make(chan Result[T], 1)
	run := func() {
		defer close(out)
		out <- runTask(name, fn)
	}
	if wg != nil {
		wg.Go(run)
	} else {
		go run()
	}
	return out
}

func runTask[T any](name string, fn func() (T, error)) (res Result[T]) {
	defer func() {
		if r := recover(); r != nil {
			logPanic(name, r)
			res = Result[T]{Err: &PanicError{Task: name, Value: r}}
		}
	}()
	value, err := fn()
	return Result[T]{Value: value, Err: err}
}
