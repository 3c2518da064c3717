package flight

import (
	"errors"
	"fmt"
	"runtime/debug"
)

// ErrNilProducer is returned by Cell.Get when the cell has nothing to run.
var ErrNilProducer = errors.New("flight: cell requires a producer")

// ProducerError reports that a cell's producer failed. Every caller that
// joined the failed attempt receives the same *ProducerError.
type ProducerError struct {
	Err error
}

func (e *ProducerError) Error() string {
	return "flight: producer failed: " + e.Err.Error()
}

func (e *ProducerError) Unwrap() error { return e.Err }

// PanicError carries a value recovered from a panicking producer.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("flight: producer panicked: %v", e.Value)
}

// Unwrap exposes the panic value when it is itself an error.
func (e *PanicError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}

func newPanicError(v any) *PanicError {
	return &PanicError{Value: v, Stack: debug.Stack()}
}
