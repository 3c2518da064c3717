package flight

import (
	"context"
	"sync"
	"sync/atomic"
)

// Producer computes a cell's value. The context carries the first caller's
// values but is never cancelled, since other callers may be waiting on the
// result.
type Producer[V any] func(ctx context.Context) (V, error)

// Cell memoizes the result of a single producer.
//
// The caller that moves the cell from StateEmpty to StateComputing runs the
// producer inline. Callers arriving while it runs wait on a channel that is
// closed when the attempt ends; they never run the producer themselves. Once
// the cell is StateReady, Get is a single atomic load.
// @group Cells
type Cell[V any] struct {
	state atomic.Uint32

	// factory is realized into producer by the first attempt only.
	factory  func() Producer[V]
	producer Producer[V]
	resolved bool

	mu       sync.Mutex // guards inflight and the Empty -> Computing transition
	inflight *attempt[V]

	// value is written before state is stored as StateReady.
	value V
}

// attempt is one run of the producer. val and err are written before done is
// closed and only read after.
type attempt[V any] struct {
	done chan struct{}
	val  V
	err  error
}

// NewCell returns an empty cell for producer. The producer is not invoked
// until the first Get.
// @group Cells
//
// Example: compute once
//
//	c := flight.NewCell(func(context.Context) (string, error) {
//		return "ASdf", nil
//	})
//	v, err := c.Get(context.Background())
//	fmt.Println(v, err) // ASdf <nil>
func NewCell[V any](producer Producer[V]) *Cell[V] {
	return newLazyCell(func() Producer[V] { return producer })
}

func newLazyCell[V any](factory func() Producer[V]) *Cell[V] {
	return &Cell[V]{factory: factory}
}

// Get returns the cell's value, running the producer if no value exists and no
// other caller is running it. A caller whose ctx ends while it waits returns
// ctx.Err(); the computation and the other waiters are unaffected.
// @group Cells
func (c *Cell[V]) Get(ctx context.Context) (V, error) {
	v, _, err := c.get(ctx)
	return v, err
}

// State reports where the cell is in its lifecycle.
// @group Cells
func (c *Cell[V]) State() State {
	return State(c.state.Load())
}

// Peek returns the value without blocking or computing. ok is false unless the
// cell is StateReady.
// @group Cells
func (c *Cell[V]) Peek() (V, bool) {
	if c.State() == StateReady {
		return c.value, true
	}
	var zero V
	return zero, false
}

// get reports whether this caller ran the producer.
func (c *Cell[V]) get(ctx context.Context) (V, bool, error) {
	var zero V
	for {
		if c.State() == StateReady {
			return c.value, false, nil
		}

		c.mu.Lock()
		if c.state.CompareAndSwap(uint32(StateEmpty), uint32(StateComputing)) {
			a := &attempt[V]{done: make(chan struct{})}
			c.inflight = a
			c.mu.Unlock()
			v, err := c.run(ctx, a)
			return v, true, err
		}
		// Computing always has inflight set under mu; nil means Ready.
		a := c.inflight
		c.mu.Unlock()
		if a == nil {
			continue
		}

		select {
		case <-a.done:
			if a.err != nil {
				return zero, false, a.err
			}
			return a.val, false, nil
		case <-ctx.Done():
			return zero, false, ctx.Err()
		}
	}
}

func (c *Cell[V]) run(ctx context.Context, a *attempt[V]) (v V, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero V
			v, err = zero, &ProducerError{Err: newPanicError(r)}
		}
		c.finish(a, v, err)
	}()

	if !c.resolved {
		if c.factory != nil {
			c.producer = c.factory()
		}
		c.resolved = true
	}
	if c.producer == nil {
		return v, &ProducerError{Err: ErrNilProducer}
	}

	v, err = c.producer(context.WithoutCancel(ctx))
	if err != nil {
		var zero V
		return zero, &ProducerError{Err: err}
	}
	return v, nil
}

func (c *Cell[V]) finish(a *attempt[V], v V, err error) {
	a.val, a.err = v, err

	c.mu.Lock()
	c.inflight = nil
	if err != nil {
		c.state.Store(uint32(StateEmpty))
	} else {
		c.value = v
		c.state.Store(uint32(StateReady))
	}
	c.mu.Unlock()

	close(a.done)
}
