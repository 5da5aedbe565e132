package worker

import "errors"

var (
	// ErrQueueFull indicates the work queue is at capacity and the item
	// was dropped.
	ErrQueueFull = errors.New("worker queue full")

	// ErrPoolNotStarted indicates Submit was called before Start.
	ErrPoolNotStarted = errors.New("worker pool not started")

	// ErrPoolStopped indicates Submit was called after Stop.
	ErrPoolStopped = errors.New("worker pool stopped")

	// ErrPoolAlreadyStarted indicates Start was called twice.
	ErrPoolAlreadyStarted = errors.New("worker pool already started")

	// ErrStopTimeout indicates workers did not drain within the Stop
	// timeout.
	ErrStopTimeout = errors.New("worker pool stop timed out")

	// ErrNilProcessor indicates the pool was constructed without a
	// processor function.
	ErrNilProcessor = errors.New("worker pool requires a processor")
)
