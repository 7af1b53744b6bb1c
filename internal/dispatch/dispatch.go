// Package dispatch implements the two in-process channels that connect the
// Plan Executor to worker agents: a sub-task channel workers consume from,
// and a results channel demultiplexed by sub-task id via a one-shot waiter
// registry.
package dispatch

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/taskgraph/taskgraph/internal/models"
)

// Channels bundles the two single-producer/multi-consumer (sub-task) and
// multi-producer/single-consumer (results) channels described in the
// dispatch contract.
type Channels struct {
	SubTasks chan models.SubTaskMessage
	Results  chan models.SubTaskResult
}

// NewChannels allocates both channels with the given buffer size. A buffer
// of zero gives fully synchronous hand-off; the Plan Executor typically
// sizes it to the largest stage width it expects to dispatch.
func NewChannels(buffer int) *Channels {
	return &Channels{
		SubTasks: make(chan models.SubTaskMessage, buffer),
		Results:  make(chan models.SubTaskResult, buffer),
	}
}

// Registry is the executor-side one-shot waiter table keyed by sub_task_id.
// Exactly one waiter may be registered per id; a result posted to the
// Results channel for an id with no registered waiter is a programming
// error in a worker and is handed to the onOrphan callback rather than
// silently dropped.
type Registry struct {
	mu       sync.Mutex
	waiters  map[string]chan models.SubTaskResult
	onOrphan func(models.SubTaskResult)
}

// NewRegistry builds an empty waiter registry. onOrphan, if non-nil, is
// invoked (outside any lock) whenever a result arrives for an id that was
// never registered or was already completed.
func NewRegistry(onOrphan func(models.SubTaskResult)) *Registry {
	return &Registry{
		waiters:  make(map[string]chan models.SubTaskResult),
		onOrphan: onOrphan,
	}
}

// Register creates and returns the one-shot result channel for subTaskID.
// Registering the same id twice is a programming error and panics, since it
// can only happen from a bug in the executor's dispatch loop.
func (r *Registry) Register(subTaskID string) <-chan models.SubTaskResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.waiters[subTaskID]; exists {
		panic(fmt.Sprintf("dispatch: sub_task_id %s already registered", subTaskID))
	}
	ch := make(chan models.SubTaskResult, 1)
	r.waiters[subTaskID] = ch
	return ch
}

// Deliver routes a worker result to its registered waiter. It must be
// called by whatever goroutine reads the shared Results channel. A result
// for an unknown or already-fulfilled id is handed to onOrphan instead of
// panicking, since it can arrive from a worker racing a timeout.
func (r *Registry) Deliver(result models.SubTaskResult) {
	r.mu.Lock()
	ch, ok := r.waiters[result.SubTaskID]
	if ok {
		delete(r.waiters, result.SubTaskID)
	}
	r.mu.Unlock()

	if !ok {
		if r.onOrphan != nil {
			r.onOrphan(result)
		}
		return
	}
	ch <- result
}

// Forfeit removes a waiter without delivering a result, used when a waiter
// times out and the executor wants to stop listening for it (a late
// delivery afterward becomes an orphan handled by Deliver).
func (r *Registry) Forfeit(subTaskID string) {
	r.mu.Lock()
	delete(r.waiters, subTaskID)
	r.mu.Unlock()
}

// NewSubTaskID generates a fresh identifier for one dispatched sub-task.
func NewSubTaskID() string {
	return uuid.NewString()
}

// RunDemux continuously drains the results channel and routes each result
// to its registered waiter via registry.Deliver, until ctx is cancelled or
// the channel is closed. Whoever owns the Channels (internal/cmd's wiring,
// or a test) starts this once as the Results channel's sole consumer; the
// Plan Executor does not start it.
func RunDemux(ctx context.Context, results <-chan models.SubTaskResult, registry *Registry) {
	for {
		select {
		case <-ctx.Done():
			return
		case result, ok := <-results:
			if !ok {
				return
			}
			registry.Deliver(result)
		}
	}
}
