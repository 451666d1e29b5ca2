// Package task implements the Async effect's three-function ABI
// (spawn/await/yield) the compiled object links against: each spawned
// task runs as its own OS-level worker (a goroutine), straight-line
// within itself, suspending only at an explicit Yield or a blocking
// channel operation — the cooperative scheduling model the language
// promises its programs.
package task

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

// TaskId identifies one spawned task across Spawn/Await/the evidence
// vector's async bookkeeping.
type TaskId uuid.UUID

func (id TaskId) String() string { return uuid.UUID(id).String() }

// Task is the scheduler's bookkeeping record for one spawned worker.
type Task struct {
	id    TaskId
	scope *Scope
	done  chan struct{}

	mu     sync.Mutex
	result any
	err    error
}

// ID returns the task's identity.
func (t *Task) ID() TaskId { return t.id }

// Cancelled reports whether the task's scope (or an ancestor) has been
// cancelled; a task body is expected to check this at its own
// suspension points and run its defers before returning early.
func (t *Task) Cancelled() bool {
	return t.scope != nil && t.scope.Cancelled()
}

// Scheduler owns the pool of concurrently live task workers, bounded by a
// weighted semaphore so an unbounded `spawn` loop can't exhaust the host's
// goroutine/OS-thread budget.
type Scheduler struct {
	sem *semaphore.Weighted

	mu    sync.Mutex
	tasks map[TaskId]*Task
}

// NewScheduler creates a Scheduler admitting at most maxConcurrent tasks
// at once; additional Spawn calls block until a slot frees up.
func NewScheduler(maxConcurrent int64) *Scheduler {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Scheduler{
		sem:   semaphore.NewWeighted(maxConcurrent),
		tasks: make(map[TaskId]*Task),
	}
}

// Spawn starts fn running as a new task under scope (nil for an
// unscoped/root task) and returns its TaskId without waiting for fn. It
// blocks while maxConcurrent tasks are already live; fn's return
// value (or recovered panic, surfaced as an error) becomes the result
// Await delivers.
func (s *Scheduler) Spawn(ctx context.Context, scope *Scope, fn func(*Task) any) (TaskId, error) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return TaskId{}, fmt.Errorf("spawn: acquiring worker slot: %w", err)
	}

	t := &Task{id: TaskId(uuid.New()), scope: scope, done: make(chan struct{})}
	s.mu.Lock()
	s.tasks[t.id] = t
	s.mu.Unlock()
	if scope != nil {
		scope.track(t)
	}

	go func() {
		defer s.sem.Release(1)
		defer close(t.done)
		defer func() {
			if r := recover(); r != nil {
				t.mu.Lock()
				t.err = fmt.Errorf("task %s panicked: %v", t.id, r)
				t.mu.Unlock()
			}
		}()
		result := fn(t)
		t.mu.Lock()
		t.result = result
		t.mu.Unlock()
	}()

	return t.id, nil
}

// Await blocks until the task completes (or ctx is cancelled first) and
// returns its result.
func (s *Scheduler) Await(ctx context.Context, id TaskId) (any, error) {
	s.mu.Lock()
	t, ok := s.tasks[id]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("await: unknown task %s", id)
	}

	select {
	case <-t.done:
		t.mu.Lock()
		defer t.mu.Unlock()
		return t.result, t.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Yield cooperatively hands the OS thread back to the scheduler at an
// explicit suspension point, the same point at which a cancelled task is
// expected to observe its cancellation.
func Yield(t *Task) {
	runtime.Gosched()
}

// Scope bounds a group of tasks: leaving the scope cancels every task
// still outstanding within it, cooperatively (a cancelled task only stops
// at its own next suspension point).
type Scope struct {
	parent *Scope
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	children []*Task
}

// NewScope creates a root cancellation scope.
func NewScope() *Scope {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scope{ctx: ctx, cancel: cancel}
}

// NewChildScope creates a scope cancelled whenever its parent is.
func (s *Scope) NewChildScope() *Scope {
	ctx, cancel := context.WithCancel(s.ctx)
	return &Scope{parent: s, ctx: ctx, cancel: cancel}
}

// WithTimeout creates a child scope cancelled automatically once d
// elapses, implementing a language-level timeout scope.
func (s *Scope) WithTimeout(d time.Duration) *Scope {
	ctx, cancel := context.WithTimeout(s.ctx, d)
	return &Scope{parent: s, ctx: ctx, cancel: cancel}
}

// Context returns the scope's cancellation context, for Spawn/Await calls
// that want to respect it.
func (s *Scope) Context() context.Context { return s.ctx }

func (s *Scope) track(t *Task) {
	s.mu.Lock()
	s.children = append(s.children, t)
	s.mu.Unlock()
}

// Cancel cancels the scope: every outstanding task within it observes
// Cancelled() true at its next suspension point.
func (s *Scope) Cancel() { s.cancel() }

// Cancelled reports whether the scope (or an ancestor) has been
// cancelled.
func (s *Scope) Cancelled() bool {
	select {
	case <-s.ctx.Done():
		return true
	default:
		return false
	}
}

// Close cancels the scope and waits for every outstanding task it tracked
// to finish running its own defers — the "leaving the scope cancels
// outstanding tasks" rule applied at a Go function's defer boundary.
func (s *Scope) Close() {
	s.cancel()
	s.mu.Lock()
	children := append([]*Task(nil), s.children...)
	s.mu.Unlock()
	for _, t := range children {
		<-t.done
	}
}
