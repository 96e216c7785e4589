package internal

import (
	"context"
	"sync"
)

// ConnectionManager serializes client initialization. A successful
// initialization is remembered; a failed one is reported to every waiter and
// attempted again by the next call.
type ConnectionManager struct {
	mu    sync.Mutex
	done  bool
	tried bool
	err   error
}

// NewConnectionManager creates a new ConnectionManager instance ready for use.
func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{}
}

// Initialize runs fn unless a previous call already succeeded. Concurrent
// callers block until the running attempt finishes and then observe its result.
func (cm *ConnectionManager) Initialize(ctx context.Context, fn func(context.Context) error) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.done {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	cm.err = fn(ctx)
	cm.tried = true
	cm.done = cm.err == nil
	return cm.err
}

// Error returns the error from the last initialization attempt, if any.
// This can be called to check the initialization status without triggering it.
func (cm *ConnectionManager) Error() error {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.err
}

// IsInitialized returns true once an initialization attempt has succeeded.
func (cm *ConnectionManager) IsInitialized() bool {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.done
}

// Attempted returns true once any initialization attempt has finished.
func (cm *ConnectionManager) Attempted() bool {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.tried
}
