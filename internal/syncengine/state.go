// Package syncengine is the wallet's single-threaded chain-following state
// machine (§4.6): it pulls blocks from FakeArchivalState, scans them against
// the key hierarchy, commits discoveries through WalletStore, and tracks
// in-flight spends through the pending re-proving loop. Grounded on
// sync.rs's SyncState shape: the same four states, the same pause/reset/
// cancel protocol, generalized from tokio tasks to a goroutine plus channels.
package syncengine

import (
	"sync"
	"sync/atomic"
)

// State is the engine's externally observable lifecycle stage.
type State int32

const (
	Stopped State = iota
	Syncing
	WaitPause
	Paused
)

func (s State) String() string {
	switch s {
	case Syncing:
		return "syncing"
	case WaitPause:
		return "wait_pause"
	case Paused:
		return "paused"
	default:
		return "stopped"
	}
}

// Status is a point-in-time snapshot for the RPC layer.
type Status struct {
	State  State
	Height uint64
}

// stateBox is an atomically-swappable State, mirroring the original's
// AtomicU8-backed sync state field.
type stateBox struct {
	v atomic.Int32
}

func (b *stateBox) load() State   { return State(b.v.Load()) }
func (b *stateBox) store(s State) { b.v.Store(int32(s)) }
func (b *stateBox) cas(from, to State) bool {
	return b.v.CompareAndSwap(int32(from), int32(to))
}

// waiters lets callers block until the loop reaches a state, used by
// reset_to_height's pause-spin-resume dance.
type waiters struct {
	mu sync.Mutex
	ch chan struct{}
}

func newWaiters() *waiters { return &waiters{ch: make(chan struct{})} }

// broadcast wakes every current waiter; callers must re-check their
// condition after waking, as with a standard condition variable.
func (w *waiters) broadcast() {
	w.mu.Lock()
	close(w.ch)
	w.ch = make(chan struct{})
	w.mu.Unlock()
}

func (w *waiters) wait() <-chan struct{} {
	w.mu.Lock()
	ch := w.ch
	w.mu.Unlock()
	return ch
}
