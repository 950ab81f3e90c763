// Package epoch provides epoch-based memory reclamation for lock-free data
// structures, adapted from a copy-on-write B+ tree's EpochManager: a global
// epoch counter, per-reader entry epochs, and a deferred-free list keyed by
// the epoch a node was retired in. A retired node is only handed back once
// every reader that could still observe it has left.
package epoch

import (
	"sync"
	"sync/atomic"
)

// Manager tracks active readers and retired callbacks, and decides when a
// retired callback is safe to run.
type Manager struct {
	global uint64 // current epoch, advanced by writers

	readers sync.Map // readerID -> *readerState

	retiredMu sync.Mutex
	retired   map[uint64][]func()

	nextReaderID uint64
}

type readerState struct {
	epoch  uint64
	active int32
}

// NewManager creates a manager starting at epoch 1 (0 means "not entered").
func NewManager() *Manager {
	return &Manager{
		global:  1,
		retired: make(map[uint64][]func()),
	}
}

// Guard represents an active reader's critical section.
type Guard struct {
	mgr      *Manager
	state    *readerState
	readerID uint64
}

// Enter begins a read critical section, pinning the epoch observed at
// entry. The returned Guard must be released with Leave.
func (m *Manager) Enter() *Guard {
	id := atomic.AddUint64(&m.nextReaderID, 1)
	st := &readerState{epoch: atomic.LoadUint64(&m.global)}
	atomic.StoreInt32(&st.active, 1)
	m.readers.Store(id, st)
	return &Guard{mgr: m, state: st, readerID: id}
}

// WithEpoch runs thunk inside a scoped epoch critical section, guaranteeing
// release on every exit path (including panics).
func (m *Manager) WithEpoch(thunk func()) {
	g := m.Enter()
	defer g.Leave()
	thunk()
}

// Leave ends the reader's critical section.
func (g *Guard) Leave() {
	if g == nil || g.state == nil {
		return
	}
	atomic.StoreInt32(&g.state.active, 0)
	g.mgr.readers.Delete(g.readerID)
}

// Epoch returns the epoch this guard entered at.
func (g *Guard) Epoch() uint64 {
	if g == nil || g.state == nil {
		return 0
	}
	return g.state.epoch
}

// Advance moves the global epoch forward and returns the new value.
func (m *Manager) Advance() uint64 {
	return atomic.AddUint64(&m.global, 1)
}

// CurrentEpoch returns the current global epoch.
func (m *Manager) CurrentEpoch() uint64 {
	return atomic.LoadUint64(&m.global)
}

// Retire defers free until no reader older than the current epoch remains
// active. free is typically a closure returning the node to its pool.
//
// Retire also advances the global epoch and attempts reclamation, the way
// the teacher's EpochManager advances on every commit: a workload that
// never calls Drain (i.e. never tears down) still reclaims retired nodes
// as old readers quiesce, rather than only at teardown.
func (m *Manager) Retire(free func()) {
	if free == nil {
		return
	}
	epoch := atomic.LoadUint64(&m.global)
	m.retiredMu.Lock()
	m.retired[epoch] = append(m.retired[epoch], free)
	m.retiredMu.Unlock()

	m.Advance()
	m.TryReclaim()
}

// TryReclaim runs every retired callback older than the oldest active
// reader's epoch, and reports how many ran.
func (m *Manager) TryReclaim() int {
	minEpoch := m.minActiveEpoch()

	m.retiredMu.Lock()
	defer m.retiredMu.Unlock()

	reclaimed := 0
	for epoch, fns := range m.retired {
		if epoch < minEpoch {
			for _, fn := range fns {
				fn()
			}
			reclaimed += len(fns)
			delete(m.retired, epoch)
		}
	}
	return reclaimed
}

func (m *Manager) minActiveEpoch() uint64 {
	min := atomic.LoadUint64(&m.global)
	m.readers.Range(func(_, v any) bool {
		st := v.(*readerState)
		if atomic.LoadInt32(&st.active) == 1 && st.epoch < min {
			min = st.epoch
		}
		return true
	})
	return min
}

// ActiveReaderCount returns the number of readers currently inside a
// critical section.
func (m *Manager) ActiveReaderCount() int {
	count := 0
	m.readers.Range(func(_, v any) bool {
		st := v.(*readerState)
		if atomic.LoadInt32(&st.active) == 1 {
			count++
		}
		return true
	})
	return count
}

// PendingCount returns the number of retired callbacks not yet run.
func (m *Manager) PendingCount() int {
	m.retiredMu.Lock()
	defer m.retiredMu.Unlock()
	n := 0
	for _, fns := range m.retired {
		n += len(fns)
	}
	return n
}

// Drain blocks the caller (which must not itself hold a guard) until every
// retired callback has run, advancing the epoch as needed. Used by Retire
// at teardown, where no concurrent operations are permitted.
func (m *Manager) Drain() {
	for m.PendingCount() > 0 {
		m.Advance()
		if m.TryReclaim() == 0 && m.ActiveReaderCount() == 0 {
			// No readers pinning anything but callbacks remain at the
			// newest epoch; one more advance always frees them.
			m.Advance()
			m.TryReclaim()
			return
		}
	}
}
