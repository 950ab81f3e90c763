// Package augset implements a concurrent, lock-free augmented set over a
// dense integer key domain with optional per-key values: the update
// protocol (C3) wiring together the carrier tree (C1), version nodes (C2),
// and the epoch/pool collaborators (C4).
//
// The mutators (Insert, Remove) change shared tree state only by
// single-word CAS and never wait for another goroutine's CAS to complete.
// They are not entirely lock-free: each one also enters the epoch
// reclaimer and draws from the version-node pool, and both guard their
// bookkeeping with mutexes (a sync.Mutex, and a sync.Map for the reader
// table). Find and Check each read a single atomic version pointer.
// RankPrefix and RankSuffix load the versions of several carrier nodes one
// after another, so under concurrent updates their count need not equal
// the count at any single instant.
package augset

import (
	"sync/atomic"

	"augset/internal/epoch"
	"augset/internal/par"
	"augset/internal/pool"
	"augset/pkg/carrier"
	"augset/pkg/version"
)

// Config fixes the key domain [L, R) for a Set. It is immutable after New.
type Config struct {
	L, R int
}

// DefaultConfig covers a dense integer domain sized around 10^5, per
// spec's default for the key range.
func DefaultConfig() Config {
	return Config{L: 0, R: 100_000}
}

// Stats is a point-in-time snapshot of a Set's operation counters.
type Stats struct {
	Inserts       int64
	Removes       int64
	Finds         int64
	RefreshRetries int64
	// Reclaimed is the number of retired version nodes still waiting in
	// the epoch reclaimer at the time of the snapshot; it is not a running
	// total of nodes already freed.
	Reclaimed     int64
}

type counters struct {
	inserts        atomic.Int64
	removes        atomic.Int64
	finds          atomic.Int64
	refreshRetries atomic.Int64
}

// Set is a concurrent augmented set over [cfg.L, cfg.R).
type Set[V any] struct {
	cfg  Config
	root *carrier.Node[V]

	epoch *epoch.Manager

	nodePool    *pool.Pool[carrier.Node[V]]
	versionPool *pool.Pool[version.Node[V]]

	counters counters
}

// New builds an empty Set over cfg.L..cfg.R. The carrier tree, and its
// initial all-empty version nodes, are allocated through the same typed
// pools that later Insert/Remove/propagate traffic draws from.
func New[V any](cfg Config) *Set[V] {
	if cfg.R <= cfg.L {
		panic("augset: empty or inverted key range")
	}

	s := &Set[V]{
		cfg:   cfg,
		epoch: epoch.NewManager(),
	}
	s.nodePool = pool.New(
		func() *carrier.Node[V] { return new(carrier.Node[V]) },
		func(n *carrier.Node[V]) { n.Reset() },
	)
	s.versionPool = pool.New(
		func() *version.Node[V] { return new(version.Node[V]) },
		func(v *version.Node[V]) { v.Reset() },
	)

	s.root = carrier.Build(cfg.L, cfg.R, carrier.Factory[V]{
		NewNode:    s.nodePool.Get,
		NewVersion: s.versionPool.Get,
	})

	return s
}

// ReservePools pre-populates both node pools with n entries each, ahead of
// a known bulk workload.
func (s *Set[V]) ReservePools(n int) {
	s.nodePool.Reserve(n)
	s.versionPool.Reserve(n)
}

// Insert adds k with value v. It returns true iff this call transitioned
// k from absent to present; a key already present is a no-op returning
// false (this is the unsuccessful-update case, not an error — it is never
// retried). A key outside [L, R) also returns false.
func (s *Set[V]) Insert(k int, v V) bool {
	guard := s.epoch.Enter()
	defer guard.Leave()

	leaf, ok := carrier.FindLocation(s.root, k)
	if !ok {
		return false
	}

	old := leaf.LoadVersion()
	if old.Size != 0 {
		return false
	}

	next := s.versionPool.Get()
	*next = version.Occupied(v)

	if !leaf.CASVersion(old, next) {
		s.versionPool.Put(next)
		return false
	}
	s.epoch.Retire(func() { s.versionPool.Put(old) })

	s.counters.inserts.Add(1)
	s.propagate(leaf.Parent)
	return true
}

// Remove deletes k. It returns true iff this call transitioned k from
// present to absent; an absent key or an out-of-range key returns false.
func (s *Set[V]) Remove(k int) bool {
	guard := s.epoch.Enter()
	defer guard.Leave()

	leaf, ok := carrier.FindLocation(s.root, k)
	if !ok {
		return false
	}

	old := leaf.LoadVersion()
	if old.Size == 0 {
		return false
	}

	next := s.versionPool.Get()
	*next = version.Empty[V]()

	if !leaf.CASVersion(old, next) {
		s.versionPool.Put(next)
		return false
	}
	s.epoch.Retire(func() { s.versionPool.Put(old) })

	s.counters.removes.Add(1)
	s.propagate(leaf.Parent)
	return true
}

// Find returns the value stored at k, if any. A key outside [L, R), or one
// not currently present, reports ok=false. Find is wait-free within its
// epoch critical section.
func (s *Set[V]) Find(k int) (value V, ok bool) {
	guard := s.epoch.Enter()
	defer guard.Leave()

	s.counters.finds.Add(1)

	leaf, inRange := carrier.FindLocation(s.root, k)
	if !inRange {
		return value, false
	}

	v := leaf.LoadVersion()
	if v.Size != 1 {
		return value, false
	}
	return v.Value, true
}

// Check returns the current cardinality of the set: the root's aggregate
// size as of some linearization point.
func (s *Set[V]) Check() int {
	return s.root.LoadVersion().Size
}

// RankPrefix returns the number of elements with key strictly less than k
// — the cardinality of the prefix [L, k). It never enumerates the
// elements themselves, only their count, per the set's rank/size-only
// contract over sub-ranges.
func (s *Set[V]) RankPrefix(k int) int {
	if k <= s.cfg.L {
		return 0
	}
	if k >= s.cfg.R {
		return s.Check()
	}

	guard := s.epoch.Enter()
	defer guard.Leave()

	return rankLess(s.root, k)
}

// RankSuffix returns the number of elements with key greater than or
// equal to k — the cardinality of the suffix [k, R). It descends the tree
// directly in a single epoch-guarded pass (mirroring RankPrefix/rankLess)
// rather than subtracting RankPrefix from Check: those are two separately
// guarded reads and can straddle an intervening update, which can make
// Check()-RankPrefix(k) observe an impossible (e.g. negative) count.
func (s *Set[V]) RankSuffix(k int) int {
	if k <= s.cfg.L {
		return s.Check()
	}
	if k >= s.cfg.R {
		return 0
	}

	guard := s.epoch.Enter()
	defer guard.Leave()

	return rankGE(s.root, k)
}

// rankLess sums the sizes of every subtree fully contained in [n.L, k),
// recursing only into the one child straddling k. Since every leaf has
// unit width, an integer k never straddles a leaf, so the recursion always
// bottoms out at one of the two base cases.
func rankLess[V any](n *carrier.Node[V], k int) int {
	if n.R <= k {
		return n.LoadVersion().Size
	}
	if n.L >= k {
		return 0
	}
	return rankLess(n.Left, k) + rankLess(n.Right, k)
}

// rankGE sums the sizes of every subtree fully contained in [k, n.R),
// the mirror image of rankLess.
func rankGE[V any](n *carrier.Node[V], k int) int {
	if n.L >= k {
		return n.LoadVersion().Size
	}
	if n.R <= k {
		return 0
	}
	return rankGE(n.Left, k) + rankGE(n.Right, k)
}

// propagate lifts a leaf change toward the root, per the fail-fast,
// two-attempt refresh protocol: a node whose refresh fails twice cedes
// responsibility for the rest of the walk to whichever concurrent updater
// is responsible for the CAS that beat this one.
func (s *Set[V]) propagate(start *carrier.Node[V]) {
	n := start
	if n != nil && n.IsLeaf {
		n = n.Parent
	}

	for ; n != nil; n = n.Parent {
		if s.refresh(n) {
			continue
		}
		s.counters.refreshRetries.Add(1)
		if s.refresh(n) {
			continue
		}
		s.counters.refreshRetries.Add(1)
		return
	}
}

// refresh recomputes n's version from its children's current versions and
// CASes it in. It returns false on CAS failure, leaving n's prior version
// in place for the winning concurrent updater to have already accounted
// for (or to still be walking toward).
func (s *Set[V]) refresh(n *carrier.Node[V]) bool {
	old := n.LoadVersion()
	lv := n.Left.LoadVersion()
	rv := n.Right.LoadVersion()

	next := s.versionPool.Get()
	*next = version.Aggregate(lv, rv)

	if !n.CASVersion(old, next) {
		s.versionPool.Put(next)
		return false
	}
	s.epoch.Retire(func() { s.versionPool.Put(old) })
	return true
}

// Stats returns a snapshot of the set's operation counters, plus the
// reclaimer's pending-free count, mirroring the teacher's practice of
// shipping an atomic-counter bundle alongside a concurrent structure.
func (s *Set[V]) Stats() Stats {
	return Stats{
		Inserts:        s.counters.inserts.Load(),
		Removes:        s.counters.removes.Load(),
		Finds:          s.counters.finds.Load(),
		RefreshRetries: s.counters.refreshRetries.Load(),
		Reclaimed:      int64(s.epoch.PendingCount()),
	}
}

// PoolStats reports live/allocated counts for the carrier-node and
// version-node pools, for diagnosing reuse behavior.
func (s *Set[V]) PoolStats() (nodeLive, nodeTotal, versionLive, versionTotal int64) {
	nl, nt := s.nodePool.Stats()
	vl, vt := s.versionPool.Stats()
	return nl, nt, vl, vt
}

// Retire frees all nodes owned by the set. The caller must guarantee no
// concurrent Insert/Remove/Find/Check/RankPrefix/RankSuffix is in flight.
// It first drains the epoch reclaimer so that any version nodes retired by
// earlier, now-quiesced updates are actually freed rather than left
// pending, then recycles the carrier tree itself.
func (s *Set[V]) Retire() {
	if s.root == nil {
		return
	}
	s.epoch.Drain()
	s.retireSubtree(s.root)
	s.root = nil
}

// retireSubtree recycles n and its version into their pools, recursing
// into both children in parallel — the only use of par.Do in this
// package, since bulk teardown is the one place independent subtree work
// is worth forking.
func (s *Set[V]) retireSubtree(n *carrier.Node[V]) {
	if n == nil {
		return
	}
	if !n.IsLeaf {
		par.Do(
			func() { s.retireSubtree(n.Left) },
			func() { s.retireSubtree(n.Right) },
		)
	}
	s.versionPool.Put(n.LoadVersion())
	s.nodePool.Put(n)
}
