// Package carrier implements the fixed-shape segment-tree carrier (C1): a
// static binary tree over a half-open integer interval [L, R), built once
// by midpoint bisection and never restructured. Carrier nodes are
// immutable except for a single atomic "current version" pointer, CASed
// by the update protocol in package augset.
package carrier

import (
	"augset/internal/atomicptr"
	"augset/pkg/version"
)

// Node is one carrier node: immutable interval and tree shape, plus a
// single atomic pointer to its current version.Node.
type Node[V any] struct {
	IsLeaf bool
	L, R   int

	// Parent is a non-owning back-reference used only for root-ward
	// walks; it is never used for ownership and is written once, at
	// construction, alongside Left/Right.
	Parent      *Node[V]
	Left, Right *Node[V]

	version *version.Node[V]
}

// LoadVersion performs an acquire-load of the node's current version.
func (n *Node[V]) LoadVersion() *version.Node[V] {
	return atomicptr.LoadPointer(&n.version)
}

// StoreVersion performs a release-store, used only during construction
// before the node is reachable by any other goroutine.
func (n *Node[V]) StoreVersion(v *version.Node[V]) {
	atomicptr.StorePointer(&n.version, v)
}

// CASVersion atomically replaces old with new iff old is still current.
func (n *Node[V]) CASVersion(old, new *version.Node[V]) bool {
	return atomicptr.CompareAndSwapPointer(&n.version, old, new)
}

// Reset clears a node's state before it re-enters its pool's freelist, so
// a reused node never leaks a stale Parent/Left/Right/version from its
// previous life in the tree.
func (n *Node[V]) Reset() {
	*n = Node[V]{}
}

// Factory supplies pooled storage for carrier and version nodes, so that
// construction draws from the same typed pools later updates use.
type Factory[V any] struct {
	NewNode    func() *Node[V]
	NewVersion func() *version.Node[V]
}

// Build constructs a carrier tree over [l, r) by midpoint bisection. The
// recursion terminates at unit intervals; each leaf gets a size-0 version,
// and each internal node gets a size-0 aggregate version over its
// freshly-built children. r must be greater than l.
func Build[V any](l, r int, f Factory[V]) *Node[V] {
	if r <= l {
		panic("carrier: empty or inverted interval")
	}

	n := f.NewNode()
	n.L, n.R = l, r

	if r-l == 1 {
		n.IsLeaf = true
		leaf := f.NewVersion()
		*leaf = version.Empty[V]()
		n.StoreVersion(leaf)
		return n
	}

	mid := l + (r-l)/2
	left := Build(l, mid, f)
	right := Build(mid, r, f)
	left.Parent = n
	right.Parent = n
	n.Left, n.Right = left, right

	agg := f.NewVersion()
	*agg = version.Aggregate(left.LoadVersion(), right.LoadVersion())
	n.StoreVersion(agg)

	return n
}

// FindLocation returns the unique leaf whose interval contains k, or
// ok=false if k is outside [root.L, root.R). Descent touches only
// immutable carrier structure (L, R, Left, Right), so it requires no
// synchronization and cannot contend with any writer.
func FindLocation[V any](root *Node[V], k int) (leaf *Node[V], ok bool) {
	if root == nil || k < root.L || k >= root.R {
		return nil, false
	}

	n := root
	for !n.IsLeaf {
		mid := n.Left.R
		if k < mid {
			n = n.Left
		} else {
			n = n.Right
		}
	}
	return n, true
}
