// Package atomicptr provides a generic wrapper around sync/atomic's
// unsafe-pointer CAS family, so callers get a typed Load/Store/CAS instead
// of repeating the (*unsafe.Pointer)(unsafe.Pointer(&x)) cast at every site.
package atomicptr

import (
	"sync/atomic"
	"unsafe"
)

// LoadPointer performs an acquire-load of *addr.
func LoadPointer[T any](addr **T) *T {
	return (*T)(atomic.LoadPointer((*unsafe.Pointer)(unsafe.Pointer(addr))))
}

// StorePointer performs a release-store of val into *addr.
func StorePointer[T any](addr **T, val *T) {
	atomic.StorePointer((*unsafe.Pointer)(unsafe.Pointer(addr)), unsafe.Pointer(val))
}

// CompareAndSwapPointer replaces *addr with new iff it currently holds old.
func CompareAndSwapPointer[T any](addr **T, old, new *T) (swapped bool) {
	return atomic.CompareAndSwapPointer(
		(*unsafe.Pointer)(unsafe.Pointer(addr)),
		unsafe.Pointer(old),
		unsafe.Pointer(new),
	)
}
