// Package bootmem implements the placement allocator that hands out memory
// while the kernel bootstraps paging.
package bootmem

import (
	"memcore/kernel"
	"memcore/kernel/mm"
)

// HeapAllocator is a general-purpose allocator that takes over from the
// placement allocator once the kernel heap is installed. Both methods
// return virtual addresses.
type HeapAllocator interface {
	// Alloc reserves size bytes.
	Alloc(size uintptr) (uintptr, *kernel.Error)

	// AllocAligned reserves size bytes starting at a page boundary.
	AllocAligned(size uintptr) (uintptr, *kernel.Error)
}

// TranslateFn resolves the physical address backing a virtual address in
// the currently active address space.
type TranslateFn func(virtAddr uintptr) (uintptr, *kernel.Error)

// Allocator implements a rudimentary one-way allocator which is used to
// bootstrap the kernel.
//
// Allocations are tracked via a cursor that starts past the end of the
// loaded kernel image and only moves forward: it is not possible to free
// allocated memory. Before paging is enabled memory is identity-mapped, so
// every returned address is also the physical address of the allocation.
//
// Once the kernel heap is installed, Retire hands all further requests over
// to a HeapAllocator and the cursor is reset.
type Allocator struct {
	// cursor is the address that will be returned by the next unaligned
	// allocation.
	cursor uintptr

	heap      HeapAllocator
	translate TranslateFn
}

// SetStart pins the cursor to addr. It is used once at boot to start the
// allocator just past the kernel image.
func (alloc *Allocator) SetStart(addr uintptr) {
	alloc.cursor = addr
}

// SkipTo advances the cursor to addr. Addresses behind the cursor are
// ignored so memory that was already handed out is never returned again.
func (alloc *Allocator) SkipTo(addr uintptr) {
	if addr > alloc.cursor {
		alloc.cursor = addr
	}
}

// Cursor returns the current value of the cursor. It is 0 once the
// allocator has been retired.
func (alloc *Allocator) Cursor() uintptr {
	return alloc.cursor
}

// Retired returns true if Retire has been called.
func (alloc *Allocator) Retired() bool {
	return alloc.heap != nil
}

// Retire hands subsequent allocation requests over to heap. translate is
// used to resolve physical addresses for AllocPhys calls. After Retire the
// cursor is reset and must not be used for further placement allocations.
func (alloc *Allocator) Retire(heap HeapAllocator, translate TranslateFn) {
	alloc.heap = heap
	alloc.translate = translate
	alloc.cursor = 0
}

// Alloc reserves size bytes, optionally starting at a page boundary, and
// returns their virtual address.
func (alloc *Allocator) Alloc(size uintptr, aligned bool) (uintptr, *kernel.Error) {
	virtAddr, _, err := alloc.alloc(size, aligned, false)
	return virtAddr, err
}

// AllocPhys behaves like Alloc but also returns the physical address
// backing the allocation.
func (alloc *Allocator) AllocPhys(size uintptr, aligned bool) (uintptr, uintptr, *kernel.Error) {
	return alloc.alloc(size, aligned, true)
}

func (alloc *Allocator) alloc(size uintptr, aligned, wantPhys bool) (uintptr, uintptr, *kernel.Error) {
	if alloc.heap != nil {
		return alloc.heapAlloc(size, aligned, wantPhys)
	}

	if aligned && !mm.PageAligned(alloc.cursor) {
		alloc.cursor = mm.AlignUp(alloc.cursor)
	}

	addr := alloc.cursor
	alloc.cursor += size

	// Identity-mapped regime; the physical address is the address itself
	return addr, addr, nil
}

func (alloc *Allocator) heapAlloc(size uintptr, aligned, wantPhys bool) (uintptr, uintptr, *kernel.Error) {
	var (
		virtAddr, physAddr uintptr
		err                *kernel.Error
	)

	if aligned {
		virtAddr, err = alloc.heap.AllocAligned(size)
	} else {
		virtAddr, err = alloc.heap.Alloc(size)
	}

	if err != nil {
		return 0, 0, err
	}

	if wantPhys {
		if physAddr, err = alloc.translate(virtAddr); err != nil {
			return 0, 0, err
		}
	}

	return virtAddr, physAddr, nil
}
