// Package heap provides a byte-granularity bump allocator that obtains its
// memory by growing the kernel heap.
package heap

import (
	"memcore/kernel"
	"memcore/kernel/mm"
)

var (
	// ErrArenaExhausted is returned when an allocation would extend the
	// heap past the end of the address space.
	ErrArenaExhausted = &kernel.Error{Module: "heap", Message: "allocation exceeds the kernel heap address range"}
)

// Grower extends the kernel heap by a page-aligned increment and returns the
// previous heap end.
type Grower interface {
	Grow(increment uintptr) uintptr
}

// Arena hands out memory from the kernel heap. Memory is never freed.
type Arena struct {
	grower Grower

	// next is the address of the next allocation and end the current
	// heap end. [next, end) is mapped but unused.
	next, end uintptr

	allocCount int
	allocBytes uintptr
}

// NewArena returns an Arena that grows the heap through g.
func NewArena(g Grower) *Arena {
	return &Arena{grower: g}
}

// Alloc implements bootmem.HeapAllocator.
func (a *Arena) Alloc(size uintptr) (uintptr, *kernel.Error) {
	return a.alloc(size, false)
}

// AllocAligned implements bootmem.HeapAllocator.
func (a *Arena) AllocAligned(size uintptr) (uintptr, *kernel.Error) {
	return a.alloc(size, true)
}

// Stats returns the number of allocations served and the number of bytes
// handed out.
func (a *Arena) Stats() (count int, bytes uintptr) {
	return a.allocCount, a.allocBytes
}

// End returns the heap end last observed by the arena.
func (a *Arena) End() uintptr { return a.end }

func (a *Arena) alloc(size uintptr, aligned bool) (uintptr, *kernel.Error) {
	for {
		// Pick up growth performed by other heap users
		if heapEnd := a.grower.Grow(0); heapEnd != a.end {
			a.next, a.end = heapEnd, heapEnd
		}

		addr := a.next
		if aligned {
			addr = mm.AlignUp(addr)
		}

		if uint64(addr)+uint64(size) > uint64(mm.MaxVirtAddr)+1 {
			return 0, ErrArenaExhausted
		}

		if required := addr + size; required > a.end {
			end, increment := a.end, mm.AlignUp(required-a.end)

			// The grower may hand out memory to others before claiming
			// the new region; start over from the region it returned.
			if start := a.grower.Grow(increment); start != end {
				a.next, a.end = start, start+increment
				continue
			}

			a.end = end + increment
		}

		a.next = addr + size
		a.allocCount++
		a.allocBytes += size
		return addr, nil
	}
}
