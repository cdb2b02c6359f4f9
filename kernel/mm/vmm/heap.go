package vmm

import (
	"memcore/kernel"
	"memcore/kernel/mm"
	"memcore/kernel/mm/bootmem"
)

const (
	// heapLimit is the first address past the 32-bit address space.
	heapLimit = uint64(mm.MaxVirtAddr) + 1

	// minSpareTables is the number of spare table pages kept between heap
	// operations. One of them may be consumed while another is being
	// mapped during a refill.
	minSpareTables = 2
)

// tablePage is a heap page set aside to back a page table.
type tablePage struct {
	virtAddr, physAddr uintptr
}

// InstallHeap switches the bootstrap allocator over to heap. The kernel heap
// starts at the first page past the memory handed out by the bootstrap
// allocator; any bootstrap allocations made after Install are reserved
// before the switch. The first heap pages are set aside to back the page
// tables that later heap growth needs.
func (m *MemoryManager) InstallHeap(heap bootmem.HeapAllocator) *kernel.Error {
	switch {
	case m.currentDir == nil:
		return ErrNotInstalled
	case m.heapInstalled:
		return ErrHeapAlreadyInstalled
	}

	m.reserveBootMemory()

	// The first heap page must be covered by a table before bootstrap
	// memory is retired.
	m.LookupPage(m.reservedEnd, true, m.kernelDir)

	m.heapStart, m.heapEnd = m.reservedEnd, m.reservedEnd
	m.heapInstalled = true
	m.boot.Retire(heap, m.translateCurrent)
	m.refillTables(0)

	m.log.Printf("kernel heap starts at 0x%08x\n", m.heapStart)
	return nil
}

func (m *MemoryManager) translateCurrent(virtAddr uintptr) (uintptr, *kernel.Error) {
	return m.Translate(virtAddr, m.currentDir)
}

// HeapInstalled returns true once InstallHeap has completed.
func (m *MemoryManager) HeapInstalled() bool { return m.heapInstalled }

// HeapStart returns the first address of the kernel heap.
func (m *MemoryManager) HeapStart() uintptr { return m.heapStart }

// HeapEnd returns the current end of the kernel heap.
func (m *MemoryManager) HeapEnd() uintptr { return m.heapEnd }

// SpareTables returns the number of heap pages set aside for page tables.
func (m *MemoryManager) SpareTables() int { return len(m.spareTables) }

// Grow extends the kernel heap by increment bytes and returns the start of
// the new region. Each new page is mapped writable for the kernel in the
// kernel directory. The increment must be page-aligned; violating this or
// growing before InstallHeap is fatal.
//
// Page tables for the new region live in the heap too. When spare table
// pages run low they are allocated before the region is claimed, so the
// returned start is the previous heap end unless spare pages were set aside
// first.
func (m *MemoryManager) Grow(increment uintptr) uintptr {
	if !m.heapInstalled {
		kernel.Fatal(ErrHeapNotInstalled)
	}

	if !mm.PageAligned(increment) || !mm.PageAligned(m.heapEnd) {
		kernel.Fatal(ErrMisalignedRequest)
	}

	if increment == 0 {
		return m.heapEnd
	}

	m.checkHeapLimit(increment)
	m.refillTables(increment)
	m.checkHeapLimit(increment)

	oldEnd := m.heapEnd
	m.heapEnd = oldEnd + increment

	m.growing = true
	for addr := oldEnd; addr-oldEnd < increment; addr += mm.PageSize {
		pte := m.LookupPage(addr, true, m.kernelDir)
		m.allocFor(pte, addr, true, true)
	}
	m.growing = false

	m.tracer.Trace(Event{Kind: EventHeapGrown, VirtAddr: oldEnd, Detail: uint32(increment >> mm.PageShift)})
	return oldEnd
}

func (m *MemoryManager) checkHeapLimit(increment uintptr) {
	if uint64(m.heapEnd)+uint64(increment) > heapLimit {
		kernel.Fatal(ErrHeapExhausted)
	}
}

// refillTables sets aside enough heap pages to back every table missing
// from the next increment bytes of heap plus minSpareTables. The pages are
// obtained through the bootstrap allocator, which delegates to the heap and
// may grow it; such nested growth is served from the existing spares.
func (m *MemoryManager) refillTables(increment uintptr) {
	if m.refilling || m.growing {
		return
	}

	m.refilling = true
	for len(m.spareTables) < m.missingTables(m.heapEnd, increment)+minSpareTables {
		virtAddr, physAddr, err := m.boot.AllocPhys(mm.PageSize, true)
		if err != nil {
			kernel.Fatal(err)
		}

		m.spareTables = append(m.spareTables, tablePage{virtAddr: virtAddr, physAddr: physAddr})
	}
	m.refilling = false
}

// missingTables counts the kernel tables that mapping size bytes starting
// at start would have to create.
func (m *MemoryManager) missingTables(start, size uintptr) int {
	if size == 0 {
		return 0
	}

	var (
		first = uint64(start) >> mm.TableShift
		last  = (uint64(start) + uint64(size) - 1) >> mm.TableShift
		count int
	)

	for index := first; index <= last && index < mm.TablesPerDirectory; index++ {
		if m.kernelDir.Table(int(index)) == nil {
			count++
		}
	}

	return count
}
