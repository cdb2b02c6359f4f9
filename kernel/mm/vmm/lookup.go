package vmm

import (
	"memcore/kernel"
	"memcore/kernel/mm"
)

// LookupPage returns the entry that maps virtAddr in dir. If the table that
// covers virtAddr does not exist, LookupPage returns nil unless create is
// set, in which case a zeroed table is allocated and recorded in dir.
// Addresses past the 32-bit address space never resolve.
func (m *MemoryManager) LookupPage(virtAddr uintptr, create bool, dir *PageDirectory) *mm.PageTableEntry {
	if virtAddr > mm.MaxVirtAddr {
		return nil
	}

	page := mm.PageFromAddress(virtAddr)
	tableIndex, entryIndex := page.TableIndex(), page.EntryIndex()

	if table := dir.Table(tableIndex); table != nil {
		return &table.Pages[entryIndex]
	}

	if !create {
		return nil
	}

	table, tablePhysAddr := m.allocTable()
	dir.setTable(tableIndex, tableRef{kind: refOwned, table: table}, tablePhysAddr)

	// Keep kernel mappings visible from every address space
	if dir == m.kernelDir {
		for _, clone := range m.clones {
			if clone.Table(tableIndex) == nil {
				clone.setTable(tableIndex, tableRef{kind: refShared, table: table}, tablePhysAddr)
			}
		}
	}

	m.tracer.Trace(Event{
		Kind:     EventTableCreated,
		VirtAddr: uintptr(tableIndex) << mm.TableShift,
		PhysAddr: tablePhysAddr,
	})

	m.accountTables()
	return &table.Pages[entryIndex]
}

// allocTable reserves the backing store for a page table. Before the heap is
// installed tables are carved from the bootstrap allocator; afterwards they
// use one of the spare heap pages set aside by refillTables.
func (m *MemoryManager) allocTable() (*PageTable, uintptr) {
	if !m.heapInstalled {
		_, physAddr, err := m.bootAllocPhys(mm.PageSize)
		if err != nil {
			kernel.Fatal(err)
		}
		return new(PageTable), physAddr
	}

	last := len(m.spareTables) - 1
	if last < 0 {
		kernel.Fatal(ErrNoSpareTables)
	}

	spare := m.spareTables[last]
	m.spareTables = m.spareTables[:last]
	return new(PageTable), spare.physAddr
}

// accountTables makes sure that the memory backing a newly created table
// or directory is owned by a page entry before any frame is handed out
// again. It is a no-op while the caller is already doing so.
func (m *MemoryManager) accountTables() {
	switch {
	case m.heapInstalled:
		m.refillTables(0)
	case m.kernelDir != nil:
		m.reserveBootMemory()
	}
}

// Translate returns the physical address that corresponds to virtAddr in
// dir or ErrInvalidMapping if virtAddr is not mapped.
func (m *MemoryManager) Translate(virtAddr uintptr, dir *PageDirectory) (uintptr, *kernel.Error) {
	pte := m.LookupPage(virtAddr, false, dir)
	if pte == nil || !pte.Mapped() {
		return 0, ErrInvalidMapping
	}

	return pte.Frame().Address() + virtAddr&(mm.PageSize-1), nil
}

// Unmap releases the frame that backs virtAddr in dir and clears the
// present and permission bits of its entry.
func (m *MemoryManager) Unmap(virtAddr uintptr, dir *PageDirectory) *kernel.Error {
	pte := m.LookupPage(virtAddr, false, dir)
	if pte == nil || pte.Frame() == 0 {
		return ErrInvalidMapping
	}

	physAddr := pte.Frame().Address()
	m.frames.Release(pte)
	pte.ClearFlags(mm.FlagPresent | mm.FlagRW | mm.FlagUserAccessible)

	m.tracer.Trace(Event{Kind: EventFrameReleased, VirtAddr: virtAddr, PhysAddr: physAddr})
	return nil
}

// CheckAccess performs the permission check the CPU applies when virtAddr is
// accessed through dir. If the access would fault, CheckAccess returns false
// together with the error code the CPU pushes for the page fault.
func (m *MemoryManager) CheckAccess(virtAddr uintptr, write, user bool, dir *PageDirectory) (uint32, bool) {
	var code uint32
	if write {
		code |= FaultCodeWrite
	}
	if user {
		code |= FaultCodeUser
	}

	pte := m.LookupPage(virtAddr, false, dir)
	if pte == nil || !pte.Mapped() {
		return code, false
	}

	if (write && !pte.HasFlags(mm.FlagRW)) || (user && !pte.HasFlags(mm.FlagUserAccessible)) {
		return code | FaultCodePresent, false
	}

	return 0, true
}
