package vmm

import (
	"memcore/kernel/mm"
)

const (
	// directorySize is the footprint of a PageDirectory in the address
	// space: the table reference array, the hardware array and the
	// physical address of the latter.
	directorySize = 2*mm.PageSize + 4

	// pdeFlags are applied to every hardware directory entry.
	pdeFlags = mm.FlagPresent | mm.FlagRW | mm.FlagUserAccessible
)

// PageTable maps 4MiB of virtual address space using 1024 entries.
type PageTable struct {
	Pages [mm.EntriesPerTable]mm.PageTableEntry
}

type refKind uint8

const (
	refNone refKind = iota

	// refOwned tables belong to a single directory.
	refOwned

	// refShared tables are aliased from the kernel directory and must
	// not be released by the directory that references them.
	refShared
)

type tableRef struct {
	kind  refKind
	table *PageTable
}

// PageDirectory is the root of a two-level address space. It keeps the
// table references used by the kernel next to the hardware array of
// physical table addresses that the CPU walks. Both arrays are only updated
// through setTable.
type PageDirectory struct {
	tables     [mm.TablesPerDirectory]tableRef
	tablesPhys [mm.TablesPerDirectory]mm.PageTableEntry

	// virtAddr is where the directory was allocated.
	virtAddr uintptr

	// physAddr is the physical address of tablesPhys; this is the value
	// loaded into CR3.
	physAddr uintptr
}

// PhysAddr returns the physical address that is loaded into CR3 when the
// directory is activated.
func (pd *PageDirectory) PhysAddr() uintptr { return pd.physAddr }

// VirtAddr returns the address where the directory was allocated.
func (pd *PageDirectory) VirtAddr() uintptr { return pd.virtAddr }

// Table returns the table at index or nil if the slot is empty.
func (pd *PageDirectory) Table(index int) *PageTable {
	return pd.tables[index].table
}

// IsShared returns true if the table at index is aliased from another
// directory.
func (pd *PageDirectory) IsShared(index int) bool {
	return pd.tables[index].kind == refShared
}

// TablePhysAddr returns the physical address recorded for the table at
// index, or 0 if the slot is empty.
func (pd *PageDirectory) TablePhysAddr(index int) uintptr {
	return pd.tablesPhys[index].Frame().Address()
}

// Entry returns the hardware directory entry at index.
func (pd *PageDirectory) Entry(index int) mm.PageTableEntry {
	return pd.tablesPhys[index]
}

// TableCount returns the number of owned and shared tables.
func (pd *PageDirectory) TableCount() (owned, shared int) {
	for _, ref := range pd.tables {
		switch ref.kind {
		case refOwned:
			owned++
		case refShared:
			shared++
		}
	}
	return owned, shared
}

func (pd *PageDirectory) setTable(index int, ref tableRef, tablePhysAddr uintptr) {
	pd.tables[index] = ref

	var pde mm.PageTableEntry
	pde.SetFlags(pdeFlags)
	pde.SetFrame(mm.FrameFromAddress(tablePhysAddr))
	pd.tablesPhys[index] = pde
}
