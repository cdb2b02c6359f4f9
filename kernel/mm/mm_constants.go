package mm

const (
	// PointerShift is equal to log2(size of a table entry) for the 32-bit
	// paging scheme modelled by this package.
	PointerShift = uintptr(2)

	// PageShift is equal to log2(PageSize). This constant is used when
	// we need to convert a physical address to a page number (shift right by PageShift)
	// and vice-versa.
	PageShift = uintptr(12)

	// PageSize defines the system's page size in bytes.
	PageSize = uintptr(1 << PageShift)

	// EntriesPerTable is the number of page entries held by a page table.
	EntriesPerTable = 1024

	// TablesPerDirectory is the number of page table slots in a page
	// directory.
	TablesPerDirectory = 1024

	// TableShift is equal to log2(EntriesPerTable * PageSize); it converts
	// a virtual address to a page directory index.
	TableShift = uintptr(22)

	// MaxVirtAddr is the last addressable byte of a 32-bit address space.
	MaxVirtAddr = uintptr(1<<32 - 1)
)
