package mm

// PageTableEntryFlag describes a flag that can be applied to a page table
// entry or a page directory entry.
type PageTableEntryFlag uint32

const (
	// FlagPresent is set when the mapping is valid.
	FlagPresent PageTableEntryFlag = 1 << iota

	// FlagRW is set if the page can be written to.
	FlagRW

	// FlagUserAccessible is set if user-mode processes can access this page. If
	// not set only kernel code can access this page.
	FlagUserAccessible

	// FlagWriteThroughCaching implies write-through caching when set and write-back
	// caching if cleared.
	FlagWriteThroughCaching

	// FlagDoNotCache prevents this page from being cached if set.
	FlagDoNotCache

	// FlagAccessed is set by the CPU when this page is accessed.
	FlagAccessed

	// FlagDirty is set by the CPU when this page is modified.
	FlagDirty
)

// ptePhysPageMask extracts the frame bits (12-31) of an entry.
const ptePhysPageMask = uint32(0xfffff000)

// PageTableEntry describes one 4KiB mapping slot using the i386 entry
// layout: flag bits in the low 12 bits and the frame index in the upper 20.
// An entry whose frame is 0 is unmapped regardless of its flag bits.
type PageTableEntry uint32

// HasFlags returns true if this entry has all the input flags set.
func (pte PageTableEntry) HasFlags(flags PageTableEntryFlag) bool {
	return (uint32(pte) & uint32(flags)) == uint32(flags)
}

// HasAnyFlag returns true if this entry has at least one of the input flags set.
func (pte PageTableEntry) HasAnyFlag(flags PageTableEntryFlag) bool {
	return (uint32(pte) & uint32(flags)) != 0
}

// SetFlags sets the input list of flags to the page table entry.
func (pte *PageTableEntry) SetFlags(flags PageTableEntryFlag) {
	*pte = PageTableEntry(uint32(*pte) | uint32(flags))
}

// ClearFlags unsets the input list of flags from the page table entry.
func (pte *PageTableEntry) ClearFlags(flags PageTableEntryFlag) {
	*pte = PageTableEntry(uint32(*pte) &^ uint32(flags))
}

// Frame returns the physical page frame that this page table entry points to.
func (pte PageTableEntry) Frame() Frame {
	return Frame((uint32(pte) & ptePhysPageMask) >> PageShift)
}

// SetFrame updates the page table entry to point the the given physical frame.
func (pte *PageTableEntry) SetFrame(frame Frame) {
	*pte = PageTableEntry((uint32(*pte) &^ ptePhysPageMask) | (uint32(frame) << PageShift))
}

// Mapped returns true if the entry is present and owns a frame.
func (pte PageTableEntry) Mapped() bool {
	return pte.HasFlags(FlagPresent) && pte.Frame() != 0
}

// SetPermissions sets FlagRW and FlagUserAccessible according to the
// supplied arguments, clearing them otherwise.
func (pte *PageTableEntry) SetPermissions(isKernel, isWritable bool) {
	pte.ClearFlags(FlagRW | FlagUserAccessible)
	if isWritable {
		pte.SetFlags(FlagRW)
	}
	if !isKernel {
		pte.SetFlags(FlagUserAccessible)
	}
}

// Flags returns the flag bits (0-11) of the entry.
func (pte PageTableEntry) Flags() PageTableEntryFlag {
	return PageTableEntryFlag(uint32(pte) &^ ptePhysPageMask)
}
