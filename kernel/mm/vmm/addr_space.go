package vmm

import (
	"memcore/kernel"
	"memcore/kernel/irq"
	"memcore/kernel/mm"
	"memcore/kernel/mm/pmm"
)

// Install sets up paging for a machine with totalMemory bytes of RAM. It
// sizes the frame bitmap, creates the kernel directory and identity-maps
// (read-only, kernel only) every page consumed so far by the kernel image
// and the bootstrap allocator. Finally it installs the fault handlers,
// clones the kernel directory and activates the clone.
func (m *MemoryManager) Install(totalMemory mm.Size) *kernel.Error {
	if m.kernelDir != nil {
		return ErrAlreadyInstalled
	}

	if err := m.frames.Init(totalMemory.Frames(), &m.boot); err != nil {
		return err
	}

	kernelDir, err := m.newDirectory()
	if err != nil {
		return err
	}
	m.kernelDir = kernelDir
	m.reserveBootMemory()

	m.faults.HandleException(irq.PageFaultException, m.pageFaultHandler)
	m.faults.HandleException(irq.GPFException, m.generalProtectionFaultHandler)

	current, err := m.CloneDirectory(m.kernelDir)
	if err != nil {
		return err
	}

	m.Activate(current)

	m.log.Printf("installed paging: %d frames, %d reserved, kernel pdt at 0x%08x\n",
		m.frames.FrameCount(), m.frames.UsedFrames(), m.kernelDir.PhysAddr())
	return nil
}

// reserveBootMemory identity-maps every page from the end of the previously
// reserved region up to one page past the bootstrap cursor. The bound is
// re-evaluated after each page since creating tables advances the cursor.
// Pages whose frame was handed out before the walk got there are skipped;
// bootAllocPhys never places bootstrap memory on them.
func (m *MemoryManager) reserveBootMemory() {
	if m.reserving {
		return
	}

	m.reserving = true
	for ; m.reservedEnd < m.bootEnd(); m.reservedEnd += mm.PageSize {
		frame := mm.FrameFromAddress(m.reservedEnd)
		if m.frames.IsUsed(frame) {
			continue
		}

		pte := m.LookupPage(m.reservedEnd, true, m.kernelDir)
		m.frames.AssignFrame(pte, frame, true, false)
		m.tracer.Trace(Event{Kind: EventFrameAllocated, VirtAddr: m.reservedEnd, PhysAddr: frame.Address()})
	}
	m.reserving = false
}

// bootAllocPhys carves a page-aligned block from the bootstrap allocator or,
// once it is retired, from the heap. After paging is installed the carve is
// moved past any frame handed out in the meantime so that bootstrap memory
// never aliases a frame owned by another page.
func (m *MemoryManager) bootAllocPhys(size uintptr) (uintptr, uintptr, *kernel.Error) {
	if m.kernelDir != nil && !m.boot.Retired() {
		start := mm.AlignUp(m.boot.Cursor())
		for addr := start; addr < start+size; addr += mm.PageSize {
			frame := mm.FrameFromAddress(addr)
			if uint32(frame) >= m.frames.FrameCount() {
				return 0, 0, pmm.ErrOutOfFrames
			}

			if addr >= m.reservedEnd && m.frames.IsUsed(frame) {
				start = addr + mm.PageSize
			}
		}

		m.boot.SkipTo(start)
	}

	return m.boot.AllocPhys(size, true)
}

// bootEnd returns the bootstrap cursor rounded to the end of the following
// page.
func (m *MemoryManager) bootEnd() uintptr {
	return (m.boot.Cursor() + mm.PageSize) &^ (mm.PageSize - 1)
}

// newDirectory allocates and zeroes a page directory.
func (m *MemoryManager) newDirectory() (*PageDirectory, *kernel.Error) {
	virtAddr, physAddr, err := m.bootAllocPhys(directorySize)
	if err != nil {
		return nil, err
	}

	// The hardware array starts one page into the allocation. Once the
	// heap is installed the allocation is no longer physically
	// contiguous so the array address must be translated on its own.
	hwAddr := physAddr + mm.PageSize
	if m.boot.Retired() {
		if hwAddr, err = m.Translate(virtAddr+mm.PageSize, m.currentDir); err != nil {
			return nil, err
		}
	}

	dir := &PageDirectory{virtAddr: virtAddr, physAddr: hwAddr}
	m.accountTables()
	return dir, nil
}

// CloneDirectory returns a new directory with the same mappings as src.
// Tables that belong to the kernel directory are shared with the clone;
// any other table is copied into a table owned by the clone whose entries
// are backed by fresh frames carrying the same flags.
func (m *MemoryManager) CloneDirectory(src *PageDirectory) (*PageDirectory, *kernel.Error) {
	if m.kernelDir == nil {
		return nil, ErrNotInstalled
	}

	dir, err := m.newDirectory()
	if err != nil {
		return nil, err
	}

	for index := 0; index < mm.TablesPerDirectory; index++ {
		table := src.Table(index)
		if table == nil {
			continue
		}

		if src.IsShared(index) || m.kernelDir.Table(index) == table {
			dir.setTable(index, tableRef{kind: refShared, table: table}, src.TablePhysAddr(index))
			continue
		}

		copied, tablePhysAddr := m.allocTable()
		dir.setTable(index, tableRef{kind: refOwned, table: copied}, tablePhysAddr)
		m.accountTables()
		m.copyTable(copied, table, uintptr(index)<<mm.TableShift)
	}

	m.clones = append(m.clones, dir)
	m.tracer.Trace(Event{Kind: EventDirectoryCloned, VirtAddr: src.PhysAddr(), PhysAddr: dir.PhysAddr()})
	return dir, nil
}

// copyTable backs every mapped entry of src with a new frame in dst. Page
// contents are not copied.
func (m *MemoryManager) copyTable(dst, src *PageTable, baseAddr uintptr) {
	for index, pte := range src.Pages {
		if !pte.Mapped() {
			continue
		}

		dstPte := &dst.Pages[index]
		m.allocFor(dstPte, baseAddr+uintptr(index)<<mm.PageShift, !pte.HasFlags(mm.FlagUserAccessible), pte.HasFlags(mm.FlagRW))
		dstPte.SetFlags(pte.Flags())
	}
}

// Activate makes dir the current address space and loads it into the MMU.
func (m *MemoryManager) Activate(dir *PageDirectory) {
	m.currentDir = dir
	m.mmu.SwitchPDT(dir.PhysAddr())
	m.tracer.Trace(Event{Kind: EventDirectoryActivated, PhysAddr: dir.PhysAddr()})
}
