// Package vmm implements two-level paging on top of the physical frame
// allocator: page directories and tables, address space cloning and
// activation, fault reporting and kernel heap growth.
package vmm

import (
	"memcore/kernel"
	"memcore/kernel/irq"
	"memcore/kernel/kfmt"
	"memcore/kernel/mm"
	"memcore/kernel/mm/bootmem"
	"memcore/kernel/mm/pmm"
)

var (
	// ErrAlreadyInstalled is returned by Install when paging has already
	// been set up.
	ErrAlreadyInstalled = &kernel.Error{Module: "vmm", Message: "paging already installed"}

	// ErrNotInstalled is returned by operations that require Install to
	// have completed.
	ErrNotInstalled = &kernel.Error{Module: "vmm", Message: "paging not installed"}

	// ErrHeapAlreadyInstalled is returned by InstallHeap when called twice.
	ErrHeapAlreadyInstalled = &kernel.Error{Module: "vmm", Message: "kernel heap already installed"}

	// ErrInvalidMapping is returned when a virtual address is not backed by
	// a physical frame.
	ErrInvalidMapping = &kernel.Error{Module: "vmm", Message: "virtual address does not point to a mapped physical page"}

	// ErrMisalignedRequest is raised when the heap is grown by an amount
	// that is not a multiple of the page size.
	ErrMisalignedRequest = &kernel.Error{Module: "vmm", Message: "heap growth request is not page-aligned"}

	// ErrHeapNotInstalled is raised when the heap is grown before
	// InstallHeap has been called.
	ErrHeapNotInstalled = &kernel.Error{Module: "vmm", Message: "kernel heap not installed"}

	// ErrHeapExhausted is raised when heap growth would run past the end
	// of the 32-bit address space.
	ErrHeapExhausted = &kernel.Error{Module: "vmm", Message: "kernel heap exceeds the virtual address space"}

	// ErrNoSpareTables is raised when a page table is needed after heap
	// install and no spare heap page is left to back it.
	ErrNoSpareTables = &kernel.Error{Module: "vmm", Message: "no spare page available for a page table"}

	// ErrPageFault is raised by the page fault handler.
	ErrPageFault = &kernel.Error{Module: "vmm", Message: "unrecoverable page fault"}

	// ErrGeneralProtectionFault is raised by the general protection fault
	// handler.
	ErrGeneralProtectionFault = &kernel.Error{Module: "vmm", Message: "general protection fault"}
)

// MMU is implemented by the CPU model that owns the paging registers.
type MMU interface {
	// SwitchPDT loads the physical address of a page directory into CR3
	// and enables paging.
	SwitchPDT(pdtPhysAddr uintptr)

	// ReadCR2 returns the virtual address that caused the last page fault.
	ReadCR2() uintptr
}

// FaultDispatcher registers handlers for CPU exceptions.
type FaultDispatcher interface {
	HandleException(num irq.ExceptionNum, handler irq.ExceptionHandler)
}

// Config holds the collaborators of a MemoryManager.
type Config struct {
	// KernelEnd is the first address past the loaded kernel image. The
	// bootstrap allocator starts handing out memory from here.
	KernelEnd uintptr

	MMU    MMU
	Faults FaultDispatcher

	// Tracer receives an Event for each state change. It is optional.
	Tracer Tracer
}

// MemoryManager owns the memory management state of a single machine: the
// bootstrap allocator, the frame bitmap, the kernel and current page
// directories and the kernel heap end. It is not safe for concurrent use.
type MemoryManager struct {
	boot   bootmem.Allocator
	frames pmm.BitmapAllocator

	mmu    MMU
	faults FaultDispatcher
	tracer Tracer
	log    *kfmt.PrefixWriter

	kernelDir  *PageDirectory
	currentDir *PageDirectory

	// clones holds every directory produced by CloneDirectory. Tables
	// created in the kernel directory are shared into their empty slots.
	clones []*PageDirectory

	// reservedEnd is the end of the region identity-mapped for the
	// kernel image and its bootstrap allocations.
	reservedEnd uintptr
	reserving   bool

	heapInstalled bool
	heapStart     uintptr
	heapEnd       uintptr

	// spareTables holds heap pages set aside to back page tables once
	// the heap is installed. It is refilled outside of the heap mapping
	// loop so that growing the heap never needs the heap allocator.
	spareTables []tablePage
	refilling   bool
	growing     bool
}

// New returns a MemoryManager whose bootstrap allocator starts at
// cfg.KernelEnd. Paging is not set up until Install is called.
func New(cfg Config) *MemoryManager {
	m := &MemoryManager{
		mmu:    cfg.MMU,
		faults: cfg.Faults,
		tracer: cfg.Tracer,
		log:    kfmt.NewPrefixWriter("vmm"),
	}

	if m.tracer == nil {
		m.tracer = nopTracer{}
	}

	m.boot.SetStart(cfg.KernelEnd)
	return m
}

// Bootmem returns the bootstrap allocator.
func (m *MemoryManager) Bootmem() *bootmem.Allocator { return &m.boot }

// Frames returns the physical frame allocator.
func (m *MemoryManager) Frames() *pmm.BitmapAllocator { return &m.frames }

// KernelDirectory returns the kernel page directory or nil if paging has
// not been installed.
func (m *MemoryManager) KernelDirectory() *PageDirectory { return m.kernelDir }

// CurrentDirectory returns the active page directory.
func (m *MemoryManager) CurrentDirectory() *PageDirectory { return m.currentDir }

// Directories returns the kernel directory followed by every cloned
// directory.
func (m *MemoryManager) Directories() []*PageDirectory {
	if m.kernelDir == nil {
		return nil
	}

	dirs := make([]*PageDirectory, 0, len(m.clones)+1)
	dirs = append(dirs, m.kernelDir)
	return append(dirs, m.clones...)
}

// Installed returns true once Install has completed.
func (m *MemoryManager) Installed() bool { return m.currentDir != nil }

// ReservedEnd returns the end of the identity-mapped boot region.
func (m *MemoryManager) ReservedEnd() uintptr { return m.reservedEnd }

// allocFor backs pte with a frame and reports newly assigned frames to the
// tracer.
func (m *MemoryManager) allocFor(pte *mm.PageTableEntry, virtAddr uintptr, isKernel, isWritable bool) {
	hadFrame := pte.Frame() != 0
	m.frames.AllocFor(pte, isKernel, isWritable)

	if !hadFrame {
		m.tracer.Trace(Event{Kind: EventFrameAllocated, VirtAddr: virtAddr, PhysAddr: pte.Frame().Address()})
	}
}
