package vmm_test

import (
	"memcore/kernel/cpu"
	"memcore/kernel/irq"
	"memcore/kernel/mm"
	"memcore/kernel/mm/heap"
	"memcore/kernel/mm/vmm"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"
)

var _ = Describe("Booting a 16MiB machine", func() {
	var (
		mockCtrl *gomock.Controller
		tracer   *vmm.MockTracer
		mmu      *cpu.MMU
		faults   *irq.Dispatcher
		m        *vmm.MemoryManager
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		tracer = vmm.NewMockTracer(mockCtrl)
		tracer.EXPECT().Trace(gomock.Any()).AnyTimes()

		mmu = &cpu.MMU{}
		faults = &irq.Dispatcher{}
		m = vmm.New(vmm.Config{
			KernelEnd: uintptr(1 * mm.Mb),
			MMU:       mmu,
			Faults:    faults,
			Tracer:    tracer,
		})

		Expect(m.Install(16 * mm.Mb)).To(BeNil())
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should reserve the kernel image and the boot structures", func() {
		Expect(m.Frames().FrameCount()).To(Equal(uint32(4096)))

		for frame := mm.Frame(0); frame < 256; frame++ {
			Expect(m.Frames().IsUsed(frame)).To(BeTrue(), "frame %d", frame)
		}

		// The bitmap, both directories and the first table are carved
		// from the bootstrap allocator past the 1MiB kernel image and
		// are reserved along with it.
		firstFree, err := m.Frames().FindFirstFree()
		Expect(err).To(BeNil())
		Expect(firstFree).To(Equal(mm.FrameFromAddress(m.ReservedEnd())))
		// 256 image frames, then frame 256 for the bitmap, 257-259 for the
		// kernel directory, 260 for table 0 and 261-263 for the clone, so
		// the first free frame is 264 rather than 256.
		Expect(firstFree).To(Equal(mm.Frame(264)))
		Expect(m.Frames().UsedFrames()).To(Equal(uint32(264)))
	})

	It("should activate a clone of the kernel directory", func() {
		Expect(mmu.PagingEnabled()).To(BeTrue())
		Expect(mmu.ActivePDT()).To(Equal(m.CurrentDirectory().PhysAddr()))
		Expect(m.CurrentDirectory()).NotTo(BeIdenticalTo(m.KernelDirectory()))
		Expect(m.CurrentDirectory().Table(0)).To(BeIdenticalTo(m.KernelDirectory().Table(0)))
	})

	It("should create tables lazily", func() {
		Expect(m.LookupPage(0x80000000, false, m.CurrentDirectory())).To(BeNil())

		owned, shared := m.CurrentDirectory().TableCount()
		Expect(owned).To(Equal(0))
		Expect(shared).To(Equal(1))
	})

	Context("when the heap is installed", func() {
		var heapStart uintptr

		BeforeEach(func() {
			Expect(m.InstallHeap(heap.NewArena(m))).To(BeNil())
			heapStart = m.HeapEnd()
		})

		It("should map two frames when growing by 8KiB", func() {
			used := m.Frames().UsedFrames()

			Expect(m.Grow(8 * uintptr(mm.Kb))).To(Equal(heapStart))
			Expect(m.Frames().UsedFrames()).To(Equal(used + 2))
			Expect(m.HeapEnd()).To(Equal(heapStart + 8*uintptr(mm.Kb)))

			for i := 0; i < 3; i++ {
				Expect(m.Grow(0)).To(Equal(heapStart + 8*uintptr(mm.Kb)))
			}
			Expect(m.Frames().UsedFrames()).To(Equal(used + 2))
		})

		It("should never hand out the same frame twice", func() {
			m.Grow(64 * mm.PageSize)

			owners := make(map[mm.Frame]uintptr)
			for addr := uintptr(mm.PageSize); addr < m.HeapEnd(); addr += mm.PageSize {
				pte := m.LookupPage(addr, false, m.KernelDirectory())
				Expect(pte).NotTo(BeNil())

				frame := pte.Frame()
				prev, seen := owners[frame]
				Expect(seen).To(BeFalse(), "frame %d owned by 0x%x and 0x%x", frame, prev, addr)
				owners[frame] = addr
				Expect(m.Frames().IsUsed(frame)).To(BeTrue())
			}
		})

		It("should halt on a fault raised by a bad access", func() {
			code, ok := m.CheckAccess(0x1000, true, false, m.CurrentDirectory())
			Expect(ok).To(BeFalse())

			mmu.LatchFault(0x1000)
			Expect(func() {
				faults.Raise(irq.PageFaultException, irq.Regs{Info: code})
			}).To(PanicWith(BeIdenticalTo(vmm.ErrPageFault)))
		})
	})
})
