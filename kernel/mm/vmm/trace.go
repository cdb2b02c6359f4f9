package vmm

// EventKind identifies a memory manager state change.
type EventKind uint8

const (
	// EventFrameAllocated is emitted when an entry is backed by a new frame.
	EventFrameAllocated EventKind = iota

	// EventFrameReleased is emitted by Unmap.
	EventFrameReleased

	// EventTableCreated is emitted when a page table is created. VirtAddr
	// is the start of the 4MiB region covered by the table.
	EventTableCreated

	// EventDirectoryCloned is emitted by CloneDirectory. VirtAddr holds the
	// source directory and PhysAddr the clone.
	EventDirectoryCloned

	// EventDirectoryActivated is emitted by Activate.
	EventDirectoryActivated

	// EventHeapGrown is emitted by Grow. Detail holds the number of pages
	// added to the heap.
	EventHeapGrown

	// EventPageFault is emitted by the page fault handler before it
	// halts the machine. Detail holds the error code.
	EventPageFault
)

var eventKindNames = [...]string{
	EventFrameAllocated:     "frame-allocated",
	EventFrameReleased:      "frame-released",
	EventTableCreated:       "table-created",
	EventDirectoryCloned:    "directory-cloned",
	EventDirectoryActivated: "directory-activated",
	EventHeapGrown:          "heap-grown",
	EventPageFault:          "page-fault",
}

// String implements fmt.Stringer.
func (k EventKind) String() string {
	if int(k) < len(eventKindNames) {
		return eventKindNames[k]
	}
	return "unknown"
}

// ParseEventKind returns the EventKind with the given name.
func ParseEventKind(name string) (EventKind, bool) {
	for kind, kindName := range eventKindNames {
		if kindName == name {
			return EventKind(kind), true
		}
	}
	return 0, false
}

// Event describes a memory manager state change.
type Event struct {
	Kind     EventKind
	VirtAddr uintptr
	PhysAddr uintptr
	Detail   uint32
}

// Tracer is notified about memory manager state changes.
type Tracer interface {
	Trace(ev Event)
}

type nopTracer struct{}

func (nopTracer) Trace(Event) {}
