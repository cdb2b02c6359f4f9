// Package pmm implements the physical frame allocator.
package pmm

import (
	"math"
	"math/bits"

	"memcore/kernel"
	"memcore/kernel/mm"
	"memcore/kernel/mm/bootmem"
)

const (
	bitsPerWord  = 32
	bytesPerWord = 4
	fullWord     = uint32(math.MaxUint32)
)

var (
	// ErrOutOfFrames is returned when every tracked frame is in use.
	ErrOutOfFrames = &kernel.Error{Module: "pmm", Message: "out of physical frames"}

	// fatalFn is invoked when a frame is demanded but none are available.
	// Tests override it to observe the condition without unwinding.
	fatalFn = kernel.Fatal
)

// BitmapAllocator tracks frame reservations using a bitmap with one bit per
// physical frame. Bit (f % 32) of word (f / 32) is set when frame f is
// owned by a page table entry.
type BitmapAllocator struct {
	// frameCount is the number of frames tracked by the bitmap. Bits in
	// the last word that lie past frameCount are never handed out.
	frameCount uint32

	// usedCount tracks the number of set bits.
	usedCount uint32

	// storageAddr is the address of the bitmap storage that was carved
	// from the bootstrap allocator.
	storageAddr uintptr

	words []uint32
}

// Init sizes the bitmap for frameCount frames and reserves its storage from
// the bootstrap allocator. All frames start out free.
func (alloc *BitmapAllocator) Init(frameCount uint32, boot *bootmem.Allocator) *kernel.Error {
	wordCount := (frameCount + bitsPerWord - 1) / bitsPerWord

	addr, err := boot.Alloc(uintptr(wordCount)*bytesPerWord, false)
	if err != nil {
		return err
	}

	alloc.frameCount = frameCount
	alloc.usedCount = 0
	alloc.storageAddr = addr
	alloc.words = make([]uint32, wordCount)
	return nil
}

// FrameCount returns the number of frames tracked by the allocator.
func (alloc *BitmapAllocator) FrameCount() uint32 { return alloc.frameCount }

// UsedFrames returns the number of frames currently marked as used.
func (alloc *BitmapAllocator) UsedFrames() uint32 { return alloc.usedCount }

// FreeFrames returns the number of frames that can still be allocated.
func (alloc *BitmapAllocator) FreeFrames() uint32 { return alloc.frameCount - alloc.usedCount }

// StorageAddr returns the address of the bitmap storage.
func (alloc *BitmapAllocator) StorageAddr() uintptr { return alloc.storageAddr }

// MarkUsed flags frame as used. Frames outside the tracked range are
// ignored.
func (alloc *BitmapAllocator) MarkUsed(frame mm.Frame) {
	if uint32(frame) >= alloc.frameCount {
		return
	}

	word, mask := frame/bitsPerWord, uint32(1)<<(frame%bitsPerWord)
	if alloc.words[word]&mask == 0 {
		alloc.words[word] |= mask
		alloc.usedCount++
	}
}

// MarkFree flags frame as free. Frames outside the tracked range are
// ignored.
func (alloc *BitmapAllocator) MarkFree(frame mm.Frame) {
	if uint32(frame) >= alloc.frameCount {
		return
	}

	word, mask := frame/bitsPerWord, uint32(1)<<(frame%bitsPerWord)
	if alloc.words[word]&mask != 0 {
		alloc.words[word] &^= mask
		alloc.usedCount--
	}
}

// IsUsed returns true if frame is marked as used. Frames outside the tracked
// range are always reported as used so that callers never hand them out.
func (alloc *BitmapAllocator) IsUsed(frame mm.Frame) bool {
	if uint32(frame) >= alloc.frameCount {
		return true
	}

	return alloc.words[frame/bitsPerWord]&(1<<(frame%bitsPerWord)) != 0
}

// FindFirstFree returns the lowest-numbered free frame. Fully used words are
// skipped without inspecting their bits.
func (alloc *BitmapAllocator) FindFirstFree() (mm.Frame, *kernel.Error) {
	for wordIndex, word := range alloc.words {
		if word == fullWord {
			continue
		}

		frame := uint32(wordIndex)*bitsPerWord + uint32(bits.TrailingZeros32(^word))
		if frame >= alloc.frameCount {
			break
		}

		return mm.Frame(frame), nil
	}

	return mm.InvalidFrame, ErrOutOfFrames
}

// AllocFrame reserves the first free frame.
func (alloc *BitmapAllocator) AllocFrame() (mm.Frame, *kernel.Error) {
	frame, err := alloc.FindFirstFree()
	if err != nil {
		return mm.InvalidFrame, err
	}

	alloc.MarkUsed(frame)
	return frame, nil
}

// AllocFor backs pte with a physical frame. If pte already owns a frame only
// its permission bits are updated. Running out of frames is fatal.
//
// Frame 0 is handed out like any other frame but an entry holding it reads
// as unmapped, so callers must keep frame 0 reserved before relying on
// AllocFor. Identity-mapping page 0 at boot does exactly that.
func (alloc *BitmapAllocator) AllocFor(pte *mm.PageTableEntry, isKernel, isWritable bool) {
	if pte.Frame() == 0 {
		frame, err := alloc.AllocFrame()
		if err != nil {
			fatalFn(err)
			return
		}

		pte.SetFlags(mm.FlagPresent)
		pte.SetFrame(frame)
	}

	pte.SetPermissions(isKernel, isWritable)
}

// AssignFrame backs pte with frame, which must be free, and marks it as
// used. It returns false and leaves pte untouched if frame is already owned
// or lies outside the tracked range. It is used to identity-map memory that
// was handed out by the bootstrap allocator, whose physical location is
// fixed.
func (alloc *BitmapAllocator) AssignFrame(pte *mm.PageTableEntry, frame mm.Frame, isKernel, isWritable bool) bool {
	if alloc.IsUsed(frame) {
		return false
	}

	alloc.MarkUsed(frame)
	pte.SetFlags(mm.FlagPresent)
	pte.SetFrame(frame)
	pte.SetPermissions(isKernel, isWritable)
	return true
}

// Release returns the frame owned by pte to the allocator and clears the
// entry's frame field. The present and permission bits are left untouched;
// an entry with a zero frame is treated as unmapped regardless.
func (alloc *BitmapAllocator) Release(pte *mm.PageTableEntry) {
	frame := pte.Frame()
	if frame == 0 {
		return
	}

	alloc.MarkFree(frame)
	pte.SetFrame(0)
}
