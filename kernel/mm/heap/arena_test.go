package heap

import (
	"testing"

	"memcore/kernel"
	"memcore/kernel/mm"
)

type fakeGrower struct {
	end   uintptr
	calls []uintptr

	// setAside is claimed by the grower itself ahead of the next
	// non-empty growth request.
	setAside uintptr
}

func (g *fakeGrower) Grow(increment uintptr) uintptr {
	if increment%mm.PageSize != 0 {
		panic("misaligned growth request")
	}

	g.calls = append(g.calls, increment)
	if increment != 0 {
		g.end += g.setAside
		g.setAside = 0
	}

	oldEnd := g.end
	g.end += increment
	return oldEnd
}

func (g *fakeGrower) growth() uintptr {
	var total uintptr
	for _, inc := range g.calls {
		total += inc
	}
	return total
}

func TestArenaAlloc(t *testing.T) {
	var (
		grower = &fakeGrower{end: 0x200000}
		arena  = NewArena(grower)
	)

	specs := []struct {
		size      uintptr
		aligned   bool
		expAddr   uintptr
		expGrowth uintptr
	}{
		{16, false, 0x200000, mm.PageSize},
		{16, false, 0x200010, mm.PageSize},
		{mm.PageSize, true, 0x201000, 2 * mm.PageSize},
		{1, false, 0x202000, 3 * mm.PageSize},
		{3 * mm.PageSize, false, 0x202001, 6 * mm.PageSize},
		{0, false, 0x205001, 6 * mm.PageSize},
	}

	for specIndex, spec := range specs {
		var (
			addr uintptr
			err  *kernel.Error
		)

		if spec.aligned {
			addr, err = arena.AllocAligned(spec.size)
		} else {
			addr, err = arena.Alloc(spec.size)
		}

		if err != nil {
			t.Errorf("[spec %d] unexpected error: %v", specIndex, err)
			continue
		}

		if addr != spec.expAddr {
			t.Errorf("[spec %d] expected address 0x%x; got 0x%x", specIndex, spec.expAddr, addr)
		}

		if got := grower.growth(); got != spec.expGrowth {
			t.Errorf("[spec %d] expected heap to have grown by 0x%x; got 0x%x", specIndex, spec.expGrowth, got)
		}
	}

	if count, bytes := arena.Stats(); count != len(specs) || bytes != 16+16+mm.PageSize+1+3*mm.PageSize {
		t.Fatalf("unexpected stats: %d allocations, %d bytes", count, bytes)
	}

	if arena.End() != grower.end {
		t.Fatalf("expected arena end 0x%x; got 0x%x", grower.end, arena.End())
	}
}

func TestArenaExternalGrowth(t *testing.T) {
	var (
		grower = &fakeGrower{end: 0x200000}
		arena  = NewArena(grower)
	)

	if _, err := arena.Alloc(8); err != nil {
		t.Fatal(err)
	}

	// Another heap user grows the heap behind the arena's back
	grower.Grow(2 * mm.PageSize)

	addr, err := arena.Alloc(8)
	if err != nil {
		t.Fatal(err)
	}

	if exp := uintptr(0x203000); addr != exp {
		t.Fatalf("expected allocation to resume at the new heap end 0x%x; got 0x%x", exp, addr)
	}
}

func TestArenaGrowerSetsPagesAside(t *testing.T) {
	var (
		grower = &fakeGrower{end: 0x200000}
		arena  = NewArena(grower)
	)

	if addr, _ := arena.Alloc(0x800); addr != 0x200000 {
		t.Fatalf("expected first allocation at 0x200000; got 0x%x", addr)
	}

	// The next growth lands past two pages the grower keeps for itself
	grower.setAside = 2 * mm.PageSize

	addr, err := arena.Alloc(0x1000)
	if err != nil {
		t.Fatal(err)
	}

	if exp := uintptr(0x203000); addr != exp {
		t.Fatalf("expected allocation to move past the pages set aside to 0x%x; got 0x%x", exp, addr)
	}

	if addr+0x1000 > arena.End() || arena.End() != grower.end {
		t.Fatalf("expected allocation to fit below the arena end 0x%x (grower end 0x%x)", arena.End(), grower.end)
	}

	// Memory set aside by the grower is never handed out
	next, _ := arena.Alloc(16)
	if next < addr+0x1000 {
		t.Fatalf("expected allocations to keep moving forward; got 0x%x", next)
	}
}

func TestArenaExhausted(t *testing.T) {
	var (
		grower = &fakeGrower{end: mm.MaxVirtAddr - mm.PageSize + 1}
		arena  = NewArena(grower)
	)

	if _, err := arena.Alloc(2 * mm.PageSize); err != ErrArenaExhausted {
		t.Fatalf("expected error %v; got %v", ErrArenaExhausted, err)
	}

	if got := grower.growth(); got != 0 {
		t.Fatalf("expected heap not to grow; grew by 0x%x", got)
	}

	if _, err := arena.Alloc(mm.PageSize); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
