package mm

import "testing"

func TestPageTableEntryFlags(t *testing.T) {
	var (
		pte   PageTableEntry
		flag1 = PageTableEntryFlag(1 << 10)
		flag2 = PageTableEntryFlag(1 << 11)
	)

	if pte.HasAnyFlag(flag1 | flag2) {
		t.Fatalf("expected HasAnyFlags to return false")
	}

	pte.SetFlags(flag1 | flag2)

	if !pte.HasAnyFlag(flag1 | flag2) {
		t.Fatalf("expected HasAnyFlags to return true")
	}

	if !pte.HasFlags(flag1 | flag2) {
		t.Fatalf("expected HasFlags to return true")
	}

	pte.ClearFlags(flag1)

	if !pte.HasAnyFlag(flag1 | flag2) {
		t.Fatalf("expected HasAnyFlags to return true")
	}

	if pte.HasFlags(flag1 | flag2) {
		t.Fatalf("expected HasFlags to return false")
	}

	pte.ClearFlags(flag1 | flag2)

	if pte.HasAnyFlag(flag1 | flag2) {
		t.Fatalf("expected HasAnyFlags to return false")
	}

	if pte.HasFlags(flag1 | flag2) {
		t.Fatalf("expected HasFlags to return false")
	}
}

func TestPageTableEntryFrameEncoding(t *testing.T) {
	var (
		pte       PageTableEntry
		physFrame = Frame(0xfffff)
	)

	pte.SetFlags(FlagPresent | FlagRW)
	pte.SetFrame(physFrame)
	if got := pte.Frame(); got != physFrame {
		t.Fatalf("expected pte.Frame() to return %v; got %v", physFrame, got)
	}

	if !pte.HasFlags(FlagPresent | FlagRW) {
		t.Fatal("expected SetFrame to preserve the entry flags")
	}

	if exp := uint32(0xfffff003); uint32(pte) != exp {
		t.Fatalf("expected raw entry 0x%x; got 0x%x", exp, uint32(pte))
	}

	if exp := FlagPresent | FlagRW; pte.Flags() != exp {
		t.Fatalf("expected Flags() to return 0x%x; got 0x%x", exp, pte.Flags())
	}
}

func TestPageTableEntryMapped(t *testing.T) {
	specs := []struct {
		flags     PageTableEntryFlag
		frame     Frame
		expMapped bool
	}{
		{0, 0, false},
		{FlagPresent, 0, false},
		{0, 12, false},
		{FlagPresent, 12, true},
	}

	for specIndex, spec := range specs {
		var pte PageTableEntry
		pte.SetFlags(spec.flags)
		pte.SetFrame(spec.frame)

		if got := pte.Mapped(); got != spec.expMapped {
			t.Errorf("[spec %d] expected Mapped() to return %t; got %t", specIndex, spec.expMapped, got)
		}
	}
}

func TestPageTableEntrySetPermissions(t *testing.T) {
	specs := []struct {
		isKernel, isWritable bool
		expRW, expUser       bool
	}{
		{true, false, false, false},
		{true, true, true, false},
		{false, false, false, true},
		{false, true, true, true},
	}

	for specIndex, spec := range specs {
		pte := PageTableEntry(0)
		pte.SetFlags(FlagPresent | FlagRW | FlagUserAccessible)
		pte.SetFrame(42)
		pte.SetPermissions(spec.isKernel, spec.isWritable)

		if got := pte.HasFlags(FlagRW); got != spec.expRW {
			t.Errorf("[spec %d] expected RW flag to be %t", specIndex, spec.expRW)
		}

		if got := pte.HasFlags(FlagUserAccessible); got != spec.expUser {
			t.Errorf("[spec %d] expected user flag to be %t", specIndex, spec.expUser)
		}

		if pte.Frame() != 42 || !pte.HasFlags(FlagPresent) {
			t.Errorf("[spec %d] expected SetPermissions to leave frame and present bit untouched", specIndex)
		}
	}
}
