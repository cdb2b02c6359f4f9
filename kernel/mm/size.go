package mm

import (
	"strconv"
	"strings"

	"memcore/kernel"
)

// Size represents a memory block size in bytes.
type Size uint64

// Common memory block sizes.
const (
	Byte Size = 1
	Kb        = 1024 * Byte
	Mb        = 1024 * Kb
	Gb        = 1024 * Mb
)

var errInvalidSize = &kernel.Error{Module: "mm", Message: "invalid memory size"}

// Frames returns the number of whole frames that fit in s.
func (s Size) Frames() uint32 {
	return uint32(uintptr(s) >> PageShift)
}

// String returns a human readable representation of s using the largest unit
// that divides it exactly.
func (s Size) String() string {
	switch {
	case s != 0 && s%Gb == 0:
		return strconv.FormatUint(uint64(s/Gb), 10) + "G"
	case s != 0 && s%Mb == 0:
		return strconv.FormatUint(uint64(s/Mb), 10) + "M"
	case s != 0 && s%Kb == 0:
		return strconv.FormatUint(uint64(s/Kb), 10) + "K"
	default:
		return strconv.FormatUint(uint64(s), 10)
	}
}

// ParseSize parses sizes like "16M", "8K", "4096" or "0x100000". The K, M
// and G suffixes are binary multiples.
func ParseSize(v string) (Size, *kernel.Error) {
	v = strings.TrimSpace(strings.ToUpper(v))
	if v == "" {
		return 0, errInvalidSize
	}

	unit := Byte
	switch v[len(v)-1] {
	case 'K':
		unit = Kb
	case 'M':
		unit = Mb
	case 'G':
		unit = Gb
	}
	if unit != Byte {
		v = v[:len(v)-1]
	}

	n, err := strconv.ParseUint(v, 0, 64)
	if err != nil {
		return 0, errInvalidSize
	}

	return Size(n) * unit, nil
}
