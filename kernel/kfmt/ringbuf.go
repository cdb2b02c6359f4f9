package kfmt

import "io"

// ringBufferSize defines the number of bytes of early output that are kept
// around until an output sink is attached. It must be a power of 2.
const ringBufferSize = 4096

// ringBuffer retains the most recent ringBufferSize bytes written to it.
// Older bytes are silently overwritten.
type ringBuffer struct {
	buffer [ringBufferSize]byte

	// start is the index of the oldest unread byte and count is the
	// number of unread bytes.
	start, count int
}

// Write appends p to the ring buffer, dropping the oldest bytes if needed.
func (rb *ringBuffer) Write(p []byte) (int, error) {
	written := len(p)

	// Only the tail of p can survive
	if len(p) > ringBufferSize {
		p = p[len(p)-ringBufferSize:]
	}

	for len(p) != 0 {
		end := (rb.start + rb.count) & (ringBufferSize - 1)
		n := copy(rb.buffer[end:], p)
		p = p[n:]

		rb.count += n
		if overflow := rb.count - ringBufferSize; overflow > 0 {
			rb.start = (rb.start + overflow) & (ringBufferSize - 1)
			rb.count = ringBufferSize
		}
	}

	return written, nil
}

// Read drains up to len(p) unread bytes into p. It returns io.EOF once the
// buffer is empty.
func (rb *ringBuffer) Read(p []byte) (int, error) {
	if rb.count == 0 {
		return 0, io.EOF
	}

	n := rb.count
	if tail := ringBufferSize - rb.start; n > tail {
		n = tail
	}
	if n > len(p) {
		n = len(p)
	}

	copy(p, rb.buffer[rb.start:rb.start+n])
	rb.start = (rb.start + n) & (ringBufferSize - 1)
	rb.count -= n

	return n, nil
}

// Len returns the number of unread bytes.
func (rb *ringBuffer) Len() int {
	return rb.count
}
