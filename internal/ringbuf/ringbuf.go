/*
 * This file is part of SA818 Bridge (https://github.com/oe5xrx/sa818-bridge-go).
 * Copyright (C) 2025 OE5XRX
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program. If not, see <https://www.gnu.org/licenses/>.
 */

package ringbuf

import "fmt"

// RingBuffer is a fixed-capacity circular byte buffer used to decouple the
// sample-rate domains of the audio path (USB frame clock vs. ADC/DAC clock).
//
// Put and Get never block and never fail: a Put that would exceed the free
// space accepts only what fits and reports how many bytes it took, a Get
// returns at most what is buffered. Partial completion is the overflow /
// underrun signal for the caller to account for.
//
// The buffer is NOT internally synchronized. Each instance is shared between
// exactly one producer and one consumer context, and all access must happen
// under the owning component's lock.
type RingBuffer struct {
	name string
	buf  []byte
	// read/write cursors are free-running and wrapped with a power-of-two
	// mask, so occupancy is always writePos - readPos without a "full" flag.
	mask     uint32
	readPos  uint32
	writePos uint32
}

// New creates a ring buffer holding capacity bytes. The capacity must be a
// power of two so cursor wrapping stays a mask operation.
//
// The name identifies the buffer's role (e.g. "tx", "rx") in log output.
func New(name string, capacity int) (*RingBuffer, error) {
	if capacity <= 0 || capacity&(capacity-1) != 0 {
		return nil, fmt.Errorf("ring buffer %q: capacity %d is not a power of two", name, capacity)
	}

	return &RingBuffer{
		name: name,
		buf:  make([]byte, capacity),
		mask: uint32(capacity) - 1,
	}, nil
}

// Name returns the role name given at construction.
func (rb *RingBuffer) Name() string {
	return rb.name
}

// Capacity returns the total capacity in bytes.
func (rb *RingBuffer) Capacity() int {
	return len(rb.buf)
}

// Size returns the number of bytes currently buffered.
func (rb *RingBuffer) Size() int {
	return int(rb.writePos - rb.readPos)
}

// Space returns the number of bytes that can be accepted before the buffer
// is full.
func (rb *RingBuffer) Space() int {
	return len(rb.buf) - rb.Size()
}

// Put copies as much of data as fits into the buffer and returns the number
// of bytes accepted. A return value smaller than len(data) means the
// remainder was dropped; the caller decides whether that is worth logging.
func (rb *RingBuffer) Put(data []byte) int {
	n := len(data)
	if free := rb.Space(); n > free {
		n = free
	}

	for i := 0; i < n; i++ {
		rb.buf[(rb.writePos+uint32(i))&rb.mask] = data[i]
	}
	rb.writePos += uint32(n)

	return n
}

// Get copies up to len(out) buffered bytes into out and returns the number
// of bytes copied. Zero means the buffer is empty (underrun).
func (rb *RingBuffer) Get(out []byte) int {
	n := len(out)
	if avail := rb.Size(); n > avail {
		n = avail
	}

	for i := 0; i < n; i++ {
		out[i] = rb.buf[(rb.readPos+uint32(i))&rb.mask]
	}
	rb.readPos += uint32(n)

	return n
}

// Reset logically empties the buffer. The backing storage is not zeroed;
// stale bytes are unreachable once the cursors are equal.
func (rb *RingBuffer) Reset() {
	rb.readPos = 0
	rb.writePos = 0
}
