/*
Copyright (C) 2023  Carl-Philip Hänsch

    This program is free software: you can redistribute it and/or modify
    it under the terms of the GNU General Public License as published by
    the Free Software Foundation, either version 3 of the License, or
    (at your option) any later version.

    This program is distributed in the hope that it will be useful,
    but WITHOUT ANY WARRANTY; without even the implied warranty of
    MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
    GNU General Public License for more details.

    You should have received a copy of the GNU General Public License
    along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

// Package sds implements a small-string-optimized binary string, the
// engine's basic unit of key and string-value storage.
package sds

import "bytes"

// inlineCap is the number of bytes an Sds can hold without a heap
// allocation.
const inlineCap = 22

// Sds is an owned byte sequence with two representations: inline (length <=
// inlineCap) and heap-backed (a grown []byte). The zero value is a valid
// empty Sds.
type Sds struct {
	inline  [inlineCap]byte
	heap    []byte
	length  int
	isHeap  bool
}

// FromString creates an Sds from a Go string.
func FromString(s string) Sds {
	return FromBytes([]byte(s))
}

// FromBytes creates an Sds copying the given bytes.
func FromBytes(b []byte) (s Sds) {
	s.length = len(b)
	if len(b) <= inlineCap {
		copy(s.inline[:], b)
		return
	}
	s.isHeap = true
	s.heap = make([]byte, len(b))
	copy(s.heap, b)
	return
}

// Len returns the logical length in bytes.
func (s *Sds) Len() int {
	return s.length
}

// Cap returns the current capacity.
func (s *Sds) Cap() int {
	if s.isHeap {
		return cap(s.heap)
	}
	return inlineCap
}

// Bytes returns the live byte slice. When inline, this is a view into the
// Sds's own array and must not be retained past the next mutation.
func (s *Sds) Bytes() []byte {
	if s.isHeap {
		return s.heap[:s.length]
	}
	return s.inline[:s.length]
}

// String returns the content as a Go string (copies).
func (s *Sds) String() string {
	return string(s.Bytes())
}

// Reserve ensures the Sds can grow to at least n bytes without further
// reallocation. Transition inline->heap is monotonic: once heap, an Sds
// never moves back inline even if later truncated.
func (s *Sds) Reserve(n int) {
	if n <= s.Cap() {
		return
	}
	newcap := s.Cap() * 2
	if newcap < n {
		newcap = n
	}
	nb := make([]byte, s.length, newcap)
	copy(nb, s.Bytes())
	s.heap = nb
	s.isHeap = true
}

// Push appends a single byte.
func (s *Sds) Push(b byte) {
	s.Append([]byte{b})
}

// Append appends bytes, growing as needed.
func (s *Sds) Append(b []byte) {
	need := s.length + len(b)
	s.Reserve(need)
	if s.isHeap {
		s.heap = s.heap[:need]
		copy(s.heap[s.length:], b)
	} else {
		copy(s.inline[s.length:], b)
	}
	s.length = need
}

// Truncate shortens the logical length to n (n <= Len()).
func (s *Sds) Truncate(n int) {
	if n < 0 {
		n = 0
	}
	if n < s.length {
		s.length = n
	}
}

// Clear empties the Sds but does not release heap capacity.
func (s *Sds) Clear() {
	s.length = 0
}

// Equal compares byte content.
func (s *Sds) Equal(o *Sds) bool {
	return bytes.Equal(s.Bytes(), o.Bytes())
}

// Compare orders by byte content, like bytes.Compare.
func (s *Sds) Compare(o *Sds) int {
	return bytes.Compare(s.Bytes(), o.Bytes())
}

// Clone deep-copies the Sds.
func (s *Sds) Clone() Sds {
	return FromBytes(s.Bytes())
}

// Hash64 returns a simple FNV-1a hash of the content, used by containers
// that need to hash an Sds key without importing hash/maphash themselves.
func (s *Sds) Hash64() uint64 {
	const offset64 = 14695981039346656037
	const prime64 = 1099511628211
	h := uint64(offset64)
	for _, b := range s.Bytes() {
		h ^= uint64(b)
		h *= prime64
	}
	return h
}
