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

// Package listpack implements a compact, contiguous, varint-framed sequence
// of variable-length byte entries, centered in its buffer so both ends can
// grow amortized O(1). Terminator byte 0xFF caps the tail.
package listpack

import "encoding/binary"

const terminator = 0xFF
const initialCap = 1024

// ListPack is an append/prepend sequence of byte-blob entries.
type ListPack struct {
	buf        []byte
	head, tail int // [head, tail) holds framed entries; buf[tail] == terminator after any mutation
}

// New creates an empty ListPack with the terminator centered in a
// 1024-byte buffer.
func New() *ListPack {
	lp := &ListPack{buf: make([]byte, initialCap)}
	mid := initialCap / 2
	lp.head, lp.tail = mid, mid
	lp.buf[lp.tail] = terminator
	return lp
}

func varintLen(n int) int {
	l := 1
	v := uint64(n)
	for v >= 0x80 {
		v >>= 7
		l++
	}
	return l
}

// grow reallocates the buffer, centering existing content, ensuring at
// least frontNeed bytes before head and backNeed bytes after tail.
func (lp *ListPack) grow(frontNeed, backNeed int) {
	contentLen := lp.tail - lp.head
	newCap := len(lp.buf)*2 + frontNeed + backNeed
	if newCap < initialCap {
		newCap = initialCap
	}
	nb := make([]byte, newCap)
	newHead := (newCap-contentLen)/2 + frontNeed/2
	if newHead < frontNeed {
		newHead = frontNeed
	}
	copy(nb[newHead:], lp.buf[lp.head:lp.tail])
	lp.buf = nb
	lp.tail = newHead + contentLen
	lp.head = newHead
	lp.buf[lp.tail] = terminator
}

func (lp *ListPack) recenterIfDrifted() {
	// called by PopFront when head has drifted past 50% of capacity
	if lp.head*2 > len(lp.buf) {
		contentLen := lp.tail - lp.head
		newHead := (len(lp.buf) - contentLen) / 4
		if newHead < 0 {
			newHead = 0
		}
		copy(lp.buf[newHead:newHead+contentLen], lp.buf[lp.head:lp.tail])
		lp.head = newHead
		lp.tail = newHead + contentLen
		lp.buf[lp.tail] = terminator
	}
}

// PushBack appends an entry at the tail.
func (lp *ListPack) PushBack(entry []byte) {
	need := varintLen(len(entry)) + len(entry)
	for lp.tail+need+1 > len(lp.buf) {
		lp.grow(0, need+1)
	}
	n := binary.PutUvarint(lp.buf[lp.tail:], uint64(len(entry)))
	copy(lp.buf[lp.tail+n:], entry)
	lp.tail += n + len(entry)
	lp.buf[lp.tail] = terminator
}

// PushFront prepends an entry at the head.
func (lp *ListPack) PushFront(entry []byte) {
	need := varintLen(len(entry)) + len(entry)
	for lp.head-need < 0 {
		lp.grow(need, 0)
	}
	lp.head -= need
	n := binary.PutUvarint(lp.buf[lp.head:], uint64(len(entry)))
	copy(lp.buf[lp.head+n:], entry)
	_ = n
}

// Len returns the number of entries, counted by scanning varint frames.
func (lp *ListPack) Len() int {
	n := 0
	pos := lp.head
	for pos < lp.tail {
		l, sz := binary.Uvarint(lp.buf[pos:])
		pos += sz + int(l)
		n++
	}
	return n
}

// entryAt walks from head to the i-th entry, returning its byte slice and
// framing bounds.
func (lp *ListPack) entryAt(i int) (data []byte, start, next int, ok bool) {
	pos := lp.head
	idx := 0
	for pos < lp.tail {
		l, sz := binary.Uvarint(lp.buf[pos:])
		entryStart := pos + sz
		entryEnd := entryStart + int(l)
		if idx == i {
			return lp.buf[entryStart:entryEnd], pos, entryEnd, true
		}
		pos = entryEnd
		idx++
	}
	return nil, 0, 0, false
}

// Get returns a copy of the i-th entry.
func (lp *ListPack) Get(i int) ([]byte, bool) {
	data, _, _, ok := lp.entryAt(i)
	if !ok {
		return nil, false
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, true
}

// PopFront removes and returns the first entry.
func (lp *ListPack) PopFront() ([]byte, bool) {
	if lp.head >= lp.tail {
		return nil, false
	}
	l, sz := binary.Uvarint(lp.buf[lp.head:])
	start := lp.head + sz
	end := start + int(l)
	out := make([]byte, l)
	copy(out, lp.buf[start:end])
	lp.head = end
	lp.recenterIfDrifted()
	return out, true
}

// PopBack removes and returns the last entry. No back-length field is
// kept, so this is a linear scan from head, by design (see spec's note on
// ListPack.pop_back).
func (lp *ListPack) PopBack() ([]byte, bool) {
	if lp.head >= lp.tail {
		return nil, false
	}
	pos := lp.head
	lastStart, lastDataStart := pos, pos
	for pos < lp.tail {
		l, sz := binary.Uvarint(lp.buf[pos:])
		lastStart = pos
		lastDataStart = pos + sz
		pos = lastDataStart + int(l)
	}
	out := make([]byte, lp.tail-lastDataStart)
	copy(out, lp.buf[lastDataStart:lp.tail])
	lp.tail = lastStart
	lp.buf[lp.tail] = terminator
	return out, true
}

// Remove deletes the i-th entry, shifting subsequent entries left.
func (lp *ListPack) Remove(i int) bool {
	_, start, next, ok := lp.entryAt(i)
	if !ok {
		return false
	}
	n := copy(lp.buf[start:], lp.buf[next:lp.tail])
	lp.tail = start + n
	lp.buf[lp.tail] = terminator
	return true
}

// Truncate keeps only the first n entries.
func (lp *ListPack) Truncate(n int) {
	if n <= 0 {
		lp.tail = lp.head
		lp.buf[lp.tail] = terminator
		return
	}
	_, _, next, ok := lp.entryAt(n - 1)
	if !ok {
		return
	}
	lp.tail = next
	lp.buf[lp.tail] = terminator
}

// Resize grows or shrinks to exactly n entries, filling new entries with
// fill when growing.
func (lp *ListPack) Resize(n int, fill []byte) {
	cur := lp.Len()
	if n <= cur {
		lp.Truncate(n)
		return
	}
	for i := cur; i < n; i++ {
		lp.PushBack(fill)
	}
}

// Iter calls fn for every entry, head to tail.
func (lp *ListPack) Iter(fn func([]byte)) {
	pos := lp.head
	for pos < lp.tail {
		l, sz := binary.Uvarint(lp.buf[pos:])
		start := pos + sz
		end := start + int(l)
		fn(lp.buf[start:end])
		pos = end
	}
}

// IterRev calls fn for every entry, tail to head, by materializing
// positions and reversing (§4.4: iter_rev materializes then reverses).
func (lp *ListPack) IterRev(fn func([]byte)) {
	var positions [][2]int
	pos := lp.head
	for pos < lp.tail {
		l, sz := binary.Uvarint(lp.buf[pos:])
		start := pos + sz
		end := start + int(l)
		positions = append(positions, [2]int{start, end})
		pos = end
	}
	for i := len(positions) - 1; i >= 0; i-- {
		fn(lp.buf[positions[i][0]:positions[i][1]])
	}
}
