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

// Package dict implements a general-purpose hash table with incremental
// rehashing, modeled on the spec's Dict<K,V>. Two bucket tables are kept
// live during a rehash so reads never stall on a resize.
package dict

import "hash/maphash"

const initialSize = 4

// rehash step budget (spec.md §4.1): continue a step until at least
// minMoved entries have moved, or maxEmptySkip consecutive empty buckets
// have been skipped.
const minMoved = 8
const maxEmptySkip = 64

var seed = maphash.MakeSeed()

type entryNode[K comparable, V any] struct {
	key  K
	val  V
	next *entryNode[K, V]
}

type table[K comparable, V any] struct {
	buckets []*entryNode[K, V]
	used    int
}

func newTable[K comparable, V any](size int) table[K, V] {
	return table[K, V]{buckets: make([]*entryNode[K, V], size)}
}

// Hasher converts a key to a uint64 hash. Callers supply this because keys
// may be arbitrary comparable types (Sds wrappers, strings, ints, ...).
type Hasher[K comparable] func(K) uint64

// Dict is an incrementally-rehashing hash table.
type Dict[K comparable, V any] struct {
	ht        [2]table[K, V]
	rehashIdx int // -1 when idle
	hash      Hasher[K]
}

// New creates an empty Dict using the given hash function.
func New[K comparable, V any](hash Hasher[K]) *Dict[K, V] {
	return &Dict[K, V]{rehashIdx: -1, hash: hash}
}

// HashString is a convenience Hasher for string keys.
func HashString(s string) uint64 {
	var h maphash.Hash
	h.SetSeed(seed)
	h.WriteString(s)
	return h.Sum64()
}

func (d *Dict[K, V]) isRehashing() bool {
	return d.rehashIdx != -1
}

func (d *Dict[K, V]) mask(tbl int) uint64 {
	return uint64(len(d.ht[tbl].buckets) - 1)
}

// Len returns ht[0].used + ht[1].used.
func (d *Dict[K, V]) Len() int {
	return d.ht[0].used + d.ht[1].used
}

func (d *Dict[K, V]) IsEmpty() bool {
	return d.Len() == 0
}

// Capacity returns the capacity of table 0.
func (d *Dict[K, V]) Capacity() int {
	return len(d.ht[0].buckets)
}

func nextPow2(n int) int {
	if n < 1 {
		return 1
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

func (d *Dict[K, V]) startRehash(targetSize int) {
	d.ht[1] = newTable[K, V](targetSize)
	d.rehashIdx = 0
}

func (d *Dict[K, V]) expandIfNeeded() {
	if len(d.ht[0].buckets) == 0 {
		d.ht[0] = newTable[K, V](initialSize)
		return
	}
	if !d.isRehashing() && d.ht[0].used >= len(d.ht[0].buckets) {
		d.startRehash(len(d.ht[0].buckets) * 2)
	}
}

func (d *Dict[K, V]) shrinkIfNeeded() {
	if d.isRehashing() {
		return
	}
	cap0 := len(d.ht[0].buckets)
	if cap0 > initialSize && d.ht[0].used < cap0/4 {
		target := nextPow2(d.ht[0].used * 2)
		if target < initialSize {
			target = initialSize
		}
		if target < cap0 {
			d.startRehash(target)
		}
	}
}

// rehashStep performs one budgeted incremental rehash pass.
func (d *Dict[K, V]) rehashStep() {
	if !d.isRehashing() {
		return
	}
	moved := 0
	emptySkipped := 0
	for d.rehashIdx < len(d.ht[0].buckets) {
		bucket := d.ht[0].buckets[d.rehashIdx]
		if bucket == nil {
			d.rehashIdx++
			emptySkipped++
			if emptySkipped >= maxEmptySkip {
				return
			}
			continue
		}
		for bucket != nil {
			next := bucket.next
			idx := d.hash(bucket.key) & d.mask(1)
			bucket.next = d.ht[1].buckets[idx]
			d.ht[1].buckets[idx] = bucket
			d.ht[0].used--
			d.ht[1].used++
			bucket = next
			moved++
		}
		d.ht[0].buckets[d.rehashIdx] = nil
		emptySkipped = 0
		d.rehashIdx++
		if moved >= minMoved {
			return
		}
	}
	// rehash finished
	d.ht[0] = d.ht[1]
	d.ht[1] = table[K, V]{}
	d.rehashIdx = -1
}

// activeTable returns which table index new inserts land in.
func (d *Dict[K, V]) activeTable() int {
	if d.isRehashing() {
		return 1
	}
	return 0
}

func (d *Dict[K, V]) findIn(tbl int, key K) *entryNode[K, V] {
	if len(d.ht[tbl].buckets) == 0 {
		return nil
	}
	idx := d.hash(key) & d.mask(tbl)
	for n := d.ht[tbl].buckets[idx]; n != nil; n = n.next {
		if n.key == key {
			return n
		}
	}
	return nil
}

// Insert upserts key->val. Returns true if a new key was added.
func (d *Dict[K, V]) Insert(key K, val V) bool {
	d.expandIfNeeded()

	// upsert must check both tables during a rehash
	if n := d.findIn(0, key); n != nil {
		n.val = val
		d.rehashStep()
		return false
	}
	if d.isRehashing() {
		if n := d.findIn(1, key); n != nil {
			n.val = val
			d.rehashStep()
			return false
		}
	}

	tbl := d.activeTable()
	idx := d.hash(key) & d.mask(tbl)
	node := &entryNode[K, V]{key: key, val: val, next: d.ht[tbl].buckets[idx]}
	d.ht[tbl].buckets[idx] = node
	d.ht[tbl].used++

	d.rehashStep()
	return true
}

// Get returns the value for key and whether it was found.
func (d *Dict[K, V]) Get(key K) (V, bool) {
	if d.isRehashing() {
		if n := d.findIn(0, key); n != nil {
			return n.val, true
		}
	}
	if n := d.findIn(d.activeTable(), key); n != nil {
		return n.val, true
	}
	var zero V
	return zero, false
}

// GetPtr returns a pointer to the live value for in-place mutation, or nil.
func (d *Dict[K, V]) GetPtr(key K) *V {
	if d.isRehashing() {
		if n := d.findIn(0, key); n != nil {
			return &n.val
		}
	}
	if n := d.findIn(d.activeTable(), key); n != nil {
		return &n.val
	}
	return nil
}

// Remove deletes key, returning whether it was present.
func (d *Dict[K, V]) Remove(key K) bool {
	removedFrom0 := false
	removed := false
	for _, tbl := range []int{0, 1} {
		if len(d.ht[tbl].buckets) == 0 {
			continue
		}
		idx := d.hash(key) & d.mask(tbl)
		var prev *entryNode[K, V]
		for n := d.ht[tbl].buckets[idx]; n != nil; n = n.next {
			if n.key == key {
				if prev == nil {
					d.ht[tbl].buckets[idx] = n.next
				} else {
					prev.next = n.next
				}
				d.ht[tbl].used--
				removed = true
				if tbl == 0 {
					removedFrom0 = true
				}
				break
			}
			prev = n
		}
		if removed {
			break
		}
	}
	if removedFrom0 {
		d.shrinkIfNeeded()
	}
	d.rehashStep()
	return removed
}

// Clear resets both tables and cancels any ongoing rehash.
func (d *Dict[K, V]) Clear() {
	d.ht[0] = table[K, V]{}
	d.ht[1] = table[K, V]{}
	d.rehashIdx = -1
}

// Reserve forces a synchronous (non-incremental) rehash to fit at least
// additional more entries.
func (d *Dict[K, V]) Reserve(additional int) {
	target := nextPow2(d.Len() + additional)
	if target < initialSize {
		target = initialSize
	}
	d.forceRehash(target)
}

// ShrinkToFit forces a synchronous rehash down to max(used.next_pow2, INITIAL_SIZE).
func (d *Dict[K, V]) ShrinkToFit() {
	target := nextPow2(d.Len())
	if target < initialSize {
		target = initialSize
	}
	d.forceRehash(target)
}

func (d *Dict[K, V]) forceRehash(target int) {
	newTbl := newTable[K, V](target)
	for tbl := 0; tbl < 2; tbl++ {
		for _, n := range d.ht[tbl].buckets {
			for n != nil {
				next := n.next
				idx := d.hash(n.key) & uint64(target-1)
				n.next = newTbl.buckets[idx]
				newTbl.buckets[idx] = n
				newTbl.used++
				n = next
			}
		}
	}
	d.ht[0] = newTbl
	d.ht[1] = table[K, V]{}
	d.rehashIdx = -1
}

// Iter calls fn for every live entry exactly once.
func (d *Dict[K, V]) Iter(fn func(K, V)) {
	for tbl := 0; tbl < 2; tbl++ {
		for _, n := range d.ht[tbl].buckets {
			for n != nil {
				fn(n.key, n.val)
				n = n.next
			}
		}
	}
}

// Keys returns a snapshot slice of all keys.
func (d *Dict[K, V]) Keys() []K {
	out := make([]K, 0, d.Len())
	d.Iter(func(k K, _ V) { out = append(out, k) })
	return out
}

// Entry provides a view supporting or_insert-style idioms.
type Entry[K comparable, V any] struct {
	d   *Dict[K, V]
	key K
}

// GetEntry returns an Entry handle for key.
func (d *Dict[K, V]) GetEntry(key K) Entry[K, V] {
	return Entry[K, V]{d: d, key: key}
}

// OrInsert returns the existing value, or inserts and returns def.
func (e Entry[K, V]) OrInsert(def V) V {
	if v, ok := e.d.Get(e.key); ok {
		return v
	}
	e.d.Insert(e.key, def)
	return def
}

// OrInsertWith is like OrInsert but lazily computes the default.
func (e Entry[K, V]) OrInsertWith(f func() V) V {
	if v, ok := e.d.Get(e.key); ok {
		return v
	}
	v := f()
	e.d.Insert(e.key, v)
	return v
}

// OrDefault inserts the zero value if missing and returns the live value.
func (e Entry[K, V]) OrDefault() V {
	var zero V
	return e.OrInsert(zero)
}

// AndModify calls f on the value in place if present.
func (e Entry[K, V]) AndModify(f func(*V)) Entry[K, V] {
	if p := e.d.GetPtr(e.key); p != nil {
		f(p)
	}
	return e
}
