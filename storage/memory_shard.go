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

package storage

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	nonlockingreadmap "github.com/launix-de/NonLockingReadMap"
	"github.com/launix-de/zdb/internal/geo"
	"github.com/launix-de/zdb/internal/value"
)

// MemoryShard is a concurrent in-memory Storage back-end: a single mutex
// serializes mutations, while readers take the same lock for the short
// duration of a lookup (the value model itself is not internally
// synchronized, so torn reads are prevented at the shard boundary, not
// inside each container). An atomic counter counts deletions per shard and
// indexes a non-blocking tombstone bitmap, neither taking the main lock.
type MemoryShard struct {
	id   uuid.UUID
	mu   sync.RWMutex
	data map[string]value.Value

	tombstones nonlockingreadmap.NonBlockingBitMap
	delCount   uint32
}

// NewMemoryShard creates an empty in-memory shard, identified by a random
// UUID the way the teacher stamps every shard with a fast_uuid.go identity.
func NewMemoryShard() *MemoryShard {
	return &MemoryShard{id: uuid.New(), data: make(map[string]value.Value)}
}

// ID returns this shard's identity, stable for its lifetime.
func (m *MemoryShard) ID() uuid.UUID { return m.id }

func (m *MemoryShard) Set(key string, v value.Value) error {
	m.mu.Lock()
	m.data[key] = v
	m.mu.Unlock()
	return nil
}

func (m *MemoryShard) Get(key string) (value.Value, bool, error) {
	m.mu.RLock()
	v, ok := m.data[key]
	m.mu.RUnlock()
	return v, ok, nil
}

func (m *MemoryShard) Del(key string) (int, error) {
	m.mu.Lock()
	_, ok := m.data[key]
	if ok {
		delete(m.data, key)
	}
	m.mu.Unlock()
	if ok {
		m.markTombstone()
		return 1, nil
	}
	return 0, nil
}

// markTombstone flips a bit in the non-blocking bitmap identified by a
// rolling deletion counter, giving the rebalancer a lock-free deletion
// density signal without contending with Set/Get's mutex.
func (m *MemoryShard) markTombstone() {
	idx := atomic.AddUint32(&m.delCount, 1) - 1
	m.tombstones.Set(idx, true)
}

func (m *MemoryShard) MSet(pairs []KV) error {
	m.mu.Lock()
	for _, kv := range pairs {
		m.data[kv.Key] = kv.Val
	}
	m.mu.Unlock()
	return nil
}

func (m *MemoryShard) MGet(keys []string) ([]*value.Value, error) {
	out := make([]*value.Value, len(keys))
	m.mu.RLock()
	for i, k := range keys {
		if v, ok := m.data[k]; ok {
			vv := v
			out[i] = &vv
		}
	}
	m.mu.RUnlock()
	return out, nil
}

func (m *MemoryShard) Rename(from, to string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[from]
	if !ok {
		return errKeyNotFound(from)
	}
	delete(m.data, from)
	m.data[to] = v
	return nil
}

func (m *MemoryShard) RenameNX(from, to string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[from]
	if !ok {
		return false, errKeyNotFound(from)
	}
	if _, exists := m.data[to]; exists {
		return false, nil
	}
	delete(m.data, from)
	m.data[to] = v
	return true, nil
}

func (m *MemoryShard) FlushDB() error {
	m.mu.Lock()
	m.data = make(map[string]value.Value)
	m.mu.Unlock()
	return nil
}

func (m *MemoryShard) GeoOp(key string, fn func(*geo.GeoSet) error) (*geo.GeoSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		v = value.NewGeo()
	}
	g, ok2 := v.AsGeo()
	if !ok2 {
		return nil, errWrongType("key holds a non-geo value")
	}
	if err := fn(g); err != nil {
		return nil, err
	}
	m.data[key] = v
	return g, nil
}

// Len returns the number of live keys, for tests and diagnostics.
func (m *MemoryShard) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

// DeletionCount returns the number of keys deleted over the shard's
// lifetime, as counted by the atomic counter that also indexes the
// tombstone bitmap.
func (m *MemoryShard) DeletionCount() uint64 {
	return uint64(atomic.LoadUint32(&m.delCount))
}
