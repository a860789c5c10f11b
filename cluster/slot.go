/*
Copyright (C) 2024-2026  Carl-Philip Hänsch

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

// Package cluster implements the sharded front-end sitting in front of
// several storage.Storage back-ends: a slot-hashing router, a hot-key- and
// load-aware rebalancer, and the ClusterStore that wires both into the
// Storage contract itself.
package cluster

import (
	"sync"
	"sync/atomic"

	"github.com/google/btree"
	"github.com/launix-de/zdb/internal/sds"
)

// migration is non-nil while a slot is mid-transfer.
type migration struct {
	from, to int
}

// keyOps orders the hot-key B-tree by (ops descending, key ascending) so
// Ascend from the zero value yields the hottest keys first; grounded on the
// teacher's storage/index.go delta B-tree secondary index, repurposed here
// to track operation counts per key instead of row positions.
type keyOps struct {
	key string
	ops uint64
}

func keyOpsLess(a, b keyOps) bool {
	if a.ops != b.ops {
		return a.ops > b.ops // hotter first
	}
	return a.key < b.key
}

// SlotManager owns the key->slot->shard mapping, per-slot migration state,
// and the hotness/load counters the Rebalancer reads to decide whether and
// what to migrate. slot_count is fixed at construction and must be a power
// of two per spec.md §3.11.
type SlotManager struct {
	slotCount  uint64
	shardCount int

	mu         sync.RWMutex
	slotShard  []int
	migrating  []*migration

	hotMu   sync.Mutex
	hotKeys *btree.BTreeG[keyOps]
	keyIdx  map[string]uint64 // key -> current ops count, to relocate it in the btree on update

	shardLoad []uint64 // atomic counters, one per shard
}

// NewSlotManager builds a manager over slotCount slots (must be a power of
// two) evenly striped across shardCount shards in round-robin order.
func NewSlotManager(slotCount uint64, shardCount int) *SlotManager {
	if slotCount == 0 || slotCount&(slotCount-1) != 0 {
		panic("cluster: slot count must be a nonzero power of two")
	}
	if shardCount <= 0 {
		panic("cluster: shard count must be positive")
	}
	slotShard := make([]int, slotCount)
	for i := range slotShard {
		slotShard[i] = i % shardCount
	}
	return &SlotManager{
		slotCount:  slotCount,
		shardCount: shardCount,
		slotShard:  slotShard,
		migrating:  make([]*migration, slotCount),
		hotKeys:    btree.NewG[keyOps](8, keyOpsLess),
		keyIdx:     make(map[string]uint64),
		shardLoad:  make([]uint64, shardCount),
	}
}

// CalculateSlot hashes key to a stable slot index in [0, slotCount).
func (m *SlotManager) CalculateSlot(key string) uint64 {
	h := sds.FromString(key).Hash64()
	return h & (m.slotCount - 1)
}

// GetSlotShard returns the slot's current owner; during a migration this is
// still the from-side, since reads/writes continue to serve from there
// until CompleteSlotMigration runs.
func (m *SlotManager) GetSlotShard(slot uint64) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.slotShard[slot]
}

// GetKeyShard maps a key straight through to its owning shard.
func (m *SlotManager) GetKeyShard(key string) int {
	return m.GetSlotShard(m.CalculateSlot(key))
}

// ShardCount reports the number of shards this manager routes across.
func (m *SlotManager) ShardCount() int { return m.shardCount }

// SlotCount reports the fixed slot count.
func (m *SlotManager) SlotCount() uint64 { return m.slotCount }

// RecordOperation bumps the per-key and owning-shard operation counters,
// feeding both load-imbalance and hot-key detection.
func (m *SlotManager) RecordOperation(key string) {
	shard := m.GetKeyShard(key)
	atomic.AddUint64(&m.shardLoad[shard], 1)

	m.hotMu.Lock()
	defer m.hotMu.Unlock()
	prev := m.keyIdx[key]
	if prev > 0 {
		m.hotKeys.Delete(keyOps{key: key, ops: prev})
	}
	next := prev + 1
	m.keyIdx[key] = next
	m.hotKeys.ReplaceOrInsert(keyOps{key: key, ops: next})
}

// GetLoadDistribution returns a snapshot shard->load map.
func (m *SlotManager) GetLoadDistribution() map[int]uint64 {
	out := make(map[int]uint64, m.shardCount)
	for i := range m.shardLoad {
		out[i] = atomic.LoadUint64(&m.shardLoad[i])
	}
	return out
}

// GetHotKeys returns up to n keys ordered by descending operation count.
func (m *SlotManager) GetHotKeys(n int) []struct {
	Key string
	Ops uint64
} {
	m.hotMu.Lock()
	defer m.hotMu.Unlock()
	out := make([]struct {
		Key string
		Ops uint64
	}, 0, n)
	m.hotKeys.Ascend(func(it keyOps) bool {
		if len(out) >= n {
			return false
		}
		out = append(out, struct {
			Key string
			Ops uint64
		}{Key: it.key, Ops: it.ops})
		return true
	})
	return out
}

// StartSlotMigration transitions slot from Idle to Migrating(from, to). It
// succeeds only if the slot is currently owned by from and not already
// migrating.
func (m *SlotManager) StartSlotMigration(slot uint64, from, to int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.slotShard[slot] != from {
		return false
	}
	if m.migrating[slot] != nil {
		return false
	}
	m.migrating[slot] = &migration{from: from, to: to}
	return true
}

// CompleteSlotMigration atomically flips ownership to the migration's to
// side and clears the in-progress state. It is a no-op (returns false) if
// the slot wasn't migrating.
func (m *SlotManager) CompleteSlotMigration(slot uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	mig := m.migrating[slot]
	if mig == nil {
		return false
	}
	m.slotShard[slot] = mig.to
	m.migrating[slot] = nil
	return true
}

// IsMigrating reports whether slot currently has an in-flight migration,
// and if so, its (from, to) pair.
func (m *SlotManager) IsMigrating(slot uint64) (from, to int, migrating bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mig := m.migrating[slot]
	if mig == nil {
		return 0, 0, false
	}
	return mig.from, mig.to, true
}

// SlotsOwnedBy returns every slot currently owned by shard that is not
// already migrating, used by the rebalancer to pick migration candidates
// off an overloaded shard.
func (m *SlotManager) SlotsOwnedBy(shard int) []uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []uint64
	for slot, owner := range m.slotShard {
		if owner == shard && m.migrating[slot] == nil {
			out = append(out, uint64(slot))
		}
	}
	return out
}

// ResetMetrics zeroes load and hot-key counters, used by FlushDB.
func (m *SlotManager) ResetMetrics() {
	for i := range m.shardLoad {
		atomic.StoreUint64(&m.shardLoad[i], 0)
	}
	m.hotMu.Lock()
	defer m.hotMu.Unlock()
	m.hotKeys = btree.NewG[keyOps](8, keyOpsLess)
	m.keyIdx = make(map[string]uint64)
}
