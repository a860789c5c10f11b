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

package cluster

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jtolds/gls"
	"golang.org/x/sync/errgroup"

	"github.com/launix-de/zdb/internal/geo"
	"github.com/launix-de/zdb/internal/value"
	"github.com/launix-de/zdb/storage"
)

// Store implements storage.Storage by routing every key through a
// SlotManager to one of several back-end shards. Multi-key calls
// (MGet/MSet/FlushDB) fan out one goroutine per involved shard through an
// errgroup.Group, with no concurrency bound; gls.Go starts the background
// rebalance worker.
type Store struct {
	slots      *SlotManager
	shards     []storage.Storage
	rebalancer *Rebalancer

	crossShardOps uint64 // atomic

	stopCh chan struct{}
	doneCh chan struct{}
	tick   time.Duration
}

// New builds a cluster store over shards, creating its own SlotManager
// (slotCount slots, striped round-robin across len(shards)) and Rebalancer
// (cfg), and starts the background rebalance worker.
func New(shards []storage.Storage, slotCount uint64, cfg RebalancerConfig) *Store {
	slots := NewSlotManager(slotCount, len(shards))
	cs := &Store{
		slots:      slots,
		shards:     shards,
		rebalancer: NewRebalancer(slots, cfg),
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
		tick:       10 * time.Second,
	}
	gls.Go(cs.runBackgroundWorker)
	return cs
}

// Slots exposes the underlying SlotManager for callers that need direct
// routing introspection (metrics, admin tooling).
func (c *Store) Slots() *SlotManager { return c.slots }

// Rebalancer exposes the background rebalancer for manual triggers.
func (c *Store) Rebalancer() *Rebalancer { return c.rebalancer }

// CrossShardOps returns the number of multi-key calls (mset/mget) whose
// inputs spanned more than one shard.
func (c *Store) CrossShardOps() uint64 { return atomic.LoadUint64(&c.crossShardOps) }

func (c *Store) shardFor(key string) (storage.Storage, int, error) {
	idx := c.slots.GetKeyShard(key)
	if idx < 0 || idx >= len(c.shards) {
		return nil, idx, &storage.Error{Kind: storage.WrongShard, Msg: fmt.Sprintf("slot routes to out-of-range shard %d", idx)}
	}
	c.slots.RecordOperation(key)
	return c.shards[idx], idx, nil
}

func (c *Store) Set(key string, v value.Value) error {
	s, _, err := c.shardFor(key)
	if err != nil {
		return err
	}
	return s.Set(key, v)
}

func (c *Store) Get(key string) (value.Value, bool, error) {
	s, _, err := c.shardFor(key)
	if err != nil {
		return value.Value{}, false, err
	}
	return s.Get(key)
}

func (c *Store) Del(key string) (int, error) {
	s, _, err := c.shardFor(key)
	if err != nil {
		return 0, err
	}
	return s.Del(key)
}

// Rename requires from and to to hash to the same shard; spec.md §4.14
// rules out cross-shard rename in the core.
func (c *Store) Rename(from, to string) error {
	_, fi, err := c.shardFor(from)
	if err != nil {
		return err
	}
	_, ti, err := c.shardFor(to)
	if err != nil {
		return err
	}
	if fi != ti {
		return &storage.Error{Kind: storage.WrongShard, Msg: "rename across shards is not supported"}
	}
	return c.shards[fi].Rename(from, to)
}

func (c *Store) RenameNX(from, to string) (bool, error) {
	_, fi, err := c.shardFor(from)
	if err != nil {
		return false, err
	}
	_, ti, err := c.shardFor(to)
	if err != nil {
		return false, err
	}
	if fi != ti {
		return false, &storage.Error{Kind: storage.WrongShard, Msg: "rename across shards is not supported"}
	}
	return c.shards[fi].RenameNX(from, to)
}

// MSet groups pairs by owning shard and issues one call per shard,
// fanning out in parallel via errgroup when more than one shard is
// involved. The first shard error is returned; the other shard calls are
// not cancelled and run to completion.
func (c *Store) MSet(pairs []storage.KV) error {
	byShard := make(map[int][]storage.KV)
	for _, kv := range pairs {
		_, idx, err := c.shardFor(kv.Key)
		if err != nil {
			return err
		}
		byShard[idx] = append(byShard[idx], kv)
	}
	if len(byShard) > 1 {
		atomic.AddUint64(&c.crossShardOps, 1)
	}

	var g errgroup.Group
	for idx, group := range byShard {
		idx, group := idx, group
		g.Go(func() error {
			return c.shards[idx].MSet(group)
		})
	}
	return g.Wait()
}

// MGet groups keys by owning shard, fans out one call per shard via
// errgroup, and stitches the results back into the caller's original key
// order.
func (c *Store) MGet(keys []string) ([]*value.Value, error) {
	type loc struct {
		shard, pos int
	}
	byShard := make(map[int][]loc)
	for i, k := range keys {
		_, idx, err := c.shardFor(k)
		if err != nil {
			return nil, err
		}
		byShard[idx] = append(byShard[idx], loc{shard: idx, pos: i})
	}
	if len(byShard) > 1 {
		atomic.AddUint64(&c.crossShardOps, 1)
	}

	out := make([]*value.Value, len(keys))
	var mu sync.Mutex
	var g errgroup.Group
	for idx, locs := range byShard {
		idx, locs := idx, locs
		g.Go(func() error {
			shardKeys := make([]string, len(locs))
			for i, l := range locs {
				shardKeys[i] = keys[l.pos]
			}
			vals, err := c.shards[idx].MGet(shardKeys)
			if err != nil {
				return err
			}
			mu.Lock()
			for i, l := range locs {
				out[l.pos] = vals[i]
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// FlushDB fans out to every shard via errgroup and resets the slot
// manager's metrics.
func (c *Store) FlushDB() error {
	var g errgroup.Group
	for _, s := range c.shards {
		s := s
		g.Go(s.FlushDB)
	}
	if err := g.Wait(); err != nil {
		return err
	}
	c.slots.ResetMetrics()
	atomic.StoreUint64(&c.crossShardOps, 0)
	return nil
}

func (c *Store) GeoOp(key string, fn func(*geo.GeoSet) error) (*geo.GeoSet, error) {
	s, _, err := c.shardFor(key)
	if err != nil {
		return nil, err
	}
	return s.GeoOp(key, fn)
}

// runBackgroundWorker wakes every c.tick, asks the rebalancer whether to
// act, and if so executes one rebalancing pass. It returns promptly on
// Close, within one tick, per the cooperative-worker design note.
func (c *Store) runBackgroundWorker() {
	defer close(c.doneCh)
	ticker := time.NewTicker(c.tick)
	defer ticker.Stop()
	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			if t := c.rebalancer.EvaluateRebalancingNeed(); t != nil {
				ev := c.rebalancer.ExecuteRebalancing(*t)
				fmt.Printf("cluster: rebalance pass planned=%d completed=%d duration=%s\n", ev.Planned, ev.Completed, ev.Duration)
			}
		}
	}
}

// Close signals the background worker to stop and waits for it to exit.
func (c *Store) Close() {
	close(c.stopCh)
	<-c.doneCh
}
