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
	"sort"
	"sync"
	"time"
)

// TriggerKind classifies why a rebalance evaluation fired.
type TriggerKind uint8

const (
	TriggerLoadImbalance TriggerKind = iota
	TriggerHotKey
	TriggerManual
	TriggerShardAddition
	TriggerShardRemoval
)

// Trigger is the evaluated reason to consider rebalancing, carrying enough
// detail for PlanRebalancing to act without re-deriving it.
type Trigger struct {
	Kind TriggerKind

	// LoadImbalance
	MaxShard, MinShard int
	MaxLoad, MinLoad   uint64

	// HotKey
	Key string
	Ops uint64
}

// Migration is one planned slot move.
type Migration struct {
	Slot     uint64
	From, To int
}

// RebalanceEvent records the outcome of one ExecuteRebalancing call.
type RebalanceEvent struct {
	Trigger        TriggerKind
	LoadBefore     map[int]uint64
	LoadAfter      map[int]uint64
	Planned        int
	Completed      int
	Duration       time.Duration
	At             time.Time
}

// RebalancerConfig carries the tunables spec.md §4.13 names.
type RebalancerConfig struct {
	LoadThreshold       float64 // ratio defining over/under-loaded shards
	HotKeyThreshold     uint64  // ops before a key counts as hot
	MigrationBatchSize  int     // max migrations per plan
	CoolDownPeriod      time.Duration
}

// DefaultRebalancerConfig mirrors reasonable defaults for a small cluster.
func DefaultRebalancerConfig() RebalancerConfig {
	return RebalancerConfig{
		LoadThreshold:      1.5,
		HotKeyThreshold:    1000,
		MigrationBatchSize: 4,
		CoolDownPeriod:     30 * time.Second,
	}
}

// Rebalancer evaluates load/hot-key triggers against a SlotManager, plans
// migrations, and executes them. A single instance backs one ClusterStore's
// background worker, per spec.md §4.13/§4.14.
type Rebalancer struct {
	slots *SlotManager
	cfg   RebalancerConfig

	mu            sync.Mutex
	lastRebalance time.Time
	events        []RebalanceEvent
}

// NewRebalancer builds a rebalancer over slots with cfg's thresholds.
func NewRebalancer(slots *SlotManager, cfg RebalancerConfig) *Rebalancer {
	return &Rebalancer{slots: slots, cfg: cfg}
}

// EvaluateRebalancingNeed returns nil during cooldown; otherwise it checks
// load distribution first, then hot keys, and returns the first trigger
// found.
func (r *Rebalancer) EvaluateRebalancingNeed() *Trigger {
	r.mu.Lock()
	inCooldown := !r.lastRebalance.IsZero() && time.Since(r.lastRebalance) < r.cfg.CoolDownPeriod
	r.mu.Unlock()
	if inCooldown {
		return nil
	}

	load := r.slots.GetLoadDistribution()
	if len(load) == 0 {
		return nil
	}
	var total uint64
	maxShard, minShard := -1, -1
	var maxLoad, minLoad uint64
	first := true
	for shard, l := range load {
		total += l
		if first || l > maxLoad {
			maxLoad, maxShard = l, shard
		}
		if first || l < minLoad {
			minLoad, minShard = l, shard
		}
		first = false
	}
	avg := float64(total) / float64(len(load))
	if avg > 0 && float64(maxLoad) > avg*r.cfg.LoadThreshold {
		return &Trigger{Kind: TriggerLoadImbalance, MaxShard: maxShard, MinShard: minShard, MaxLoad: maxLoad, MinLoad: minLoad}
	}

	hot := r.slots.GetHotKeys(1)
	if len(hot) == 1 && hot[0].Ops >= r.cfg.HotKeyThreshold {
		return &Trigger{Kind: TriggerHotKey, Key: hot[0].Key, Ops: hot[0].Ops}
	}
	return nil
}

// ShouldRebalance is a convenience boolean wrapper over
// EvaluateRebalancingNeed, named to match spec.md §4.12's should_rebalance.
func (r *Rebalancer) ShouldRebalance() bool {
	return r.EvaluateRebalancingNeed() != nil
}

// PlanRebalancing turns a trigger into a bounded list of slot migrations,
// without starting any of them.
func (r *Rebalancer) PlanRebalancing(t Trigger) []Migration {
	switch t.Kind {
	case TriggerLoadImbalance, TriggerManual:
		return r.planLoadImbalance()
	case TriggerHotKey:
		return r.planHotKey(t)
	case TriggerShardAddition, TriggerShardRemoval:
		return nil // placeholder per spec.md §4.13
	default:
		return nil
	}
}

func (r *Rebalancer) planLoadImbalance() []Migration {
	load := r.slots.GetLoadDistribution()
	if len(load) == 0 {
		return nil
	}
	var total uint64
	for _, l := range load {
		total += l
	}
	avg := float64(total) / float64(len(load))

	var overloaded, underloaded []int
	for shard, l := range load {
		switch {
		case float64(l) > avg*r.cfg.LoadThreshold:
			overloaded = append(overloaded, shard)
		case r.cfg.LoadThreshold > 0 && float64(l) < avg/r.cfg.LoadThreshold:
			underloaded = append(underloaded, shard)
		}
	}
	if len(overloaded) == 0 || len(underloaded) == 0 {
		return nil
	}
	sort.Slice(overloaded, func(i, j int) bool { return load[overloaded[i]] > load[overloaded[j]] })
	sort.Slice(underloaded, func(i, j int) bool { return load[underloaded[i]] < load[underloaded[j]] })

	from, to := overloaded[0], underloaded[0]
	slots := r.slots.SlotsOwnedBy(from)
	sort.Slice(slots, func(i, j int) bool { return slots[i] < slots[j] })

	batch := r.cfg.MigrationBatchSize
	if batch <= 0 || batch > len(slots) {
		batch = len(slots)
	}
	out := make([]Migration, 0, batch)
	for i := 0; i < batch; i++ {
		out = append(out, Migration{Slot: slots[i], From: from, To: to})
	}
	return out
}

func (r *Rebalancer) planHotKey(t Trigger) []Migration {
	slot := r.slots.CalculateSlot(t.Key)
	from := r.slots.GetSlotShard(slot)

	load := r.slots.GetLoadDistribution()
	to, minLoad := from, load[from]
	first := true
	for shard, l := range load {
		if first || l < minLoad {
			to, minLoad = shard, l
			first = false
		}
	}
	if to == from || load[to] == load[from] {
		return nil
	}
	return []Migration{{Slot: slot, From: from, To: to}}
}

// ExecuteRebalancing starts then completes every planned migration,
// recording a RebalanceEvent with before/after load snapshots regardless of
// partial failure: a migration that fails to start is skipped and logged,
// and the rest of the plan still runs, per spec.md §7's propagation policy
// for the rebalancer.
func (r *Rebalancer) ExecuteRebalancing(t Trigger) RebalanceEvent {
	start := time.Now()
	loadBefore := r.slots.GetLoadDistribution()
	plan := r.PlanRebalancing(t)

	completed := 0
	for _, mig := range plan {
		if !r.slots.StartSlotMigration(mig.Slot, mig.From, mig.To) {
			fmt.Printf("cluster: rebalancer could not start migration of slot %d from %d to %d\n", mig.Slot, mig.From, mig.To)
			continue
		}
		if !r.slots.CompleteSlotMigration(mig.Slot) {
			fmt.Printf("cluster: rebalancer could not complete migration of slot %d\n", mig.Slot)
			continue
		}
		completed++
	}

	ev := RebalanceEvent{
		Trigger:    t.Kind,
		LoadBefore: loadBefore,
		LoadAfter:  r.slots.GetLoadDistribution(),
		Planned:    len(plan),
		Completed:  completed,
		Duration:   time.Since(start),
		At:         start,
	}

	r.mu.Lock()
	r.lastRebalance = start
	r.events = append(r.events, ev)
	if len(r.events) > 50 {
		r.events = r.events[len(r.events)-50:]
	}
	r.mu.Unlock()
	return ev
}

// Efficiency averages, over the last few recorded events, the fraction of
// shard-load variance removed by that rebalance: (var_before - var_after)
// / var_before, capped to [0, 1].
func (r *Rebalancer) Efficiency() float64 {
	r.mu.Lock()
	events := r.events
	if len(events) > 10 {
		events = events[len(events)-10:]
	}
	r.mu.Unlock()

	if len(events) == 0 {
		return 0
	}
	var sum float64
	for _, ev := range events {
		vb := variance(ev.LoadBefore)
		if vb <= 0 {
			continue
		}
		va := variance(ev.LoadAfter)
		ratio := (vb - va) / vb
		if ratio < 0 {
			ratio = 0
		}
		if ratio > 1 {
			ratio = 1
		}
		sum += ratio
	}
	return sum / float64(len(events))
}

func variance(loads map[int]uint64) float64 {
	if len(loads) == 0 {
		return 0
	}
	var sum float64
	for _, l := range loads {
		sum += float64(l)
	}
	mean := sum / float64(len(loads))
	var sq float64
	for _, l := range loads {
		d := float64(l) - mean
		sq += d * d
	}
	return sq / float64(len(loads))
}
