package cluster

import "testing"

func TestCalculateSlotStable(t *testing.T) {
	m := NewSlotManager(16, 4)
	a := m.CalculateSlot("foo")
	b := m.CalculateSlot("foo")
	if a != b {
		t.Fatalf("expected stable hash, got %d then %d", a, b)
	}
	if a >= 16 {
		t.Fatalf("slot %d out of range", a)
	}
}

func TestStartCompleteSlotMigration(t *testing.T) {
	m := NewSlotManager(8, 3)
	slot := uint64(0)
	from := m.GetSlotShard(slot)
	to := (from + 1) % 3

	if !m.StartSlotMigration(slot, from, to) {
		t.Fatal("expected migration to start")
	}
	if m.StartSlotMigration(slot, from, to) {
		t.Fatal("expected second start on an already-migrating slot to fail")
	}
	if got, _, _ := m.IsMigrating(slot); got != from {
		t.Fatalf("expected from-side to still serve reads, got owner %d", got)
	}
	if !m.CompleteSlotMigration(slot) {
		t.Fatal("expected migration to complete")
	}
	if m.GetSlotShard(slot) != to {
		t.Fatalf("expected slot owner %d after completion, got %d", to, m.GetSlotShard(slot))
	}
	if _, _, migrating := m.IsMigrating(slot); migrating {
		t.Fatal("expected migration state cleared after completion")
	}
}

func TestStartSlotMigrationRequiresCurrentOwner(t *testing.T) {
	m := NewSlotManager(8, 3)
	slot := uint64(0)
	from := m.GetSlotShard(slot)
	wrongFrom := (from + 1) % 3
	if m.StartSlotMigration(slot, wrongFrom, (wrongFrom+1)%3) {
		t.Fatal("expected migration to fail when from doesn't match current owner")
	}
}

func TestRecordOperationTracksHotKeys(t *testing.T) {
	m := NewSlotManager(16, 2)
	for i := 0; i < 5; i++ {
		m.RecordOperation("hot")
	}
	m.RecordOperation("cold")

	hot := m.GetHotKeys(1)
	if len(hot) != 1 || hot[0].Key != "hot" || hot[0].Ops != 5 {
		t.Fatalf("expected hot key with 5 ops, got %+v", hot)
	}
}

func TestLoadDistributionAndReset(t *testing.T) {
	m := NewSlotManager(16, 2)
	m.RecordOperation("a")
	m.RecordOperation("b")
	load := m.GetLoadDistribution()
	var total uint64
	for _, l := range load {
		total += l
	}
	if total != 2 {
		t.Fatalf("expected total load 2, got %d", total)
	}
	m.ResetMetrics()
	load = m.GetLoadDistribution()
	for shard, l := range load {
		if l != 0 {
			t.Fatalf("expected shard %d load reset to 0, got %d", shard, l)
		}
	}
	if len(m.GetHotKeys(10)) != 0 {
		t.Fatal("expected hot keys cleared after reset")
	}
}
