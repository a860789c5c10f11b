package storage

import (
	"testing"

	"github.com/launix-de/zdb/internal/geo"
	"github.com/launix-de/zdb/internal/value"
)

func TestMemoryShardSetGetDel(t *testing.T) {
	s := NewMemoryShard()
	if err := s.Set("a", value.NewInt(1)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v, ok, err := s.Get("a")
	if err != nil || !ok {
		t.Fatalf("expected a present, got ok=%v err=%v", ok, err)
	}
	n, _ := v.AsInt()
	if n != 1 {
		t.Fatalf("expected 1, got %d", n)
	}
	count, err := s.Del("a")
	if err != nil || count != 1 {
		t.Fatalf("expected del count 1, got %d err=%v", count, err)
	}
	if _, ok, _ := s.Get("a"); ok {
		t.Fatal("expected a gone after delete")
	}
	if count, _ := s.Del("a"); count != 0 {
		t.Fatalf("expected del on missing key to return 0, got %d", count)
	}
	if s.DeletionCount() != 1 {
		t.Fatalf("expected deletion count 1, got %d", s.DeletionCount())
	}
}

func TestMemoryShardMSetMGet(t *testing.T) {
	s := NewMemoryShard()
	err := s.MSet([]KV{{"x", value.NewInt(10)}, {"y", value.NewInt(20)}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := s.MGet([]string{"x", "missing", "y"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got[0] == nil || got[1] != nil || got[2] == nil {
		t.Fatalf("unexpected mget shape: %v", got)
	}
}

func TestMemoryShardRename(t *testing.T) {
	s := NewMemoryShard()
	s.Set("from", value.NewStr("v"))
	if err := s.Rename("from", "to"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok, _ := s.Get("from"); ok {
		t.Fatal("expected from gone")
	}
	if _, ok, _ := s.Get("to"); !ok {
		t.Fatal("expected to present")
	}
	if err := s.Rename("nope", "else"); err == nil {
		t.Fatal("expected error renaming missing key")
	}
}

func TestMemoryShardRenameNX(t *testing.T) {
	s := NewMemoryShard()
	s.Set("a", value.NewInt(1))
	s.Set("b", value.NewInt(2))
	ok, err := s.RenameNX("a", "b")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected false since target exists")
	}
	ok, err = s.RenameNX("a", "c")
	if err != nil || !ok {
		t.Fatalf("expected successful rename, got ok=%v err=%v", ok, err)
	}
}

func TestMemoryShardFlushDB(t *testing.T) {
	s := NewMemoryShard()
	s.Set("a", value.NewInt(1))
	s.Set("b", value.NewInt(2))
	s.FlushDB()
	if s.Len() != 0 {
		t.Fatalf("expected empty shard after flush, got %d", s.Len())
	}
}

func TestMemoryShardGeoOp(t *testing.T) {
	s := NewMemoryShard()
	g, err := s.GeoOp("places", func(g *geo.GeoSet) error {
		g.Add("berlin", 13.405, 52.52)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.Len() != 1 {
		t.Fatalf("expected 1 member, got %d", g.Len())
	}
	g2, err := s.GeoOp("places", func(g *geo.GeoSet) error {
		g.Add("paris", 2.3522, 48.8566)
		return nil
	})
	if err != nil || g2.Len() != 2 {
		t.Fatalf("expected geo set to persist across calls, got %d err=%v", g2.Len(), err)
	}

	if err := s.Set("not-geo", value.NewInt(1)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := s.GeoOp("not-geo", func(g *geo.GeoSet) error { return nil }); err == nil {
		t.Fatal("expected wrong-type error for geo op on non-geo key")
	}
}
