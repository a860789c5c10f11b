package sds

import "testing"

func TestInlineVsHeap(t *testing.T) {
	s := FromString("short")
	if s.isHeap {
		t.Fatal("expected inline representation for short string")
	}
	if s.String() != "short" {
		t.Fatalf("got %q", s.String())
	}

	long := FromString("this string is definitely longer than twenty two bytes")
	if !long.isHeap {
		t.Fatal("expected heap representation for long string")
	}
	if long.String() != "this string is definitely longer than twenty two bytes" {
		t.Fatalf("got %q", long.String())
	}
}

func TestAppendGrowsMonotonically(t *testing.T) {
	var s Sds
	for i := 0; i < 100; i++ {
		s.Push('a')
	}
	if s.Len() != 100 {
		t.Fatalf("expected len 100, got %d", s.Len())
	}
	if !s.isHeap {
		t.Fatal("expected heap after growing past inline capacity")
	}
	s.Truncate(5)
	if s.isHeap == false {
		t.Fatal("truncate must not downgrade heap to inline")
	}
	if s.Len() != 5 {
		t.Fatalf("expected len 5 after truncate, got %d", s.Len())
	}
}

func TestEqualAndCompare(t *testing.T) {
	a := FromString("abc")
	b := FromString("abc")
	c := FromString("abd")
	if !a.Equal(&b) {
		t.Fatal("expected equal")
	}
	if a.Compare(&c) >= 0 {
		t.Fatal("expected a < c")
	}
}

func TestClone(t *testing.T) {
	a := FromString("hello")
	b := a.Clone()
	b.Push('!')
	if a.Len() == b.Len() {
		t.Fatal("clone must be independent")
	}
}
