package listpack

import (
	"encoding/binary"
	"testing"
)

func encodeInt(v uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	return b
}

func decodeInt(b []byte) uint64 {
	return binary.LittleEndian.Uint64(b)
}

func TestPushBackPopFrontFIFO(t *testing.T) {
	lp := New()
	for i := 0; i < 1000; i++ {
		lp.PushBack(encodeInt(uint64(i)))
	}
	for i := 0; i < 1000; i++ {
		v, ok := lp.PopFront()
		if !ok {
			t.Fatalf("expected entry at %d", i)
		}
		if decodeInt(v) != uint64(i) {
			t.Fatalf("expected %d, got %d", i, decodeInt(v))
		}
	}
	if lp.Len() != 0 {
		t.Fatalf("expected len 0, got %d", lp.Len())
	}
}

func TestIterAndIterRevAreReverses(t *testing.T) {
	lp := New()
	for i := 0; i < 50; i++ {
		lp.PushBack(encodeInt(uint64(i)))
	}
	var forward, backward []uint64
	lp.Iter(func(b []byte) { forward = append(forward, decodeInt(b)) })
	lp.IterRev(func(b []byte) { backward = append(backward, decodeInt(b)) })
	if len(forward) != len(backward) {
		t.Fatal("length mismatch")
	}
	for i := range forward {
		if forward[i] != backward[len(backward)-1-i] {
			t.Fatalf("not reverses at %d", i)
		}
	}
}

func TestPushFrontOrder(t *testing.T) {
	lp := New()
	for i := 0; i < 10; i++ {
		lp.PushFront(encodeInt(uint64(i)))
	}
	// pushing 0..9 to front means front-to-back order is 9,8,...,0
	for i := 9; i >= 0; i-- {
		v, ok := lp.PopFront()
		if !ok || decodeInt(v) != uint64(i) {
			t.Fatalf("expected %d got %v", i, v)
		}
	}
}

func TestPopBackLinear(t *testing.T) {
	lp := New()
	for i := 0; i < 20; i++ {
		lp.PushBack(encodeInt(uint64(i)))
	}
	for i := 19; i >= 0; i-- {
		v, ok := lp.PopBack()
		if !ok || decodeInt(v) != uint64(i) {
			t.Fatalf("expected %d got %v", i, v)
		}
	}
}

func TestGetRemoveTruncateResize(t *testing.T) {
	lp := New()
	for i := 0; i < 10; i++ {
		lp.PushBack(encodeInt(uint64(i)))
	}
	v, ok := lp.Get(5)
	if !ok || decodeInt(v) != 5 {
		t.Fatalf("expected 5, got %v", v)
	}
	lp.Remove(5)
	if lp.Len() != 9 {
		t.Fatalf("expected len 9, got %d", lp.Len())
	}
	v, _ = lp.Get(5)
	if decodeInt(v) != 6 {
		t.Fatalf("expected 6 after removing index 5, got %d", decodeInt(v))
	}
	lp.Truncate(3)
	if lp.Len() != 3 {
		t.Fatalf("expected len 3, got %d", lp.Len())
	}
	lp.Resize(6, encodeInt(111))
	if lp.Len() != 6 {
		t.Fatalf("expected len 6, got %d", lp.Len())
	}
	v, _ = lp.Get(5)
	if decodeInt(v) != 111 {
		t.Fatalf("expected fill value 111, got %d", decodeInt(v))
	}
}
