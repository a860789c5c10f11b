package zsp

import (
	"testing"

	"github.com/launix-de/zdb/internal/sds"
	"github.com/launix-de/zdb/internal/value"
)

func TestValueFrameRoundTripScalars(t *testing.T) {
	cases := []value.Value{
		value.NewStr("hello"),
		value.NewInt(-42),
		value.NewBool(true),
		value.NewBool(false),
		value.NewNull(),
	}
	for _, v := range cases {
		f := ToFrame(v)
		got, err := FromFrame(f)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if v.Kind == value.KindBool {
			// Bool crosses the wire as Integer 0/1 and comes back as Int;
			// compare the underlying truthiness, not the Kind.
			want, _ := v.AsBool()
			n, _ := got.AsInt()
			if (n != 0) != want {
				t.Fatalf("bool round trip mismatch: got %d, want %v", n, want)
			}
			continue
		}
		if !valuesEqual(t, v, got) {
			t.Fatalf("round trip mismatch for %+v -> %+v", v, got)
		}
	}
}

func TestValueFrameArray(t *testing.T) {
	v := value.NewArray([]value.Value{value.NewInt(1), value.NewStr("x")})
	f := ToFrame(v)
	if f.Kind != KindArray {
		t.Fatalf("expected array frame, got %d", f.Kind)
	}
	got, err := FromFrame(f)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	items, ok := got.AsArray()
	if !ok || len(items) != 2 {
		t.Fatalf("expected 2 array items, got %v ok=%v", items, ok)
	}
}

func TestValueFrameZSet(t *testing.T) {
	zv := value.NewZSetValue()
	zs, _ := zv.AsZSet()
	zs.Add("a", 1.5)
	zs.Add("b", 2.5)

	f := ToFrame(zv)
	if f.Kind != KindZSet {
		t.Fatalf("expected zset frame, got %d", f.Kind)
	}
	got, err := FromFrame(f)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	gz, ok := got.AsZSet()
	if !ok || gz.Len() != 2 {
		t.Fatalf("expected zset with 2 members, got %v ok=%v", gz, ok)
	}
	if score, ok := gz.Score("a"); !ok || score != 1.5 {
		t.Fatalf("expected member a with score 1.5, got %v ok=%v", score, ok)
	}
}

func TestValueFrameOpaqueContainer(t *testing.T) {
	lv := value.NewList()
	l, _ := lv.AsList()
	l.PushBack(sds.FromString("ignored"))

	f := ToFrame(lv)
	if f.Kind != KindBinaryString {
		t.Fatalf("expected list to cross the wire as an opaque binary string, got kind %d", f.Kind)
	}
	got, err := FromFrame(f)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Kind != value.KindList {
		t.Fatalf("expected list to round trip back to KindList, got %d", got.Kind)
	}
}

func valuesEqual(t *testing.T, a, b value.Value) bool {
	t.Helper()
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case value.KindStr:
		as, _ := a.AsStr()
		bs, _ := b.AsStr()
		return as == bs
	case value.KindInt:
		ai, _ := a.AsInt()
		bi, _ := b.AsInt()
		return ai == bi
	case value.KindNull:
		return true
	default:
		return string(a.ToBytes()) == string(b.ToBytes())
	}
}
