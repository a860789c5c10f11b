package smarthash

import "testing"

func TestRepresentationSwitchPreservesEntries(t *testing.T) {
	h := New[string, int]()
	for i := 0; i < ZipThreshold; i++ {
		h.Insert(string(rune('a'+i%26))+string(rune(i)), i)
	}
	if h.IsMapped() {
		t.Fatal("expected still zipped at threshold")
	}
	h.Insert("overflow", 999)
	if !h.IsMapped() {
		t.Fatal("expected migration past threshold")
	}
	if h.Len() != ZipThreshold+1 {
		t.Fatalf("expected %d entries, got %d", ZipThreshold+1, h.Len())
	}
	v, ok := h.Get("overflow")
	if !ok || v != 999 {
		t.Fatal("lost entry across migration")
	}
}

func TestDeleteNeverDowngrades(t *testing.T) {
	h := New[int, int]()
	for i := 0; i < ZipThreshold+5; i++ {
		h.Insert(i, i)
	}
	if !h.IsMapped() {
		t.Fatal("expected mapped")
	}
	for i := 0; i < ZipThreshold; i++ {
		h.Remove(i)
	}
	if !h.IsMapped() {
		t.Fatal("delete must not downgrade representation")
	}
}

func TestObservableBehaviorIndependentOfVariant(t *testing.T) {
	small := New[int, string]()
	small.Insert(1, "a")
	small.Insert(2, "b")
	small.Remove(1)

	big := New[int, string]()
	for i := 0; i < ZipThreshold+10; i++ {
		big.Insert(i, "x")
	}
	big.Insert(2, "b")
	for i := 0; i < ZipThreshold+10; i++ {
		if i != 2 {
			big.Remove(i)
		}
	}

	v1, ok1 := small.Get(2)
	v2, ok2 := big.Get(2)
	if ok1 != ok2 || v1 != v2 {
		t.Fatal("zip and map representations diverged in observable behavior")
	}
}
