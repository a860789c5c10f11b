package dict

import "testing"

func hashInt(i int) uint64 {
	return uint64(i)*2654435761 + 1
}

func TestIncrementalRehashScenario(t *testing.T) {
	d := New[int, int](hashInt)
	for i := 0; i < 10000; i++ {
		d.Insert(i, i)
	}
	for i := 0; i < 10000; i++ {
		v, ok := d.Get(i)
		if !ok || v != i {
			t.Fatalf("expected Get(%d) == %d, got %v, %v", i, i, v, ok)
		}
	}
	for i := 0; i < 9000; i++ {
		d.Remove(i)
	}
	if d.Len() != 1000 {
		t.Fatalf("expected len 1000, got %d", d.Len())
	}
	v, ok := d.Get(9500)
	if !ok || v != 9500 {
		t.Fatalf("expected Get(9500) == 9500, got %v %v", v, ok)
	}
}

func TestLenMatchesUsedSum(t *testing.T) {
	d := New[int, int](hashInt)
	for i := 0; i < 500; i++ {
		d.Insert(i, i*2)
	}
	if d.Len() != d.ht[0].used+d.ht[1].used {
		t.Fatal("len must equal sum of used counts")
	}
	for i := 0; i < 200; i++ {
		d.Remove(i)
	}
	if d.Len() != d.ht[0].used+d.ht[1].used {
		t.Fatal("len must equal sum of used counts after removes")
	}
}

func TestIterationVisitsEveryLiveEntryOnce(t *testing.T) {
	d := New[int, int](hashInt)
	n := 2000
	for i := 0; i < n; i++ {
		d.Insert(i, i)
	}
	seen := make(map[int]bool)
	count := 0
	d.Iter(func(k, v int) {
		if seen[k] {
			t.Fatalf("key %d visited twice", k)
		}
		seen[k] = true
		count++
	})
	if count != d.Len() {
		t.Fatalf("expected %d entries iterated, got %d", d.Len(), count)
	}
}

func TestEntryAPI(t *testing.T) {
	d := New[string, int](HashString)
	v := d.GetEntry("a").OrInsert(5)
	if v != 5 {
		t.Fatalf("expected 5, got %d", v)
	}
	d.GetEntry("a").AndModify(func(x *int) { *x += 1 })
	got, _ := d.Get("a")
	if got != 6 {
		t.Fatalf("expected 6, got %d", got)
	}
	d.GetEntry("b").OrInsertWith(func() int { return 42 })
	got, _ = d.Get("b")
	if got != 42 {
		t.Fatalf("expected 42, got %d", got)
	}
}

func TestShrink(t *testing.T) {
	d := New[int, int](hashInt)
	for i := 0; i < 1000; i++ {
		d.Insert(i, i)
	}
	capBefore := d.Capacity()
	for i := 0; i < 990; i++ {
		d.Remove(i)
	}
	if d.Capacity() >= capBefore {
		t.Fatalf("expected shrink, cap before=%d after=%d", capBefore, d.Capacity())
	}
}

func TestReserveAndShrinkToFit(t *testing.T) {
	d := New[int, int](hashInt)
	d.Reserve(100)
	if d.Capacity() < 100 {
		t.Fatalf("expected capacity >= 100, got %d", d.Capacity())
	}
	for i := 0; i < 10; i++ {
		d.Insert(i, i)
	}
	d.ShrinkToFit()
	if d.Capacity() < 10 {
		t.Fatalf("shrink to fit removed live entries' capacity: %d", d.Capacity())
	}
	for i := 0; i < 10; i++ {
		v, ok := d.Get(i)
		if !ok || v != i {
			t.Fatalf("lost entry %d after shrink to fit", i)
		}
	}
}

func TestClear(t *testing.T) {
	d := New[int, int](hashInt)
	for i := 0; i < 50; i++ {
		d.Insert(i, i)
	}
	d.Clear()
	if d.Len() != 0 || !d.IsEmpty() {
		t.Fatal("expected dict empty after Clear")
	}
	if d.rehashIdx != -1 {
		t.Fatal("clear must cancel rehash")
	}
}
