package importer

import (
	"testing"
	"time"
)

func TestSqlToValue(t *testing.T) {
	cases := []struct {
		in   any
		kind string
	}{
		{nil, "null"},
		{int64(7), "int"},
		{3.5, "float"},
		{true, "bool"},
		{[]byte("blob"), "str"},
		{"plain", "str"},
		{time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC), "str"},
	}
	for _, c := range cases {
		v := sqlToValue(c.in)
		switch c.kind {
		case "null":
			if _, ok := v.AsStr(); ok {
				t.Fatalf("expected null for %v", c.in)
			}
		case "int":
			if n, ok := v.AsInt(); !ok || n != 7 {
				t.Fatalf("expected int 7, got %v ok=%v", n, ok)
			}
		case "float":
			if f, ok := v.AsFloat(); !ok || f != 3.5 {
				t.Fatalf("expected float 3.5, got %v ok=%v", f, ok)
			}
		case "bool":
			if b, ok := v.AsBool(); !ok || !b {
				t.Fatalf("expected bool true, got %v ok=%v", b, ok)
			}
		case "str":
			if _, ok := v.AsStr(); !ok {
				t.Fatalf("expected string-ish value for %v", c.in)
			}
		}
	}
}

func TestRowKeyByOffset(t *testing.T) {
	src := Source{KeyPrefix: "users"}
	k, err := rowKey(src, []string{"id", "name"}, []any{int64(1), "alice"}, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if k != "users:4" {
		t.Fatalf("expected users:4, got %q", k)
	}
}

func TestRowKeyByColumn(t *testing.T) {
	src := Source{KeyPrefix: "users", KeyColumn: "id"}
	k, err := rowKey(src, []string{"id", "name"}, []any{int64(42), "alice"}, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if k != "users:42" {
		t.Fatalf("expected users:42, got %q", k)
	}
}

func TestRowKeyMissingColumnErrors(t *testing.T) {
	src := Source{KeyPrefix: "users", KeyColumn: "missing"}
	if _, err := rowKey(src, []string{"id"}, []any{int64(1)}, 0); err == nil {
		t.Fatal("expected error for missing key column")
	}
}
