package zsp

import "testing"

func TestEncodeRejectsEmbeddedCRLF(t *testing.T) {
	if _, err := Encode(InlineString("bad\r\nline")); err == nil {
		t.Fatal("expected error for inline string with embedded CRLF")
	}
	if _, err := Encode(ErrorFrame("bad\nline")); err == nil {
		t.Fatal("expected error for error frame with embedded LF")
	}
}

func TestEncodeNullForms(t *testing.T) {
	out, err := Encode(NullBinaryString())
	if err != nil || string(out) != "$-1\r\n" {
		t.Fatalf("got %q err=%v", out, err)
	}
	out, err = Encode(NullArray())
	if err != nil || string(out) != "*-1\r\n" {
		t.Fatalf("got %q err=%v", out, err)
	}
	out, err = Encode(NullDictionary())
	if err != nil || string(out) != "%-1\r\n" {
		t.Fatalf("got %q err=%v", out, err)
	}
}

func TestEncodeZSet(t *testing.T) {
	f := ZSetFrame([]ZPair{{Member: "a", Score: 1}, {Member: "b", Score: 2}})
	out, err := Encode(f)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "^2\r\n+a\r\n:1\r\n+b\r\n:2\r\n"
	if string(out) != want {
		t.Fatalf("got %q, want %q", out, want)
	}
}

func TestEncodeRejectsDeepNesting(t *testing.T) {
	f := Integer(1)
	for i := 0; i < 40; i++ {
		f = Array([]Frame{f})
	}
	if _, err := Encode(f); err == nil {
		t.Fatal("expected error for array nesting beyond 32")
	}
}

func TestEncodeDictionary(t *testing.T) {
	f := Dictionary([]KV{{Key: "k1", Val: Integer(1)}, {Key: "k2", Val: InlineString("v")}})
	out, err := Encode(f)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "%2\r\n+k1\r\n:1\r\n+k2\r\n+v\r\n"
	if string(out) != want {
		t.Fatalf("got %q, want %q", out, want)
	}
}

func TestRoundTripArraysAndBinaryStrings(t *testing.T) {
	f := Array([]Frame{
		BinaryString([]byte("hello world")),
		Integer(-7),
		NullBinaryString(),
		Array([]Frame{InlineString("nested")}),
	})
	out, err := Encode(f)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	d := NewDecoder()
	got, _, ok, err := d.Decode(out)
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if !got.Equal(f) {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, f)
	}
}

// TestEncodeFloatUnderIntegerTag documents the asymmetry flagged in
// spec.md §9: EncodeFloat formats a float as decimal text under the `:`
// tag, but the decoder's `:` path only ever parses int64. A small
// whole-valued float such as 3.0 formats without a decimal point or an
// exponent and so still decodes, as an Integer; a float with a fractional
// part formats with a decimal point and the decoder rejects it outright
// (it does not silently truncate).
func TestEncodeFloatUnderIntegerTag(t *testing.T) {
	whole := EncodeFloat(3.0)
	if string(whole) != ":3\r\n" {
		t.Fatalf("got %q", whole)
	}
	d := NewDecoder()
	f, _, ok, err := d.Decode(whole)
	if err != nil || !ok || f.Kind != KindInteger || f.Int != 3 {
		t.Fatalf("expected whole-valued float to decode as Integer(3), got %+v ok=%v err=%v", f, ok, err)
	}

	fractional := EncodeFloat(3.5)
	if string(fractional) != ":3.5\r\n" {
		t.Fatalf("got %q", fractional)
	}
	d2 := NewDecoder()
	if _, _, _, err := d2.Decode(fractional); err == nil {
		t.Fatal("expected the decoder to reject a fractional float-tagged frame, not truncate it")
	}
}
