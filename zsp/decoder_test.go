package zsp

import "testing"

func TestDecodeThenEncodeArrayOfMixed(t *testing.T) {
	input := []byte("*2\r\n+OK\r\n:42\r\n")
	d := NewDecoder()
	f, n, ok, err := d.Decode(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok || n != len(input) {
		t.Fatalf("expected full frame consumed, ok=%v n=%d", ok, n)
	}
	want := Array([]Frame{InlineString("OK"), Integer(42)})
	if !f.Equal(want) {
		t.Fatalf("decoded %+v, want %+v", f, want)
	}
	out, err := Encode(f)
	if err != nil {
		t.Fatalf("unexpected encode error: %v", err)
	}
	if string(out) != string(input) {
		t.Fatalf("re-encoded %q, want %q", out, input)
	}
}

func TestDecodeResumesAcrossPartialFeeds(t *testing.T) {
	d := NewDecoder()
	full := []byte("$5\r\nhello\r\n")
	for i := 0; i < len(full)-1; i++ {
		if _, ok, err := d.Feed(full[i : i+1]); err != nil {
			t.Fatalf("unexpected error feeding byte %d: %v", i, err)
		} else if ok {
			t.Fatalf("frame completed too early at byte %d", i)
		}
	}
	f, ok, err := d.Feed(full[len(full)-1:])
	if err != nil {
		t.Fatalf("unexpected error on final byte: %v", err)
	}
	if !ok {
		t.Fatal("expected frame complete after final byte")
	}
	if string(f.Bin) != "hello" {
		t.Fatalf("expected hello, got %q", f.Bin)
	}
}

func TestDecodeNullForms(t *testing.T) {
	cases := []struct {
		in   string
		want Frame
	}{
		{"$-1\r\n", NullBinaryString()},
		{"*-1\r\n", NullArray()},
		{"%-1\r\n", NullDictionary()},
	}
	for _, c := range cases {
		d := NewDecoder()
		f, _, ok, err := d.Decode([]byte(c.in))
		if err != nil || !ok {
			t.Fatalf("%q: ok=%v err=%v", c.in, ok, err)
		}
		if !f.Equal(c.want) {
			t.Fatalf("%q: got %+v, want %+v", c.in, f, c.want)
		}
	}
}

func TestDecodeRejectsBadCRLF(t *testing.T) {
	d := NewDecoder()
	_, _, _, err := d.Decode([]byte("+no terminator here"))
	if err != nil {
		t.Fatalf("unexpected error for incomplete line: %v", err)
	}
	d2 := NewDecoder()
	_, _, _, err = d2.Decode([]byte("+bad\nline\r\n"))
	if err == nil {
		t.Fatal("expected error for lone LF inside a line")
	}
}

func TestDecodeRejectsOversizedBulk(t *testing.T) {
	d := NewDecoder()
	_, _, _, err := d.Decode([]byte("$549755813889\r\n"))
	if err == nil {
		t.Fatal("expected error for bulk length over 512 MiB")
	}
}

func TestDecodeRejectsDeepNesting(t *testing.T) {
	d := NewDecoder()
	var buf []byte
	for i := 0; i < 40; i++ {
		buf = append(buf, []byte("*1\r\n")...)
	}
	buf = append(buf, []byte(":1\r\n")...)
	_, _, _, err := d.Decode(buf)
	if err == nil {
		t.Fatal("expected error for array nesting beyond 32")
	}
}

func TestDecodeRejectsNonInlineDictKey(t *testing.T) {
	d := NewDecoder()
	_, _, _, err := d.Decode([]byte("%1\r\n:1\r\n:2\r\n"))
	if err == nil {
		t.Fatal("expected error for non-inline-string dictionary key")
	}
}

func TestDecoderIsTerminalAfterError(t *testing.T) {
	d := NewDecoder()
	_, _, _, err := d.Decode([]byte("?bad\r\n"))
	if err == nil {
		t.Fatal("expected error for unknown tag")
	}
	_, _, _, err2 := d.Decode([]byte("+ok\r\n"))
	if err2 == nil {
		t.Fatal("expected the broken decoder to keep returning an error")
	}
}
