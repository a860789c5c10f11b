/*
Copyright (C) 2024-2026  Carl-Philip Hänsch

    This program is free software: you can redistribute it and/or modify
    it under the terms of the GNU General Public License as published by
    the Free Software Foundation, either version 3 of the License, or
    (at your option) any later version.

    This program is distributed in the hope that it will be useful,
    but WITHOUT ANY WARRANTY; without even the implied warranty of
    MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
    GNU General Public License for more details.

    You should have received a copy of the GNU General Public License
    along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

// Package zsp implements the wire frame grammar fronting the engine: a
// resumable, stateful decoder and a validating encoder over a small typed
// frame set (inline string, error, integer, binary string, array,
// dictionary, zset, null). The decoder is built to resume itself across
// partial reads from a single connection, the same shape the teacher's
// go-mysqlstack session object uses for its own partially-read protocol
// state, even though the wire format here is ZSP, not MySQL.
package zsp

import "fmt"

// Kind tags the grammar production a Frame holds.
type Kind uint8

const (
	KindInlineString Kind = iota
	KindError
	KindInteger
	KindBinaryString
	KindArray
	KindDictionary
	KindZSet
)

const (
	// MaxLineLength bounds any CRLF-terminated line (inline string,
	// error, integer, or a length header).
	MaxLineLength = 1 << 20 // 1 MiB

	// MaxBinaryLength bounds a single binary string payload.
	MaxBinaryLength = 512 << 20 // 512 MiB

	// MaxArrayDepth bounds array/dictionary/zset nesting.
	MaxArrayDepth = 32
)

// KV is one key/value pair of a Dictionary frame; the key is always an
// InlineString per the grammar (non-inline keys are a decode error).
type KV struct {
	Key string
	Val Frame
}

// ZPair is one (member, score) pair of a ZSet frame.
type ZPair struct {
	Member string
	Score  float64
}

// Frame is the tagged union every ZSP wire value decodes/encodes to. Only
// the field matching Kind is meaningful; IsNull distinguishes a present
// empty value (e.g. an empty array) from the frame's null form
// (`$-1`/`*-1`/`%-1`).
type Frame struct {
	Kind Kind

	Str     string  // InlineString, Error
	Int     int64   // Integer
	Bin     []byte  // BinaryString
	Items   []Frame // Array
	Dict    []KV    // Dictionary
	ZSet    []ZPair // ZSet
	IsNull  bool    // BinaryString, Array, Dictionary null form
}

func InlineString(s string) Frame { return Frame{Kind: KindInlineString, Str: s} }
func ErrorFrame(s string) Frame   { return Frame{Kind: KindError, Str: s} }
func Integer(i int64) Frame       { return Frame{Kind: KindInteger, Int: i} }
func BinaryString(b []byte) Frame { return Frame{Kind: KindBinaryString, Bin: b} }
func NullBinaryString() Frame     { return Frame{Kind: KindBinaryString, IsNull: true} }
func Array(items []Frame) Frame   { return Frame{Kind: KindArray, Items: items} }
func NullArray() Frame            { return Frame{Kind: KindArray, IsNull: true} }
func Dictionary(kvs []KV) Frame   { return Frame{Kind: KindDictionary, Dict: kvs} }
func NullDictionary() Frame       { return Frame{Kind: KindDictionary, IsNull: true} }
func ZSetFrame(pairs []ZPair) Frame { return Frame{Kind: KindZSet, ZSet: pairs} }

// Equal compares two frames by value, used by the round-trip property
// tests (decode(encode(f)) == f).
func (f Frame) Equal(o Frame) bool {
	if f.Kind != o.Kind || f.IsNull != o.IsNull {
		return false
	}
	switch f.Kind {
	case KindInlineString, KindError:
		return f.Str == o.Str
	case KindInteger:
		return f.Int == o.Int
	case KindBinaryString:
		if f.IsNull {
			return true
		}
		return string(f.Bin) == string(o.Bin)
	case KindArray:
		if f.IsNull {
			return true
		}
		if len(f.Items) != len(o.Items) {
			return false
		}
		for i := range f.Items {
			if !f.Items[i].Equal(o.Items[i]) {
				return false
			}
		}
		return true
	case KindDictionary:
		if f.IsNull {
			return true
		}
		if len(f.Dict) != len(o.Dict) {
			return false
		}
		for i := range f.Dict {
			if f.Dict[i].Key != o.Dict[i].Key || !f.Dict[i].Val.Equal(o.Dict[i].Val) {
				return false
			}
		}
		return true
	case KindZSet:
		if len(f.ZSet) != len(o.ZSet) {
			return false
		}
		for i := range f.ZSet {
			if f.ZSet[i] != o.ZSet[i] {
				return false
			}
		}
		return true
	}
	return false
}

func (f Frame) String() string {
	return fmt.Sprintf("Frame{Kind:%d}", f.Kind)
}

// ErrorKind closes the set of error conditions the codec can raise. Both
// kinds are terminal for the decoder/encoder instance that raised them, per
// spec.
type ErrorKind uint8

const (
	InvalidData ErrorKind = iota
	UnexpectedEof
)

// Error is the one error type the codec returns.
type Error struct {
	Kind ErrorKind
	Msg  string
}

func (e *Error) Error() string {
	prefix := "invalid data"
	if e.Kind == UnexpectedEof {
		prefix = "unexpected eof"
	}
	return fmt.Sprintf("%s: %s", prefix, e.Msg)
}

func errInvalid(format string, args ...interface{}) error {
	return &Error{Kind: InvalidData, Msg: fmt.Sprintf(format, args...)}
}

func errEof(format string, args ...interface{}) error {
	return &Error{Kind: UnexpectedEof, Msg: fmt.Sprintf(format, args...)}
}
