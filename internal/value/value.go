/*
Copyright (C) 2023  Carl-Philip Hänsch

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

// Package value implements the polymorphic Value sum type backing every key
// in the engine, and its bit-exact binary serialization, modeled on the
// tag-byte + binary.Write/Read style used throughout the storage package's
// column serializers.
package value

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sort"

	"github.com/launix-de/zdb/internal/bitmap"
	"github.com/launix-de/zdb/internal/dict"
	"github.com/launix-de/zdb/internal/geo"
	"github.com/launix-de/zdb/internal/hll"
	"github.com/launix-de/zdb/internal/quicklist"
	"github.com/launix-de/zdb/internal/sds"
	"github.com/launix-de/zdb/internal/skiplist"
	"github.com/launix-de/zdb/internal/smarthash"
)

// Kind tags the active variant of a Value, written as the first byte of
// every serialized Value.
type Kind uint8

const (
	KindStr Kind = iota
	KindInt
	KindFloat
	KindBool
	KindNull
	KindList
	KindArray
	KindHash
	KindZSet
	KindSet
	KindHLL
	KindSStream
	KindBitmap
	KindGeo

	// maxArrayDepth bounds recursive Array nesting, mirroring the ZSP wire
	// grammar's own array nesting limit.
	maxArrayDepth = 32
)

func stringHasher(s string) uint64 {
	sd := sds.FromString(s)
	return sd.Hash64()
}

// ZSet pairs a member->score index with a score-ordered skip list, so both
// membership lookup and range-by-score queries are available.
type ZSet struct {
	byMember *dict.Dict[string, float64]
	byScore  *skiplist.SkipList[scoreKey, string]
}

// scoreKey orders first by score, then by member, giving the skip list a
// total order even when scores tie.
type scoreKey struct {
	score  float64
	member string
}

func scoreLess(a, b scoreKey) bool {
	if a.score != b.score {
		return a.score < b.score
	}
	return a.member < b.member
}

// NewZSet creates an empty sorted set.
func NewZSet() *ZSet {
	return &ZSet{
		byMember: dict.New[string, float64](stringHasher),
		byScore:  skiplist.New[scoreKey, string](scoreLess),
	}
}

// Add upserts member with score, keeping both indexes consistent.
func (z *ZSet) Add(member string, score float64) {
	if old, ok := z.byMember.Get(member); ok {
		z.byScore.Remove(scoreKey{old, member})
	}
	z.byMember.Insert(member, score)
	z.byScore.Insert(scoreKey{score, member}, member)
}

// Score returns member's score.
func (z *ZSet) Score(member string) (float64, bool) {
	return z.byMember.Get(member)
}

// Remove deletes member.
func (z *ZSet) Remove(member string) bool {
	score, ok := z.byMember.Get(member)
	if !ok {
		return false
	}
	z.byMember.Remove(member)
	z.byScore.Remove(scoreKey{score, member})
	return true
}

// Len returns the member count.
func (z *ZSet) Len() int { return z.byMember.Len() }

// Range calls fn for every (member, score) pair in ascending score order.
func (z *ZSet) Range(fn func(member string, score float64)) {
	z.byScore.Iter(func(k scoreKey, member string) {
		fn(member, k.score)
	})
}

// StreamEntry is one immutable record in an SStream, keyed by an
// (ms, seq) id.
type StreamEntry struct {
	MS     uint64
	Seq    uint64
	Fields map[string]string
}

// ID renders the entry's id in "ms-seq" form.
func (e StreamEntry) ID() string {
	return fmt.Sprintf("%d-%d", e.MS, e.Seq)
}

func (e StreamEntry) less(o StreamEntry) bool {
	if e.MS != o.MS {
		return e.MS < o.MS
	}
	return e.Seq < o.Seq
}

// SStream is a minimal append-only stream: ordered entries plus last-id
// tracking, sufficient to round-trip through Value's serialization without
// a full command surface.
type SStream struct {
	entries []StreamEntry
	lastMS  uint64
	lastSeq uint64
}

// NewSStream creates an empty stream.
func NewSStream() *SStream {
	return &SStream{}
}

// Append adds an entry at ms and returns it with its assigned id: seq is
// one more than the last seq when ms equals the last ms, otherwise 0. ms is
// not compared with the last id; a smaller ms is appended as given.
func (s *SStream) Append(ms uint64, fields map[string]string) StreamEntry {
	seq := uint64(0)
	if ms == s.lastMS {
		seq = s.lastSeq + 1
	}
	e := StreamEntry{MS: ms, Seq: seq, Fields: fields}
	s.entries = append(s.entries, e)
	s.lastMS, s.lastSeq = ms, seq
	return e
}

// Len returns the entry count.
func (s *SStream) Len() int { return len(s.entries) }

// LastID returns the most recently appended id.
func (s *SStream) LastID() (uint64, uint64) { return s.lastMS, s.lastSeq }

// Range returns entries with id in [fromMS,fromSeq] .. [toMS,toSeq] inclusive.
func (s *SStream) Range(fromMS, fromSeq, toMS, toSeq uint64) []StreamEntry {
	lo := StreamEntry{MS: fromMS, Seq: fromSeq}
	hi := StreamEntry{MS: toMS, Seq: toSeq}
	var out []StreamEntry
	for _, e := range s.entries {
		if !e.less(lo) && !hi.less(e) {
			out = append(out, e)
		}
	}
	return out
}

// Value is the tagged union over every container the engine can store at a
// key. Only one field group is meaningful at a time, selected by Kind;
// binary layout is private, only ToBytes/FromBytes are observable.
type Value struct {
	Kind Kind

	str   sds.Sds
	i     int64
	f     float64
	b     bool
	list  *quicklist.QuickList[sds.Sds]
	arr   []Value
	hash  *smarthash.SmartHash[string, Value]
	zset  *ZSet
	set   *dict.Dict[string, struct{}]
	hll   *hll.Hll
	strm  *SStream
	bmap  *bitmap.Bitmap
	geo   *geo.GeoSet
}

func NewStr(s string) Value       { return Value{Kind: KindStr, str: sds.FromString(s)} }
func NewInt(i int64) Value        { return Value{Kind: KindInt, i: i} }
func NewFloat(f float64) Value    { return Value{Kind: KindFloat, f: f} }
func NewBool(b bool) Value        { return Value{Kind: KindBool, b: b} }
func NewNull() Value              { return Value{Kind: KindNull} }
func NewArray(items []Value) Value { return Value{Kind: KindArray, arr: items} }

func NewList() Value {
	return Value{Kind: KindList, list: quicklist.New[sds.Sds](quicklist.DefaultSegmentCap)}
}

func NewHash() Value {
	return Value{Kind: KindHash, hash: smarthash.New[string, Value]()}
}

func NewZSetValue() Value {
	return Value{Kind: KindZSet, zset: NewZSet()}
}

func NewSet() Value {
	return Value{Kind: KindSet, set: dict.New[string, struct{}](stringHasher)}
}

func NewHLL() Value {
	return Value{Kind: KindHLL, hll: hll.New()}
}

func NewSStreamValue() Value {
	return Value{Kind: KindSStream, strm: NewSStream()}
}

func NewBitmap() Value {
	return Value{Kind: KindBitmap, bmap: bitmap.New()}
}

func NewGeo() Value {
	return Value{Kind: KindGeo, geo: geo.NewGeoSet()}
}

// A typed accessor called against the wrong Kind returns false as its
// second result; accessors here follow the (T, bool) idiom so callers
// decide how to surface that condition.

// AsStr returns the string view, if Kind is KindStr.
func (v *Value) AsStr() (string, bool) {
	if v.Kind != KindStr {
		return "", false
	}
	return v.str.String(), true
}

// AsInt returns the int64 view, if Kind is KindInt.
func (v *Value) AsInt() (int64, bool) {
	if v.Kind != KindInt {
		return 0, false
	}
	return v.i, true
}

// AsFloat returns the float64 view, if Kind is KindFloat.
func (v *Value) AsFloat() (float64, bool) {
	if v.Kind != KindFloat {
		return 0, false
	}
	return v.f, true
}

// AsBool returns the bool view, if Kind is KindBool.
func (v *Value) AsBool() (bool, bool) {
	if v.Kind != KindBool {
		return false, false
	}
	return v.b, true
}

// AsArray returns the backing slice, if Kind is KindArray.
func (v *Value) AsArray() ([]Value, bool) {
	if v.Kind != KindArray {
		return nil, false
	}
	return v.arr, true
}

// AsArrayMut returns a pointer to the backing slice header, if Kind is
// KindArray, so callers can append/replace elements in place.
func (v *Value) AsArrayMut() (*[]Value, bool) {
	if v.Kind != KindArray {
		return nil, false
	}
	return &v.arr, true
}

// AsList returns the QuickList, if Kind is KindList.
func (v *Value) AsList() (*quicklist.QuickList[sds.Sds], bool) {
	if v.Kind != KindList {
		return nil, false
	}
	return v.list, true
}

// AsHash returns the SmartHash, if Kind is KindHash.
func (v *Value) AsHash() (*smarthash.SmartHash[string, Value], bool) {
	if v.Kind != KindHash {
		return nil, false
	}
	return v.hash, true
}

// AsZSet returns the ZSet, if Kind is KindZSet.
func (v *Value) AsZSet() (*ZSet, bool) {
	if v.Kind != KindZSet {
		return nil, false
	}
	return v.zset, true
}

// AsSet returns the backing Dict used as a set, if Kind is KindSet.
func (v *Value) AsSet() (*dict.Dict[string, struct{}], bool) {
	if v.Kind != KindSet {
		return nil, false
	}
	return v.set, true
}

// AsHLL returns the HyperLogLog sketch, if Kind is KindHLL.
func (v *Value) AsHLL() (*hll.Hll, bool) {
	if v.Kind != KindHLL {
		return nil, false
	}
	return v.hll, true
}

// AsSStream returns the stream, if Kind is KindSStream.
func (v *Value) AsSStream() (*SStream, bool) {
	if v.Kind != KindSStream {
		return nil, false
	}
	return v.strm, true
}

// AsBitmap returns the Bitmap, if Kind is KindBitmap.
func (v *Value) AsBitmap() (*bitmap.Bitmap, bool) {
	if v.Kind != KindBitmap {
		return nil, false
	}
	return v.bmap, true
}

// AsGeo returns the GeoSet, if Kind is KindGeo.
func (v *Value) AsGeo() (*geo.GeoSet, bool) {
	if v.Kind != KindGeo {
		return nil, false
	}
	return v.geo, true
}

// ToBytes produces the bit-exact serialized form: a leading Kind byte
// followed by the variant's own framing, matching the tag-byte discipline
// of the storage package's column serializers.
func (v *Value) ToBytes() []byte {
	var buf bytes.Buffer
	v.writeTo(&buf, 0)
	return buf.Bytes()
}

func (v *Value) writeTo(w *bytes.Buffer, depth int) {
	binary.Write(w, binary.LittleEndian, uint8(v.Kind))
	switch v.Kind {
	case KindStr:
		b := v.str.Bytes()
		binary.Write(w, binary.LittleEndian, uint64(len(b)))
		w.Write(b)
	case KindInt:
		binary.Write(w, binary.LittleEndian, v.i)
	case KindFloat:
		binary.Write(w, binary.LittleEndian, v.f)
	case KindBool:
		var bb uint8
		if v.b {
			bb = 1
		}
		binary.Write(w, binary.LittleEndian, bb)
	case KindNull:
		// no payload
	case KindList:
		binary.Write(w, binary.LittleEndian, uint64(v.list.Len()))
		v.list.Iter(func(s sds.Sds) {
			b := s.Bytes()
			binary.Write(w, binary.LittleEndian, uint64(len(b)))
			w.Write(b)
		})
	case KindArray:
		if depth >= maxArrayDepth {
			panic("value: array nesting exceeds max depth")
		}
		binary.Write(w, binary.LittleEndian, uint64(len(v.arr)))
		for i := range v.arr {
			v.arr[i].writeTo(w, depth+1)
		}
	case KindHash:
		type hashEntry struct {
			k string
			v Value
		}
		entries := make([]hashEntry, 0, v.hash.Len())
		v.hash.Iter(func(k string, val Value) {
			entries = append(entries, hashEntry{k, val})
		})
		sort.Slice(entries, func(i, j int) bool { return entries[i].k < entries[j].k })
		binary.Write(w, binary.LittleEndian, uint64(len(entries)))
		for _, e := range entries {
			writeString(w, e.k)
			e.v.writeTo(w, depth+1)
		}
	case KindZSet:
		binary.Write(w, binary.LittleEndian, uint64(v.zset.Len()))
		v.zset.Range(func(member string, score float64) {
			writeString(w, member)
			binary.Write(w, binary.LittleEndian, score)
		})
	case KindSet:
		members := make([]string, 0, v.set.Len())
		v.set.Iter(func(k string, _ struct{}) {
			members = append(members, k)
		})
		sort.Strings(members)
		binary.Write(w, binary.LittleEndian, uint64(len(members)))
		for _, k := range members {
			writeString(w, k)
		}
	case KindHLL:
		b := v.hll.ToBytes()
		binary.Write(w, binary.LittleEndian, uint64(len(b)))
		w.Write(b)
	case KindSStream:
		binary.Write(w, binary.LittleEndian, uint64(len(v.strm.entries)))
		for _, e := range v.strm.entries {
			binary.Write(w, binary.LittleEndian, e.MS)
			binary.Write(w, binary.LittleEndian, e.Seq)
			fieldKeys := make([]string, 0, len(e.Fields))
			for fk := range e.Fields {
				fieldKeys = append(fieldKeys, fk)
			}
			sort.Strings(fieldKeys)
			binary.Write(w, binary.LittleEndian, uint64(len(fieldKeys)))
			for _, fk := range fieldKeys {
				writeString(w, fk)
				writeString(w, e.Fields[fk])
			}
		}
	case KindBitmap:
		b := v.bmap.Bytes(0, v.bmap.Len())
		binary.Write(w, binary.LittleEndian, uint64(len(b)))
		w.Write(b)
	case KindGeo:
		members := v.geo.AllMembers()
		binary.Write(w, binary.LittleEndian, uint64(len(members)))
		for _, m := range members {
			writeString(w, m.Member)
			binary.Write(w, binary.LittleEndian, m.Lon)
			binary.Write(w, binary.LittleEndian, m.Lat)
		}
	default:
		panic(fmt.Sprintf("value: unknown kind %d", v.Kind))
	}
}

func writeString(w *bytes.Buffer, s string) {
	binary.Write(w, binary.LittleEndian, uint64(len(s)))
	w.WriteString(s)
}

// FromBytes parses a Value previously produced by ToBytes.
func FromBytes(b []byte) (Value, error) {
	r := bytes.NewReader(b)
	v, err := readFrom(r, 0)
	return v, err
}

func readFrom(r *bytes.Reader, depth int) (Value, error) {
	var kindByte uint8
	if err := binary.Read(r, binary.LittleEndian, &kindByte); err != nil {
		return Value{}, err
	}
	kind := Kind(kindByte)
	switch kind {
	case KindStr:
		b, err := readBytes(r)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindStr, str: sds.FromBytes(b)}, nil
	case KindInt:
		var i int64
		if err := binary.Read(r, binary.LittleEndian, &i); err != nil {
			return Value{}, err
		}
		return Value{Kind: KindInt, i: i}, nil
	case KindFloat:
		var f float64
		if err := binary.Read(r, binary.LittleEndian, &f); err != nil {
			return Value{}, err
		}
		return Value{Kind: KindFloat, f: f}, nil
	case KindBool:
		var bb uint8
		if err := binary.Read(r, binary.LittleEndian, &bb); err != nil {
			return Value{}, err
		}
		return Value{Kind: KindBool, b: bb != 0}, nil
	case KindNull:
		return Value{Kind: KindNull}, nil
	case KindList:
		var n uint64
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return Value{}, err
		}
		lst := quicklist.New[sds.Sds](quicklist.DefaultSegmentCap)
		for i := uint64(0); i < n; i++ {
			eb, err := readBytes(r)
			if err != nil {
				return Value{}, err
			}
			lst.PushBack(sds.FromBytes(eb))
		}
		return Value{Kind: KindList, list: lst}, nil
	case KindArray:
		if depth >= maxArrayDepth {
			return Value{}, fmt.Errorf("value: array nesting exceeds max depth")
		}
		var n uint64
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return Value{}, err
		}
		arr := make([]Value, 0, n)
		for i := uint64(0); i < n; i++ {
			elem, err := readFrom(r, depth+1)
			if err != nil {
				return Value{}, err
			}
			arr = append(arr, elem)
		}
		return Value{Kind: KindArray, arr: arr}, nil
	case KindHash:
		var n uint64
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return Value{}, err
		}
		h := smarthash.New[string, Value]()
		for i := uint64(0); i < n; i++ {
			k, err := readString(r)
			if err != nil {
				return Value{}, err
			}
			val, err := readFrom(r, depth+1)
			if err != nil {
				return Value{}, err
			}
			h.Insert(k, val)
		}
		return Value{Kind: KindHash, hash: h}, nil
	case KindZSet:
		var n uint64
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return Value{}, err
		}
		z := NewZSet()
		for i := uint64(0); i < n; i++ {
			member, err := readString(r)
			if err != nil {
				return Value{}, err
			}
			var score float64
			if err := binary.Read(r, binary.LittleEndian, &score); err != nil {
				return Value{}, err
			}
			z.Add(member, score)
		}
		return Value{Kind: KindZSet, zset: z}, nil
	case KindSet:
		var n uint64
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return Value{}, err
		}
		d := dict.New[string, struct{}](stringHasher)
		for i := uint64(0); i < n; i++ {
			k, err := readString(r)
			if err != nil {
				return Value{}, err
			}
			d.Insert(k, struct{}{})
		}
		return Value{Kind: KindSet, set: d}, nil
	case KindHLL:
		b, err := readBytes(r)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindHLL, hll: hll.FromBytes(b)}, nil
	case KindSStream:
		var n uint64
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return Value{}, err
		}
		s := NewSStream()
		for i := uint64(0); i < n; i++ {
			var ms, seq, fieldCount uint64
			if err := binary.Read(r, binary.LittleEndian, &ms); err != nil {
				return Value{}, err
			}
			if err := binary.Read(r, binary.LittleEndian, &seq); err != nil {
				return Value{}, err
			}
			if err := binary.Read(r, binary.LittleEndian, &fieldCount); err != nil {
				return Value{}, err
			}
			fields := make(map[string]string, fieldCount)
			for j := uint64(0); j < fieldCount; j++ {
				fk, err := readString(r)
				if err != nil {
					return Value{}, err
				}
				fv, err := readString(r)
				if err != nil {
					return Value{}, err
				}
				fields[fk] = fv
			}
			s.entries = append(s.entries, StreamEntry{MS: ms, Seq: seq, Fields: fields})
			s.lastMS, s.lastSeq = ms, seq
		}
		return Value{Kind: KindSStream, strm: s}, nil
	case KindBitmap:
		b, err := readBytes(r)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindBitmap, bmap: bitmap.FromRawBytes(b)}, nil
	case KindGeo:
		var n uint64
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return Value{}, err
		}
		g := geo.NewGeoSet()
		for i := uint64(0); i < n; i++ {
			member, err := readString(r)
			if err != nil {
				return Value{}, err
			}
			var lon, lat float64
			if err := binary.Read(r, binary.LittleEndian, &lon); err != nil {
				return Value{}, err
			}
			if err := binary.Read(r, binary.LittleEndian, &lat); err != nil {
				return Value{}, err
			}
			g.Add(member, lon, lat)
		}
		return Value{Kind: KindGeo, geo: g}, nil
	default:
		return Value{}, fmt.Errorf("value: unknown kind byte %d", kindByte)
	}
}

func readBytes(r *bytes.Reader) ([]byte, error) {
	var n uint64
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, err
	}
	b := make([]byte, n)
	if n > 0 {
		if _, err := io.ReadFull(r, b); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func readString(r *bytes.Reader) (string, error) {
	b, err := readBytes(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
