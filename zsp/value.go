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

package zsp

import "github.com/launix-de/zdb/internal/value"

// ToFrame converts an engine Value into its wire representation. Scalars
// map onto their natural frame (Str->BinaryString, Int->Integer,
// Bool/Null->Integer 1/0/-1 is avoided in favor of an explicit encoding:
// Bool becomes Integer 0/1, Null becomes a null BinaryString), Array maps
// recursively onto an Array frame, ZSet maps onto the dedicated ZSet frame
// since it alone among the containers has a native wire shape (member/score
// pairs). Every other container (List, Hash, Set, HLL, SStream, Bitmap,
// Geo) has no bespoke frame production in the grammar, so it crosses the
// wire as an opaque BinaryString carrying Value.ToBytes() — exact and
// symmetric with FromFrame, at the cost of opacity to a client that doesn't
// also link this engine's Value codec.
func ToFrame(v value.Value) Frame {
	switch v.Kind {
	case value.KindStr:
		s, _ := v.AsStr()
		return BinaryString([]byte(s))
	case value.KindInt:
		n, _ := v.AsInt()
		return Integer(n)
	case value.KindBool:
		b, _ := v.AsBool()
		if b {
			return Integer(1)
		}
		return Integer(0)
	case value.KindNull:
		return NullBinaryString()
	case value.KindArray:
		items, _ := v.AsArray()
		out := make([]Frame, len(items))
		for i, it := range items {
			out[i] = ToFrame(it)
		}
		return Array(out)
	case value.KindZSet:
		zs, _ := v.AsZSet()
		pairs := make([]ZPair, 0, zs.Len())
		zs.Range(func(member string, score float64) {
			pairs = append(pairs, ZPair{Member: member, Score: score})
		})
		return ZSetFrame(pairs)
	default:
		return BinaryString(v.ToBytes())
	}
}

// FromFrame converts a wire frame back into an engine Value. It is the
// inverse of ToFrame for every shape ToFrame produces, except that a Bool
// (sent as Integer 0/1) comes back as an Int; frames that did not
// originate from ToFrame (e.g. an inline string or a raw dictionary sent by
// a client) are accepted on a best-effort basis using the same mapping.
func FromFrame(f Frame) (value.Value, error) {
	switch f.Kind {
	case KindInlineString:
		return value.NewStr(f.Str), nil
	case KindError:
		return value.NewStr(f.Str), nil
	case KindInteger:
		return value.NewInt(f.Int), nil
	case KindBinaryString:
		if f.IsNull {
			return value.NewNull(), nil
		}
		if v, err := value.FromBytes(f.Bin); err == nil {
			return v, nil
		}
		return value.NewStr(string(f.Bin)), nil
	case KindArray:
		if f.IsNull {
			return value.NewNull(), nil
		}
		items := make([]value.Value, len(f.Items))
		for i, it := range f.Items {
			v, err := FromFrame(it)
			if err != nil {
				return value.Value{}, err
			}
			items[i] = v
		}
		return value.NewArray(items), nil
	case KindDictionary:
		if f.IsNull {
			return value.NewNull(), nil
		}
		h := value.NewHash()
		hm, _ := h.AsHash()
		for _, kv := range f.Dict {
			v, err := FromFrame(kv.Val)
			if err != nil {
				return value.Value{}, err
			}
			hm.Insert(kv.Key, v)
		}
		return h, nil
	case KindZSet:
		zv := value.NewZSetValue()
		zs, _ := zv.AsZSet()
		for _, p := range f.ZSet {
			zs.Add(p.Member, p.Score)
		}
		return zv, nil
	default:
		return value.Value{}, errInvalid("unknown frame kind %d", f.Kind)
	}
}
