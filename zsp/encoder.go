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

import (
	"strconv"
	"strings"
)

// Encode renders f as ZSP wire bytes, validating the strict limits from
// §4.16 (embedded CR/LF in inline strings/errors, the 512 MiB binary-string
// ceiling, and the 32-level array/dictionary/zset nesting ceiling).
func Encode(f Frame) ([]byte, error) {
	var b strings.Builder
	if err := encodeInto(&b, f, 0); err != nil {
		return nil, err
	}
	return []byte(b.String()), nil
}

func encodeInto(b *strings.Builder, f Frame, depth int) error {
	if depth > MaxArrayDepth {
		return errInvalid("array nesting exceeds depth %d", MaxArrayDepth)
	}
	switch f.Kind {
	case KindInlineString:
		if strings.ContainsAny(f.Str, "\r\n") {
			return errInvalid("inline string contains embedded CR or LF")
		}
		b.WriteByte('+')
		b.WriteString(f.Str)
		b.WriteString("\r\n")
		return nil

	case KindError:
		if strings.ContainsAny(f.Str, "\r\n") {
			return errInvalid("error string contains embedded CR or LF")
		}
		b.WriteByte('-')
		b.WriteString(f.Str)
		b.WriteString("\r\n")
		return nil

	case KindInteger:
		b.WriteByte(':')
		b.WriteString(strconv.FormatInt(f.Int, 10))
		b.WriteString("\r\n")
		return nil

	case KindBinaryString:
		if f.IsNull {
			b.WriteString("$-1\r\n")
			return nil
		}
		if len(f.Bin) > MaxBinaryLength {
			return errInvalid("binary string length %d exceeds max %d", len(f.Bin), MaxBinaryLength)
		}
		b.WriteByte('$')
		b.WriteString(strconv.Itoa(len(f.Bin)))
		b.WriteString("\r\n")
		b.Write(f.Bin)
		b.WriteString("\r\n")
		return nil

	case KindArray:
		if f.IsNull {
			b.WriteString("*-1\r\n")
			return nil
		}
		b.WriteByte('*')
		b.WriteString(strconv.Itoa(len(f.Items)))
		b.WriteString("\r\n")
		for _, item := range f.Items {
			if err := encodeInto(b, item, depth+1); err != nil {
				return err
			}
		}
		return nil

	case KindDictionary:
		if f.IsNull {
			b.WriteString("%-1\r\n")
			return nil
		}
		b.WriteByte('%')
		b.WriteString(strconv.Itoa(len(f.Dict)))
		b.WriteString("\r\n")
		for _, kv := range f.Dict {
			if strings.ContainsAny(kv.Key, "\r\n") {
				return errInvalid("dictionary key contains embedded CR or LF")
			}
			if err := encodeInto(b, InlineString(kv.Key), depth+1); err != nil {
				return err
			}
			if err := encodeInto(b, kv.Val, depth+1); err != nil {
				return err
			}
		}
		return nil

	case KindZSet:
		b.WriteByte('^')
		b.WriteString(strconv.Itoa(len(f.ZSet)))
		b.WriteString("\r\n")
		for _, p := range f.ZSet {
			if strings.ContainsAny(p.Member, "\r\n") {
				return errInvalid("zset member contains embedded CR or LF")
			}
			if err := encodeInto(b, InlineString(p.Member), depth+1); err != nil {
				return err
			}
			if err := encodeInto(b, Integer(int64(p.Score)), depth+1); err != nil {
				return err
			}
		}
		return nil

	default:
		return errInvalid("unknown frame kind %d", f.Kind)
	}
}

// EncodeFloat renders a float value under the `:` tag using decimal text,
// the encoder's half of the intentional asymmetry documented in spec.md §9:
// the decoder only ever parses `:` as an int64. A frame produced by
// EncodeFloat decodes only when its text is a plain integer (a whole value
// small enough to format without an exponent), and then as an Integer
// frame; text with a decimal point or an exponent is rejected by the
// decoder as invalid data, not truncated. A value.KindFloat Value carried
// as a BinaryString of its ToBytes output round-trips exactly.
func EncodeFloat(f float64) []byte {
	return []byte(":" + strconv.FormatFloat(f, 'g', -1, 64) + "\r\n")
}
