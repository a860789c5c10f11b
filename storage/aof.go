/*
Copyright (C) 2024  Carl-Philip Hänsch

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

package storage

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"

	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"

	"github.com/launix-de/zdb/internal/value"
)

const (
	recSet byte = 0
	recDel byte = 1
)

// aofLog is an append-only log of SET/DEL records backing a PersistentShard,
// grounded on the teacher's FileStorage log-file handling (os.OpenFile with
// O_RDWR|O_CREATE, bufio-buffered writes).
type aofLog struct {
	path string
	f    *os.File
	w    *bufio.Writer
}

func openAofLog(path string) (*aofLog, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0640)
	if err != nil {
		return nil, errIo(err.Error())
	}
	return &aofLog{path: path, f: f, w: bufio.NewWriter(f)}, nil
}

func writeRecord(w io.Writer, op byte, key string, val []byte) error {
	if err := binary.Write(w, binary.LittleEndian, op); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(key))); err != nil {
		return err
	}
	if _, err := io.WriteString(w, key); err != nil {
		return err
	}
	if op == recSet {
		if err := binary.Write(w, binary.LittleEndian, uint64(len(val))); err != nil {
			return err
		}
		if _, err := w.Write(val); err != nil {
			return err
		}
	}
	return nil
}

func (l *aofLog) appendSet(key string, v value.Value) error {
	if err := writeRecord(l.w, recSet, key, v.ToBytes()); err != nil {
		return errIo(err.Error())
	}
	return l.sync()
}

func (l *aofLog) appendDel(key string) error {
	if err := writeRecord(l.w, recDel, key, nil); err != nil {
		return errIo(err.Error())
	}
	return l.sync()
}

func (l *aofLog) sync() error {
	if err := l.w.Flush(); err != nil {
		return errIo(err.Error())
	}
	return l.f.Sync()
}

func (l *aofLog) close() error {
	l.w.Flush()
	return l.f.Close()
}

// truncate empties the log in place, for flushdb.
func (l *aofLog) truncate() error {
	if err := l.f.Truncate(0); err != nil {
		return errIo(err.Error())
	}
	if _, err := l.f.Seek(0, io.SeekStart); err != nil {
		return errIo(err.Error())
	}
	l.w = bufio.NewWriter(l.f)
	return nil
}

// replayAofLog reads every record in path into index, later SETs
// overwriting earlier ones, DEL removing; reproducing the log's terminal
// state as required by the replay contract.
func replayAofLog(path string) (map[string]value.Value, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0640)
	if err != nil {
		return nil, errIo(err.Error())
	}
	defer f.Close()

	index := make(map[string]value.Value)
	r := bufio.NewReader(f)
	for {
		var op byte
		if err := binary.Read(r, binary.LittleEndian, &op); err != nil {
			if err == io.EOF {
				break
			}
			return nil, errSerde(err.Error())
		}
		var keyLen uint32
		if err := binary.Read(r, binary.LittleEndian, &keyLen); err != nil {
			return nil, errSerde(err.Error())
		}
		keyBuf := make([]byte, keyLen)
		if _, err := io.ReadFull(r, keyBuf); err != nil {
			return nil, errSerde(err.Error())
		}
		key := string(keyBuf)

		switch op {
		case recSet:
			var valLen uint64
			if err := binary.Read(r, binary.LittleEndian, &valLen); err != nil {
				return nil, errSerde(err.Error())
			}
			valBuf := make([]byte, valLen)
			if _, err := io.ReadFull(r, valBuf); err != nil {
				return nil, errSerde(err.Error())
			}
			v, err := value.FromBytes(valBuf)
			if err != nil {
				return nil, errSerde(err.Error())
			}
			index[key] = v
		case recDel:
			delete(index, key)
		default:
			return nil, errSerde("unknown AOF record opcode")
		}
	}
	return index, nil
}

// compressRotated lz4-compresses a just-rotated (hot) log segment, grounded
// on the teacher's choice of pierrec/lz4 for fast, low-latency stream
// compression.
func compressRotated(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return errIo(err.Error())
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return errIo(err.Error())
	}
	defer out.Close()

	zw := lz4.NewWriter(out)
	defer zw.Close()
	if _, err := io.Copy(zw, in); err != nil {
		return errIo(err.Error())
	}
	return nil
}

// archiveCold xz-compresses a cold (long-retained) log segment, grounded on
// the teacher's use of ulikunitz/xz for archival stream compression.
func archiveCold(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return errIo(err.Error())
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return errIo(err.Error())
	}
	defer out.Close()

	zw, err := xz.NewWriter(out)
	if err != nil {
		return errIo(err.Error())
	}
	defer zw.Close()
	if _, err := io.Copy(zw, in); err != nil {
		return errIo(err.Error())
	}
	return nil
}
