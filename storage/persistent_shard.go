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
	"fmt"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/launix-de/zdb/internal/geo"
	"github.com/launix-de/zdb/internal/value"
)

// PersistentShard is a Storage back-end fronted by an append-only log.
// Every mutating call appends its record first, then updates the in-memory
// index; a single mutex serializes both so two mutating calls never
// interleave their log records, matching the teacher's
// PersistenceEngine/PersistenceLogfile discipline.
type PersistentShard struct {
	id    uuid.UUID
	mu    sync.Mutex
	index map[string]value.Value
	log   *aofLog
	path  string
}

// OpenPersistentShard opens (creating if absent) the log at path and
// replays it into an in-memory index. The shard is stamped with a random
// UUID, carried into rotated/archived segment names so concurrently
// rotating shards never collide on disk.
func OpenPersistentShard(path string) (*PersistentShard, error) {
	index, err := replayAofLog(path)
	if err != nil {
		return nil, err
	}
	log, err := openAofLog(path)
	if err != nil {
		return nil, err
	}
	return &PersistentShard{id: uuid.New(), index: index, log: log, path: path}, nil
}

// ID returns this shard's identity, stable for its lifetime.
func (p *PersistentShard) ID() uuid.UUID { return p.id }

func (p *PersistentShard) Set(key string, v value.Value) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.log.appendSet(key, v); err != nil {
		return err
	}
	p.index[key] = v
	return nil
}

func (p *PersistentShard) Get(key string) (value.Value, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.index[key]
	return v, ok, nil
}

func (p *PersistentShard) Del(key string) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.index[key]
	if !ok {
		return 0, nil
	}
	if err := p.log.appendDel(key); err != nil {
		return 0, err
	}
	delete(p.index, key)
	return 1, nil
}

func (p *PersistentShard) MSet(pairs []KV) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, kv := range pairs {
		if err := p.log.appendSet(kv.Key, kv.Val); err != nil {
			return err
		}
		p.index[kv.Key] = kv.Val
	}
	return nil
}

func (p *PersistentShard) MGet(keys []string) ([]*value.Value, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*value.Value, len(keys))
	for i, k := range keys {
		if v, ok := p.index[k]; ok {
			vv := v
			out[i] = &vv
		}
	}
	return out, nil
}

// Rename emits DEL(from) then SET(to, v), per the persistent shard's
// renaming contract.
func (p *PersistentShard) Rename(from, to string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.index[from]
	if !ok {
		return errKeyNotFound(from)
	}
	if err := p.log.appendDel(from); err != nil {
		return err
	}
	if err := p.log.appendSet(to, v); err != nil {
		return err
	}
	delete(p.index, from)
	p.index[to] = v
	return nil
}

func (p *PersistentShard) RenameNX(from, to string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.index[from]
	if !ok {
		return false, errKeyNotFound(from)
	}
	if _, exists := p.index[to]; exists {
		return false, nil
	}
	if err := p.log.appendDel(from); err != nil {
		return false, err
	}
	if err := p.log.appendSet(to, v); err != nil {
		return false, err
	}
	delete(p.index, from)
	p.index[to] = v
	return true, nil
}

// FlushDB truncates the log in place and clears the in-memory index.
func (p *PersistentShard) FlushDB() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.log.truncate(); err != nil {
		return err
	}
	p.index = make(map[string]value.Value)
	return nil
}

func (p *PersistentShard) GeoOp(key string, fn func(*geo.GeoSet) error) (*geo.GeoSet, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.index[key]
	if !ok {
		v = value.NewGeo()
	}
	g, ok2 := v.AsGeo()
	if !ok2 {
		return nil, errWrongType("key holds a non-geo value")
	}
	if err := fn(g); err != nil {
		return nil, err
	}
	if err := p.log.appendSet(key, v); err != nil {
		return nil, err
	}
	p.index[key] = v
	return g, nil
}

// Close flushes and closes the underlying log file.
func (p *PersistentShard) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.log.close()
}

// Rotate closes the current log, lz4-compresses it to a ".lz4" sidecar for
// fast-access recent history, and starts a fresh log at the original path.
func (p *PersistentShard) Rotate() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.log.close(); err != nil {
		return err
	}
	rotatedPath := fmt.Sprintf("%s.%s.rotated", p.path, p.id)
	if err := os.Rename(p.path, rotatedPath); err != nil {
		return errIo(err.Error())
	}
	if err := compressRotated(rotatedPath, rotatedPath+".lz4"); err != nil {
		return err
	}
	log, err := openAofLog(p.path)
	if err != nil {
		return err
	}
	p.log = log
	return nil
}

// Archive xz-compresses a previously rotated segment for cold, long-term
// storage.
func (p *PersistentShard) Archive(rotatedPath string) error {
	return archiveCold(rotatedPath, rotatedPath+".xz")
}
