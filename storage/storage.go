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

// Package storage defines the uniform Storage contract and its concrete
// back-ends: an in-memory shard, a persistent append-only-log shard and an
// S3-backed shard. The slot-aware cluster router in front of them lives in
// package cluster and implements the same contract.
package storage

import "github.com/launix-de/zdb/internal/geo"
import "github.com/launix-de/zdb/internal/value"

// KV is a key/value pair used by mset.
type KV struct {
	Key string
	Val value.Value
}

// Storage is the capability every back-end (memory, persistent, S3,
// cluster router) implements as a total operation set.
type Storage interface {
	Set(key string, v value.Value) error
	Get(key string) (value.Value, bool, error)
	Del(key string) (int, error)
	MSet(pairs []KV) error
	MGet(keys []string) ([]*value.Value, error)
	Rename(from, to string) error
	RenameNX(from, to string) (bool, error)
	FlushDB() error

	// GeoOp mutates the value at key as a GeoSet, creating it if absent,
	// and returns it for read-only geo queries after the call.
	GeoOp(key string, fn func(*geo.GeoSet) error) (*geo.GeoSet, error)
}
