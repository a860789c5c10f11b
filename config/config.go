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

// Package config holds the engine's recognized runtime options: auth
// (requirepass/users/auth_pepper per spec.md §6) and the size-ish AOF/cache
// knobs, modeled as a flat struct plus a package-level instance the way the
// teacher's storage.SettingsT/storage.Settings are, and loaded from a JSON
// file watched for hot reload with fsnotify, matching the teacher's choice
// of that library for filesystem-event-driven config.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	units "github.com/docker/go-units"
	"github.com/fsnotify/fsnotify"
)

// UserRecord is one entry of the "users" config option: a named
// credential with optional per-key glob permissions. No hashing or
// enforcement is implemented here — auth itself is an external
// collaborator per spec.md §1; this type only parses and validates the
// recognized shape.
type UserRecord struct {
	Username    string   `json:"username"`
	Enabled     bool     `json:"enabled"`
	NoPass      bool     `json:"nopass"`
	Password    string   `json:"password,omitempty"`
	Keys        []string `json:"keys,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

// AuthConfig is the parsed "recognized options" set from spec.md §6.
type AuthConfig struct {
	RequirePass string       `json:"requirepass,omitempty"`
	Users       []UserRecord `json:"users,omitempty"`
	AuthPepper  string       `json:"auth_pepper,omitempty"`
}

// SettingsT is the flat struct of every recognized option, mirroring the
// teacher's storage.SettingsT shape: one struct, one package-level
// instance, JSON-loaded rather than built up through a command language
// since this module has no command parser of its own.
type SettingsT struct {
	Auth AuthConfig `json:"auth"`

	// AOFRotateSize and CacheMemoryBudget are accepted as human-readable
	// strings ("512mb", "1gb") in the JSON file and parsed with
	// docker/go-units, the teacher's own sizing library, into bytes.
	AOFRotateSizeStr    string `json:"aof_rotate_size,omitempty"`
	CacheMemoryBudgetStr string `json:"cache_memory_budget,omitempty"`

	AOFRotateSizeBytes    int64 `json:"-"`
	CacheMemoryBudgetBytes int64 `json:"-"`
}

// Settings is the process-wide instance, set by Load.
var Settings SettingsT

var mu sync.Mutex

// Load reads and parses the JSON config file at path into Settings,
// resolving the human-readable size fields via docker/go-units. A missing
// file yields the zero-value SettingsT (no requirepass, no rotation/budget
// override) rather than an error, matching the "unset" cases spec.md §6
// allows for every option.
func Load(path string) (SettingsT, error) {
	mu.Lock()
	defer mu.Unlock()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		Settings = SettingsT{}
		return Settings, nil
	}
	if err != nil {
		return SettingsT{}, fmt.Errorf("config: reading %s: %w", path, err)
	}

	var s SettingsT
	if err := json.Unmarshal(data, &s); err != nil {
		return SettingsT{}, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if s.AOFRotateSizeStr != "" {
		n, err := units.RAMInBytes(s.AOFRotateSizeStr)
		if err != nil {
			return SettingsT{}, fmt.Errorf("config: aof_rotate_size %q: %w", s.AOFRotateSizeStr, err)
		}
		s.AOFRotateSizeBytes = n
	}
	if s.CacheMemoryBudgetStr != "" {
		n, err := units.RAMInBytes(s.CacheMemoryBudgetStr)
		if err != nil {
			return SettingsT{}, fmt.Errorf("config: cache_memory_budget %q: %w", s.CacheMemoryBudgetStr, err)
		}
		s.CacheMemoryBudgetBytes = n
	}
	Settings = s
	return Settings, nil
}

// Watch loads path once and then re-loads it on every filesystem write
// event for as long as stop is open, calling onChange with the freshly
// loaded settings after each successful reload. It returns the initial
// load's result (or error) immediately; reload errors after that are
// printed and otherwise swallowed, since a bad edit shouldn't crash a
// running server — matching the teacher's own tolerant posture toward
// background failures (the rebalancer's per-migration error handling is
// the storage-side analogue).
func Watch(path string, stop <-chan struct{}, onChange func(SettingsT)) (SettingsT, error) {
	initial, err := Load(path)
	if err != nil {
		return SettingsT{}, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return initial, fmt.Errorf("config: creating watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return initial, fmt.Errorf("config: watching %s: %w", path, err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-stop:
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				s, err := Load(path)
				if err != nil {
					fmt.Printf("config: reload of %s failed: %v\n", path, err)
					continue
				}
				if onChange != nil {
					onChange(s)
				}
			case werr, ok := <-watcher.Errors:
				if !ok {
					return
				}
				fmt.Printf("config: watcher error: %v\n", werr)
			}
		}
	}()

	return initial, nil
}
