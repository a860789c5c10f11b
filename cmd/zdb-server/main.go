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

// zdb-server is the thinnest possible process entry point over the core:
// it loads config, opens the configured shards, wires them behind a
// cluster.Store, and starts the background rebalancer. It does not parse
// commands, speak ZSP over a socket, or run a pub/sub broker — those are
// external collaborators per spec.md §1; a real deployment embeds this
// core behind its own command/transport layer.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/dc0d/onexit"

	"github.com/launix-de/zdb/cluster"
	"github.com/launix-de/zdb/config"
	"github.com/launix-de/zdb/storage"
)

func main() {
	fmt.Print(`zdb Copyright (C) 2024-2026  Carl-Philip Hänsch
    This program comes with ABSOLUTELY NO WARRANTY;
    This is free software, and you are welcome to redistribute it
    under certain conditions;
`)

	configPath := "zdb.json"
	dataDir := "./data"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}
	if len(os.Args) > 2 {
		dataDir = os.Args[2]
	}

	stopWatch := make(chan struct{})
	settings, err := config.Watch(configPath, stopWatch, func(s config.SettingsT) {
		fmt.Printf("zdb: config reloaded from %s\n", configPath)
	})
	if err != nil {
		fmt.Printf("zdb: config load failed, continuing with defaults: %v\n", err)
	}
	if settings.Auth.RequirePass != "" {
		fmt.Println("zdb: requirepass configured; enforcement is an external collaborator")
	}
	onexit.Register(func() { close(stopWatch) })

	shards, closers := openShards(dataDir, 4)
	for _, c := range closers {
		c := c
		onexit.Register(func() {
			if err := c(); err != nil {
				fmt.Printf("zdb: shard close error: %v\n", err)
			}
		})
	}

	cs := cluster.New(shards, 16384, cluster.DefaultRebalancerConfig())
	onexit.Register(cs.Close)

	fmt.Printf("zdb: %d shards online, routing %d slots\n", len(shards), cs.Slots().SlotCount())

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	fmt.Println("zdb: shutdown signal received")
	onexit.Exit(0)
}

// openShards opens n persistent shards under dataDir, one AOF log per
// shard, falling back to an in-memory shard if the log can't be opened
// (e.g. a read-only data directory in a quick local run).
func openShards(dataDir string, n int) ([]storage.Storage, []func() error) {
	shards := make([]storage.Storage, 0, n)
	closers := make([]func() error, 0, n)
	if err := os.MkdirAll(dataDir, 0750); err != nil {
		fmt.Printf("zdb: could not create data dir %s, falling back to in-memory shards: %v\n", dataDir, err)
		for i := 0; i < n; i++ {
			shards = append(shards, storage.NewMemoryShard())
		}
		return shards, closers
	}
	for i := 0; i < n; i++ {
		path := filepath.Join(dataDir, fmt.Sprintf("shard-%d.aof", i))
		shard, err := storage.OpenPersistentShard(path)
		if err != nil {
			fmt.Printf("zdb: opening %s failed, falling back to in-memory shard: %v\n", path, err)
			shards = append(shards, storage.NewMemoryShard())
			continue
		}
		shards = append(shards, shard)
		closers = append(closers, shard.Close)
	}
	return shards, closers
}
