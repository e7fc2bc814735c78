// Package cmap provides a concurrent map implementation.
//
// The server uses it as the connected-client registry: client id to
// session metadata (peer address, display name, connect time),
// touched by every connection's handler goroutine concurrently with
// Server.ConnectedClients and Server.Shutdown reading it. It is
// deliberately not used for
// the Store itself, which stays a single-threaded array.
//
//   - Sharding: Configurable shard count for parallelism
//   - Fine-grained Locking: Per-shard RWMutex for minimal contention
//   - Iteration: Safe iteration while holding read locks
//
// Usage:
//
//	clients := cmap.New[uint64, *ClientInfo]()
//	clients.Set(id, info)
//	val, ok := clients.Get(id)
//
// Thread Safety:
//
// All operations are thread-safe. Read operations (Get, Count, Range,
// Keys) use RLock,
// write operations (Set, Delete) use Lock.
package cmap
