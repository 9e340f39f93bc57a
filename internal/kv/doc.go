// Package kv provides a transactional key-value engine on top of pebble.
//
//   - Every transaction reads from a snapshot taken when it began and buffers its writes. Writes become visible to
//     other transactions only on commit, which applies them as a single atomic batch.
//   - Commits are serialized. Every commit receives a strictly increasing timestamp in milliseconds since the unix
//     epoch.
//   - Hooks can be registered on an active transaction. They are invoked with the commit timestamp before the batch
//     is applied, and a failing hook fails the commit. They are invoked on abort as well.
//   - The engine tracks the start timestamp of every active transaction. The oldest of them is the oldest snapshot
//     which might still be read from.
package kv
