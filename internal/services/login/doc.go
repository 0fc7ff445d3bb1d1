// Package login drives startup: restoring persisted state, authorizing
// every shard, signing in or registering, exporting the login to the other
// shards and the first server synchronization.
package login
