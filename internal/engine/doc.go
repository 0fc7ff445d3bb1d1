// Package engine holds the in-memory protocol state that the stores and
// services operate on: the shard table, the update cursor and the secret
// chat table.
//
// Every change goes through a mutation primitive that emits one Event to
// the subscribed handler, in call order and after the state lock has been
// released, so a handler may read back from the State it is called by.
// Handlers must not be invoked concurrently; State delivers events on the
// goroutine that performed the mutation.
package engine
