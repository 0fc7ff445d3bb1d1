// Package authd is an in-memory authorization server for development and
// tests. It speaks the authclient wire format.
//
// All state is held in memory and lost on exit. Every registered phone
// accepts the same configured confirmation code. Secret-chat requests are
// simulated through the /dev routes, with the server playing the peer.
package authd
