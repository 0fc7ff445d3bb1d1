// Package authclient provides an HTTP implementation of domain.Remote.
//
// It speaks JSON to an authorization server such as cmd/authd: shard key
// negotiation, phone sign-in and registration, exporting a login to other
// shards, accepting secret-chat requests and the post-login sync calls.
//
// Every request takes a context for cancellation and deadlines. Non-2xx
// statuses are returned as errors carrying the method, path and status; a
// rejected confirmation code maps to domain.ErrInvalidCode.
package authclient
