// Package lifecycle reacts to engine events after login.
//
// It decides when each store is written, applies the secret-chat accept
// policy and keeps the roster of chats the user can see.
package lifecycle
