// Package domain holds the shard, cursor and secret-chat models and the
// contracts between the engine, the stores and the services. Types live in
// the types subpackage and interfaces in interfaces; both are re-exported
// here so callers import a single package.
package domain
