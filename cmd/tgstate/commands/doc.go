// Package commands defines the tgstate CLI and wires dependencies for subcommands.
//
// Commands
//
//   - login     Restore state, sign in and keep the stores flushed until interrupted
//   - status    Print shards, the update cursor and secret chats from the stores
//   - secrets   List persisted secret chats
//     start     Request a secret chat with a user and wait for acceptance
//     rm        Terminate a secret chat locally and drop it from the store
//   - flush     Rewrite every store in the current format
//   - backup    Seal the stores into a passphrase-protected file
//   - restore   Unseal a backup into the state directory
//
// # Implementation
//
// The root command loads configuration (defaults, config file, TGSTATE_*
// environment, flags) and builds the dependency graph before any subcommand
// runs, so handlers share one app context and logger.
package commands
