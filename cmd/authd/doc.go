// Command authd runs the in-memory authorization server used by tgstate
// during development and tests.
//
// HTTP API
//
//	POST /handshake            negotiate a shard authorization key (X25519)
//	POST /auth/send-code       start a phone login; returns a code hash
//	POST /auth/sign-in         sign in a registered phone with the code
//	POST /auth/sign-up         register a new phone with names and the code
//	POST /auth/export          copy a login to another shard's key
//	POST /secret/accept        accept a pending secret-chat request
//	POST /secret/request       open a secret chat with another account
//	POST /secret/confirm       fetch the peer's half of an accepted request
//	POST /updates/difference   changes since a cursor
//	GET  /dialogs              dialog list
//	GET  /contacts             contact list
//	POST /dev/secret-request   simulate an incoming secret-chat request
//	POST /dev/message          simulate an incoming message
//	POST /dev/secret-accept    have the peer accept a requested chat
//	POST /dev/secret-delete    have the peer terminate a chat
//	GET  /metrics              Prometheus metrics
//
// Behaviour
//
//   - All state is held in memory and lost on process exit.
//   - Every phone accepts the code given by --code.
//   - With --auto-accept (the default) a requested chat is accepted by the
//     peer at once and shows as active in the next difference.
//   - Responses are JSON. Non-2xx statuses carry {"error": code, "message": text}.
//   - The default listen address is :8080.
package main
