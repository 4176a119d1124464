// Package ledger provides type-safe Go definitions and Redis schema patterns
// for the Creel shared state. The ledger is where all Creel components
// (correlation engine, transport adapters, CLI) interact via well-defined
// data structures stored in Redis: shipments and their photos, client cards,
// the roster of chat users, transient burst bindings, and pending prompts.
//
// All Redis keys and channels are namespaced by instance name to enable
// multiple Creel instances to safely coexist on a single Redis server.
//
// Transient correlation state (burst bindings, pending prompts) is stored
// with a Redis TTL, so expiry is enforced by the store itself rather than by
// application timers. Prompt consumption uses GETDEL, which makes the
// exactly-once resolution guarantee atomic under concurrent callers.
package ledger
