// Package store persists the client-side credential record that the refresh
// coordinator reads before renewal and overwrites after it.
//
// Implementations:
//
//   - [MemoryStore]: process-local, for tests and single-process clients.
//   - [RedisStore]: one JSON blob per client under a prefixed key.
//   - [CookieStore]: mirrors the record into the three session cookies of a
//     [net/http.CookieJar] so later requests carry them.
//   - [Tee]: reads from a primary store and writes through to every store.
//
// Every method takes a context and is safe for concurrent use.
package store
