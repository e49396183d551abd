// Package refresh keeps exactly one credential renewal in flight for an HTTP
// client and replays every request that hit 401 while it ran.
//
// # Flow
//
// [Coordinator.Transport] wraps an [net/http.RoundTripper]. It stamps the
// current bearer token on outgoing requests. On a 401 it calls
// [Coordinator.Renew], which either starts a renewal or queues the caller
// behind the one already running. Queued callers are released in arrival
// order with the same outcome. On success every caller retries once with the
// new token. On failure the credential store is cleared once, the navigator
// is sent to sign-in, and every caller gets the same error.
//
// # What this package must NOT do
//
//   - Verify token signatures (it reacts only to the server's 401).
//   - Retry a request more than once.
//   - Route the refresh call through the instrumented transport.
package refresh
