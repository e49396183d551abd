// Package dashAuth wires session authentication and token-refresh coordination
// for the HR dashboard.
//
// [Builder.Build] assembles an [Engine] from a [Config]: a jwt verifier, the
// permission resolver, the session parser, the route table, metrics and
// audit. Engine methods are safe to call from multiple goroutines after Build.
//
// Server side, [Engine.ParseRequest] and [Engine.Authorize] back the route
// guard in the middleware package. Client side, [Engine.NewCoordinator]
// returns a refresh.Coordinator whose transport keeps exactly one credential
// renewal in flight.
//
// # Architecture boundaries
//
// dashAuth is the public surface. Sub-packages (jwt, permission, session,
// store, refresh) never import it.
//
// # What this package must NOT do
//
//   - Issue credentials (the identity provider does).
//   - Enforce authorization inside business endpoints.
//   - Import any sub-package that re-imports dashAuth.
package dashAuth
