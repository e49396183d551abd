// Package middleware exposes HTTP middleware that gates dashboard routes on the
// session cookies, built on top of dashAuth.Engine.
//
// # Guards
//
//   - [Guard] parses the session and applies the engine route table.
//   - [RequirePermission] additionally demands one capability.
//
// Unauthenticated requests are redirected to the sign-in page with a
// callbackUrl; forbidden ones get 403. Allowed requests carry the session in
// their context, see [SessionFromContext].
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. Parsing and role
// decisions stay in the Engine.
package middleware
