// Package session turns an inbound request's cookies into a [Parsed] session and
// gates request paths by role.
//
// # Flow
//
// [Parser.Parse] reads the access-token cookie, verifies it with the jwt
// package, resolves roles (claims first, roles cookie second) and effective
// permissions. Every failure is an [Unauthenticated] value with a [Reason];
// nothing here panics or returns an error.
//
// # What this package must NOT do
//
//   - Write cookies or storage (the store and refresh packages own mutation).
//   - Make network calls.
//   - Import dashAuth or refresh.
package session
