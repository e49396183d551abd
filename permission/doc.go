// Package permission defines the dashboard's closed role and permission
// enumerations and derives effective permissions from roles.
//
// # Bit layout
//
// Every known [Permission] is assigned a bit in a frozen [Registry] at resolver
// construction. Role grants are stored as [Mask64] values, so union and
// membership are single OR/AND operations.
//
// # What this package must NOT do
//
//   - Access storage, cookies, or the network.
//   - Import dashAuth, jwt, or session.
//   - Mutate a [Resolver] after construction.
package permission
