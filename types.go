package dashAuth

import (
	"github.com/MrEthical07/dashAuth/jwt"
	"github.com/MrEthical07/dashAuth/permission"
	"github.com/MrEthical07/dashAuth/session"
)

// Role is a dashboard role tag.
type Role = permission.Role

// Permission is a capability tag.
type Permission = permission.Permission

// Roles re-exported for callers that only import dashAuth.
const (
	RoleSuperAdmin = permission.RoleSuperAdmin
	RoleAdmin      = permission.RoleAdmin
	RoleEmployee   = permission.RoleEmployee
)

// Parsed is the result of [Engine.ParseSession].
type Parsed = session.Parsed

// Authenticated is the success arm of [Parsed].
type Authenticated = session.Authenticated

// Unauthenticated is the failure arm of [Parsed].
type Unauthenticated = session.Unauthenticated

// Session is the resolved identity of an authenticated request.
type Session = session.Session

// User is the identity inside a [Session].
type User = session.User

// Decision is the outcome of [Engine.Authorize].
type Decision = session.Decision

const (
	DecisionAllow           = session.DecisionAllow
	DecisionUnauthenticated = session.DecisionUnauthenticated
	DecisionForbidden       = session.DecisionForbidden
)

// VerifyResult is the result of [Engine.VerifyToken].
type VerifyResult = jwt.Result
