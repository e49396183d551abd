package session

import (
	"github.com/MrEthical07/dashAuth/jwt"
	"github.com/MrEthical07/dashAuth/permission"
)

// Reason is the machine-readable cause of an unauthenticated result.
type Reason string

const (
	ReasonMissingToken      Reason = "missing-token"
	ReasonInvalidPayload    Reason = Reason(jwt.ReasonInvalidPayload)
	ReasonTokenExpired      Reason = Reason(jwt.ReasonTokenExpired)
	ReasonSignatureMismatch Reason = Reason(jwt.ReasonSignatureMismatch)
	ReasonMissingRoles      Reason = "missing-roles"
)

// User is the resolved identity of an authenticated session.
type User struct {
	ID          string                  `json:"id"`
	Name        string                  `json:"name,omitempty"`
	Email       string                  `json:"email,omitempty"`
	Roles       []permission.Role       `json:"roles"`
	Permissions []permission.Permission `json:"permissions"`
}

// Can reports whether the user holds p.
func (u User) Can(p permission.Permission) bool {
	return permission.Contains(u.Permissions, p)
}

// HasRole reports whether the user holds r.
func (u User) HasRole(r permission.Role) bool {
	return permission.HasAnyRole(u.Roles, []permission.Role{r})
}

// Session is the authenticated identity plus the credential that proved it.
type Session struct {
	User  User   `json:"user"`
	Token string `json:"token"`
}

// Parsed is the result of [Parser.Parse]: [Authenticated] or [Unauthenticated].
type Parsed interface {
	parsed()
}

// Authenticated is a verified session.
type Authenticated struct {
	Session Session
	Token   string
}

// Unauthenticated explains why no session could be established.
type Unauthenticated struct {
	Reason Reason
}

func (Authenticated) parsed()   {}
func (Unauthenticated) parsed() {}

// Verifier is satisfied by *jwt.Verifier.
type Verifier interface {
	Verify(raw string) jwt.Result
}

// Parser builds sessions from request cookies. It is read-only and safe for
// concurrent use.
type Parser struct {
	verifier Verifier
	resolver *permission.Resolver
	names    CookieNames
}

// NewParser returns a [Parser]. Empty cookie names fall back to
// [DefaultCookieNames].
func NewParser(verifier Verifier, resolver *permission.Resolver, names CookieNames) *Parser {
	defaults := DefaultCookieNames()
	if names.Token == "" {
		names.Token = defaults.Token
	}
	if names.Roles == "" {
		names.Roles = defaults.Roles
	}
	if names.Permissions == "" {
		names.Permissions = defaults.Permissions
	}
	return &Parser{verifier: verifier, resolver: resolver, names: names}
}

// CookieNames returns the cookie keys the parser reads.
func (p *Parser) CookieNames() CookieNames {
	return p.names
}

// Parse runs the session pipeline over src.
func (p *Parser) Parse(src Source) Parsed {
	token, ok := src.Cookie(p.names.Token)
	if !ok || token == "" {
		return Unauthenticated{Reason: ReasonMissingToken}
	}

	var claims *jwt.Claims
	switch res := p.verifier.Verify(token).(type) {
	case jwt.Valid:
		claims = res.Claims
	case jwt.Invalid:
		return Unauthenticated{Reason: Reason(res.Reason)}
	default:
		return Unauthenticated{Reason: ReasonInvalidPayload}
	}
	if claims == nil {
		claims = &jwt.Claims{}
	}

	// Claims win when they carry any roles at all; the cookie cannot widen them.
	rawRoles := claims.Roles
	if len(rawRoles) == 0 {
		rawRoles = p.cookieList(src, p.names.Roles)
	}
	roles := permission.ParseRoles(rawRoles)
	if len(roles) == 0 {
		return Unauthenticated{Reason: ReasonMissingRoles}
	}

	rawPerms := claims.Permissions
	if len(rawPerms) == 0 {
		rawPerms = p.cookieList(src, p.names.Permissions)
	}
	perms := p.resolver.Resolve(roles, permission.ParsePermissions(rawPerms))

	sess := Session{
		User: User{
			ID:          claims.Subject,
			Name:        claims.Name,
			Email:       claims.Email,
			Roles:       roles,
			Permissions: perms,
		},
		Token: token,
	}
	return Authenticated{Session: sess, Token: token}
}

func (p *Parser) cookieList(src Source, name string) []string {
	raw, ok := src.Cookie(name)
	if !ok || raw == "" {
		return nil
	}
	return DecodeList(raw)
}
