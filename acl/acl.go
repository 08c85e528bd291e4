// Package acl implements C15: a pure permission-decision module used by the
// service tier that wraps this engine. It holds no state of its own — every
// call is a function of its inputs, decided against an in-memory grant set
// supplied by the caller (spec.md §4.15).
package acl

// Permission is the totally ordered access level a check can require or
// grant. A higher level implies every lower one.
type Permission int

const (
	Read Permission = iota
	Write
	Admin
)

func (p Permission) String() string {
	switch p {
	case Read:
		return "read"
	case Write:
		return "write"
	case Admin:
		return "admin"
	default:
		return "unknown"
	}
}

// Satisfies reports whether p is at least as strong as required.
func (p Permission) Satisfies(required Permission) bool { return p >= required }

// Role is the totally ordered organization role a user can hold. A higher
// role implies every lower one.
type Role int

const (
	Viewer Role = iota
	Contributor
	Maintainer
	RoleAdmin
	Owner
)

func (r Role) String() string {
	switch r {
	case Viewer:
		return "viewer"
	case Contributor:
		return "contributor"
	case Maintainer:
		return "maintainer"
	case RoleAdmin:
		return "admin"
	case Owner:
		return "owner"
	default:
		return "unknown"
	}
}

// Satisfies reports whether r is at least as senior as required.
func (r Role) Satisfies(required Role) bool { return r >= required }

// AsPermission maps an org role to the permission level it grants, for
// resources checked by permission rather than by role directly (spec.md
// §4.15: "required_permission ∈ {read, write, admin} or org_role").
func (r Role) AsPermission() Permission {
	switch {
	case r >= Maintainer:
		return Admin
	case r >= Contributor:
		return Write
	default:
		return Read
	}
}

// Source names where an allow decision's effective permission came from.
type Source int

const (
	SourcePublic Source = iota
	SourceOwner
	SourceCollaborator
	SourceOrgMember
)

func (s Source) String() string {
	switch s {
	case SourcePublic:
		return "public"
	case SourceOwner:
		return "owner"
	case SourceCollaborator:
		return "collaborator"
	case SourceOrgMember:
		return "org_member"
	default:
		return "unknown"
	}
}

// Context is the caller identity a check is evaluated against (spec.md
// §4.15: "context{user_id?, oauth_scopes?, is_service_account?}").
type Context struct {
	UserID           string
	OAuthScopes      []string
	IsServiceAccount bool
}

func (c Context) authenticated() bool { return c.UserID != "" }

func (c Context) hasScope(scope string) bool {
	for _, s := range c.OAuthScopes {
		if s == scope {
			return true
		}
	}
	return false
}

// Resource is the subset of a resource's grant data a check needs: its
// owner, its public-read flag, its explicit per-user collaborator grants,
// and its org-derived role for the caller (if any).
type Resource struct {
	ID            string
	OwnerID       string
	PublicRead    bool
	Collaborators map[string]Permission
	OrgRole       map[string]Role
}

// Decision is a check's outcome (spec.md §4.15: "{allowed, reason?,
// effective_permission, source}").
type Decision struct {
	Allowed             bool
	Reason              string
	EffectivePermission Permission
	Source              Source
}

// scopeFloor is the OAuth scope required to exercise any write-or-stronger
// permission through a scoped token; a token lacking it is capped at Read
// regardless of what the underlying account could otherwise do.
const scopeFloor = "repo:write"

// Check decides whether ctx may exercise required against resource,
// walking spec.md §4.15's fixed check order: public-read shortcut →
// authentication → OAuth scope floor → owner → explicit collaborator
// grant → org-derived grant.
func Check(resource Resource, required Permission, ctx Context) Decision {
	if required == Read && resource.PublicRead {
		return Decision{Allowed: true, EffectivePermission: Read, Source: SourcePublic}
	}

	if !ctx.authenticated() && !ctx.IsServiceAccount {
		return Decision{Allowed: false, Reason: "not authenticated"}
	}

	if len(ctx.OAuthScopes) > 0 && required > Read && !ctx.hasScope(scopeFloor) {
		return Decision{Allowed: false, Reason: "token lacks " + scopeFloor + " scope"}
	}

	if ctx.UserID != "" && ctx.UserID == resource.OwnerID {
		return Decision{Allowed: true, EffectivePermission: Admin, Source: SourceOwner}
	}

	if grant, ok := resource.Collaborators[ctx.UserID]; ok {
		return Decision{Allowed: grant.Satisfies(required), EffectivePermission: grant, Source: SourceCollaborator,
			Reason: insufficientReason(grant.Satisfies(required), grant, required)}
	}

	if role, ok := resource.OrgRole[ctx.UserID]; ok {
		perm := role.AsPermission()
		return Decision{Allowed: perm.Satisfies(required), EffectivePermission: perm, Source: SourceOrgMember,
			Reason: insufficientReason(perm.Satisfies(required), perm, required)}
	}

	return Decision{Allowed: false, Reason: "no grant found for resource " + resource.ID}
}

func insufficientReason(allowed bool, have, required Permission) string {
	if allowed {
		return ""
	}
	return "have " + have.String() + ", need " + required.String()
}
