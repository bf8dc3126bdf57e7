// Package access resolves which document scopes a requester may read.
// Resolution is a pure computation over the Principal and a membership
// snapshot; it performs no I/O so the role/membership matrix can be
// unit-tested exhaustively.
package access

import (
	"sort"

	"knowledgehub/internal/model"
)

// AppRole is the application-wide role carried by a Principal.
type AppRole string

const (
	RoleSuperAdmin AppRole = "super_admin"
	RoleOrgAdmin   AppRole = "org_admin"
	RoleTeamLeader AppRole = "team_leader"
	RoleMember     AppRole = "member"
)

func (r AppRole) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleOrgAdmin, RoleTeamLeader, RoleMember:
		return true
	}
	return false
}

// ProjectMembership is one (project, role) pair held by a Principal.
type ProjectMembership struct {
	ProjectID uint   `json:"project_id"`
	Role      string `json:"role"`
}

// Principal is the authenticated identity issuing a request. It is supplied
// by the external auth collaborator and never persisted here.
type Principal struct {
	UserID   uint
	AppRole  AppRole
	OrgID    *uint
	Projects []ProjectMembership
}

// Scope is one readable (layer, scope id) pair. AllScopes marks a wildcard
// over every scope id within the layer (super_admin only).
type Scope struct {
	Layer     model.Layer `json:"layer"`
	ScopeID   uint        `json:"scope_id,omitempty"`
	AllScopes bool        `json:"all_scopes,omitempty"`
}

// Directory is the read-only membership snapshot resolution needs beyond the
// Principal itself: the projects under the Principal's organization. The
// caller loads it (typically through the redis-backed cache) and passes it
// in so Resolve stays free of I/O.
type Directory struct {
	OrgProjectIDs []uint
}

// Access is the resolved, ephemeral read authorization for one request.
// Scopes is ordered: platform, then organization, then projects, then user.
type Access struct {
	Scopes               []Scope
	CanPreviewUnapproved bool
	// PreviewScopes is the subset of layers/scopes in which the Principal
	// may see pending documents and perform approve/reject transitions.
	PreviewScopes []Scope
}

// Resolve maps a Principal to its ordered allowed scopes. The result always
// contains the platform scope and the Principal's own user scope, so it is
// never empty.
func Resolve(p Principal, dir Directory) Access {
	platform := Scope{Layer: model.LayerPlatform}
	self := Scope{Layer: model.LayerUser, ScopeID: p.UserID}

	switch p.AppRole {
	case RoleSuperAdmin:
		all := []Scope{
			platform,
			{Layer: model.LayerOrganization, AllScopes: true},
			{Layer: model.LayerProject, AllScopes: true},
			{Layer: model.LayerUser, AllScopes: true},
		}
		return Access{
			Scopes:               all,
			CanPreviewUnapproved: true,
			PreviewScopes:        all,
		}

	case RoleOrgAdmin:
		if p.OrgID == nil {
			// An org_admin without an organization degrades to member access.
			return memberAccess(p, platform, self)
		}
		org := Scope{Layer: model.LayerOrganization, ScopeID: *p.OrgID}
		scopes := []Scope{platform, org}
		preview := []Scope{org}
		for _, id := range sortedUnique(dir.OrgProjectIDs) {
			proj := Scope{Layer: model.LayerProject, ScopeID: id}
			scopes = append(scopes, proj)
			preview = append(preview, proj)
		}
		scopes = append(scopes, self)
		return Access{
			Scopes:               scopes,
			CanPreviewUnapproved: true,
			PreviewScopes:        preview,
		}

	default:
		return memberAccess(p, platform, self)
	}
}

func memberAccess(p Principal, platform, self Scope) Access {
	scopes := []Scope{platform}
	ids := make([]uint, 0, len(p.Projects))
	for _, m := range p.Projects {
		ids = append(ids, m.ProjectID)
	}
	for _, id := range sortedUnique(ids) {
		scopes = append(scopes, Scope{Layer: model.LayerProject, ScopeID: id})
	}
	scopes = append(scopes, self)
	return Access{Scopes: scopes}
}

// Allows reports whether the (layer, scope id) pair is readable. scopeID is
// nil for platform documents.
func (a Access) Allows(layer model.Layer, scopeID *uint) bool {
	return scopeIn(a.Scopes, layer, scopeID)
}

// CanValidate reports whether the Principal may see pending documents in,
// and approve/reject documents of, the given (layer, scope id).
func (a Access) CanValidate(layer model.Layer, scopeID *uint) bool {
	if !a.CanPreviewUnapproved {
		return false
	}
	return scopeIn(a.PreviewScopes, layer, scopeID)
}

// Restrict returns a copy of the access limited to a single layer. The
// resulting Scopes may be empty; callers treat that as a permission failure,
// not as "no results".
func (a Access) Restrict(layer model.Layer) Access {
	out := Access{CanPreviewUnapproved: a.CanPreviewUnapproved}
	for _, s := range a.Scopes {
		if s.Layer == layer {
			out.Scopes = append(out.Scopes, s)
		}
	}
	for _, s := range a.PreviewScopes {
		if s.Layer == layer {
			out.PreviewScopes = append(out.PreviewScopes, s)
		}
	}
	return out
}

func scopeIn(scopes []Scope, layer model.Layer, scopeID *uint) bool {
	for _, s := range scopes {
		if s.Layer != layer {
			continue
		}
		if s.AllScopes || !layer.NeedsScope() {
			return true
		}
		if scopeID != nil && *scopeID == s.ScopeID {
			return true
		}
	}
	return false
}

func sortedUnique(ids []uint) []uint {
	if len(ids) == 0 {
		return nil
	}
	out := make([]uint, 0, len(ids))
	seen := make(map[uint]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
