package models

// Role is the permission level a user holds within a tenant.
type Role string

const (
	RoleAdministrator Role = "administrator"
	RoleTeamLeader    Role = "team_leader"
	RoleTeamAdmin     Role = "team_admin"
	RoleMember        Role = "member"
)

// Elevated reports whether the role may perform privileged mutations such as
// renaming cards. Elevated users are also immune to visibility exclusion lists.
func (r Role) Elevated() bool {
	return r == RoleAdministrator || r == RoleTeamLeader || r == RoleTeamAdmin
}

// Actor is the user on whose behalf an operation runs. Authentication happens
// upstream; the actor arrives resolved on every request.
type Actor struct {
	UserID   string   `json:"user_id"   validate:"required"`
	TenantID string   `json:"tenant_id" validate:"required"`
	Role     Role     `json:"role"`
	TeamIDs  []string `json:"team_ids,omitempty"`
}

// InTeam reports whether the actor belongs to the given team.
func (a Actor) InTeam(teamID string) bool {
	for _, id := range a.TeamIDs {
		if id == teamID {
			return true
		}
	}

	return false
}
