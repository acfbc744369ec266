package models

// FlowAccessPolicy aggregates the sparse access rows of a flow. An empty
// TeamIDs list on a team-restricted flow means "open to the whole tenant".
type FlowAccessPolicy struct {
	FlowID          string   `json:"flow_id"`
	TeamIDs         []string `json:"team_ids,omitempty"`
	ExcludedUserIDs []string `json:"excluded_user_ids,omitempty"`
}

// HasTeam reports whether the team is granted access by this policy.
func (p *FlowAccessPolicy) HasTeam(teamID string) bool {
	for _, id := range p.TeamIDs {
		if id == teamID {
			return true
		}
	}

	return false
}

// Excludes reports whether the user appears on the exclusion list.
func (p *FlowAccessPolicy) Excludes(userID string) bool {
	for _, id := range p.ExcludedUserIDs {
		if id == userID {
			return true
		}
	}

	return false
}

// StepVisibility is a per-user, per-step override row. Absence of a row means
// the defaults apply (view allowed, edit allowed).
type StepVisibility struct {
	StepID  string `json:"step_id" validate:"required"`
	UserID  string `json:"user_id" validate:"required"`
	CanView bool   `json:"can_view"`
	CanEdit bool   `json:"can_edit"`
}
