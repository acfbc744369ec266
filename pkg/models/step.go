package models

import "time"

// StepType marks special step behavior. Most steps carry no type.
type StepType string

const (
	// StepTypeFinisher flags a terminal stage. Cards completed on a finisher
	// step are eligible for commission calculation.
	StepTypeFinisher StepType = "finisher"
)

// ResponsibleKind discriminates the default assignment carried by a step.
type ResponsibleKind string

const (
	ResponsibleNone ResponsibleKind = "none"
	ResponsibleUser ResponsibleKind = "user"
	ResponsibleTeam ResponsibleKind = "team"
)

// Responsible is the default auto-assignment of a step: nobody, a single user,
// or a team. Modeling it as a tagged value makes the "both user and team set"
// state unrepresentable.
type Responsible struct {
	Kind ResponsibleKind `json:"kind"`
	ID   string          `json:"id,omitempty"`
}

func NoResponsible() Responsible {
	return Responsible{Kind: ResponsibleNone}
}

func UserResponsible(userID string) Responsible {
	return Responsible{Kind: ResponsibleUser, ID: userID}
}

func TeamResponsible(teamID string) Responsible {
	return Responsible{Kind: ResponsibleTeam, ID: teamID}
}

func (r Responsible) IsNone() bool { return r.Kind == ResponsibleNone || r.Kind == "" }
func (r Responsible) IsUser() bool { return r.Kind == ResponsibleUser }
func (r Responsible) IsTeam() bool { return r.Kind == ResponsibleTeam }

// Step is a stage within a flow. Positions are 1-based, dense, and unique
// within the flow.
type Step struct {
	ID          string      `json:"id"`
	FlowID      string      `json:"flow_id"     validate:"required"`
	Title       string      `json:"title"       validate:"required,min=1"`
	Color       string      `json:"color"`
	Position    int         `json:"position"`
	Responsible Responsible `json:"responsible"`
	Type        StepType    `json:"type,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// IsFinisher reports whether cards completed on this step are commission-eligible.
func (s *Step) IsFinisher() bool {
	return s.Type == StepTypeFinisher
}
