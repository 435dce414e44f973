package bitbucket

// Role is a Bitbucket workspace role filter
type Role string

const (
	RoleMember       Role = "member"
	RoleCollaborator Role = "collaborator"
	RoleOwner        Role = "owner"
)

// Roles lists the queried roles in merge order; later entries win
var Roles = []Role{RoleMember, RoleCollaborator, RoleOwner}

// Credentials is the Basic auth pair sent to Bitbucket
type Credentials struct {
	Username string
	Password string
}

// PrivilegeMap maps a team to the role resolved for it.
// Teams keep the position of their first insertion.
type PrivilegeMap struct {
	order []string
	roles map[string]string
}

// NewPrivilegeMap creates an empty privilege map
func NewPrivilegeMap() *PrivilegeMap {
	return &PrivilegeMap{roles: make(map[string]string)}
}

// Set records role for team, replacing any earlier role
func (p *PrivilegeMap) Set(team, role string) {
	if _, ok := p.roles[team]; !ok {
		p.order = append(p.order, team)
	}
	p.roles[team] = role
}

// Role returns the role resolved for team
func (p *PrivilegeMap) Role(team string) (string, bool) {
	role, ok := p.roles[team]
	return role, ok
}

// Teams returns team names in insertion order
func (p *PrivilegeMap) Teams() []string {
	out := make([]string, len(p.order))
	copy(out, p.order)
	return out
}

// Len returns the number of teams
func (p *PrivilegeMap) Len() int {
	return len(p.order)
}

// Map returns a plain copy of the team -> role mapping
func (p *PrivilegeMap) Map() map[string]string {
	out := make(map[string]string, len(p.roles))
	for k, v := range p.roles {
		out[k] = v
	}
	return out
}

// workspacePage is one page of GET /workspaces
type workspacePage struct {
	Values []workspace `json:"values"`
	Next   string      `json:"next,omitempty"`
}

type workspace struct {
	Slug string `json:"slug"`
	// Username is set instead of Slug by the legacy /teams listing
	Username string `json:"username,omitempty"`
}

func (w workspace) id() string {
	if w.Slug != "" {
		return w.Slug
	}
	return w.Username
}

// apiError is the error envelope Bitbucket returns on failures
type apiError struct {
	Type  string `json:"type"`
	Error struct {
		Message string `json:"message"`
		Detail  string `json:"detail,omitempty"`
	} `json:"error"`
}
