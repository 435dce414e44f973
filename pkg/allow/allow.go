package allow

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidAllow is returned when the allow specification cannot be parsed
var ErrInvalidAllow = errors.New("invalid allow specification")

var (
	separator = regexp.MustCompile(`\s*,\s*`)
	teamSpec  = regexp.MustCompile(`^([^()]*?)(\(([^()]*)\))?$`)
)

// Table maps a team name to the roles accepted for it.
// An empty role list accepts any role. A Table is immutable once parsed.
type Table struct {
	order []string
	roles map[string][]string
}

// Privileges is the ordered team -> role view a Table filters
type Privileges interface {
	Teams() []string
	Role(team string) (string, bool)
}

// Parse builds a Table from a specification such as "foo, bar(admin|member)"
func Parse(spec string) (*Table, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, fmt.Errorf("%w: at least one team is required", ErrInvalidAllow)
	}

	t := &Table{roles: make(map[string][]string)}
	for _, token := range separator.Split(spec, -1) {
		token = strings.TrimSpace(token)

		m := teamSpec.FindStringSubmatch(token)
		if m == nil {
			return nil, fmt.Errorf("%w: malformed team %q", ErrInvalidAllow, token)
		}

		name := strings.TrimSpace(m[1])
		if name == "" {
			return nil, fmt.Errorf("%w: missing team name in %q", ErrInvalidAllow, token)
		}

		roles := []string{}
		if m[3] != "" {
			for _, role := range strings.Split(m[3], "|") {
				if role = strings.TrimSpace(role); role != "" {
					roles = append(roles, role)
				}
			}
		}

		if _, seen := t.roles[name]; !seen {
			t.order = append(t.order, name)
		}
		t.roles[name] = roles
	}

	return t, nil
}

// MustParse is like Parse but panics on error
func MustParse(spec string) *Table {
	t, err := Parse(spec)
	if err != nil {
		panic(err)
	}
	return t
}

// Teams returns the configured team names in declaration order
func (t *Table) Teams() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

// Roles returns the accepted roles for a team and whether the team is configured
func (t *Table) Roles(team string) ([]string, bool) {
	roles, ok := t.roles[team]
	if !ok {
		return nil, false
	}
	out := make([]string, len(roles))
	copy(out, roles)
	return out, true
}

// Allows reports whether holding role in team grants access
func (t *Table) Allows(team, role string) bool {
	roles, ok := t.roles[team]
	if !ok {
		return false
	}
	if len(roles) == 0 {
		return true
	}
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

// Filter returns the teams of p that the table allows, in p's order.
// The result is never nil.
func (t *Table) Filter(p Privileges) []string {
	teams := []string{}
	if p == nil {
		return teams
	}
	for _, team := range p.Teams() {
		role, _ := p.Role(team)
		if t.Allows(team, role) {
			teams = append(teams, team)
		}
	}
	return teams
}

// String renders the table back into the allow grammar
func (t *Table) String() string {
	parts := make([]string, 0, len(t.order))
	for _, team := range t.order {
		if roles := t.roles[team]; len(roles) > 0 {
			parts = append(parts, team+"("+strings.Join(roles, "|")+")")
			continue
		}
		parts = append(parts, team)
	}
	return strings.Join(parts, ", ")
}
