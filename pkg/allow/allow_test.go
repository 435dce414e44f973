package allow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type privileges struct {
	order []string
	roles map[string]string
}

func (p privileges) Teams() []string { return p.order }

func (p privileges) Role(team string) (string, bool) {
	r, ok := p.roles[team]
	return r, ok
}

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		spec  string
		teams []string
		roles map[string][]string
	}{
		{
			name:  "bare team",
			spec:  "foo",
			teams: []string{"foo"},
			roles: map[string][]string{"foo": {}},
		},
		{
			name:  "team with roles",
			spec:  "foo(bar|baz)",
			teams: []string{"foo"},
			roles: map[string][]string{"foo": {"bar", "baz"}},
		},
		{
			name:  "mixed list with whitespace",
			spec:  "foo, bar(x)",
			teams: []string{"foo", "bar"},
			roles: map[string][]string{"foo": {}, "bar": {"x"}},
		},
		{
			name:  "roles are trimmed and empty roles dropped",
			spec:  "  foo( a | | b ) ,bar  ",
			teams: []string{"foo", "bar"},
			roles: map[string][]string{"foo": {"a", "b"}, "bar": {}},
		},
		{
			name:  "duplicate team keeps last definition",
			spec:  "foo(a), foo(b)",
			teams: []string{"foo"},
			roles: map[string][]string{"foo": {"b"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := Parse(tt.spec)
			require.NoError(t, err)
			assert.Equal(t, tt.teams, table.Teams())
			for team, want := range tt.roles {
				got, ok := table.Roles(team)
				require.True(t, ok, "team %s missing", team)
				assert.Equal(t, want, got)
			}
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	for _, spec := range []string{"", "   ", "(admin)", "foo, (x)", "foo(bar", "foo,,bar", "a(b)c"} {
		t.Run(spec, func(t *testing.T) {
			table, err := Parse(spec)
			assert.ErrorIs(t, err, ErrInvalidAllow)
			assert.Nil(t, table)
		})
	}
}

func TestMustParse_Panics(t *testing.T) {
	assert.Panics(t, func() { MustParse("") })
	assert.NotPanics(t, func() { MustParse("foo") })
}

func TestTable_Allows(t *testing.T) {
	table := MustParse("any, strict(admin|owner)")

	assert.True(t, table.Allows("any", "member"))
	assert.True(t, table.Allows("any", ""))
	assert.True(t, table.Allows("strict", "admin"))
	assert.True(t, table.Allows("strict", "owner"))
	assert.False(t, table.Allows("strict", "member"))
	assert.False(t, table.Allows("missing", "admin"))
}

func TestTable_Filter(t *testing.T) {
	p := privileges{
		order: []string{"foo", "bar", "baz", "qux"},
		roles: map[string]string{"foo": "admin", "bar": "member", "baz": "owner", "qux": "member"},
	}

	t.Run("keeps privilege order", func(t *testing.T) {
		table := MustParse("qux, foo")
		assert.Equal(t, []string{"foo", "qux"}, table.Filter(p))
	})

	t.Run("role mismatch excluded", func(t *testing.T) {
		table := MustParse("foo(contributor)")
		got := table.Filter(p)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})

	t.Run("role match included", func(t *testing.T) {
		table := MustParse("foo(admin), bar(owner), baz(owner|member)")
		assert.Equal(t, []string{"foo", "baz"}, table.Filter(p))
	})

	t.Run("nil privileges", func(t *testing.T) {
		assert.Equal(t, []string{}, MustParse("foo").Filter(nil))
	})
}

func TestTable_String(t *testing.T) {
	assert.Equal(t, "foo, bar(a|b)", MustParse("foo,bar(a|b)").String())
}

func TestTable_AccessorsReturnCopies(t *testing.T) {
	table := MustParse("foo(a)")
	roles, _ := table.Roles("foo")
	roles[0] = "changed"
	teams := table.Teams()
	teams[0] = "changed"

	again, _ := table.Roles("foo")
	assert.Equal(t, []string{"a"}, again)
	assert.Equal(t, []string{"foo"}, table.Teams())
}
