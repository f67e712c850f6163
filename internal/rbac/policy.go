package rbac

import "path"

const (
	RoleProf    = "PROF"
	RoleStudent = "STUDENT"
)

const (
	PermConceptManage  = "concept:manage"
	PermRosterManage   = "roster:manage"
	PermDashboardClass = "dashboard:class"
	PermQuizTake       = "quiz:take"
	PermStatsViewOwn   = "stats:view-own"
	PermDashboardOwn   = "dashboard:own"
)

// Policy maps a role to permission patterns. Patterns use path.Match syntax,
// so "concept:*" grants every concept permission.
type Policy map[string][]string

var DefaultPolicy = Policy{
	RoleStudent: {
		PermQuizTake,
		PermStatsViewOwn,
		PermDashboardOwn,
	},
	RoleProf: {
		"concept:*",
		"roster:*",
		PermDashboardClass,
	},
}

// Allows reports whether role holds perm. Unknown roles hold nothing.
func (p Policy) Allows(role, perm string) bool {
	for _, pattern := range p[role] {
		if ok, _ := path.Match(pattern, perm); ok {
			return true
		}
	}
	return false
}
