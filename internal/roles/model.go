package roles

import "sort"

type Role string

const (
	RoleAdmin     Role = "admin"
	RoleCollector Role = "collector"
	RoleMember    Role = "member"
	// RoleNone is the primary role of a user without any assigned role.
	RoleNone Role = "none"
)

// precedence lists assignable roles from strongest to weakest.
var precedence = []Role{RoleAdmin, RoleCollector, RoleMember}

func rank(r Role) int {
	for i, p := range precedence {
		if p == r {
			return i
		}
	}
	return len(precedence)
}

// ParseRole accepts only assignable roles.
func ParseRole(s string) (Role, bool) {
	r := Role(s)
	if rank(r) < len(precedence) {
		return r, true
	}
	return "", false
}

type Capability string

const (
	CapViewDashboard    Capability = "view_dashboard"
	CapViewMembers      Capability = "view_members"
	CapCollectPayments  Capability = "collect_payments"
	CapManageCollectors Capability = "manage_collectors"
	CapViewAudit        Capability = "view_audit"
	CapAccessSystem     Capability = "access_system"
	CapViewFinancials   Capability = "view_financials"
)

var capabilities = []Capability{
	CapViewDashboard,
	CapViewMembers,
	CapCollectPayments,
	CapManageCollectors,
	CapViewAudit,
	CapAccessSystem,
	CapViewFinancials,
}

var grants = map[Role][]Capability{
	RoleAdmin:     capabilities,
	RoleCollector: {CapViewDashboard, CapViewMembers, CapCollectPayments},
	RoleMember:    {CapViewDashboard},
}

// Permissions has an entry for every capability.
type Permissions map[Capability]bool

// Resolved is the role state derived for one user.
type Resolved struct {
	Roles       []Role      `json:"roles"`
	Primary     Role        `json:"primary_role"`
	Permissions Permissions `json:"permissions"`
}

// NewResolved normalises a raw role list: unknown values and duplicates
// are dropped and the rest ordered by precedence.
func NewResolved(raw []Role) Resolved {
	seen := make(map[Role]bool, len(raw))
	set := make([]Role, 0, len(raw))
	for _, r := range raw {
		if _, ok := ParseRole(string(r)); !ok || seen[r] {
			continue
		}
		seen[r] = true
		set = append(set, r)
	}
	sort.Slice(set, func(i, j int) bool { return rank(set[i]) < rank(set[j]) })
	return Resolved{
		Roles:       set,
		Primary:     PrimaryRole(set),
		Permissions: PermissionsFor(set),
	}
}

// PrimaryRole picks admin over collector over member; none if empty.
func PrimaryRole(set []Role) Role {
	best := RoleNone
	for _, r := range set {
		if rank(r) < rank(best) {
			best = r
		}
	}
	return best
}

// PermissionsFor is the union of the grants of every role in set.
func PermissionsFor(set []Role) Permissions {
	p := make(Permissions, len(capabilities))
	for _, c := range capabilities {
		p[c] = false
	}
	for _, r := range set {
		for _, c := range grants[r] {
			p[c] = true
		}
	}
	return p
}
