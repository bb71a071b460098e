package roles

type Tab string

const (
	TabDashboard  Tab = "dashboard"
	TabUsers      Tab = "users"
	TabCollectors Tab = "collectors"
	TabAudit      Tab = "audit"
	TabSystem     Tab = "system"
	TabFinancials Tab = "financials"
)

var tabs = []Tab{TabDashboard, TabUsers, TabCollectors, TabAudit, TabSystem, TabFinancials}

var tabPolicy = map[Role][]Tab{
	RoleAdmin:     tabs,
	RoleCollector: {TabDashboard, TabUsers},
	RoleMember:    {TabDashboard},
}

// Tabs returns every gated tab in navigation order.
func Tabs() []Tab {
	out := make([]Tab, len(tabs))
	copy(out, tabs)
	return out
}

func ParseTab(s string) (Tab, bool) {
	for _, t := range tabs {
		if string(t) == s {
			return t, true
		}
	}
	return "", false
}

// CanAccessTab decides visibility of a tab from the primary role. It is
// false for unknown tabs and for any state that is not resolved.
func CanAccessTab(s State, tab Tab) bool {
	for _, allowed := range tabPolicy[s.Primary()] {
		if allowed == tab {
			return true
		}
	}
	return false
}

// CanAccessTabName is CanAccessTab for an untrusted tab name.
func CanAccessTabName(s State, name string) bool {
	tab, ok := ParseTab(name)
	return ok && CanAccessTab(s, tab)
}

// AllowedTabs lists the tabs the state may see, in navigation order.
func AllowedTabs(s State) []Tab {
	out := []Tab{}
	for _, t := range tabs {
		if CanAccessTab(s, t) {
			out = append(out, t)
		}
	}
	return out
}
