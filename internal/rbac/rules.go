package rbac

const (
	RoleCandidate = "candidate"
	RoleRecruiter = "recruiter"
	RoleAdmin     = "admin"
)

const (
	// PermSessionStart lets a candidate open the test for the pair its
	// token is scoped to. Create and play cover any pair.
	PermSessionStart    = "session:start"
	PermSessionCreate   = "session:create"
	PermSessionPlay     = "session:play"
	PermSessionViewAll  = "session:view-all"
	PermResultsView     = "results:view"
	PermApplicationView = "applications:view"
)

// Simple default policy. Expand as needed.
var RolePermissions = map[string][]string{
	RoleCandidate: {
		PermSessionStart,
	},
	RoleRecruiter: {
		PermResultsView,
		PermSessionViewAll,
		PermApplicationView,
	},
	RoleAdmin: {
		"*", // everything
	},
}
