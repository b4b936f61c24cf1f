package rbac

// Role names the workflow roles known to the service. Assignment of users to
// roles lives in the auth gateway; this package only maps roles onto
// capability sets.
const (
	RoleAdmin            = "admin"
	RoleController       = "controller"
	RoleApprover         = "approver"
	RoleCashflowManager  = "cashflow_manager"
	RoleManagingDirector = "managing_director"
	RoleAccounting       = "accounting"
)

// CapabilitySet is an immutable capability lookup.
type CapabilitySet map[string]struct{}

// Has reports whether the set contains the capability.
func (s CapabilitySet) Has(capability string) bool {
	_, ok := s[capability]
	return ok
}

// List returns the capabilities in unspecified order.
func (s CapabilitySet) List() []string {
	out := make([]string, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	return out
}
