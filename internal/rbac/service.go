package rbac

import (
	"github.com/capiplan/capiplan/internal/shared"
)

// Resolver maps roles to capability sets. The mapping is a closed table so
// that adding a role is a data change, not new conditional logic.
type Resolver struct {
	table map[string]CapabilitySet
}

// NewResolver constructs the Resolver with the built-in role table.
func NewResolver() *Resolver {
	table := map[string][]string{
		RoleAdmin: append(shared.WorkflowScopes(), shared.AdminScopes()...),
		RoleController: {
			shared.CapInvestmentCreate,
			shared.CapInvestmentSubmit,
			shared.CapInvestmentClose,
		},
		RoleApprover: {
			shared.CapInvestmentApprove,
			shared.CapInvestmentClose,
		},
		RoleCashflowManager: {
			shared.CapCashflowConfirmCM,
			shared.CapCashflowPostpone,
			shared.CapCashflowCancel,
		},
		RoleManagingDirector: {
			shared.CapInvestmentApprove,
			shared.CapInvestmentClose,
			shared.CapCashflowConfirmGF,
			shared.CapCashflowPostpone,
			shared.CapCashflowCancel,
		},
		RoleAccounting: {
			shared.CapCashflowBook,
		},
	}
	compiled := make(map[string]CapabilitySet, len(table))
	for role, caps := range table {
		set := make(CapabilitySet, len(caps))
		for _, c := range caps {
			set[c] = struct{}{}
		}
		compiled[role] = set
	}
	return &Resolver{table: compiled}
}

// CapabilitiesOf returns the capability set for a role. Unknown roles yield
// the empty set, never an error.
func (r *Resolver) CapabilitiesOf(role string) CapabilitySet {
	if set, ok := r.table[role]; ok {
		return set
	}
	return CapabilitySet{}
}

// HasCapability reports whether any of the roles grants the capability.
func (r *Resolver) HasCapability(roles []string, capability string) bool {
	for _, role := range roles {
		if r.CapabilitiesOf(role).Has(capability) {
			return true
		}
	}
	return false
}
