package rbac

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/capiplan/capiplan/internal/shared"
)

func TestCapabilitiesOfUnknownRole(t *testing.T) {
	resolver := NewResolver()

	set := resolver.CapabilitiesOf("intern")
	require.Empty(t, set.List())
	require.False(t, set.Has(shared.CapInvestmentApprove))
}

func TestAdminReceivesFullSet(t *testing.T) {
	resolver := NewResolver()

	set := resolver.CapabilitiesOf(RoleAdmin)
	for _, capability := range shared.WorkflowScopes() {
		require.True(t, set.Has(capability), capability)
	}
	for _, capability := range shared.AdminScopes() {
		require.True(t, set.Has(capability), capability)
	}
}

func TestConfirmationRolesAreAsymmetric(t *testing.T) {
	resolver := NewResolver()

	require.True(t, resolver.HasCapability([]string{RoleCashflowManager}, shared.CapCashflowConfirmCM))
	require.False(t, resolver.HasCapability([]string{RoleCashflowManager}, shared.CapCashflowConfirmGF))
	require.True(t, resolver.HasCapability([]string{RoleManagingDirector}, shared.CapCashflowConfirmGF))
	require.False(t, resolver.HasCapability([]string{RoleManagingDirector}, shared.CapCashflowConfirmCM))
}

func TestHasCapabilityAcrossRoles(t *testing.T) {
	resolver := NewResolver()

	roles := []string{RoleController, "unknown", RoleApprover}
	require.True(t, resolver.HasCapability(roles, shared.CapInvestmentSubmit))
	require.True(t, resolver.HasCapability(roles, shared.CapInvestmentApprove))
	require.False(t, resolver.HasCapability(roles, shared.CapCashflowBook))
}
