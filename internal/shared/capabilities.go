package shared

// Investment workflow capabilities.
const (
	CapInvestmentCreate  = "investment.create"
	CapInvestmentSubmit  = "investment.submit"
	CapInvestmentApprove = "investment.approve"
	CapInvestmentClose   = "investment.close"
)

// Cashflow workflow capabilities.
const (
	CapCashflowConfirmCM = "cashflow.confirm.cm"
	CapCashflowConfirmGF = "cashflow.confirm.gf"
	CapCashflowPostpone  = "cashflow.postpone"
	CapCashflowCancel    = "cashflow.cancel"
	CapCashflowBook      = "cashflow.book"
)

// Audit and administration capabilities.
const (
	CapAuditView = "audit.view"
	CapUsersView = "users.view"
	CapUsersEdit = "users.edit"
	CapRolesView = "roles.view"
	CapRolesEdit = "roles.edit"
)

// WorkflowScopes lists every workflow capability.
func WorkflowScopes() []string {
	return []string{
		CapInvestmentCreate,
		CapInvestmentSubmit,
		CapInvestmentApprove,
		CapInvestmentClose,
		CapCashflowConfirmCM,
		CapCashflowConfirmGF,
		CapCashflowPostpone,
		CapCashflowCancel,
		CapCashflowBook,
	}
}

// AdminScopes lists the audit/management capability set granted to admins
// on top of the workflow scopes.
func AdminScopes() []string {
	return []string{
		CapAuditView,
		CapUsersView,
		CapUsersEdit,
		CapRolesView,
		CapRolesEdit,
	}
}
