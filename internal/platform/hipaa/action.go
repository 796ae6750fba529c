package hipaa

import "fmt"

// Action is the kind of event an audit entry records.
type Action string

const (
	ActionPHIAccess    Action = "PHI_ACCESS"
	ActionCreate       Action = "CREATE"
	ActionUpdate       Action = "UPDATE"
	ActionDelete       Action = "DELETE"
	ActionLogin        Action = "LOGIN"
	ActionLogout       Action = "LOGOUT"
	ActionLoginFailed  Action = "LOGIN_FAILED"
	ActionAccessDenied Action = "ACCESS_DENIED"
	ActionExport       Action = "EXPORT"
	ActionPrint        Action = "PRINT"
)

var allActions = []Action{
	ActionPHIAccess, ActionCreate, ActionUpdate, ActionDelete, ActionLogin,
	ActionLogout, ActionLoginFailed, ActionAccessDenied, ActionExport, ActionPrint,
}

func (a Action) Valid() bool {
	for _, known := range allActions {
		if a == known {
			return true
		}
	}
	return false
}

// IsModification reports whether a is CREATE, UPDATE or DELETE.
func (a Action) IsModification() bool {
	return a == ActionCreate || a == ActionUpdate || a == ActionDelete
}

func (a Action) isAuth() bool {
	return a == ActionLogin || a == ActionLogout || a == ActionLoginFailed
}

func ParseAction(s string) (Action, error) {
	a := Action(s)
	if !a.Valid() {
		return "", fmt.Errorf("unknown audit action %q", s)
	}
	return a, nil
}

// Reasons recorded on failed logins.
const (
	ReasonAccountLocked      = "ACCOUNT_LOCKED"
	ReasonInvalidCredentials = "INVALID_CREDENTIALS"
)
