package auth

// Action is a capability checked against an identity's type
type Action string

const (
	ActionProfileViewOwn   Action = "profile.view_own"
	ActionProfileEditOwn   Action = "profile.edit_own"
	ActionAddressManageOwn Action = "address.manage_own"
	ActionQuoteCreate      Action = "quote.create"
	ActionUserList         Action = "user.list"
	ActionUserDeactivate   Action = "user.deactivate"
	ActionUserChangeRole   Action = "user.change_role"
	ActionNDISView         Action = "ndis.view"
)

// permissions is the (user type, action) table. Pairs that are not listed
// are denied.
var permissions = map[UserType]map[Action]bool{
	UserTypeClient: {
		ActionProfileViewOwn:   true,
		ActionProfileEditOwn:   true,
		ActionAddressManageOwn: true,
		ActionQuoteCreate:      true,
		ActionNDISView:         true,
	},
	UserTypeStaff: {
		ActionProfileViewOwn: true,
		ActionProfileEditOwn: true,
		ActionUserList:       true,
		ActionNDISView:       true,
	},
	UserTypeAdmin: {
		ActionProfileViewOwn:   true,
		ActionProfileEditOwn:   true,
		ActionAddressManageOwn: true,
		ActionQuoteCreate:      true,
		ActionUserList:         true,
		ActionUserDeactivate:   true,
		ActionUserChangeRole:   true,
		ActionNDISView:         true,
	},
}

// Can reports whether userType is allowed to perform action
func Can(userType UserType, action Action) bool {
	actions, ok := permissions[userType]
	if !ok {
		return false
	}
	return actions[action]
}

// Actions lists every action granted to userType
func Actions(userType UserType) []Action {
	out := []Action{}
	for _, a := range allActions {
		if Can(userType, a) {
			out = append(out, a)
		}
	}
	return out
}

var allActions = []Action{
	ActionProfileViewOwn,
	ActionProfileEditOwn,
	ActionAddressManageOwn,
	ActionQuoteCreate,
	ActionUserList,
	ActionUserDeactivate,
	ActionUserChangeRole,
	ActionNDISView,
}

// IsAtLeast compares user types by privilege
func (t UserType) IsAtLeast(min UserType) bool {
	return userTypeRank[t] >= userTypeRank[min] && userTypeRank[t] > 0
}

var userTypeRank = map[UserType]int{
	UserTypeClient: 1,
	UserTypeStaff:  2,
	UserTypeAdmin:  3,
}
