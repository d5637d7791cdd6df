package rbac

type Role string
type Action string

const (
	RoleCitizen Role = "citizen"
	RoleAdmin   Role = "admin"
)

const (
	ActionRead         Action = "read"
	ActionReport       Action = "report"
	ActionComment      Action = "comment"
	ActionEditProfile  Action = "edit_profile"
	ActionChangeStatus Action = "change_status"
)

// Can reports whether role may perform action. Only admins move issues
// between statuses.
func Can(role Role, action Action) bool {
	switch role {
	case RoleAdmin:
		return true
	case RoleCitizen:
		return action == ActionRead || action == ActionReport || action == ActionComment || action == ActionEditProfile
	default:
		return false
	}
}

// RoleFor maps the injected admin flag to a role.
func RoleFor(admin bool) Role {
	if admin {
		return RoleAdmin
	}
	return RoleCitizen
}

func Normalize(role string) Role {
	switch Role(role) {
	case RoleCitizen, RoleAdmin:
		return Role(role)
	default:
		return RoleCitizen
	}
}
