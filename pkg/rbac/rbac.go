package rbac

const (
	PermissionReadHabit   = "habit:read"
	PermissionWriteHabit  = "habit:write"
	PermissionDeleteHabit = "habit:delete"
	PermissionTrackHabit  = "habit:track"
)

const (
	RoleOwner = "owner"
	RoleNone  = ""
)

var rolePermissions = map[string][]string{
	RoleOwner: {
		PermissionReadHabit,
		PermissionWriteHabit,
		PermissionDeleteHabit,
		PermissionTrackHabit,
	},
}

// RoleFor returns the role userID holds on a resource owned by ownerID.
// Habits are private: only their owner holds a role.
func RoleFor(userID, ownerID int) string {
	if userID > 0 && userID == ownerID {
		return RoleOwner
	}
	return RoleNone
}

func HasPermission(userID, ownerID int, permission string) bool {
	for _, p := range rolePermissions[RoleFor(userID, ownerID)] {
		if p == permission {
			return true
		}
	}
	return false
}

// CheckPermission is HasPermission as an error, for handlers.
func CheckPermission(userID, ownerID int, permission string) error {
	if !HasPermission(userID, ownerID, permission) {
		return &PermissionDeniedError{
			UserID:     userID,
			Permission: permission,
		}
	}
	return nil
}

type PermissionDeniedError struct {
	UserID     int
	Permission string
}

func (e *PermissionDeniedError) Error() string {
	return "insufficient permissions"
}
