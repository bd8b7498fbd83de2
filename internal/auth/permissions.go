package auth

// Permission represents a named capability in the system.
type Permission string

// Permission constants.
const (
	PermStatusRead    Permission = "status:read"
	PermCommandSend   Permission = "command:send"
	PermDeviceOperate Permission = "device:operate"
	PermSceneExecute  Permission = "scene:execute"
)

// rolePermissions maps each role to its granted permissions.
var rolePermissions = map[Role][]Permission{
	RoleViewer: {
		PermStatusRead,
	},
	RoleOperator: {
		PermStatusRead,
		PermCommandSend,
		PermDeviceOperate,
		PermSceneExecute,
	},
}

// HasPermission reports whether role grants perm.
func HasPermission(role Role, perm Permission) bool {
	for _, p := range rolePermissions[role] {
		if p == perm {
			return true
		}
	}
	return false
}
