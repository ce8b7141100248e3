package service

// 角色
const (
	RoleAdmin         = "admin"
	RoleManager       = "manager"
	RoleMember        = "member"
	RolePlatformAdmin = "platform_admin"
)

// Actor the authenticated caller. TenantID scopes every read and write.
type Actor struct {
	TenantID string
	UserID   string
	Role     string
}

// CanManage admin or manager of the tenant.
func (a Actor) CanManage() bool {
	return a.Role == RoleAdmin || a.Role == RoleManager
}
