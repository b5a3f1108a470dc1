// Package permissions maps roles to capability tokens. The table is static
// and read-only; every check is a pure lookup with no I/O.
package permissions

import "strings"

// Role is the closed set of profile classifications.
type Role string

const (
	RoleSuperAdmin Role = "super_admin"
	RoleDeveloper  Role = "developer"
	RoleLevelAdmin Role = "level_admin"
	RoleSupport    Role = "support"
	RoleUser       Role = "user"
)

// Permission is an atomic capability token.
type Permission string

const (
	ManageAllUsers        Permission = "manage_all_users"
	ManageUsers           Permission = "manage_users"
	ViewUsers             Permission = "view_users"
	ManageRoles           Permission = "manage_roles"
	ModerateContent       Permission = "moderate_content"
	ViewReports           Permission = "view_reports"
	SendBulkNotifications Permission = "send_bulk_notifications"
	ViewAnalytics         Permission = "view_analytics"
	ViewSystemLogs        Permission = "view_system_logs"
	ManageSystemSettings  Permission = "manage_system_settings"
	AccessDeveloperTools  Permission = "access_developer_tools"
	HandleSupportTickets  Permission = "handle_support_tickets"
	DeleteAnyMedia        Permission = "delete_any_media"
	CreatePosts           Permission = "create_posts"
	CreateStories         Permission = "create_stories"
	CommentOnPosts        Permission = "comment_on_posts"
	LikePosts             Permission = "like_posts"
	ChatWithUsers         Permission = "chat_with_users"
	SendFriendRequests    Permission = "send_friend_requests"
	UploadMedia           Permission = "upload_media"
	ViewContent           Permission = "view_content"
)

var universe = []Permission{
	ManageAllUsers, ManageUsers, ViewUsers, ManageRoles, ModerateContent,
	ViewReports, SendBulkNotifications, ViewAnalytics, ViewSystemLogs,
	ManageSystemSettings, AccessDeveloperTools, HandleSupportTickets,
	DeleteAnyMedia, CreatePosts, CreateStories, CommentOnPosts, LikePosts,
	ChatWithUsers, SendFriendRequests, UploadMedia, ViewContent,
}

var base = []Permission{
	CreatePosts, CreateStories, CommentOnPosts, LikePosts,
	ChatWithUsers, SendFriendRequests, UploadMedia, ViewContent,
}

var roles = []Role{RoleSuperAdmin, RoleDeveloper, RoleLevelAdmin, RoleSupport, RoleUser}

var ranks = map[Role]int{
	RoleSuperAdmin: 5,
	RoleDeveloper:  4,
	RoleLevelAdmin: 3,
	RoleSupport:    2,
	RoleUser:       1,
}

// table is built once at init and never written afterwards.
var table = map[Role]map[Permission]struct{}{
	RoleSuperAdmin: set(universe),
	RoleDeveloper: set(append([]Permission{
		ViewUsers, ViewAnalytics, ViewSystemLogs, ManageSystemSettings, AccessDeveloperTools,
	}, base...)),
	RoleLevelAdmin: set(append([]Permission{
		ManageUsers, ViewUsers, ModerateContent, ViewReports,
		SendBulkNotifications, ViewAnalytics, DeleteAnyMedia,
	}, base...)),
	RoleSupport: set(append([]Permission{
		ViewUsers, ViewReports, HandleSupportTickets,
	}, base...)),
	RoleUser: set(base),
}

func set(ps []Permission) map[Permission]struct{} {
	m := make(map[Permission]struct{}, len(ps))
	for _, p := range ps {
		m[p] = struct{}{}
	}
	return m
}

// ParseRole accepts the canonical role names plus "admin" as an alias of
// level_admin. Matching is case-insensitive.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if r == "admin" {
		return RoleLevelAdmin, true
	}
	_, ok := table[r]
	return r, ok
}

// Valid reports whether r is a member of the closed role set.
func (r Role) Valid() bool {
	_, ok := table[r]
	return ok
}

// DisplayName is the label shown to people.
func (r Role) DisplayName() string {
	switch r {
	case RoleSuperAdmin:
		return "Super Admin"
	case RoleDeveloper:
		return "Developer"
	case RoleLevelAdmin:
		return "Admin"
	case RoleSupport:
		return "Support"
	case RoleUser:
		return "User"
	}
	return "Unknown"
}

// HasPermission reports whether role holds p. Unknown roles hold nothing.
func HasPermission(role Role, p Permission) bool {
	_, ok := table[role][p]
	return ok
}

// PermissionsOf returns a fresh slice of role's permissions in canonical
// order. Unknown roles yield an empty slice.
func PermissionsOf(role Role) []Permission {
	granted := table[role]
	out := make([]Permission, 0, len(granted))
	for _, p := range universe {
		if _, ok := granted[p]; ok {
			out = append(out, p)
		}
	}
	return out
}

// All returns every permission token.
func All() []Permission {
	return append([]Permission(nil), universe...)
}

// Roles returns the closed role set, highest rank first.
func Roles() []Role {
	return append([]Role(nil), roles...)
}

// Rank orders roles for management decisions. Unknown roles rank 0.
func Rank(role Role) int {
	return ranks[role]
}

// CanAssignRole decides whether actor may move target from its current role
// to newRole.
func CanAssignRole(actor, target, newRole Role) bool {
	if !newRole.Valid() || !actor.Valid() {
		return false
	}
	if actor == RoleSuperAdmin {
		return true
	}
	if !HasPermission(actor, ManageRoles) {
		return false
	}
	return Rank(actor) > Rank(target) && Rank(actor) > Rank(newRole)
}

// CanManageUser decides whether actor may moderate (suspend, edit) a profile
// holding target.
func CanManageUser(actor, target Role) bool {
	if HasPermission(actor, ManageAllUsers) {
		return true
	}
	return HasPermission(actor, ManageUsers) && Rank(actor) > Rank(target)
}
