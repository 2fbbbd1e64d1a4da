package models

import "fmt"

// Role identifies the kind of authenticated user.
type Role string

const (
	RoleClient Role = "client"
	RoleAgent  Role = "agent"
	RoleAdmin  Role = "admin"
)

// IsStaff reports whether the role belongs to helpdesk staff.
func (r Role) IsStaff() bool {
	return r == RoleAgent || r == RoleAdmin
}

// Valid reports whether the role is one of the known values.
func (r Role) Valid() bool {
	return r == RoleClient || r == RoleAgent || r == RoleAdmin
}

// Principal is the authenticated identity bound to one live connection or
// request. It is established once from a trusted credential and never
// re-derived mid-connection.
type Principal struct {
	UserID   int
	Role     Role
	Username string
}

// UserChannel names the unicast room for one user id.
func UserChannel(userID int) string {
	return fmt.Sprintf("user:%d", userID)
}

// RoleChannel names the broadcast room for a staff role.
func RoleChannel(role Role) string {
	return "role:" + string(role)
}

// StaffChannels lists the rooms reaching every connected staff member.
func StaffChannels() []string {
	return []string{RoleChannel(RoleAdmin), RoleChannel(RoleAgent)}
}

// ChannelsFor derives the subscription set for a principal: its own user room
// plus, for staff, the role room. Clients never join role rooms.
func ChannelsFor(p Principal) []string {
	channels := []string{UserChannel(p.UserID)}
	if p.Role.IsStaff() {
		channels = append(channels, RoleChannel(p.Role))
	}
	return channels
}
