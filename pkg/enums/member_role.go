package enums

import "fmt"

// MemberRole maps to the member_role enum in Postgres.
type MemberRole string

const (
	RoleFan     MemberRole = "fan"
	RoleCreator MemberRole = "creator"
	RoleAdmin   MemberRole = "admin"
)

var validMemberRoles = []MemberRole{
	RoleFan,
	RoleCreator,
	RoleAdmin,
}

// IsValid checks whether the given role matches the canonical enum.
func (r MemberRole) IsValid() bool {
	for _, candidate := range validMemberRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseMemberRole converts raw strings into MemberRole.
func ParseMemberRole(value string) (MemberRole, error) {
	for _, candidate := range validMemberRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid member role %q", value)
}
