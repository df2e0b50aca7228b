package models

// Account roles. Admin manages staff and can unlock throttled accounts;
// staff run the register; suppliers see their own catalog entries.
const (
	RoleAdmin    = "admin"
	RoleStaff    = "staff"
	RoleSupplier = "supplier"
	RoleUser     = "user"
)

var validRoles = map[string]bool{
	RoleAdmin:    true,
	RoleStaff:    true,
	RoleSupplier: true,
	RoleUser:     true,
}

// ValidRole reports whether the given role is one the system recognizes.
func ValidRole(role string) bool {
	return validRoles[role]
}
