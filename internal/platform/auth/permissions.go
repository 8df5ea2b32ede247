package auth

// Permission names a section of the application a user may open.
type Permission string

const (
	PermDashboard Permission = "dashboard"
	PermPatients  Permission = "patients"
	PermServices  Permission = "services"
	PermBilling   Permission = "billing"
	PermRecords   Permission = "records"
	PermResults   Permission = "results"
	PermTemplates Permission = "templates"
	PermInventory Permission = "inventory"
	PermUsers     Permission = "users"
	PermSettings  Permission = "settings"
)

var allPermissions = []Permission{
	PermDashboard, PermPatients, PermServices, PermBilling, PermRecords,
	PermResults, PermTemplates, PermInventory, PermUsers, PermSettings,
}

// AllPermissions returns every permission in display order.
func AllPermissions() []Permission {
	out := make([]Permission, len(allPermissions))
	copy(out, allPermissions)
	return out
}

// ValidPermission reports whether p is a known permission.
func ValidPermission(p Permission) bool {
	for _, known := range allPermissions {
		if known == p {
			return true
		}
	}
	return false
}

// HasPermission reports whether granted contains p.
func HasPermission(granted []Permission, p Permission) bool {
	for _, g := range granted {
		if g == p {
			return true
		}
	}
	return false
}
