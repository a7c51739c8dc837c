package domain

const (
	RoleCustomer   = "customer"
	RoleAdmin      = "admin"
	RoleSuperAdmin = "super_admin"
)

// Principal is the authenticated caller handed over by the auth layer.
type Principal struct {
	UserID string
	Email  string
	Roles  []string
}

func (p Principal) Authenticated() bool {
	return p.UserID != ""
}

func (p Principal) IsAdmin() bool {
	for _, r := range p.Roles {
		if r == RoleAdmin || r == RoleSuperAdmin {
			return true
		}
	}
	return false
}

// CanAccess reports whether the principal may read or act on a resource owned by ownerID.
func (p Principal) CanAccess(ownerID string) bool {
	return p.Authenticated() && (p.UserID == ownerID || p.IsAdmin())
}
