package admin

import "errors"

var (
	// ErrNotAdmin means the caller does not resolve to an active admin
	// identity. Inactive admins land here too.
	ErrNotAdmin = errors.New("not an active admin")

	// ErrNotAssigned means the caller is a valid admin but the target user
	// is outside their invitation-code lineage. Kept distinct from
	// ErrNotAdmin so the audit trail can tell the two apart.
	ErrNotAssigned = errors.New("user is not assigned to this admin")
)

// Gate is the single authorization check every settlement operation goes
// through. Super admins satisfy it trivially; regular admins satisfy it via
// assignment-set membership. Call sites never branch on the role themselves.
type Gate struct {
	db       *Database
	resolver *Resolver
}

func NewGate(db *Database, resolver *Resolver) *Gate {
	return &Gate{db: db, resolver: resolver}
}

// Authenticate resolves an admin id to an active Admin record. It is the
// first precondition of every admin-facing operation.
func (g *Gate) Authenticate(adminID string) (*Admin, error) {
	admin, err := g.db.GetAdminByID(adminID)
	if err != nil {
		return nil, err
	}
	if admin == nil || !admin.IsActive {
		return nil, ErrNotAdmin
	}
	return admin, nil
}

// Check answers whether the admin may act on the target user's records.
func (g *Gate) Check(adminID, targetUserID string) error {
	admin, err := g.Authenticate(adminID)
	if err != nil {
		return err
	}
	return g.CheckAdmin(admin, targetUserID)
}

// CheckAdmin is Check for callers that already hold the Admin record and
// must not pay a second lookup.
func (g *Gate) CheckAdmin(admin *Admin, targetUserID string) error {
	if admin.IsSuper() {
		return nil
	}

	assigned, err := g.resolver.ResolveAssignedUsers(admin.AdminID)
	if err != nil {
		return err
	}
	if _, ok := assigned[targetUserID]; !ok {
		return ErrNotAssigned
	}
	return nil
}
