package auth

import (
	"github.com/google/uuid"
	"github.com/margindesk/admin-api/internal/admin"
	"github.com/rs/zerolog/log"
)

// SeedSuperAdmin creates the bootstrap super admin when the admins table is
// empty. A blank password skips seeding so production deployments cannot
// end up with a default credential.
func SeedSuperAdmin(admins *admin.Database, username, password string) error {
	if password == "" {
		return nil
	}

	count, err := admins.CountAdmins()
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hash, err := HashPassword(password)
	if err != nil {
		return err
	}

	adm := &admin.Admin{
		AdminID:      "ADM_" + uuid.New().String(),
		Username:     username,
		PasswordHash: hash,
		Role:         admin.RoleSuperAdmin,
		IsActive:     true,
	}
	if err := admins.CreateAdmin(adm); err != nil {
		return err
	}

	log.Info().
		Str("component", "seeder").
		Str("admin_id", adm.AdminID).
		Str("username", username).
		Msg("seeded bootstrap super admin")
	return nil
}
