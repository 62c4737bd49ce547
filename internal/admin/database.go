package admin

import (
	"errors"

	"github.com/margindesk/admin-api/internal/types"
	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) CreateAdmin(admin *Admin) error {
	return d.db.Create(admin).Error
}

func (d *Database) GetAdminByID(adminID string) (*Admin, error) {
	var admin Admin
	if err := d.db.Where("admin_id = ?", adminID).First(&admin).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &admin, nil
}

func (d *Database) GetAdminByUsername(username string) (*Admin, error) {
	var admin Admin
	if err := d.db.Where("username = ?", username).First(&admin).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &admin, nil
}

func (d *Database) CountAdmins() (int64, error) {
	var count int64
	err := d.db.Model(&Admin{}).Count(&count).Error
	return count, err
}

func (d *Database) CreateInviteCode(code *InviteCode) error {
	return d.db.Create(code).Error
}

// GetCodesByCreator returns the codes an admin has issued.
func (d *Database) GetCodesByCreator(adminID string) ([]InviteCode, error) {
	var codes []InviteCode
	if err := d.db.Where("created_by = ?", adminID).Find(&codes).Error; err != nil {
		return nil, err
	}
	return codes, nil
}

// GetUserIDsByCodes returns the ids of users who redeemed any of the given
// codes. An empty code list short-circuits to an empty result so a SQL IN ()
// never fires.
func (d *Database) GetUserIDsByCodes(codes []string) ([]string, error) {
	if len(codes) == 0 {
		return nil, nil
	}
	var userIDs []string
	err := d.db.Model(&types.User{}).
		Where("invite_code_id IN ?", codes).
		Pluck("user_id", &userIDs).Error
	if err != nil {
		return nil, err
	}
	return userIDs, nil
}
