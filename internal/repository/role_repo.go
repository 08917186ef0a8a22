package repository

import (
	"context"

	"crm/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RoleRepository interface {
	Create(ctx context.Context, role *model.Role) error
	Update(ctx context.Context, role *model.Role) error
	Delete(ctx context.Context, role *model.Role) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Role, error)
	FindByName(ctx context.Context, name string) (*model.Role, error)
	List(ctx context.Context, skip, limit int) ([]model.Role, error)
	ListPermissions(ctx context.Context) ([]model.Permission, error)
	FindPermissionByID(ctx context.Context, id uuid.UUID) (*model.Permission, error)
	FindOrCreatePermission(ctx context.Context, perm *model.Permission) error
	AddPermission(ctx context.Context, role *model.Role, perm *model.Permission) error
	RemovePermission(ctx context.Context, role *model.Role, perm *model.Permission) error
	ReplacePermissions(ctx context.Context, role *model.Role, perms []model.Permission) error
}

type roleRepository struct {
	db *gorm.DB
}

func NewRoleRepository(db *gorm.DB) RoleRepository {
	return &roleRepository{db: db}
}

func (r *roleRepository) Create(ctx context.Context, role *model.Role) error {
	return GetDB(ctx, r.db).Omit(clause.Associations).Create(role).Error
}

func (r *roleRepository) Update(ctx context.Context, role *model.Role) error {
	return GetDB(ctx, r.db).Omit(clause.Associations).Save(role).Error
}

// Delete detaches every permission before removing the role.
func (r *roleRepository) Delete(ctx context.Context, role *model.Role) error {
	db := GetDB(ctx, r.db)
	if err := db.Model(role).Association("Permissions").Clear(); err != nil {
		return err
	}
	return db.Delete(&model.Role{}, "id = ?", role.ID).Error
}

func (r *roleRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Role, error) {
	var role model.Role
	if err := GetDB(ctx, r.db).Preload("Permissions").First(&role, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &role, nil
}

func (r *roleRepository) FindByName(ctx context.Context, name string) (*model.Role, error) {
	var role model.Role
	if err := GetDB(ctx, r.db).Preload("Permissions").Where("name = ?", name).First(&role).Error; err != nil {
		return nil, err
	}
	return &role, nil
}

func (r *roleRepository) List(ctx context.Context, skip, limit int) ([]model.Role, error) {
	var roles []model.Role
	db := paginate(GetDB(ctx, r.db).Preload("Permissions"), skip, limit)
	if err := db.Order("created_at asc").Find(&roles).Error; err != nil {
		return nil, err
	}
	return roles, nil
}

func (r *roleRepository) ListPermissions(ctx context.Context) ([]model.Permission, error) {
	var perms []model.Permission
	if err := GetDB(ctx, r.db).Order("name asc").Find(&perms).Error; err != nil {
		return nil, err
	}
	return perms, nil
}

func (r *roleRepository) FindPermissionByID(ctx context.Context, id uuid.UUID) (*model.Permission, error) {
	var perm model.Permission
	if err := GetDB(ctx, r.db).First(&perm, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &perm, nil
}

func (r *roleRepository) FindOrCreatePermission(ctx context.Context, perm *model.Permission) error {
	return GetDB(ctx, r.db).
		Where("name = ?", perm.Name).
		FirstOrCreate(perm).Error
}

func (r *roleRepository) AddPermission(ctx context.Context, role *model.Role, perm *model.Permission) error {
	return GetDB(ctx, r.db).Model(role).Association("Permissions").Append(perm)
}

func (r *roleRepository) RemovePermission(ctx context.Context, role *model.Role, perm *model.Permission) error {
	return GetDB(ctx, r.db).Model(role).Association("Permissions").Delete(perm)
}

func (r *roleRepository) ReplacePermissions(ctx context.Context, role *model.Role, perms []model.Permission) error {
	return GetDB(ctx, r.db).Model(role).Association("Permissions").Replace(perms)
}
