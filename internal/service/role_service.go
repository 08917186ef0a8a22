package service

import (
	"context"
	"errors"

	"crm/internal/apperr"
	"crm/internal/audit"
	"crm/internal/auth"
	"crm/internal/model"
	"crm/internal/repository"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// --- DTOs ---

type CreateRoleRequest struct {
	Name          string      `json:"name" binding:"required"`
	Description   string      `json:"description"`
	PermissionIDs []uuid.UUID `json:"permission_ids"`
}

func (r CreateRoleRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 50)),
	)
}

// UpdateRoleRequest patches the fields that are present. PermissionIDs, when
// set, replaces the whole permission set.
type UpdateRoleRequest struct {
	Name          *string      `json:"name"`
	Description   *string      `json:"description"`
	PermissionIDs *[]uuid.UUID `json:"permission_ids"`
}

func (r UpdateRoleRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.NilOrNotEmpty, validation.Length(1, 50)),
	)
}

// --- Interface ---

type RoleService interface {
	ListRoles(ctx context.Context, skip, limit int) ([]model.Role, error)
	GetRole(ctx context.Context, id uuid.UUID) (*model.Role, error)
	CreateRole(ctx context.Context, req CreateRoleRequest, actor *auth.Identity) (*model.Role, error)
	UpdateRole(ctx context.Context, id uuid.UUID, req UpdateRoleRequest, actor *auth.Identity) (*model.Role, error)
	DeleteRole(ctx context.Context, id uuid.UUID, actor *auth.Identity) error
	AddPermission(ctx context.Context, roleID, permissionID uuid.UUID, actor *auth.Identity) (*model.Role, error)
	RemovePermission(ctx context.Context, roleID, permissionID uuid.UUID, actor *auth.Identity) (*model.Role, error)
	ListPermissions(ctx context.Context) ([]model.Permission, error)
	SeedDefaults(ctx context.Context, admin AdminSeed) error
}

type roleService struct {
	repo     repository.RoleRepository
	users    repository.UserRepository
	txm      repository.TransactionManager
	recorder AuditRecorder
}

func NewRoleService(repo repository.RoleRepository, users repository.UserRepository, txm repository.TransactionManager, recorder AuditRecorder) RoleService {
	return &roleService{repo: repo, users: users, txm: txm, recorder: recorder}
}

// --- Implementation ---

func (s *roleService) ListRoles(ctx context.Context, skip, limit int) ([]model.Role, error) {
	roles, err := s.repo.List(ctx, skip, limit)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return roles, nil
}

func (s *roleService) GetRole(ctx context.Context, id uuid.UUID) (*model.Role, error) {
	role, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err, "Role")
	}
	return role, nil
}

func (s *roleService) CreateRole(ctx context.Context, req CreateRoleRequest, actor *auth.Identity) (*model.Role, error) {
	if err := req.Validate(); err != nil {
		return nil, validationErr(err)
	}

	var created *model.Role
	err := s.txm.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.ensureNameFree(txCtx, req.Name, uuid.Nil); err != nil {
			return err
		}

		role := &model.Role{Name: req.Name, Description: req.Description}
		if err := s.repo.Create(txCtx, role); err != nil {
			return writeErr(err, "Role")
		}
		if len(req.PermissionIDs) > 0 {
			if err := s.replacePermissions(txCtx, role, req.PermissionIDs); err != nil {
				return err
			}
		}

		reloaded, err := s.repo.FindByID(txCtx, role.ID)
		if err != nil {
			return apperr.Internal(err)
		}
		created = reloaded
		return nil
	})
	if err != nil {
		return nil, apperr.From(err)
	}

	s.recorder.Record(ctx, audit.Entry{
		EntityType: model.EntityRole,
		EntityID:   created.ID,
		UserID:     actorID(actor),
		Action:     model.ActionCreateRole,
		After:      created,
	})
	return created, nil
}

func (s *roleService) UpdateRole(ctx context.Context, id uuid.UUID, req UpdateRoleRequest, actor *auth.Identity) (*model.Role, error) {
	if err := req.Validate(); err != nil {
		return nil, validationErr(err)
	}

	var before, after model.Role
	err := s.txm.RunInTx(ctx, func(txCtx context.Context) error {
		role, err := s.repo.FindByID(txCtx, id)
		if err != nil {
			return lookupErr(err, "Role")
		}
		before = *role
		before.Permissions = append([]model.Permission(nil), role.Permissions...)

		if req.Name != nil && *req.Name != role.Name {
			if err := s.ensureNameFree(txCtx, *req.Name, role.ID); err != nil {
				return err
			}
			role.Name = *req.Name
		}
		if req.Description != nil {
			role.Description = *req.Description
		}
		if err := s.repo.Update(txCtx, role); err != nil {
			return writeErr(err, "Role")
		}
		if req.PermissionIDs != nil {
			if err := s.replacePermissions(txCtx, role, *req.PermissionIDs); err != nil {
				return err
			}
		}

		reloaded, err := s.repo.FindByID(txCtx, role.ID)
		if err != nil {
			return apperr.Internal(err)
		}
		after = *reloaded
		return nil
	})
	if err != nil {
		return nil, apperr.From(err)
	}

	s.recorder.Record(ctx, audit.Entry{
		EntityType: model.EntityRole,
		EntityID:   after.ID,
		UserID:     actorID(actor),
		Action:     model.ActionUpdateRole,
		Before:     before,
		After:      after,
	})
	return &after, nil
}

// DeleteRole removes a role nobody uses. Its permission links are cleared first.
func (s *roleService) DeleteRole(ctx context.Context, id uuid.UUID, actor *auth.Identity) error {
	var before model.Role
	err := s.txm.RunInTx(ctx, func(txCtx context.Context) error {
		role, err := s.repo.FindByID(txCtx, id)
		if err != nil {
			return lookupErr(err, "Role")
		}

		inUse, err := s.users.CountByRole(txCtx, role.ID)
		if err != nil {
			return apperr.Internal(err)
		}
		if inUse > 0 {
			return apperr.Validation("role is still assigned to users", map[string]string{"id": "role is in use"})
		}

		before = *role
		if err := s.repo.Delete(txCtx, role); err != nil {
			return apperr.Internal(err)
		}
		return nil
	})
	if err != nil {
		return apperr.From(err)
	}

	s.recorder.Record(ctx, audit.Entry{
		EntityType: model.EntityRole,
		EntityID:   before.ID,
		UserID:     actorID(actor),
		Action:     model.ActionDeleteRole,
		Before:     before,
	})
	return nil
}

func (s *roleService) AddPermission(ctx context.Context, roleID, permissionID uuid.UUID, actor *auth.Identity) (*model.Role, error) {
	return s.changePermission(ctx, roleID, permissionID, actor, true)
}

func (s *roleService) RemovePermission(ctx context.Context, roleID, permissionID uuid.UUID, actor *auth.Identity) (*model.Role, error) {
	return s.changePermission(ctx, roleID, permissionID, actor, false)
}

func (s *roleService) changePermission(ctx context.Context, roleID, permissionID uuid.UUID, actor *auth.Identity, add bool) (*model.Role, error) {
	var before, after model.Role
	err := s.txm.RunInTx(ctx, func(txCtx context.Context) error {
		role, err := s.repo.FindByID(txCtx, roleID)
		if err != nil {
			return lookupErr(err, "Role")
		}
		perm, err := s.repo.FindPermissionByID(txCtx, permissionID)
		if err != nil {
			return lookupErr(err, "Permission")
		}

		before = *role
		before.Permissions = append([]model.Permission(nil), role.Permissions...)

		assigned := false
		for _, p := range role.Permissions {
			if p.ID == perm.ID {
				assigned = true
				break
			}
		}

		if add {
			if assigned {
				return apperr.Duplicate("Permission on role")
			}
			err = s.repo.AddPermission(txCtx, role, perm)
		} else {
			if !assigned {
				return apperr.NotFound("Permission on role")
			}
			err = s.repo.RemovePermission(txCtx, role, perm)
		}
		if err != nil {
			return apperr.Internal(err)
		}

		reloaded, err := s.repo.FindByID(txCtx, role.ID)
		if err != nil {
			return apperr.Internal(err)
		}
		after = *reloaded
		return nil
	})
	if err != nil {
		return nil, apperr.From(err)
	}

	action := model.ActionAddRolePermission
	if !add {
		action = model.ActionRemoveRolePermission
	}
	s.recorder.Record(ctx, audit.Entry{
		EntityType: model.EntityRole,
		EntityID:   after.ID,
		UserID:     actorID(actor),
		Action:     action,
		Before:     before,
		After:      after,
	})
	return &after, nil
}

func (s *roleService) ListPermissions(ctx context.Context) ([]model.Permission, error) {
	perms, err := s.repo.ListPermissions(ctx)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return perms, nil
}

// --- Helpers ---

func (s *roleService) ensureNameFree(ctx context.Context, name string, self uuid.UUID) error {
	existing, err := s.repo.FindByName(ctx, name)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil
	case err != nil:
		return apperr.Internal(err)
	case existing.ID != self:
		return apperr.Duplicate("Role")
	}
	return nil
}

func (s *roleService) replacePermissions(ctx context.Context, role *model.Role, ids []uuid.UUID) error {
	perms := make([]model.Permission, 0, len(ids))
	for _, id := range ids {
		perm, err := s.repo.FindPermissionByID(ctx, id)
		if err != nil {
			return lookupErr(err, "Permission")
		}
		perms = append(perms, *perm)
	}
	if err := s.repo.ReplacePermissions(ctx, role, perms); err != nil {
		return apperr.Internal(err)
	}
	return nil
}
