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
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DTOs for Request validation
type UpdateUserRequest struct {
	Username *string `json:"username"`
}

func (r UpdateUserRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.NilOrNotEmpty, is.Email),
	)
}

type UpdateUserRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

func (r UpdateUserRoleRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Role, validation.Required),
	)
}

// UserService defines the interface for business logic related to User
type UserService interface {
	GetUser(ctx context.Context, id uuid.UUID) (*model.User, error)
	GetMe(ctx context.Context, actor *auth.Identity) (*model.User, error)
	ListUsers(ctx context.Context, skip, limit int) ([]model.User, error)
	UpdateUser(ctx context.Context, id uuid.UUID, req UpdateUserRequest, actor *auth.Identity) (*model.User, error)
	UpdateUserRole(ctx context.Context, id uuid.UUID, req UpdateUserRoleRequest, actor *auth.Identity) (*model.User, error)
	DeleteUser(ctx context.Context, id uuid.UUID, actor *auth.Identity) error
}

type userService struct {
	repo     repository.UserRepository
	roles    repository.RoleRepository
	txm      repository.TransactionManager
	recorder AuditRecorder
}

// NewUserService returns a new instance of UserService
func NewUserService(repo repository.UserRepository, roles repository.RoleRepository, txm repository.TransactionManager, recorder AuditRecorder) UserService {
	return &userService{repo: repo, roles: roles, txm: txm, recorder: recorder}
}

func (s *userService) GetUser(ctx context.Context, id uuid.UUID) (*model.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err, "User")
	}
	return user, nil
}

func (s *userService) GetMe(ctx context.Context, actor *auth.Identity) (*model.User, error) {
	if actor == nil {
		return nil, apperr.Unauthorized("")
	}
	return s.GetUser(ctx, actor.ID)
}

func (s *userService) ListUsers(ctx context.Context, skip, limit int) ([]model.User, error) {
	users, err := s.repo.List(ctx, skip, limit)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return users, nil
}

func (s *userService) UpdateUser(ctx context.Context, id uuid.UUID, req UpdateUserRequest, actor *auth.Identity) (*model.User, error) {
	if err := req.Validate(); err != nil {
		return nil, validationErr(err)
	}

	var before, after model.User
	err := s.txm.RunInTx(ctx, func(txCtx context.Context) error {
		user, err := s.repo.GetByID(txCtx, id)
		if err != nil {
			return lookupErr(err, "User")
		}
		before = *user

		if req.Username != nil && *req.Username != user.Username {
			if err := usernameFree(txCtx, s.repo, *req.Username); err != nil {
				return err
			}
			user.Username = *req.Username
		}

		if err := s.repo.Update(txCtx, user); err != nil {
			return writeErr(err, "Username")
		}
		after = *user
		return nil
	})
	if err != nil {
		return nil, apperr.From(err)
	}

	s.recorder.Record(ctx, audit.Entry{
		EntityType: model.EntityUser,
		EntityID:   after.ID,
		UserID:     actorID(actor),
		Action:     model.ActionUpdateUser,
		Before:     before,
		After:      after,
	})
	return &after, nil
}

// UpdateUserRole assigns the role with the given name.
func (s *userService) UpdateUserRole(ctx context.Context, id uuid.UUID, req UpdateUserRoleRequest, actor *auth.Identity) (*model.User, error) {
	if err := req.Validate(); err != nil {
		return nil, validationErr(err)
	}

	var before, after model.User
	err := s.txm.RunInTx(ctx, func(txCtx context.Context) error {
		user, err := s.repo.GetByID(txCtx, id)
		if err != nil {
			return lookupErr(err, "User")
		}
		role, err := s.roles.FindByName(txCtx, req.Role)
		if err != nil {
			return lookupErr(err, "Role")
		}

		before = *user
		user.RoleID = role.ID
		user.Role = *role
		if err := s.repo.Update(txCtx, user); err != nil {
			return apperr.Internal(err)
		}
		after = *user
		return nil
	})
	if err != nil {
		return nil, apperr.From(err)
	}

	s.recorder.Record(ctx, audit.Entry{
		EntityType: model.EntityUser,
		EntityID:   after.ID,
		UserID:     actorID(actor),
		Action:     model.ActionUpdateUserRole,
		Before:     before,
		After:      after,
	})
	return &after, nil
}

// DeleteUser removes the account. Audit rows that reference it are kept.
func (s *userService) DeleteUser(ctx context.Context, id uuid.UUID, actor *auth.Identity) error {
	var before model.User
	err := s.txm.RunInTx(ctx, func(txCtx context.Context) error {
		user, err := s.repo.GetByID(txCtx, id)
		if err != nil {
			return lookupErr(err, "User")
		}
		before = *user
		if err := s.repo.Delete(txCtx, id); err != nil {
			return apperr.Internal(err)
		}
		return nil
	})
	if err != nil {
		return apperr.From(err)
	}

	s.recorder.Record(ctx, audit.Entry{
		EntityType: model.EntityUser,
		EntityID:   before.ID,
		UserID:     actorID(actor),
		Action:     model.ActionDeleteUser,
		Before:     before,
	})
	return nil
}

func usernameFree(ctx context.Context, repo repository.UserRepository, username string) error {
	_, err := repo.GetByUsername(ctx, username)
	switch {
	case err == nil:
		return apperr.Duplicate("Username")
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil
	default:
		return apperr.Internal(err)
	}
}
