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

type LoginRequest struct {
	Username string `json:"username" form:"username" binding:"required"`
	Password string `json:"password" form:"password" binding:"required"`
}

func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

type LoginResponse struct {
	UserID      uuid.UUID      `json:"user_id"`
	AccessToken string         `json:"access_token"`
	TokenType   string         `json:"token_type"`
	Msg         string         `json:"msg"`
	Me          *auth.Identity `json:"me"`
}

type RegisterRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role"`
}

func (r RegisterRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required, is.Email, validation.Length(3, 255)),
		validation.Field(&r.Password, validation.Required, validation.Length(6, 128)),
	)
}

type RegisterResponse struct {
	Message string    `json:"message"`
	UserID  uuid.UUID `json:"user_id"`
}

type AuthService interface {
	Login(ctx context.Context, req LoginRequest) (*LoginResponse, error)
	Register(ctx context.Context, req RegisterRequest, actor *auth.Identity) (*RegisterResponse, error)
}

type authService struct {
	users       repository.UserRepository
	roles       repository.RoleRepository
	txm         repository.TransactionManager
	tokens      *auth.TokenService
	recorder    AuditRecorder
	defaultRole string
}

func NewAuthService(
	users repository.UserRepository,
	roles repository.RoleRepository,
	txm repository.TransactionManager,
	tokens *auth.TokenService,
	recorder AuditRecorder,
	defaultRole string,
) AuthService {
	return &authService{
		users:       users,
		roles:       roles,
		txm:         txm,
		tokens:      tokens,
		recorder:    recorder,
		defaultRole: defaultRole,
	}
}

// Login verifies the credentials and issues an access token carrying the
// user's role and permissions.
func (s *authService) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, validationErr(err)
	}

	user, err := s.users.GetByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Unauthorized("incorrect username or password")
		}
		return nil, apperr.Internal(err)
	}
	if !auth.CheckPassword(req.Password, user.Password) {
		return nil, apperr.Unauthorized("incorrect username or password")
	}

	identity := auth.NewIdentity(user)
	token, err := s.tokens.Issue(identity)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	s.recorder.Record(ctx, audit.Entry{
		EntityType: model.EntityUser,
		EntityID:   user.ID,
		UserID:     &user.ID,
		Action:     model.ActionLogin,
	})

	return &LoginResponse{
		UserID:      user.ID,
		AccessToken: token,
		TokenType:   "bearer",
		Msg:         "Login successful",
		Me:          &identity,
	}, nil
}

// Register creates a user with the named role, or the default role when none is given.
func (s *authService) Register(ctx context.Context, req RegisterRequest, actor *auth.Identity) (*RegisterResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, validationErr(err)
	}
	roleName := req.Role
	if roleName == "" {
		roleName = s.defaultRole
	}

	var created model.User
	err := s.txm.RunInTx(ctx, func(txCtx context.Context) error {
		if err := usernameFree(txCtx, s.users, req.Username); err != nil {
			return err
		}
		role, err := s.roles.FindByName(txCtx, roleName)
		if err != nil {
			return lookupErr(err, "Role")
		}
		hash, err := auth.HashPassword(req.Password)
		if err != nil {
			return apperr.Internal(err)
		}

		user := &model.User{Username: req.Username, Password: hash, RoleID: role.ID}
		if err := s.users.Create(txCtx, user); err != nil {
			return writeErr(err, "Username")
		}
		user.Role = *role
		created = *user
		return nil
	})
	if err != nil {
		return nil, apperr.From(err)
	}

	s.recorder.Record(ctx, audit.Entry{
		EntityType: model.EntityUser,
		EntityID:   created.ID,
		UserID:     actorID(actor),
		Action:     model.ActionRegisterUser,
		After:      created,
	})
	return &RegisterResponse{Message: "User registered successfully", UserID: created.ID}, nil
}
