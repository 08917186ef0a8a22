package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"crm/internal/auth"
	"crm/internal/model"

	"gorm.io/gorm"
)

// AdminSeed is the account created when the admin user does not exist yet.
type AdminSeed struct {
	Username string
	Password string
	Role     string
}

var (
	userPermissions = []string{
		"POST:/auth/register/",
		"GET:/users/",
		"GET:/users/*/",
		"PUT:/users/*/",
		"DELETE:/users/*/",
		"PUT:/users/*/role/",
	}
	rolePermissions = []string{
		"GET:/roles/",
		"POST:/roles/",
		"GET:/roles/*/",
		"PUT:/roles/*/",
		"DELETE:/roles/*/",
		"POST:/roles/*/permissions/*/",
		"DELETE:/roles/*/permissions/*/",
		"GET:/permissions/",
	}
	leadReadPermissions = []string{
		"GET:/leads/",
		"GET:/leads/*/",
	}
	leadWritePermissions = []string{
		"POST:/leads/",
		"PUT:/leads/*/",
		"DELETE:/leads/*/",
		"PUT:/leads/*/status/",
	}
	quotationReadPermissions = []string{
		"GET:/quotations/",
		"GET:/quotations/*/",
	}
	quotationWritePermissions = []string{
		"POST:/quotations/",
		"PUT:/quotations/*/",
		"PUT:/quotations/*/line-items/",
		"PUT:/quotations/*/status/",
		"POST:/quotations/*/send/",
	}
	quotationDeletePermissions = []string{
		"DELETE:/quotations/*/",
	}
	commonPermissions = []string{
		"GET:/users/me/",
		"GET:/audit-logs/",
		"GET:/audit-logs/*/",
	}
)

type roleDefinition struct {
	Name        string
	Description string
	Permissions [][]string
}

var defaultRoles = []roleDefinition{
	{
		Name:        "Admin",
		Description: "Administrator with full permissions.",
		Permissions: [][]string{
			commonPermissions, userPermissions, rolePermissions,
			leadReadPermissions, leadWritePermissions,
			quotationReadPermissions, quotationWritePermissions, quotationDeletePermissions,
		},
	},
	{
		Name:        "Manager",
		Description: "Manager with permission to approve quotations.",
		Permissions: [][]string{
			commonPermissions, leadReadPermissions,
			quotationReadPermissions, quotationWritePermissions, quotationDeletePermissions,
		},
	},
	{
		Name:        "Sales Rep",
		Description: "Sales representative managing leads and drafting quotations.",
		Permissions: [][]string{
			commonPermissions, leadReadPermissions, leadWritePermissions,
			quotationReadPermissions, quotationWritePermissions,
		},
	},
	{
		Name:        "All roles",
		Description: "Read access to the audit trail.",
		Permissions: [][]string{commonPermissions},
	},
}

// SeedDefaults creates the default permissions, roles and admin account.
// Running it again only fills in what is missing.
func (s *roleService) SeedDefaults(ctx context.Context, admin AdminSeed) error {
	return s.txm.RunInTx(ctx, func(txCtx context.Context) error {
		permByName := make(map[string]*model.Permission)
		for _, def := range defaultRoles {
			for _, group := range def.Permissions {
				for _, name := range group {
					if _, ok := permByName[name]; ok {
						continue
					}
					perm := &model.Permission{Name: name, Description: "Permission to " + name}
					if err := s.repo.FindOrCreatePermission(txCtx, perm); err != nil {
						return fmt.Errorf("failed to seed permission '%s': %w", name, err)
					}
					permByName[name] = perm
				}
			}
		}

		for _, def := range defaultRoles {
			role, err := s.repo.FindByName(txCtx, def.Name)
			if errors.Is(err, gorm.ErrRecordNotFound) {
				role = &model.Role{Name: def.Name, Description: def.Description}
				if err := s.repo.Create(txCtx, role); err != nil {
					return fmt.Errorf("failed to seed role '%s': %w", def.Name, err)
				}
			} else if err != nil {
				return fmt.Errorf("failed to load role '%s': %w", def.Name, err)
			}

			have := make(map[string]bool, len(role.Permissions))
			for _, p := range role.Permissions {
				have[p.Name] = true
			}
			for _, group := range def.Permissions {
				for _, name := range group {
					if have[name] {
						continue
					}
					if err := s.repo.AddPermission(txCtx, role, permByName[name]); err != nil {
						return fmt.Errorf("failed to assign '%s' to role '%s': %w", name, def.Name, err)
					}
					have[name] = true
				}
			}
		}

		if admin.Username == "" {
			return nil
		}
		if _, err := s.users.GetByUsername(txCtx, admin.Username); err == nil {
			return nil
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to look up admin user: %w", err)
		}

		role, err := s.repo.FindByName(txCtx, admin.Role)
		if err != nil {
			return fmt.Errorf("admin role '%s' not found: %w", admin.Role, err)
		}
		hash, err := auth.HashPassword(admin.Password)
		if err != nil {
			return err
		}
		user := &model.User{Username: admin.Username, Password: hash, RoleID: role.ID}
		if err := s.users.Create(txCtx, user); err != nil {
			return fmt.Errorf("failed to seed admin user: %w", err)
		}
		log.Printf("Seeded admin user %s with role %s", admin.Username, admin.Role)
		return nil
	})
}
