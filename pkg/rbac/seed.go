package rbac

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed seed.yaml
var defaultSeed []byte

// SeedData is the permission vocabulary and system role set installed by Seed
type SeedData struct {
	Permissions []SeedPermission `yaml:"permissions"`
	Roles       []SeedRole       `yaml:"roles"`
}

// SeedPermission is one catalog entry
type SeedPermission struct {
	Code string `yaml:"code"`
	Name string `yaml:"name"`
}

// SeedRole is one system role and its grants
type SeedRole struct {
	Code           string   `yaml:"code"`
	Name           string   `yaml:"name"`
	Description    string   `yaml:"description"`
	Level          int      `yaml:"level"`
	AllPermissions bool     `yaml:"all_permissions"`
	Permissions    []string `yaml:"permissions"`
}

// DefaultSeed returns the embedded seed data
func DefaultSeed() (*SeedData, error) {
	return ParseSeed(defaultSeed)
}

// ParseSeed parses and validates YAML seed data
func ParseSeed(data []byte) (*SeedData, error) {
	var seed SeedData
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed data: %w", err)
	}

	codes := make(map[string]struct{}, len(seed.Permissions))
	for _, p := range seed.Permissions {
		if _, _, _, err := ParseCode(p.Code); err != nil {
			return nil, err
		}
		if _, dup := codes[p.Code]; dup {
			return nil, fmt.Errorf("%w: duplicate permission %s in seed", ErrInvalidInput, p.Code)
		}
		codes[p.Code] = struct{}{}
	}

	roles := make(map[string]struct{}, len(seed.Roles))
	for _, r := range seed.Roles {
		if r.Code == "" || r.Name == "" {
			return nil, fmt.Errorf("%w: seed role requires code and name", ErrInvalidInput)
		}
		if _, dup := roles[r.Code]; dup {
			return nil, fmt.Errorf("%w: duplicate role %s in seed", ErrInvalidInput, r.Code)
		}
		roles[r.Code] = struct{}{}
		for _, code := range r.Permissions {
			if _, ok := codes[code]; !ok {
				return nil, fmt.Errorf("%w: role %s grants unknown permission %s", ErrInvalidInput, r.Code, code)
			}
		}
	}

	return &seed, nil
}

// ParseCode splits a dotted permission code into module, resource and
// action. The resource keeps any inner dots ("admin.users.role.assign"
// has resource "users.role").
func ParseCode(code string) (module, resource, action string, err error) {
	parts := strings.Split(code, ".")
	if len(parts) < 3 {
		return "", "", "", fmt.Errorf("%w: permission code %q must be module.resource.action", ErrInvalidInput, code)
	}
	for _, part := range parts {
		if part == "" {
			return "", "", "", fmt.Errorf("%w: permission code %q has an empty segment", ErrInvalidInput, code)
		}
	}
	return parts[0], strings.Join(parts[1:len(parts)-1], "."), parts[len(parts)-1], nil
}

// Seed installs the permission catalog and system roles in one
// transaction. It is idempotent: permissions are upserted, missing system
// roles are created, and each system role's grants are reset to the seed.
func Seed(ctx context.Context, store *Store, seed *SeedData) error {
	if seed == nil {
		var err error
		if seed, err = DefaultSeed(); err != nil {
			return err
		}
	}

	return store.InTx(ctx, func(tx *Store) error {
		ids := make(map[string]int64, len(seed.Permissions))
		all := make([]int64, 0, len(seed.Permissions))
		for _, sp := range seed.Permissions {
			module, resource, action, err := ParseCode(sp.Code)
			if err != nil {
				return err
			}
			p := &Permission{Code: sp.Code, Name: sp.Name, Module: module, Resource: resource, Action: action}
			if err := tx.UpsertPermission(ctx, p); err != nil {
				return err
			}
			ids[p.Code] = p.ID
			all = append(all, p.ID)
		}

		for _, sr := range seed.Roles {
			role, err := tx.GetRoleByCode(ctx, sr.Code)
			if err != nil {
				return err
			}

			var roleID int64
			if role == nil {
				var description *string
				if sr.Description != "" {
					d := sr.Description
					description = &d
				}
				roleID, err = tx.InsertRole(ctx, NewRole{
					Code:        sr.Code,
					Name:        sr.Name,
					Description: description,
					Level:       sr.Level,
				}, true)
				if err != nil {
					return fmt.Errorf("failed to create system role %s: %w", sr.Code, err)
				}
			} else if !role.IsSystem {
				return fmt.Errorf("%w: role %s exists but is not a system role", ErrConflict, sr.Code)
			} else {
				roleID = role.ID
			}

			grants := all
			if !sr.AllPermissions {
				grants = make([]int64, 0, len(sr.Permissions))
				for _, code := range sr.Permissions {
					grants = append(grants, ids[code])
				}
			}
			if err := tx.ReplaceRolePermissions(ctx, roleID, grants); err != nil {
				return fmt.Errorf("failed to grant permissions to %s: %w", sr.Code, err)
			}
		}
		return nil
	})
}
