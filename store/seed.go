package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/rolegate/permission"
)

// SeedRoles creates every template role that does not exist yet. Existing
// roles are left untouched so an administrator's edits survive restarts.
func SeedRoles(ctx context.Context, s Store, templates []permission.RoleTemplate) error {
	for _, tpl := range templates {
		_, err := s.FindRole(ctx, tpl.ID)
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("seed role %s: %w", tpl.ID, err)
		}

		_, err = s.CreateRole(ctx, Role{
			ID:          tpl.ID,
			Name:        tpl.Name,
			Description: tpl.Description,
			Protected:   tpl.Protected,
			Permissions: tpl.Permissions,
		})
		if err != nil && !errors.Is(err, ErrConflict) {
			return fmt.Errorf("seed role %s: %w", tpl.ID, err)
		}
	}
	return nil
}
