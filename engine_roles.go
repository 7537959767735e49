package rolegate

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/MrEthical07/rolegate/permission"
	"go.uber.org/zap"
)

// Role returns the role with id.
func (e *Engine) Role(ctx context.Context, roleID string) (Role, error) {
	if e == nil || e.store == nil {
		return Role{}, ErrEngineNotReady
	}
	role, err := e.store.FindRole(ctx, roleID)
	if err != nil {
		return Role{}, mapStoreError(err)
	}
	return role, nil
}

// ListRoles returns every role ordered by name.
func (e *Engine) ListRoles(ctx context.Context) ([]Role, error) {
	if e == nil || e.store == nil {
		return nil, ErrEngineNotReady
	}
	roles, err := e.store.ListRoles(ctx)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return roles, nil
}

// ResolvePermissions returns the role's current permission set.
func (e *Engine) ResolvePermissions(ctx context.Context, roleID string) (*permission.Set, error) {
	role, err := e.Role(ctx, roleID)
	if err != nil {
		return nil, err
	}
	return permission.NewSet(role.Permissions...), nil
}

// CreateRole adds an unprotected role. Every permission key must exist in
// the catalog.
func (e *Engine) CreateRole(ctx context.Context, in NewRole) (Role, error) {
	if e == nil || e.store == nil {
		return Role{}, ErrEngineNotReady
	}
	id := strings.TrimSpace(in.ID)
	if id == "" || strings.TrimSpace(in.Name) == "" {
		return Role{}, fmt.Errorf("%w: role id and name are required", ErrInvalidInput)
	}
	keys, err := e.catalog.Validate(in.Permissions)
	if err != nil {
		return Role{}, mapStoreError(err)
	}

	role, err := e.store.CreateRole(ctx, Role{
		ID:          id,
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Permissions: keys,
	})
	if err != nil {
		err = mapStoreError(err)
		e.emitAudit(ctx, auditEventRoleCreated, false, "", id, err, nil)
		return Role{}, err
	}

	e.metricInc(MetricRoleCreated)
	e.emitAudit(ctx, auditEventRoleCreated, true, "", role.ID, nil, nil)
	return role, nil
}

// ReplacePermissions swaps the role's permission set for keys in one atomic
// store operation and advances the role version. Sessions minted before the
// call are flagged RequiresLogout on their next revalidation.
func (e *Engine) ReplacePermissions(ctx context.Context, roleID string, keys []string) (Role, error) {
	if e == nil || e.store == nil {
		return Role{}, ErrEngineNotReady
	}
	if strings.TrimSpace(roleID) == "" {
		return Role{}, fmt.Errorf("%w: role id is required", ErrInvalidInput)
	}
	validated, err := e.catalog.Validate(keys)
	if err != nil {
		err = mapStoreError(err)
		e.emitAudit(ctx, auditEventPermissionsReplaced, false, "", roleID, err, nil)
		return Role{}, err
	}

	role, err := e.store.ReplaceRolePermissions(ctx, roleID, validated)
	if err != nil {
		err = mapStoreError(err)
		e.emitAudit(ctx, auditEventPermissionsReplaced, false, "", roleID, err, nil)
		return Role{}, err
	}

	e.metricInc(MetricPermissionsReplaced)
	e.log.Info("role permissions replaced",
		zap.String("role_id", role.ID),
		zap.Int("permissions", len(role.Permissions)),
		zap.Int64("role_version", role.Version()),
	)
	e.emitAudit(ctx, auditEventPermissionsReplaced, true, "", role.ID, nil, func() map[string]string {
		return map[string]string{
			"permissions":  strconv.Itoa(len(role.Permissions)),
			"role_version": strconv.FormatInt(role.Version(), 10),
		}
	})
	return role, nil
}

// DeleteRole removes a role. Protected roles return ErrProtectedRole and
// roles still assigned to an identity return ErrInUse; in both cases the
// role is left untouched.
func (e *Engine) DeleteRole(ctx context.Context, roleID string) error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}

	err := e.store.DeleteRole(ctx, roleID)
	if err != nil {
		err = mapStoreError(err)
		if errors.Is(err, ErrProtectedRole) || errors.Is(err, ErrInUse) {
			e.metricInc(MetricRoleDeleteRejected)
			e.emitAudit(ctx, auditEventRoleDeleteRejected, false, "", roleID, err, nil)
		}
		return err
	}

	e.metricInc(MetricRoleDeleted)
	e.log.Info("role deleted", zap.String("role_id", roleID))
	e.emitAudit(ctx, auditEventRoleDeleted, true, "", roleID, nil, nil)
	return nil
}
