package rolegate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrEthical07/rolegate/internal/ids"
	"github.com/MrEthical07/rolegate/password"
	"github.com/MrEthical07/rolegate/store"
)

// Identity returns the identity with id. The password hash is cleared.
func (e *Engine) Identity(ctx context.Context, identityID string) (Identity, error) {
	if e == nil || e.store == nil {
		return Identity{}, ErrEngineNotReady
	}
	ident, err := e.store.FindIdentity(ctx, identityID)
	if err != nil {
		return Identity{}, mapStoreError(err)
	}
	ident.PasswordHash = ""
	return ident, nil
}

// CreateIdentity registers an identity under an existing role. An ACTIVE
// identity needs a password; an INVITED one may be created without and
// activated later.
func (e *Engine) CreateIdentity(ctx context.Context, in NewIdentity) (Identity, error) {
	if e == nil || e.store == nil {
		return Identity{}, ErrEngineNotReady
	}

	email := store.NormalizeEmail(in.Email)
	if email == "" || !strings.Contains(email, "@") {
		return Identity{}, fmt.Errorf("%w: email is invalid", ErrInvalidInput)
	}
	if in.RoleID == "" {
		return Identity{}, fmt.Errorf("%w: role is required", ErrInvalidInput)
	}
	status := in.Status
	if status == "" {
		status = store.StatusActive
	}
	if !status.Valid() {
		return Identity{}, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, status)
	}

	var hash string
	switch {
	case in.Password != "":
		encoded, err := e.hasher.Hash(in.Password)
		if err != nil {
			return Identity{}, passwordError(err)
		}
		hash = encoded
	case status == store.StatusActive:
		return Identity{}, fmt.Errorf("%w: active identities need a password", ErrInvalidInput)
	}

	ident, err := e.store.CreateIdentity(ctx, store.Identity{
		ID:           ids.New(),
		Email:        email,
		Name:         strings.TrimSpace(in.Name),
		PasswordHash: hash,
		Status:       status,
		RoleID:       in.RoleID,
	})
	if err != nil {
		err = mapStoreError(err)
		e.emitAudit(ctx, auditEventIdentityCreated, false, "", in.RoleID, err, nil)
		return Identity{}, err
	}

	e.metricInc(MetricIdentityCreated)
	e.emitAudit(ctx, auditEventIdentityCreated, true, ident.ID, ident.RoleID, nil, nil)
	ident.PasswordHash = ""
	return ident, nil
}

// AssignRole moves an identity to another role. The identity's sessions
// minted under the old role are flagged on their next revalidation.
func (e *Engine) AssignRole(ctx context.Context, identityID, roleID string) (Identity, error) {
	if e == nil || e.store == nil {
		return Identity{}, ErrEngineNotReady
	}

	ident, err := e.store.AssignRole(ctx, identityID, roleID)
	if err != nil {
		err = mapStoreError(err)
		e.emitAudit(ctx, auditEventRoleAssigned, false, identityID, roleID, err, nil)
		return Identity{}, err
	}

	e.metricInc(MetricRoleAssigned)
	e.emitAudit(ctx, auditEventRoleAssigned, true, ident.ID, ident.RoleID, nil, nil)
	ident.PasswordHash = ""
	return ident, nil
}

// DisableIdentity blocks sign-in and turns every existing session of the
// identity unauthenticated.
func (e *Engine) DisableIdentity(ctx context.Context, identityID string) (Identity, error) {
	ident, err := e.setStatus(ctx, identityID, store.StatusDisabled)
	if err == nil {
		e.metricInc(MetricIdentityDisabled)
	}
	return ident, err
}

// DeleteIdentity removes an identity. Its existing sessions revalidate as
// unauthenticated.
func (e *Engine) DeleteIdentity(ctx context.Context, identityID string) error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}
	if strings.TrimSpace(identityID) == "" {
		return fmt.Errorf("%w: identity id is required", ErrInvalidInput)
	}

	if err := e.store.DeleteIdentity(ctx, identityID); err != nil {
		err = mapStoreError(err)
		e.emitAudit(ctx, auditEventIdentityDeleted, false, identityID, "", err, nil)
		return err
	}

	e.metricInc(MetricIdentityDeleted)
	e.emitAudit(ctx, auditEventIdentityDeleted, true, identityID, "", nil, nil)
	return nil
}

// ActivateIdentity sets a new password and marks the identity ACTIVE.
func (e *Engine) ActivateIdentity(ctx context.Context, identityID, newPassword string) (Identity, error) {
	if e == nil || e.store == nil {
		return Identity{}, ErrEngineNotReady
	}
	encoded, err := e.hasher.Hash(newPassword)
	if err != nil {
		return Identity{}, passwordError(err)
	}
	if err := e.store.UpdatePasswordHash(ctx, identityID, encoded); err != nil {
		return Identity{}, mapStoreError(err)
	}
	return e.setStatus(ctx, identityID, store.StatusActive)
}

func (e *Engine) setStatus(ctx context.Context, identityID string, status store.IdentityStatus) (Identity, error) {
	if e == nil || e.store == nil {
		return Identity{}, ErrEngineNotReady
	}

	ident, err := e.store.UpdateIdentityStatus(ctx, identityID, status)
	if err != nil {
		err = mapStoreError(err)
		e.emitAudit(ctx, auditEventIdentityStatusChange, false, identityID, "", err, nil)
		return Identity{}, err
	}

	e.emitAudit(ctx, auditEventIdentityStatusChange, true, ident.ID, ident.RoleID, nil, func() map[string]string {
		return map[string]string{"status": string(status)}
	})
	ident.PasswordHash = ""
	return ident, nil
}

func passwordError(err error) error {
	if errors.Is(err, password.ErrPolicy) {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return err
}
