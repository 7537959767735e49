package rolegate

import (
	"context"
	"errors"
)

const (
	auditEventSignInSuccess         = "sign_in_success"
	auditEventSignInFailure         = "sign_in_failure"
	auditEventSignInRateLimited     = "sign_in_rate_limited"
	auditEventPasswordRehashed      = "password_rehashed"
	auditEventSessionRequiresLogout = "session_requires_logout"
	auditEventSessionRejected       = "session_rejected"
	auditEventPermissionDenied      = "permission_denied"
	auditEventRoleCreated           = "role_created"
	auditEventPermissionsReplaced   = "role_permissions_replaced"
	auditEventRoleDeleted           = "role_deleted"
	auditEventRoleDeleteRejected    = "role_delete_rejected"
	auditEventRoleAssigned          = "role_assigned"
	auditEventIdentityCreated       = "identity_created"
	auditEventIdentityStatusChange  = "identity_status_change"
	auditEventIdentityDeleted       = "identity_deleted"
)

// criticalAuditEvent reports administrative changes to roles and identities.
// Their events wait for buffer space even when the dispatcher drops others.
func criticalAuditEvent(eventType string) bool {
	switch eventType {
	case auditEventRoleCreated,
		auditEventPermissionsReplaced,
		auditEventRoleDeleted,
		auditEventRoleAssigned,
		auditEventIdentityCreated,
		auditEventIdentityStatusChange,
		auditEventIdentityDeleted:
		return true
	default:
		return false
	}
}

// AuditErrorCode is the stable error label recorded on failed events.
type AuditErrorCode string

const (
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrRateLimited        AuditErrorCode = "rate_limited"
	auditErrUnauthenticated    AuditErrorCode = "unauthenticated"
	auditErrSessionInvalidated AuditErrorCode = "session_invalidated"
	auditErrPermissionDenied   AuditErrorCode = "permission_denied"
	auditErrProtectedRole      AuditErrorCode = "protected_role"
	auditErrInUse              AuditErrorCode = "in_use"
	auditErrNotFound           AuditErrorCode = "not_found"
	auditErrDuplicate          AuditErrorCode = "duplicate"
	auditErrInvalidInput       AuditErrorCode = "invalid_input"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	identityID string,
	roleID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp:  e.now().UTC(),
		EventType:  eventType,
		IdentityID: identityID,
		TenantID:   tenantIDFromContext(ctx),
		RoleID:     roleID,
		IP:         clientIPFromContext(ctx),
		UserAgent:  userAgentFromContext(ctx),
		Success:    success,
		Metadata:   metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrAuthentication):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrSignInRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrUnauthenticated):
		return auditErrUnauthenticated
	case errors.Is(err, ErrSessionInvalidated):
		return auditErrSessionInvalidated
	case errors.Is(err, ErrAuthorization):
		return auditErrPermissionDenied
	case errors.Is(err, ErrProtectedRole):
		return auditErrProtectedRole
	case errors.Is(err, ErrInUse):
		return auditErrInUse
	case errors.Is(err, ErrNotFound):
		return auditErrNotFound
	case errors.Is(err, ErrConflict):
		return auditErrDuplicate
	case errors.Is(err, ErrInvalidInput):
		return auditErrInvalidInput
	case errors.Is(err, ErrStoreUnavailable),
		errors.Is(err, ErrEngineNotReady):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
