package flows

// IdentityRecord is the flow-local view of an identity.
type IdentityRecord struct {
	ID             string
	RoleID         string
	PasswordHash   string
	AccountVersion uint64
	Active         bool
	Disabled       bool
}

// RoleRecord is the flow-local view of a role.
type RoleRecord struct {
	ID          string
	Version     int64
	Permissions []string
}
