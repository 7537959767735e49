package permission

import "sync"

// Category names of the default catalog.
const (
	CategoryClients   = "clients"
	CategoryAudiences = "audiences"
	CategoryContacts  = "contacts"
	CategoryTemplates = "templates"
	CategoryCampaigns = "campaigns"
	CategorySMTP      = "smtp"
	CategoryUploads   = "uploads"
	CategoryUsers     = "users"
	CategoryRoles     = "roles"
)

// Built-in role identifiers.
const (
	RoleSuperAdmin = "SUPER_ADMIN"
	RoleAdmin      = "ADMIN"
	RoleMarketer   = "MARKETER"
	RoleClient     = "CLIENT"
)

var defaultEntries = []Entry{
	{Key: "clients:view", Category: CategoryClients, Label: "View clients"},
	{Key: "clients:create", Category: CategoryClients, Label: "Create clients"},
	{Key: "clients:edit", Category: CategoryClients, Label: "Edit clients"},
	{Key: "clients:delete", Category: CategoryClients, Label: "Delete clients"},

	{Key: "audiences:view", Category: CategoryAudiences, Label: "View audiences"},
	{Key: "audiences:create", Category: CategoryAudiences, Label: "Create audiences"},
	{Key: "audiences:edit", Category: CategoryAudiences, Label: "Edit audiences"},
	{Key: "audiences:delete", Category: CategoryAudiences, Label: "Delete audiences"},

	{Key: "contacts:view", Category: CategoryContacts, Label: "View contacts"},
	{Key: "contacts:import", Category: CategoryContacts, Label: "Import contacts"},
	{Key: "contacts:edit", Category: CategoryContacts, Label: "Edit contacts"},
	{Key: "contacts:delete", Category: CategoryContacts, Label: "Delete contacts"},

	{Key: "templates:view", Category: CategoryTemplates, Label: "View templates"},
	{Key: "templates:create", Category: CategoryTemplates, Label: "Create templates"},
	{Key: "templates:edit", Category: CategoryTemplates, Label: "Edit templates"},
	{Key: "templates:delete", Category: CategoryTemplates, Label: "Delete templates"},

	{Key: "campaigns:view", Category: CategoryCampaigns, Label: "View campaigns"},
	{Key: "campaigns:create", Category: CategoryCampaigns, Label: "Create campaigns"},
	{Key: "campaigns:edit", Category: CategoryCampaigns, Label: "Edit campaigns"},
	{Key: "campaigns:delete", Category: CategoryCampaigns, Label: "Delete campaigns"},
	{Key: "campaigns:send", Category: CategoryCampaigns, Label: "Send campaigns"},

	{Key: "smtp:view", Category: CategorySMTP, Label: "View SMTP settings"},
	{Key: "smtp:edit", Category: CategorySMTP, Label: "Edit SMTP settings"},

	{Key: "uploads:create", Category: CategoryUploads, Label: "Upload files"},
	{Key: "uploads:delete", Category: CategoryUploads, Label: "Delete uploads"},

	{Key: "users:view", Category: CategoryUsers, Label: "View users"},
	{Key: "users:invite", Category: CategoryUsers, Label: "Invite users"},
	{Key: "users:edit", Category: CategoryUsers, Label: "Edit users"},
	{Key: "users:delete", Category: CategoryUsers, Label: "Delete users"},

	{Key: "roles:view", Category: CategoryRoles, Label: "View roles"},
	{Key: "roles:create", Category: CategoryRoles, Label: "Create roles"},
	{Key: "roles:edit", Category: CategoryRoles, Label: "Edit role permissions"},
	{Key: "roles:delete", Category: CategoryRoles, Label: "Delete roles"},
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// Default returns the built-in campaign platform catalog.
func Default() *Catalog {
	defaultOnce.Do(func() {
		c, err := NewCatalog(defaultEntries)
		if err != nil {
			panic("permission: invalid default catalog: " + err.Error())
		}
		defaultCatalog = c
	})
	return defaultCatalog
}

// RoleTemplate describes a role seeded at install time.
type RoleTemplate struct {
	ID          string
	Name        string
	Description string
	Protected   bool
	Permissions []string
}

// DefaultRoles returns the seed roles for the default catalog. SUPER_ADMIN
// and ADMIN are protected and cannot be deleted.
func DefaultRoles() []RoleTemplate {
	all := Default().Keys()

	admin := make([]string, 0, len(all))
	for _, k := range all {
		if k == "roles:delete" {
			continue
		}
		admin = append(admin, k)
	}

	var marketer []string
	for _, e := range Default().Entries() {
		switch e.Category {
		case CategoryAudiences, CategoryContacts, CategoryTemplates, CategoryCampaigns:
			marketer = append(marketer, e.Key)
		case CategoryUploads:
			if e.Key == "uploads:create" {
				marketer = append(marketer, e.Key)
			}
		}
	}

	return []RoleTemplate{
		{ID: RoleSuperAdmin, Name: "Super Admin", Description: "Full platform access", Protected: true, Permissions: all},
		{ID: RoleAdmin, Name: "Admin", Description: "Administers users and settings", Protected: true, Permissions: admin},
		{ID: RoleMarketer, Name: "Marketer", Description: "Builds and sends campaigns", Permissions: marketer},
		{ID: RoleClient, Name: "Client", Description: "Read-only campaign access", Permissions: []string{"campaigns:view", "templates:view"}},
	}
}
