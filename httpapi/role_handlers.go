package httpapi

import (
	"net/http"

	"github.com/MrEthical07/rolegate"
)

type roleResponse struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Protected   bool     `json:"protected"`
	Permissions []string `json:"permissions"`
	Version     int64    `json:"version"`
}

type replacePermissionsRequest struct {
	Permissions []string `json:"permissions"`
}

func toRoleResponse(role rolegate.Role) roleResponse {
	perms := role.Permissions
	if perms == nil {
		perms = []string{}
	}
	return roleResponse{
		ID:          role.ID,
		Name:        role.Name,
		Description: role.Description,
		Protected:   role.Protected,
		Permissions: perms,
		Version:     role.Version(),
	}
}

func (a *API) handleCatalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"groups": a.engine.Catalog().Groups(),
	})
}

func (a *API) handleListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := a.engine.ListRoles(r.Context())
	if err != nil {
		a.writeEngineError(w, r, err)
		return
	}
	out := make([]roleResponse, 0, len(roles))
	for _, role := range roles {
		out = append(out, toRoleResponse(role))
	}
	writeJSON(w, http.StatusOK, map[string]any{"roles": out})
}

func (a *API) handleRolePermissions(w http.ResponseWriter, r *http.Request) {
	role, err := a.engine.Role(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRoleResponse(role))
}

func (a *API) handleReplacePermissions(w http.ResponseWriter, r *http.Request) {
	var req replacePermissionsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Permissions == nil {
		writeError(w, http.StatusBadRequest, "permissions is required")
		return
	}

	role, err := a.engine.ReplacePermissions(r.Context(), r.PathValue("id"), req.Permissions)
	if err != nil {
		a.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRoleResponse(role))
}

func (a *API) handleDeleteRole(w http.ResponseWriter, r *http.Request) {
	if err := a.engine.DeleteRole(r.Context(), r.PathValue("id")); err != nil {
		a.writeEngineError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleCampaigns stands in for a campaign listing; it only proves the
// permission gate.
func (a *API) handleCampaigns(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"campaigns": []any{}})
}
