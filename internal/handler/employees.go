package handler

import (
	"net/http"
	"slices"

	"github.com/genba-dispatch/dispatch/backend/internal/domain"
)

var roles = []domain.Role{domain.RoleForeman, domain.RoleWorker, domain.RoleDispatcher}

func (h *Handler) GetEmployees(w http.ResponseWriter, r *http.Request) {
	role := domain.Role(r.URL.Query().Get("role"))
	if role != "" && !slices.Contains(roles, role) {
		h.errorResponse(w, r, http.StatusBadRequest, "无效的角色")
		return
	}

	employees, err := h.repository.GetEmployees(r.Context(), role)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, employees)
}
