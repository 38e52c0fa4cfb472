package handler

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/genba-dispatch/dispatch/backend/internal/domain"
)

func (h *Handler) GetProjectMasters(w http.ResponseWriter, r *http.Request) {
	title := strings.TrimSpace(r.URL.Query().Get("title"))

	masters, err := h.repository.GetProjectMasters(r.Context(), title)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, masters)
}

func (h *Handler) CreateProjectMaster(w http.ResponseWriter, r *http.Request) {
	var req domain.ProjectMasterInput
	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	pm, err := h.repository.CreateProjectMaster(r.Context(), req)
	if err != nil {
		var pgErr *pgconn.PgError
		switch {
		case errors.As(err, &pgErr) && pgErr.ConstraintName == "project_masters_title_key":
			h.errorResponse(w, r, http.StatusBadRequest, "工地名称已存在")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.writeJSON(w, r, http.StatusCreated, pm)
}

func (h *Handler) UpdateProjectMaster(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req domain.ProjectMasterPatch
	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if req.IsEmpty() {
		h.errorResponse(w, r, http.StatusBadRequest, "没有需要修改的字段")
		return
	}

	pm, err := h.repository.UpdateProjectMaster(r.Context(), id, req)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			h.notFound(w, r, "工地不存在")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.writeJSON(w, r, http.StatusOK, pm)
}
