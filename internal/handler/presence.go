package handler

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/genba-dispatch/dispatch/backend/internal/presence"
)

// 编辑者身份一律取自令牌，请求体只能补充显示名

func (h *Handler) GetEditors(w http.ResponseWriter, r *http.Request) {
	editors, err := h.presence.Editors(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}
	if editors == nil {
		editors = []presence.Editor{}
	}

	h.writeJSON(w, r, http.StatusOK, editors)
}

func (h *Handler) JoinEditors(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name" validate:"max=64"`
	}
	if err := h.readJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	editor := presence.Editor{
		UserID: r.Context().Value(SubCtxKey).(string),
		Name:   strings.TrimSpace(req.Name),
	}
	if editor.Name == "" {
		editor.Name, _ = r.Context().Value(NameCtxKey).(string)
	}

	if err := h.presence.Join(r.Context(), chi.URLParam(r, "id"), editor); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) LeaveEditors(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value(SubCtxKey).(string)

	if err := h.presence.Leave(r.Context(), chi.URLParam(r, "id"), userID); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
