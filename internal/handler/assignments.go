package handler

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/genba-dispatch/dispatch/backend/internal/domain"
	"github.com/genba-dispatch/dispatch/backend/internal/notify"
	"github.com/genba-dispatch/dispatch/backend/internal/repository"
	"github.com/genba-dispatch/dispatch/backend/internal/utils"
)

func parseDateQuery(r *http.Request, key string) (*domain.Date, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, nil
	}
	d, err := domain.ParseDate(raw)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (h *Handler) GetAssignments(w http.ResponseWriter, r *http.Request) {
	start, err := parseDateQuery(r, "startDate")
	if err != nil {
		h.badRequest(w, r, err)
		return
	}
	end, err := parseDateQuery(r, "endDate")
	if err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := utils.ValidateDateRange(start, end); err != nil {
		h.badRequest(w, r, err)
		return
	}

	assignments, err := h.repository.ListAssignments(r.Context(), start, end)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, assignments)
}

func (h *Handler) validateAssignmentInput(in *domain.AssignmentInput) error {
	if err := h.validate.Struct(in); err != nil {
		return err
	}
	if in.Date.IsZero() {
		return errors.New("date 为必填字段")
	}
	if err := utils.ValidateMeetingTime(in.MeetingTime); err != nil {
		return err
	}
	if in.AssignedEmployeeID == "" {
		in.AssignedEmployeeID = domain.UnassignedEmployeeID
	}
	return nil
}

// createError 把写入失败中可以归咎于请求的部分转换成 400
func (h *Handler) createError(w http.ResponseWriter, r *http.Request, err error) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.ConstraintName {
		case "assignments_project_master_id_fkey":
			h.errorResponse(w, r, http.StatusBadRequest, "工地不存在")
			return
		case "assignments_member_count_check":
			h.errorResponse(w, r, http.StatusBadRequest, "人数不能为负数")
			return
		}
	}
	h.internalServerError(w, r, err)
}

func (h *Handler) CreateAssignment(w http.ResponseWriter, r *http.Request) {
	var req domain.AssignmentInput
	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validateAssignmentInput(&req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	assignment, err := h.repository.CreateAssignment(r.Context(), req)
	if err != nil {
		h.createError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusCreated, assignment)
}

func (h *Handler) BatchCreateAssignments(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Assignments []domain.AssignmentInput `json:"assignments" validate:"required,min=1"`
	}
	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	for i := range req.Assignments {
		if err := h.validateAssignmentInput(&req.Assignments[i]); err != nil {
			h.badRequest(w, r, err)
			return
		}
	}
	if err := utils.ValidateBatchInputs(req.Assignments); err != nil {
		h.badRequest(w, r, err)
		return
	}

	assignments, err := h.repository.BatchCreateAssignments(r.Context(), req.Assignments)
	if err != nil {
		h.createError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusCreated, assignments)
}

// updateError 处理 PATCH 和 batch 共同的失败情况
func (h *Handler) updateError(w http.ResponseWriter, r *http.Request, kind string, err error) {
	var conflictErr *domain.ConflictError
	switch {
	case errors.As(err, &conflictErr):
		h.conflict(w, r, kind, conflictErr)
	case errors.Is(err, sql.ErrNoRows):
		h.notFound(w, r, "排班不存在")
	default:
		h.internalServerError(w, r, err)
	}
}

func (h *Handler) UpdateAssignment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req struct {
		domain.AssignmentPatch
		ExpectedUpdatedAt *time.Time `json:"expectedUpdatedAt"`
	}
	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := utils.ValidateMeetingTime(req.MeetingTime); err != nil {
		h.badRequest(w, r, err)
		return
	}

	change, err := h.repository.UpdateAssignment(r.Context(), id, req.ExpectedUpdatedAt, req.AssignmentPatch)
	if err != nil {
		h.updateError(w, r, conflictKindSingle, err)
		return
	}

	h.notifyDispatchConfirmed(r.Context(), change)
	h.writeJSON(w, r, http.StatusOK, change.After)
}

func (h *Handler) BatchUpdateAssignments(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Updates []domain.BatchUpdateItem `json:"updates" validate:"required,min=1,dive"`
	}
	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	// 同一条记录出现两次时第二项的 expectedUpdatedAt 必然过期
	seen := make(map[string]struct{}, len(req.Updates))
	for _, u := range req.Updates {
		if err := utils.ValidateMeetingTime(u.Data.MeetingTime); err != nil {
			h.badRequest(w, r, err)
			return
		}
		if _, ok := seen[u.ID]; ok {
			h.errorResponse(w, r, http.StatusBadRequest, "同一排班在批量更新中出现多次")
			return
		}
		seen[u.ID] = struct{}{}
	}

	changes, err := h.repository.BatchUpdateAssignments(r.Context(), req.Updates)
	if err != nil {
		h.updateError(w, r, conflictKindBatch, err)
		return
	}

	assignments := make([]domain.Assignment, 0, len(changes))
	for _, change := range changes {
		h.notifyDispatchConfirmed(r.Context(), change)
		assignments = append(assignments, change.After)
	}

	h.writeJSON(w, r, http.StatusOK, assignments)
}

func (h *Handler) DeleteAssignment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.repository.DeleteAssignment(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			h.notFound(w, r, "排班不存在")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// notifyDispatchConfirmed 在出勤从未确定变为已确定时通知职长，失败只记录日志
func (h *Handler) notifyDispatchConfirmed(ctx context.Context, change repository.AssignmentChange) {
	if h.publisher == nil || change.Before.IsDispatchConfirmed || !change.After.IsDispatchConfirmed {
		return
	}
	employeeID := change.After.AssignedEmployeeID
	if employeeID == "" || employeeID == domain.UnassignedEmployeeID {
		return
	}

	foreman, err := h.repository.GetEmployeeByID(ctx, employeeID)
	if err != nil {
		recordDispatchNotification("failed")
		slog.Warn("查询职长失败，未发送出勤确定通知", "assignment", change.After.ID, "employee", employeeID, "error", err)
		return
	}
	if foreman.Email == "" {
		recordDispatchNotification("skipped")
		return
	}

	if err := h.publisher.Publish(ctx, notify.DispatchConfirmed(foreman, change.After)); err != nil {
		recordDispatchNotification("failed")
		slog.Warn("出勤确定通知入队失败", "assignment", change.After.ID, "employee", employeeID, "error", err)
		return
	}
	recordDispatchNotification("queued")
}
