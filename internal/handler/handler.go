package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	zh_translations "github.com/go-playground/validator/v10/translations/zh"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/ulule/limiter/v3"
	mhttp "github.com/ulule/limiter/v3/drivers/middleware/stdlib"

	"github.com/genba-dispatch/dispatch/backend/internal/config"
	"github.com/genba-dispatch/dispatch/backend/internal/domain"
	"github.com/genba-dispatch/dispatch/backend/internal/presence"
	"github.com/genba-dispatch/dispatch/backend/internal/repository"
)

// Repository 是 handler 用到的持久化操作，由 *repository.Repository 实现
type Repository interface {
	ListAssignments(ctx context.Context, start, end *domain.Date) ([]domain.Assignment, error)
	CreateAssignment(ctx context.Context, in domain.AssignmentInput) (domain.Assignment, error)
	BatchCreateAssignments(ctx context.Context, ins []domain.AssignmentInput) ([]domain.Assignment, error)
	UpdateAssignment(ctx context.Context, id string, expected *time.Time, patch domain.AssignmentPatch) (repository.AssignmentChange, error)
	BatchUpdateAssignments(ctx context.Context, items []domain.BatchUpdateItem) ([]repository.AssignmentChange, error)
	DeleteAssignment(ctx context.Context, id string) error

	GetProjectMasters(ctx context.Context, title string) ([]domain.ProjectMaster, error)
	CreateProjectMaster(ctx context.Context, in domain.ProjectMasterInput) (domain.ProjectMaster, error)
	UpdateProjectMaster(ctx context.Context, id string, patch domain.ProjectMasterPatch) (domain.ProjectMaster, error)

	GetEmployeeByID(ctx context.Context, id string) (*domain.Employee, error)
	GetEmployees(ctx context.Context, role domain.Role) ([]*domain.Employee, error)
}

// Publisher 把邮件放进队列，由 *notify.Publisher 实现
type Publisher interface {
	Publish(ctx context.Context, msg domain.MailMessage) error
}

var _ Repository = (*repository.Repository)(nil)

type Handler struct {
	validate     *validator.Validate
	config       *config.Config
	repository   Repository
	translator   ut.Translator
	publisher    Publisher
	presence     presence.Backend
	limiterStore limiter.Store

	Mux *chi.Mux
}

func NewHandler(cfg *config.Config, repo Repository, publisher Publisher, registry presence.Backend, limiterStore limiter.Store) (*Handler, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())
	zh := zh.New()
	uni := ut.New(zh, zh)
	trans, _ := uni.GetTranslator("zh")
	if err := zh_translations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, err
	}

	return &Handler{
		validate:     validate,
		config:       cfg,
		repository:   repo,
		translator:   trans,
		publisher:    publisher,
		presence:     registry,
		limiterStore: limiterStore,

		Mux: chi.NewRouter(),
	}, nil
}

func (h *Handler) RegisterRoutes() {
	h.Mux.Use(cors.New(cors.Options{
		AllowedOrigins:   h.config.Server.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler)
	h.Mux.Use(h.logger)
	h.Mux.Use(h.recoverer)

	h.Mux.Handle("/metrics", promhttp.Handler())

	// 以下 API 必须要在登录后才允许调用
	h.Mux.Group(func(r chi.Router) {
		if h.limiterStore != nil && h.config.Server.RateLimit > 0 {
			rate := limiter.Rate{Period: time.Minute, Limit: h.config.Server.RateLimit}
			r.Use(mhttp.NewMiddleware(limiter.New(h.limiterStore, rate)).Handler)
		}
		r.Use(h.auth)

		r.Route("/assignments", func(r chi.Router) {
			r.Get("/", h.GetAssignments)
			r.Post("/", h.CreateAssignment)
			r.Post("/batch-create", h.BatchCreateAssignments)
			r.Post("/batch", h.BatchUpdateAssignments)
			r.Route("/{id}", func(r chi.Router) {
				r.Patch("/", h.UpdateAssignment)
				r.With(h.RequiredRole([]domain.Role{domain.RoleDispatcher})).Delete("/", h.DeleteAssignment)
				r.Route("/editors", func(r chi.Router) {
					r.Get("/", h.GetEditors)
					r.Put("/", h.JoinEditors)
					r.Delete("/", h.LeaveEditors)
				})
			})
		})

		r.Route("/project-masters", func(r chi.Router) {
			r.Get("/", h.GetProjectMasters)
			r.Post("/", h.CreateProjectMaster)
			r.Patch("/{id}", h.UpdateProjectMaster)
		})

		r.Get("/employees", h.GetEmployees)
	})
}
