package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/coursehub/coursehub/internal/auth"
	"github.com/coursehub/coursehub/internal/courses"
	"github.com/coursehub/coursehub/internal/enrollments"
	"github.com/coursehub/coursehub/internal/lessons"
	"github.com/coursehub/coursehub/internal/observability"
	"github.com/coursehub/coursehub/internal/users"
	"github.com/coursehub/coursehub/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	Authenticator      auth.Middleware
	Metrics            *observability.Metrics
	AuthHandler        *auth.Handler
	CoursesHandler     *courses.Handler
	LessonsHandler     *lessons.Handler
	EnrollmentsHandler *enrollments.Handler
	UsersHandler       *users.Handler
	JobsHandler        *jobs.Handler
}

// NewRouter constructs the chi.Router with CourseHub defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:        params.Logger,
		Config:        params.Config,
		Authenticator: params.Authenticator,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)
	if params.Metrics != nil {
		r.Use(params.Metrics.Middleware)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/auth", params.AuthHandler.MountRoutes)
	if params.CoursesHandler != nil {
		r.Route("/courses", func(r chi.Router) {
			params.CoursesHandler.MountRoutes(r)
			if params.LessonsHandler != nil {
				params.LessonsHandler.MountCourseRoutes(r)
			}
		})
	}
	if params.EnrollmentsHandler != nil {
		r.Route("/enrollments", params.EnrollmentsHandler.MountRoutes)
	}
	if params.UsersHandler != nil {
		r.Route("/users", params.UsersHandler.MountRoutes)
	}
	if params.JobsHandler != nil {
		r.Route("/jobs", params.JobsHandler.MountRoutes)
	}

	return r
}
