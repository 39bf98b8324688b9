package enrollments

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/coursehub/coursehub/internal/auth"
	"github.com/coursehub/coursehub/internal/platform/httpx"
)

// Handler manages enrollment endpoints. Every route requires an
// authenticated principal; the transport layer attaches identity but never
// enforces it, so enforcement lives here.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers enrollment routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/my-enrollments", h.myEnrollments)
	r.Get("/course/{courseID}", h.courseRoster)
	r.Post("/{courseID}", h.enroll)
	r.Delete("/{courseID}", h.unenroll)
	r.Get("/{courseID}/status", h.status)
	r.Get("/{courseID}", h.getEnrollment)
}

type enrollmentResponse struct {
	ID                 int64   `json:"id"`
	StudentID          int64   `json:"studentId"`
	StudentName        string  `json:"studentName"`
	CourseID           int64   `json:"courseId"`
	CourseTitle        string  `json:"courseTitle"`
	EnrolledAt         string  `json:"enrolledAt"`
	ProgressPercentage float64 `json:"progressPercentage"`
	IsCompleted        bool    `json:"isCompleted"`
	CompletedAt        *string `json:"completedAt,omitempty"`
}

func newEnrollmentResponse(e Enrollment) enrollmentResponse {
	resp := enrollmentResponse{
		ID:                 e.ID,
		StudentID:          e.StudentID,
		StudentName:        e.StudentName,
		CourseID:           e.CourseID,
		CourseTitle:        e.CourseTitle,
		EnrolledAt:         e.EnrolledAt.UTC().Format(time.RFC3339),
		ProgressPercentage: e.ProgressPercentage,
		IsCompleted:        e.IsCompleted,
	}
	if e.CompletedAt != nil {
		completed := e.CompletedAt.UTC().Format(time.RFC3339)
		resp.CompletedAt = &completed
	}
	return resp
}

func (h *Handler) enroll(w http.ResponseWriter, r *http.Request) {
	principal, courseID, ok := h.requirePrincipalAndCourse(w, r)
	if !ok {
		return
	}
	enrollment, err := h.service.Enroll(r.Context(), principal, courseID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, newEnrollmentResponse(*enrollment))
}

func (h *Handler) unenroll(w http.ResponseWriter, r *http.Request) {
	principal, courseID, ok := h.requirePrincipalAndCourse(w, r)
	if !ok {
		return
	}
	if err := h.service.Unenroll(r.Context(), principal, courseID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) myEnrollments(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	list, err := h.service.MyEnrollments(r.Context(), principal)
	if err != nil {
		h.logger.Error("list my enrollments", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponses(list))
}

func (h *Handler) courseRoster(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	courseID, err := strconv.ParseInt(chi.URLParam(r, "courseID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "course id must be an integer")
		return
	}
	list, err := h.service.CourseRoster(r.Context(), principal, courseID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponses(list))
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	principal, courseID, ok := h.requirePrincipalAndCourse(w, r)
	if !ok {
		return
	}
	enrolled, err := h.service.IsEnrolled(r.Context(), principal, courseID)
	if err != nil {
		h.logger.Error("enrollment status", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]bool{"enrolled": enrolled})
}

func (h *Handler) getEnrollment(w http.ResponseWriter, r *http.Request) {
	principal, courseID, ok := h.requirePrincipalAndCourse(w, r)
	if !ok {
		return
	}
	enrollment, err := h.service.Enrollment(r.Context(), principal, courseID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, newEnrollmentResponse(*enrollment))
}

func (h *Handler) requirePrincipalAndCourse(w http.ResponseWriter, r *http.Request) (*auth.Principal, int64, bool) {
	principal := auth.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return nil, 0, false
	}
	courseID, err := strconv.ParseInt(chi.URLParam(r, "courseID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "course id must be an integer")
		return nil, 0, false
	}
	return principal, courseID, true
}

func toResponses(list []Enrollment) []enrollmentResponse {
	out := make([]enrollmentResponse, len(list))
	for i, e := range list {
		out[i] = newEnrollmentResponse(e)
	}
	return out
}
