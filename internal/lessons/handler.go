package lessons

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/coursehub/coursehub/internal/auth"
	"github.com/coursehub/coursehub/internal/platform/httpx"
)

// Handler manages lesson endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountCourseRoutes registers lesson routes on the courses subtree. The
// course id parameter name must match the one used by the course routes.
func (h *Handler) MountCourseRoutes(r chi.Router) {
	r.Route("/{id}/lessons", func(r chi.Router) {
		r.Get("/", h.listLessons)
		r.Post("/", h.createLesson)
		r.Get("/progress", h.myProgress)
		r.Put("/{lessonID}", h.updateLesson)
		r.Delete("/{lessonID}", h.deleteLesson)
		r.Post("/{lessonID}/complete", h.completeLesson)
		r.Post("/{lessonID}/progress", h.recordTime)
	})
}

type lessonRequest struct {
	Title           string  `json:"title" validate:"required,max=200"`
	Description     string  `json:"description"`
	LessonType      string  `json:"lessonType" validate:"required,oneof=TEXT VIDEO AUDIO PDF"`
	Content         string  `json:"content"`
	FileURL         *string `json:"fileUrl" validate:"omitempty,url"`
	DurationMinutes int     `json:"durationMinutes" validate:"gte=0"`
	IsPublished     bool    `json:"isPublished"`
}

type timeSpentRequest struct {
	TimeSpentMinutes int `json:"timeSpentMinutes" validate:"required,gt=0"`
}

type lessonResponse struct {
	ID              int64   `json:"id"`
	CourseID        int64   `json:"courseId"`
	Title           string  `json:"title"`
	Description     string  `json:"description"`
	LessonType      string  `json:"lessonType"`
	Content         string  `json:"content"`
	FileURL         *string `json:"fileUrl,omitempty"`
	DurationMinutes int     `json:"durationMinutes"`
	OrderIndex      int     `json:"orderIndex"`
	IsPublished     bool    `json:"isPublished"`
	CreatedAt       string  `json:"createdAt"`
	UpdatedAt       string  `json:"updatedAt"`
}

type progressResponse struct {
	LessonID         int64  `json:"lessonId"`
	LessonTitle      string `json:"lessonTitle,omitempty"`
	OrderIndex       int    `json:"orderIndex,omitempty"`
	IsCompleted      bool   `json:"isCompleted"`
	CompletedAt      string `json:"completedAt,omitempty"`
	TimeSpentMinutes int    `json:"timeSpentMinutes"`
}

func newLessonResponse(l Lesson) lessonResponse {
	return lessonResponse{
		ID:              l.ID,
		CourseID:        l.CourseID,
		Title:           l.Title,
		Description:     l.Description,
		LessonType:      string(l.LessonType),
		Content:         l.Content,
		FileURL:         l.FileURL,
		DurationMinutes: l.DurationMinutes,
		OrderIndex:      l.OrderIndex,
		IsPublished:     l.IsPublished,
		CreatedAt:       l.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:       l.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func newProgressResponse(p Progress) progressResponse {
	out := progressResponse{
		LessonID:         p.LessonID,
		LessonTitle:      p.LessonTitle,
		OrderIndex:       p.OrderIndex,
		IsCompleted:      p.IsCompleted,
		TimeSpentMinutes: p.TimeSpentMinutes,
	}
	if p.CompletedAt != nil {
		out.CompletedAt = p.CompletedAt.UTC().Format(time.RFC3339)
	}
	return out
}

func (h *Handler) listLessons(w http.ResponseWriter, r *http.Request) {
	courseID, err := courseIDParam(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "course id must be an integer")
		return
	}
	principal := auth.PrincipalFromContext(r.Context())
	list, err := h.service.ListForCourse(r.Context(), principal, courseID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]lessonResponse, len(list))
	for i, l := range list {
		out[i] = newLessonResponse(l)
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) createLesson(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	courseID, err := courseIDParam(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "course id must be an integer")
		return
	}
	in, ok := h.decodeLesson(w, r)
	if !ok {
		return
	}
	lesson, err := h.service.Create(r.Context(), principal, courseID, in)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, newLessonResponse(*lesson))
}

func (h *Handler) updateLesson(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	courseID, lessonID, err := lessonParams(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "ids must be integers")
		return
	}
	in, ok := h.decodeLesson(w, r)
	if !ok {
		return
	}
	lesson, err := h.service.Update(r.Context(), principal, courseID, lessonID, in)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, newLessonResponse(*lesson))
}

func (h *Handler) deleteLesson(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	courseID, lessonID, err := lessonParams(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "ids must be integers")
		return
	}
	if err := h.service.Delete(r.Context(), principal, courseID, lessonID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) completeLesson(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFromContext(r.Context())
	courseID, lessonID, err := lessonParams(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "ids must be integers")
		return
	}
	progress, err := h.service.Complete(r.Context(), principal, courseID, lessonID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, newProgressResponse(*progress))
}

func (h *Handler) recordTime(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFromContext(r.Context())
	courseID, lessonID, err := lessonParams(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "ids must be integers")
		return
	}
	var req timeSpentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	progress, err := h.service.RecordTime(r.Context(), principal, courseID, lessonID, req.TimeSpentMinutes)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, newProgressResponse(*progress))
}

func (h *Handler) myProgress(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFromContext(r.Context())
	courseID, err := courseIDParam(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "course id must be an integer")
		return
	}
	list, err := h.service.MyProgress(r.Context(), principal, courseID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]progressResponse, len(list))
	for i, p := range list {
		out[i] = newProgressResponse(p)
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) decodeLesson(w http.ResponseWriter, r *http.Request) (LessonInput, bool) {
	var req lessonRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
		return LessonInput{}, false
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return LessonInput{}, false
	}
	lessonType, err := ParseLessonType(req.LessonType)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return LessonInput{}, false
	}
	return LessonInput{
		Title:           req.Title,
		Description:     req.Description,
		LessonType:      lessonType,
		Content:         req.Content,
		FileURL:         req.FileURL,
		DurationMinutes: req.DurationMinutes,
		IsPublished:     req.IsPublished,
	}, true
}

func courseIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func lessonParams(r *http.Request) (courseID, lessonID int64, err error) {
	courseID, err = courseIDParam(r)
	if err != nil {
		return 0, 0, err
	}
	lessonID, err = strconv.ParseInt(chi.URLParam(r, "lessonID"), 10, 64)
	return courseID, lessonID, err
}
