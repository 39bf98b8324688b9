package courses

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/coursehub/coursehub/internal/auth"
	"github.com/coursehub/coursehub/internal/platform/httpx"
	"github.com/coursehub/coursehub/internal/shared"
)

// Handler manages course endpoints.
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

// MountRoutes registers course routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/public", h.listPublished)
	r.Get("/public/search", h.searchPublished)
	r.Get("/public/category/{category}", h.listByCategory)
	r.Get("/public/difficulty/{difficulty}", h.listByDifficulty)
	r.Get("/public/free", h.listFree)
	// Newest-first is the default public ordering, so latest is an alias.
	r.Get("/public/latest", h.listPublished)
	r.Get("/public/popular", h.listPopular)
	r.Get("/mine", h.listMine)
	r.Get("/{id}", h.getCourse)
	r.Post("/", h.createCourse)
	r.Put("/{id}", h.updateCourse)
	r.Delete("/{id}", h.deleteCourse)
	r.Post("/{id}/publish", h.publishCourse)
	r.Post("/{id}/unpublish", h.unpublishCourse)
}

type courseRequest struct {
	Title           string  `json:"title" validate:"required,max=200"`
	Description     string  `json:"description" validate:"required"`
	Category        string  `json:"category" validate:"required,max=100"`
	DifficultyLevel string  `json:"difficultyLevel" validate:"required,oneof=BEGINNER INTERMEDIATE ADVANCED"`
	Price           float64 `json:"price" validate:"gte=0"`
	IsPublished     bool    `json:"isPublished"`
	ThumbnailURL    *string `json:"thumbnailUrl" validate:"omitempty,url"`
}

type courseResponse struct {
	ID              int64   `json:"id"`
	Title           string  `json:"title"`
	Description     string  `json:"description"`
	InstructorID    int64   `json:"instructorId"`
	InstructorName  string  `json:"instructorName"`
	Category        string  `json:"category"`
	DifficultyLevel string  `json:"difficultyLevel"`
	Price           float64 `json:"price"`
	IsPublished     bool    `json:"isPublished"`
	ThumbnailURL    *string `json:"thumbnailUrl,omitempty"`
	CreatedAt       string  `json:"createdAt"`
	UpdatedAt       string  `json:"updatedAt"`
}

type courseListResponse struct {
	Courses    []courseResponse  `json:"courses"`
	Pagination shared.Pagination `json:"pagination"`
}

func newCourseResponse(c Course) courseResponse {
	return courseResponse{
		ID:              c.ID,
		Title:           c.Title,
		Description:     c.Description,
		InstructorID:    c.InstructorID,
		InstructorName:  c.InstructorName,
		Category:        c.Category,
		DifficultyLevel: string(c.DifficultyLevel),
		Price:           c.Price,
		IsPublished:     c.IsPublished,
		ThumbnailURL:    c.ThumbnailURL,
		CreatedAt:       c.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:       c.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func newCourseListResponse(list []Course, page shared.Pagination) courseListResponse {
	out := make([]courseResponse, len(list))
	for i, c := range list {
		out[i] = newCourseResponse(c)
	}
	return courseListResponse{Courses: out, Pagination: page}
}

func (h *Handler) listPublished(w http.ResponseWriter, r *http.Request) {
	page := pageFromQuery(r)
	list, page, err := h.service.ListPublished(r.Context(), page)
	if err != nil {
		h.logger.Error("list published courses", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, newCourseListResponse(list, page))
}

func (h *Handler) searchPublished(w http.ResponseWriter, r *http.Request) {
	term := strings.TrimSpace(r.URL.Query().Get("q"))
	if term == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "query parameter q is required")
		return
	}
	page := pageFromQuery(r)
	list, page, err := h.service.SearchPublished(r.Context(), term, page)
	if err != nil {
		h.logger.Error("search courses", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, newCourseListResponse(list, page))
}

func (h *Handler) listByCategory(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")
	page := pageFromQuery(r)
	list, page, err := h.service.ListByCategory(r.Context(), category, page)
	if err != nil {
		h.logger.Error("list courses by category", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, newCourseListResponse(list, page))
}

func (h *Handler) listByDifficulty(w http.ResponseWriter, r *http.Request) {
	level, err := ParseDifficulty(chi.URLParam(r, "difficulty"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	page := pageFromQuery(r)
	list, page, err := h.service.ListByDifficulty(r.Context(), level, page)
	if err != nil {
		h.logger.Error("list courses by difficulty", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, newCourseListResponse(list, page))
}

func (h *Handler) listFree(w http.ResponseWriter, r *http.Request) {
	page := pageFromQuery(r)
	list, page, err := h.service.ListFree(r.Context(), page)
	if err != nil {
		h.logger.Error("list free courses", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, newCourseListResponse(list, page))
}

func (h *Handler) listPopular(w http.ResponseWriter, r *http.Request) {
	page := pageFromQuery(r)
	list, page, err := h.service.ListPopular(r.Context(), page)
	if err != nil {
		h.logger.Error("list popular courses", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, newCourseListResponse(list, page))
}

func (h *Handler) listMine(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	list, err := h.service.ListMine(r.Context(), principal)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]courseResponse, len(list))
	for i, c := range list {
		out[i] = newCourseResponse(c)
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) getCourse(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "course id must be an integer")
		return
	}
	course, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, newCourseResponse(*course))
}

func (h *Handler) createCourse(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	in, ok := h.decodeCourse(w, r)
	if !ok {
		return
	}
	course, err := h.service.Create(r.Context(), principal, in)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, newCourseResponse(*course))
}

func (h *Handler) updateCourse(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	id, err := idParam(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "course id must be an integer")
		return
	}
	in, ok := h.decodeCourse(w, r)
	if !ok {
		return
	}
	course, err := h.service.Update(r.Context(), principal, id, in)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, newCourseResponse(*course))
}

func (h *Handler) deleteCourse(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	id, err := idParam(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "course id must be an integer")
		return
	}
	if err := h.service.Delete(r.Context(), principal, id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) publishCourse(w http.ResponseWriter, r *http.Request) {
	h.setPublished(w, r, true)
}

func (h *Handler) unpublishCourse(w http.ResponseWriter, r *http.Request) {
	h.setPublished(w, r, false)
}

func (h *Handler) setPublished(w http.ResponseWriter, r *http.Request, published bool) {
	principal := auth.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	id, err := idParam(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "course id must be an integer")
		return
	}
	course, err := h.service.SetPublished(r.Context(), principal, id, published)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, newCourseResponse(*course))
}

func (h *Handler) decodeCourse(w http.ResponseWriter, r *http.Request) (CourseInput, bool) {
	var req courseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
		return CourseInput{}, false
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return CourseInput{}, false
	}
	difficulty, err := ParseDifficulty(req.DifficultyLevel)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return CourseInput{}, false
	}
	return CourseInput{
		Title:           req.Title,
		Description:     req.Description,
		Category:        req.Category,
		DifficultyLevel: difficulty,
		Price:           req.Price,
		IsPublished:     req.IsPublished,
		ThumbnailURL:    req.ThumbnailURL,
	}, true
}

func idParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func pageFromQuery(r *http.Request) shared.Pagination {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("perPage"))
	return shared.NewPagination(page, perPage, 0)
}
