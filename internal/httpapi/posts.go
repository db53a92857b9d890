package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/vouse/postqueue/internal/domain/post"
	"github.com/vouse/postqueue/internal/identity"
	"github.com/vouse/postqueue/pkg/response"
)

// PostHandler exposes the post CRUD and scheduling surface of §4.5.5,
// one handler struct per resource the way the starting codebase's
// handlers.PostHandler did, narrowed to call the Service directly.
type PostHandler struct {
	posts *post.Service
}

func NewPostHandler(posts *post.Service) *PostHandler {
	return &PostHandler{posts: posts}
}

type createPostRequest struct {
	Content        string           `json:"content" validate:"required"`
	Title          string           `json:"title"`
	CloudImageURLs []string         `json:"cloudImageUrls" validate:"max=4"`
	Location       *locationPayload `json:"location"`
	Visibility     string           `json:"visibility"`
	ScheduledAt    *time.Time       `json:"scheduledAt"`
}

type updatePostRequest struct {
	Content        string           `json:"content" validate:"required"`
	Title          string           `json:"title"`
	CloudImageURLs []string         `json:"cloudImageUrls" validate:"max=4"`
	Location       *locationPayload `json:"location"`
	Visibility     string           `json:"visibility"`
	ScheduledAt    *time.Time       `json:"scheduledAt"`
	ClearSchedule  bool             `json:"clearSchedule"`
}

type locationPayload struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Address string  `json:"address"`
}

func (l *locationPayload) toDomain() *post.Location {
	if l == nil {
		return nil
	}
	return &post.Location{Lat: l.Lat, Lng: l.Lng, Address: l.Address}
}

type postResponse struct {
	ID             string     `json:"id"`
	PostIDLocal    string     `json:"postIdLocal"`
	PostIDX        string     `json:"postIdX,omitempty"`
	Content        string     `json:"content"`
	Title          string     `json:"title,omitempty"`
	Visibility     string     `json:"visibility"`
	CloudImageURLs []string   `json:"cloudImageUrls,omitempty"`
	Location       *post.Location `json:"location,omitempty"`
	ScheduledAt    *time.Time `json:"scheduledAt,omitempty"`
	PublishedAt    *time.Time `json:"publishedAt,omitempty"`
	Status         string     `json:"status"`
	FailureReason  string     `json:"failureReason,omitempty"`
	Attempt        int        `json:"attempt"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

func toPostResponse(p *post.Post) postResponse {
	return postResponse{
		ID:             p.ID(),
		PostIDLocal:    p.PostIDLocal(),
		PostIDX:        p.PostIDX(),
		Content:        p.Content(),
		Title:          p.Title(),
		Visibility:     string(p.Visibility()),
		CloudImageURLs: p.CloudImageURLs(),
		Location:       p.Location(),
		ScheduledAt:    p.ScheduledAt(),
		PublishedAt:    p.PublishedAt(),
		Status:         string(p.Status()),
		FailureReason:  p.FailureReason(),
		Attempt:        p.Attempt(),
		CreatedAt:      p.CreatedAt(),
		UpdatedAt:      p.UpdatedAt(),
	}
}

// Create handles POST /posts.
func (h *PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, _ := identity.Subject(r.Context())

	var req createPostRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	p, err := h.posts.Create(r.Context(), uuid.NewString(), uuid.NewString(), userID, req.Content, req.ScheduledAt)
	if err != nil {
		writePostError(w, err)
		return
	}

	if req.Title != "" || len(req.CloudImageURLs) > 0 || req.Location != nil || req.Visibility != "" {
		p, err = h.posts.Update(r.Context(), userID, p.ID(), req.Content, req.Title, req.CloudImageURLs,
			req.Location.toDomain(), post.Visibility(req.Visibility), nil, false)
		if err != nil {
			writePostError(w, err)
			return
		}
	}

	response.Created(w, toPostResponse(p))
}

// Get handles GET /posts/{id}.
func (h *PostHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, _ := identity.Subject(r.Context())
	p, err := h.posts.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writePostError(w, err)
		return
	}
	response.Success(w, toPostResponse(p))
}

// GetByLocalID handles GET /posts/local/{postIdLocal}.
func (h *PostHandler) GetByLocalID(w http.ResponseWriter, r *http.Request) {
	userID, _ := identity.Subject(r.Context())
	p, err := h.posts.GetByLocalID(r.Context(), userID, chi.URLParam(r, "postIdLocal"))
	if err != nil {
		writePostError(w, err)
		return
	}
	response.Success(w, toPostResponse(p))
}

// List handles GET /posts.
func (h *PostHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, _ := identity.Subject(r.Context())
	offset := queryInt(r, "offset", 0)
	limit := queryInt(r, "limit", 50)

	posts, err := h.posts.List(r.Context(), userID, offset, limit)
	if err != nil {
		internalError(w, "POST_INTERNAL", err)
		return
	}

	out := make([]postResponse, 0, len(posts))
	for _, p := range posts {
		out = append(out, toPostResponse(p))
	}
	response.Success(w, out)
}

// Update handles PATCH /posts/{id}.
func (h *PostHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, _ := identity.Subject(r.Context())
	id := chi.URLParam(r, "id")

	var req updatePostRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	scheduledAt := req.ScheduledAt
	scheduledAtSet := req.ScheduledAt != nil || req.ClearSchedule

	p, err := h.posts.Update(r.Context(), userID, id, req.Content, req.Title, req.CloudImageURLs,
		req.Location.toDomain(), post.Visibility(req.Visibility), scheduledAt, scheduledAtSet)
	if err != nil {
		writePostError(w, err)
		return
	}
	response.Success(w, toPostResponse(p))
}

// Delete handles DELETE /posts/{id}.
func (h *PostHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, _ := identity.Subject(r.Context())
	if err := h.posts.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		writePostError(w, err)
		return
	}
	response.NoContent(w)
}

// writePostError maps post domain errors to the status codes of §6/§7:
// 404 not-found, 409 illegal-transition/conflict, 400 validation, 500 else.
func writePostError(w http.ResponseWriter, err error) {
	code := string(post.GetErrorCode(err))
	switch {
	case post.IsNotFound(err):
		response.Error(w, http.StatusNotFound, "post not found", code, err)
	case post.IsConflict(err):
		response.Error(w, http.StatusConflict, "post state conflict", code, err)
	case post.IsValidationError(err):
		response.Error(w, http.StatusBadRequest, "validation failed", code, err)
	default:
		response.Error(w, http.StatusInternalServerError, "internal error", code, err)
	}
}
