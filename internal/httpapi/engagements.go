package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/vouse/postqueue/internal/domain/engagement"
	"github.com/vouse/postqueue/internal/identity"
	"github.com/vouse/postqueue/pkg/response"
)

// EngagementHandler exposes the Engagement Collector's query and
// on-demand refresh surface of spec.md §4.6.
type EngagementHandler struct {
	engagements *engagement.Service
	logger      *logrus.Entry
}

func NewEngagementHandler(engagements *engagement.Service, logger *logrus.Entry) *EngagementHandler {
	return &EngagementHandler{engagements: engagements, logger: logger}
}

type dataPointResponse struct {
	Timestamp   time.Time `json:"timestamp"`
	Likes       int       `json:"likes"`
	Retweets    int       `json:"retweets"`
	Quotes      int       `json:"quotes"`
	Replies     int       `json:"replies"`
	Impressions int       `json:"impressions"`
}

type engagementResponse struct {
	PostIDX     string              `json:"postIdX"`
	PostIDLocal string              `json:"postIdLocal"`
	UserID      string              `json:"userId"`
	Current     dataPointResponse   `json:"current"`
	History     []dataPointResponse `json:"history"`
	CreatedAt   time.Time           `json:"createdAt"`
	UpdatedAt   time.Time           `json:"updatedAt"`
}

func toDataPointResponse(d engagement.DataPoint) dataPointResponse {
	return dataPointResponse{
		Timestamp:   d.Timestamp,
		Likes:       d.Snapshot.Likes,
		Retweets:    d.Snapshot.Retweets,
		Quotes:      d.Snapshot.Quotes,
		Replies:     d.Snapshot.Replies,
		Impressions: d.Snapshot.Impressions,
	}
}

func toEngagementResponse(e *engagement.Engagement) engagementResponse {
	history := make([]dataPointResponse, 0, len(e.History()))
	for _, d := range e.History() {
		history = append(history, toDataPointResponse(d))
	}
	return engagementResponse{
		PostIDX:     e.PostIDX(),
		PostIDLocal: e.PostIDLocal(),
		UserID:      e.UserID(),
		Current:     toDataPointResponse(engagement.DataPoint{Timestamp: e.UpdatedAt(), Snapshot: e.Current()}),
		History:     history,
		CreatedAt:   e.CreatedAt(),
		UpdatedAt:   e.UpdatedAt(),
	}
}

func writeEngagementError(w http.ResponseWriter, err error) {
	code := string(engagement.GetErrorCode(err))
	switch {
	case engagement.IsNotFound(err):
		response.Error(w, http.StatusNotFound, "engagement not found", code, err)
	case engagement.IsConflict(err):
		response.Error(w, http.StatusConflict, "post not yet published", code, err)
	default:
		if rl, ok := engagement.IsRateLimited(err); ok {
			response.ErrorWithRetryAfter(w, "twitter rate limit reached", code, err, rl.ResetAt)
			return
		}
		response.Error(w, http.StatusInternalServerError, "internal error", code, err)
	}
}

// List handles GET /engagements.
func (h *EngagementHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, _ := identity.Subject(r.Context())
	list, err := h.engagements.List(r.Context(), userID)
	if err != nil {
		internalError(w, "ENGAGEMENT_INTERNAL", err)
		return
	}
	out := make([]engagementResponse, 0, len(list))
	for _, e := range list {
		out = append(out, toEngagementResponse(e))
	}
	response.Success(w, out)
}

// Get handles GET /engagements/{postIdX} and GET /engagements/local/{postIdLocal}.
// postID is resolved to whichever identifier key the post was published
// or created under, per engagement.Service.Get's two-step lookup.
func (h *EngagementHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, _ := identity.Subject(r.Context())
	postID := resolvePostID(r)

	e, err := h.engagements.Get(r.Context(), userID, postID)
	if err != nil {
		writeEngagementError(w, err)
		return
	}
	response.Success(w, toEngagementResponse(e))
}

// Refresh handles POST /engagements/refresh/{postIdX} and
// POST /engagements/refresh/local/{postIdLocal}.
func (h *EngagementHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	userID, _ := identity.Subject(r.Context())
	postID := resolvePostID(r)

	e, err := h.engagements.Refresh(r.Context(), userID, postID)
	if err != nil {
		writeEngagementError(w, err)
		return
	}
	response.Success(w, toEngagementResponse(e))
}

type batchRefreshRequest struct {
	PostIDs []string `json:"postIds" validate:"required,min=1"`
}

type batchRefreshResult struct {
	PostID string `json:"postId"`
	Error  string `json:"error,omitempty"`
}

// RefreshBatch handles POST /engagements/refresh/batch: best-effort,
// per-post failures are reported rather than failing the whole batch.
func (h *EngagementHandler) RefreshBatch(w http.ResponseWriter, r *http.Request) {
	userID, _ := identity.Subject(r.Context())

	var req batchRefreshRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	results := make([]batchRefreshResult, 0, len(req.PostIDs))
	for _, postID := range req.PostIDs {
		if _, err := h.engagements.Refresh(r.Context(), userID, postID); err != nil {
			results = append(results, batchRefreshResult{PostID: postID, Error: err.Error()})
			continue
		}
		results = append(results, batchRefreshResult{PostID: postID})
	}
	response.Success(w, results)
}

// RefreshAll handles POST /engagements/refreshall: refreshes every
// engagement row the caller owns, one Refresh call per row. Best-effort:
// a failing row is counted and the rest still run; the response reports
// how many rows were refreshed and how many failed.
func (h *EngagementHandler) RefreshAll(w http.ResponseWriter, r *http.Request) {
	userID, _ := identity.Subject(r.Context())
	list, err := h.engagements.List(r.Context(), userID)
	if err != nil {
		internalError(w, "ENGAGEMENT_INTERNAL", err)
		return
	}
	refreshed, errs := 0, []error(nil)
	for _, e := range list {
		if _, err := h.engagements.Refresh(r.Context(), userID, e.PostIDX()); err != nil {
			errs = append(errs, err)
		} else {
			refreshed++
		}
	}
	if len(errs) > 0 {
		h.logger.WithField("failures", len(errs)).Warn("engagements: refreshall completed with partial failures")
	}
	response.Success(w, map[string]interface{}{"refreshed": refreshed, "failures": len(errs)})
}

func resolvePostID(r *http.Request) string {
	if local := chi.URLParam(r, "postIdLocal"); local != "" {
		return local
	}
	return chi.URLParam(r, "postIdX")
}
