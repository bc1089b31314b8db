package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	commonhttp "github.com/pixfeed/pixfeed/backend/internal/common/http"
	"github.com/pixfeed/pixfeed/backend/internal/common/jwtverify"
	"github.com/pixfeed/pixfeed/backend/internal/common/logger"
	feedservice "github.com/pixfeed/pixfeed/backend/internal/feed/service"
	graphservice "github.com/pixfeed/pixfeed/backend/internal/graph/service"
	posthttp "github.com/pixfeed/pixfeed/backend/internal/post/http"
	"github.com/pixfeed/pixfeed/backend/internal/storage"
	"github.com/pixfeed/pixfeed/backend/internal/user/domain"
	"github.com/pixfeed/pixfeed/backend/internal/user/service"
)

type updateProfileRequest struct {
	FullName string `json:"fullName" validate:"required,min=1,max=100"`
}

type profileResponse struct {
	ID           string                `json:"id"`
	UserName     string                `json:"userName"`
	FullName     string                `json:"fullName"`
	Email        string                `json:"email,omitempty"`
	ProfileImage *storage.StoredObject `json:"profileImage,omitempty"`
	Followers    []string              `json:"followers"`
	Following    []string              `json:"following"`
	IsFollowing  bool                  `json:"isFollowing"`
	CreatedAt    time.Time             `json:"createdAt"`
	UpdatedAt    time.Time             `json:"updatedAt"`
}

type summaryResponse struct {
	ID           string                `json:"id"`
	UserName     string                `json:"userName"`
	FullName     string                `json:"fullName"`
	ProfileImage *storage.StoredObject `json:"profileImage,omitempty"`
	CreatedAt    time.Time             `json:"createdAt"`
}

func newProfileResponse(u domain.User, viewer domain.ID, includeEmail bool) profileResponse {
	resp := profileResponse{
		ID:           string(u.ID),
		UserName:     u.Username,
		FullName:     u.FullName,
		ProfileImage: u.ProfileImage,
		Followers:    idStrings(u.Followers),
		Following:    idStrings(u.Following),
		IsFollowing:  u.IsFollowedBy(viewer),
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
	if includeEmail {
		resp.Email = u.Email
	}
	return resp
}

func newSummaryResponses(summaries []domain.Summary) []summaryResponse {
	out := make([]summaryResponse, 0, len(summaries))
	for _, s := range summaries {
		out = append(out, summaryResponse{
			ID:           string(s.ID),
			UserName:     s.Username,
			FullName:     s.FullName,
			ProfileImage: s.ProfileImage,
			CreatedAt:    s.CreatedAt,
		})
	}
	return out
}

func idStrings(ids []domain.ID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, string(id))
	}
	return out
}

type Handler struct {
	users   service.Service
	graph   graphservice.Service
	feed    feedservice.Service
	timeout time.Duration
	log     *logger.Logger
}

func NewHandler(
	users service.Service,
	graph graphservice.Service,
	feed feedservice.Service,
	timeout time.Duration,
	log *logger.Logger,
) http.Handler {
	h := &Handler{
		users:   users,
		graph:   graph,
		feed:    feed,
		timeout: timeout,
		log:     log,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/users", h.search)
	mux.HandleFunc("/api/users/", h.route)
	return mux
}

func (h *Handler) route(w http.ResponseWriter, r *http.Request) {
	segments := commonhttp.PathSegments(r.URL.Path, "/api/users")
	if len(segments) == 0 {
		h.search(w, r)
		return
	}

	viewer, ok := viewerFromContext(w, r)
	if !ok {
		return
	}

	if segments[0] == "me" {
		h.routeMe(w, r, viewer, segments[1:])
		return
	}

	switch {
	case len(segments) == 2 && segments[1] == "posts":
		h.userPosts(w, r, viewer, segments[0])
	case len(segments) == 1 && r.Method == http.MethodGet:
		h.profileByID(w, r, viewer, segments[0])
	case len(segments) == 2 && segments[1] == "follow" && r.Method == http.MethodPost:
		h.mutateEdge(w, r, viewer, segments[0], h.graph.Follow)
	case len(segments) == 2 && segments[1] == "unfollow" && r.Method == http.MethodPost:
		h.mutateEdge(w, r, viewer, segments[0], h.graph.Unfollow)
	case len(segments) == 2 && segments[1] == "social-stats" && r.Method == http.MethodGet:
		h.socialStats(w, r, viewer, segments[0])
	default:
		commonhttp.WriteErrorEnvelope(w, http.StatusNotFound, commonhttp.CodeInvalidPath, "not found", nil, "")
	}
}

func (h *Handler) routeMe(w http.ResponseWriter, r *http.Request, viewer domain.ID, rest []string) {
	switch {
	case len(rest) == 0 && r.Method == http.MethodGet:
		h.me(w, r, viewer)
	case len(rest) == 0 && r.Method == http.MethodPut:
		h.updateMe(w, r, viewer)
	case len(rest) == 1 && rest[0] == "image" && r.Method == http.MethodPost:
		h.uploadImage(w, r, viewer)
	case len(rest) == 1 && rest[0] == "image" && r.Method == http.MethodDelete:
		h.deleteImage(w, r, viewer)
	default:
		commonhttp.WriteErrorEnvelope(w, http.StatusNotFound, commonhttp.CodeInvalidPath, "not found", nil, "")
	}
}

func (h *Handler) search(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		commonhttp.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	viewer, ok := viewerFromContext(w, r)
	if !ok {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			commonhttp.WriteErrorEnvelope(w, http.StatusBadRequest, commonhttp.CodeBadRequest, "invalid limit", nil, "")
			return
		}
		limit = parsed
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	summaries, err := h.users.Search(ctx, viewer, r.URL.Query().Get("search"), limit)
	if err != nil {
		commonhttp.HandleError(w, r, err, h.log)
		return
	}

	commonhttp.WriteJSON(w, http.StatusOK, newSummaryResponses(summaries))
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request, viewer domain.ID) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	user, err := h.users.Profile(ctx, viewer)
	if err != nil {
		commonhttp.HandleError(w, r, err, h.log)
		return
	}

	commonhttp.WriteJSON(w, http.StatusOK, newProfileResponse(user, viewer, true))
}

func (h *Handler) updateMe(w http.ResponseWriter, r *http.Request, viewer domain.ID) {
	var req updateProfileRequest
	if err := commonhttp.DecodeJSON(r, &req); err != nil {
		commonhttp.WriteErrorEnvelope(w, http.StatusBadRequest, commonhttp.CodeInvalidJSON, "invalid json", nil, "")
		return
	}
	if details := commonhttp.ValidateStruct(req); details != nil {
		commonhttp.WriteValidationError(w, details)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	user, err := h.users.UpdateFullName(ctx, viewer, req.FullName)
	if err != nil {
		commonhttp.HandleError(w, r, err, h.log)
		return
	}

	commonhttp.WriteJSON(w, http.StatusOK, newProfileResponse(user, viewer, true))
}

func (h *Handler) uploadImage(w http.ResponseWriter, r *http.Request, viewer domain.ID) {
	file, fh, err := r.FormFile("profileImage")
	if err != nil {
		h.log.Warnf("profile image upload failed: invalid multipart: %v", err)
		commonhttp.WriteErrorEnvelope(w, http.StatusBadRequest, commonhttp.CodeInvalidMultipart, "invalid multipart form", nil, "")
		return
	}
	file.Close()

	data, err := commonhttp.ReadImageFile(fh)
	if err != nil {
		commonhttp.HandleError(w, r, err, h.log)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	user, err := h.users.UploadProfileImage(ctx, viewer, fh.Filename, data)
	if err != nil {
		commonhttp.HandleError(w, r, err, h.log)
		return
	}

	commonhttp.WriteJSON(w, http.StatusOK, newProfileResponse(user, viewer, true))
}

func (h *Handler) deleteImage(w http.ResponseWriter, r *http.Request, viewer domain.ID) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	user, err := h.users.DeleteProfileImage(ctx, viewer)
	if err != nil {
		commonhttp.HandleError(w, r, err, h.log)
		return
	}

	commonhttp.WriteJSON(w, http.StatusOK, newProfileResponse(user, viewer, true))
}

func (h *Handler) profileByID(w http.ResponseWriter, r *http.Request, viewer domain.ID, rawID string) {
	if !commonhttp.ValidateUUID(rawID) {
		commonhttp.WriteErrorEnvelope(w, http.StatusBadRequest, commonhttp.CodeInvalidPath, "invalid user id", nil, "")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	user, err := h.users.Profile(ctx, domain.ID(rawID))
	if err != nil {
		commonhttp.HandleError(w, r, err, h.log)
		return
	}

	commonhttp.WriteJSON(w, http.StatusOK, newProfileResponse(user, viewer, false))
}

// userPosts resolves the path segment as a username, not an id: profile
// pages link posts by handle.
func (h *Handler) userPosts(w http.ResponseWriter, r *http.Request, viewer domain.ID, username string) {
	if r.Method != http.MethodGet {
		commonhttp.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	author, err := h.users.ProfileByUsername(ctx, username)
	if err != nil {
		commonhttp.HandleError(w, r, err, h.log)
		return
	}

	entries, err := h.feed.PostsByAuthor(ctx, author.ID, viewer)
	if err != nil {
		commonhttp.HandleError(w, r, err, h.log)
		return
	}

	commonhttp.WriteJSON(w, http.StatusOK, posthttp.NewFeedEntryPayloads(entries))
}

type edgeFunc func(ctx context.Context, viewerID, targetID domain.ID) error

func (h *Handler) mutateEdge(w http.ResponseWriter, r *http.Request, viewer domain.ID, rawID string, mutate edgeFunc) {
	if !commonhttp.ValidateUUID(rawID) {
		commonhttp.WriteErrorEnvelope(w, http.StatusBadRequest, commonhttp.CodeInvalidPath, "invalid user id", nil, "")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := mutate(ctx, viewer, domain.ID(rawID)); err != nil {
		commonhttp.HandleError(w, r, err, h.log)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) socialStats(w http.ResponseWriter, r *http.Request, viewer domain.ID, rawID string) {
	if !commonhttp.ValidateUUID(rawID) {
		commonhttp.WriteErrorEnvelope(w, http.StatusBadRequest, commonhttp.CodeInvalidPath, "invalid user id", nil, "")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	statsType := service.SocialStatsType(r.URL.Query().Get("type"))
	summaries, err := h.users.SocialStats(ctx, domain.ID(rawID), statsType)
	if err != nil {
		commonhttp.HandleError(w, r, err, h.log)
		return
	}

	commonhttp.WriteJSON(w, http.StatusOK, newSummaryResponses(summaries))
}

func viewerFromContext(w http.ResponseWriter, r *http.Request) (domain.ID, bool) {
	claims, ok := jwtverify.FromContext(r.Context())
	if !ok {
		commonhttp.WriteErrorEnvelope(w, http.StatusUnauthorized, commonhttp.CodeMissingAuthorization, "missing authorization", nil, "")
		return "", false
	}
	return domain.ID(claims.UserID), true
}
