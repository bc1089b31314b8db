package http

import (
	"context"
	"net/http"
	"time"

	commonhttp "github.com/pixfeed/pixfeed/backend/internal/common/http"
	"github.com/pixfeed/pixfeed/backend/internal/common/jwtverify"
	"github.com/pixfeed/pixfeed/backend/internal/common/logger"
	feedservice "github.com/pixfeed/pixfeed/backend/internal/feed/service"
	"github.com/pixfeed/pixfeed/backend/internal/post/domain"
	"github.com/pixfeed/pixfeed/backend/internal/post/service"
	"github.com/pixfeed/pixfeed/backend/internal/storage"
	userdomain "github.com/pixfeed/pixfeed/backend/internal/user/domain"
)

const multipartMemory = 10 << 20

// AuthorPayload is the public author projection attached to every feed
// entry.
type AuthorPayload struct {
	ID           string                `json:"id"`
	UserName     string                `json:"userName"`
	FullName     string                `json:"fullName"`
	ProfileImage *storage.StoredObject `json:"profileImage,omitempty"`
	CreatedAt    time.Time             `json:"createdAt"`
}

type FeedEntryPayload struct {
	ID          string                 `json:"id"`
	Author      AuthorPayload          `json:"author"`
	Detail      string                 `json:"detail"`
	Images      []storage.StoredObject `json:"images"`
	Likes       []string               `json:"likes"`
	IsFollowing bool                   `json:"isFollowing"`
	CreatedAt   time.Time              `json:"createdAt"`
}

type postPayload struct {
	ID        string                 `json:"id"`
	AuthorID  string                 `json:"authorId"`
	Detail    string                 `json:"detail"`
	Images    []storage.StoredObject `json:"images"`
	Likes     []string               `json:"likes"`
	CreatedAt time.Time              `json:"createdAt"`
}

func NewFeedEntryPayload(e domain.FeedEntry) FeedEntryPayload {
	return FeedEntryPayload{
		ID: string(e.ID),
		Author: AuthorPayload{
			ID:           string(e.Author.ID),
			UserName:     e.Author.Username,
			FullName:     e.Author.FullName,
			ProfileImage: e.Author.ProfileImage,
			CreatedAt:    e.Author.CreatedAt,
		},
		Detail:      e.Detail,
		Images:      e.Images,
		Likes:       likeIDs(e.Likes),
		IsFollowing: e.IsFollowing,
		CreatedAt:   e.CreatedAt,
	}
}

func NewFeedEntryPayloads(entries []domain.FeedEntry) []FeedEntryPayload {
	payloads := make([]FeedEntryPayload, 0, len(entries))
	for _, e := range entries {
		payloads = append(payloads, NewFeedEntryPayload(e))
	}
	return payloads
}

func newPostPayload(p domain.Post) postPayload {
	return postPayload{
		ID:        string(p.ID),
		AuthorID:  string(p.AuthorID),
		Detail:    p.Detail,
		Images:    p.Images,
		Likes:     likeIDs(p.Likes),
		CreatedAt: p.CreatedAt,
	}
}

func likeIDs(ids []userdomain.ID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, string(id))
	}
	return out
}

type Handler struct {
	posts         service.Service
	feed          feedservice.Service
	timeout       time.Duration
	uploadTimeout time.Duration
	log           *logger.Logger
}

func NewHandler(posts service.Service, feed feedservice.Service, timeout, uploadTimeout time.Duration, log *logger.Logger) http.Handler {
	h := &Handler{
		posts:         posts,
		feed:          feed,
		timeout:       timeout,
		uploadTimeout: uploadTimeout,
		log:           log,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/posts", h.collection)
	mux.HandleFunc("/api/posts/", h.item)
	return mux
}

func (h *Handler) collection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.create(w, r)
	case http.MethodGet:
		h.feedHandler(w, r)
	default:
		commonhttp.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *Handler) item(w http.ResponseWriter, r *http.Request) {
	segments := commonhttp.PathSegments(r.URL.Path, "/api/posts")
	if len(segments) == 0 || !commonhttp.ValidateUUID(segments[0]) {
		commonhttp.WriteErrorEnvelope(w, http.StatusBadRequest, commonhttp.CodeInvalidPath, "invalid post id", nil, "")
		return
	}
	postID := domain.ID(segments[0])

	switch {
	case len(segments) == 1 && r.Method == http.MethodGet:
		h.get(w, r, postID)
	case len(segments) == 1 && r.Method == http.MethodDelete:
		h.delete(w, r, postID)
	case len(segments) == 2 && segments[1] == "like" && r.Method == http.MethodPut:
		h.like(w, r, postID, h.posts.Like)
	case len(segments) == 2 && segments[1] == "unlike" && r.Method == http.MethodPut:
		h.like(w, r, postID, h.posts.Unlike)
	default:
		commonhttp.WriteErrorEnvelope(w, http.StatusNotFound, commonhttp.CodeInvalidPath, "not found", nil, "")
	}
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	viewer, ok := viewerFromContext(w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		h.log.Warnf("create post failed: invalid multipart: %v", err)
		commonhttp.WriteErrorEnvelope(w, http.StatusBadRequest, commonhttp.CodeInvalidMultipart, "invalid multipart form", nil, "")
		return
	}

	files := r.MultipartForm.File["images"]
	images := make([]service.ImageUpload, 0, len(files))
	for _, fh := range files {
		data, err := commonhttp.ReadImageFile(fh)
		if err != nil {
			commonhttp.HandleError(w, r, err, h.log)
			return
		}
		images = append(images, service.ImageUpload{Name: fh.Filename, Data: data})
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.uploadTimeout)
	defer cancel()

	post, err := h.posts.CreatePost(ctx, viewer, r.FormValue("detail"), images)
	if err != nil {
		commonhttp.HandleError(w, r, err, h.log)
		return
	}

	commonhttp.WriteJSON(w, http.StatusCreated, newPostPayload(post))
}

func (h *Handler) feedHandler(w http.ResponseWriter, r *http.Request) {
	viewer, ok := viewerFromContext(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	entries, err := h.feed.FeedForViewer(ctx, viewer)
	if err != nil {
		commonhttp.HandleError(w, r, err, h.log)
		return
	}

	commonhttp.WriteJSON(w, http.StatusOK, NewFeedEntryPayloads(entries))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request, postID domain.ID) {
	viewer, ok := viewerFromContext(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	entry, err := h.feed.FeedForPost(ctx, postID, viewer)
	if err != nil {
		commonhttp.HandleError(w, r, err, h.log)
		return
	}

	commonhttp.WriteJSON(w, http.StatusOK, NewFeedEntryPayload(entry))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request, postID domain.ID) {
	viewer, ok := viewerFromContext(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	post, err := h.posts.DeletePost(ctx, viewer, postID)
	if err != nil {
		commonhttp.HandleError(w, r, err, h.log)
		return
	}

	commonhttp.WriteJSON(w, http.StatusOK, newPostPayload(post))
}

type likeFunc func(ctx context.Context, viewerID userdomain.ID, postID domain.ID) (domain.FeedEntry, error)

func (h *Handler) like(w http.ResponseWriter, r *http.Request, postID domain.ID, mutate likeFunc) {
	viewer, ok := viewerFromContext(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	entry, err := mutate(ctx, viewer, postID)
	if err != nil {
		commonhttp.HandleError(w, r, err, h.log)
		return
	}

	commonhttp.WriteJSON(w, http.StatusOK, NewFeedEntryPayload(entry))
}

func viewerFromContext(w http.ResponseWriter, r *http.Request) (userdomain.ID, bool) {
	claims, ok := jwtverify.FromContext(r.Context())
	if !ok {
		commonhttp.WriteErrorEnvelope(w, http.StatusUnauthorized, commonhttp.CodeMissingAuthorization, "missing authorization", nil, "")
		return "", false
	}
	return userdomain.ID(claims.UserID), true
}
