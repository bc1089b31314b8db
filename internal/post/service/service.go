package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/pixfeed/pixfeed/backend/internal/common/clock"
	"github.com/pixfeed/pixfeed/backend/internal/common/constants"
	"github.com/pixfeed/pixfeed/backend/internal/common/crypto"
	commonerrors "github.com/pixfeed/pixfeed/backend/internal/common/errors"
	"github.com/pixfeed/pixfeed/backend/internal/common/logger"
	feedservice "github.com/pixfeed/pixfeed/backend/internal/feed/service"
	"github.com/pixfeed/pixfeed/backend/internal/observability/metrics"
	"github.com/pixfeed/pixfeed/backend/internal/post/domain"
	postrepo "github.com/pixfeed/pixfeed/backend/internal/post/repository"
	"github.com/pixfeed/pixfeed/backend/internal/storage"
	userdomain "github.com/pixfeed/pixfeed/backend/internal/user/domain"
)

// ImageUpload is a decoded multipart file: the client-supplied name and the
// raw bytes.
type ImageUpload struct {
	Name string
	Data []byte
}

type Service interface {
	CreatePost(ctx context.Context, authorID userdomain.ID, detail string, images []ImageUpload) (domain.Post, error)
	DeletePost(ctx context.Context, ownerID userdomain.ID, postID domain.ID) (domain.Post, error)
	Like(ctx context.Context, viewerID userdomain.ID, postID domain.ID) (domain.FeedEntry, error)
	Unlike(ctx context.Context, viewerID userdomain.ID, postID domain.ID) (domain.FeedEntry, error)
}

type PostService struct {
	repo  postrepo.Repository
	feed  feedservice.Service
	store storage.ObjectStorage
	idGen crypto.IDGenerator
	clock clock.Clock
	log   *logger.Logger
}

func NewPostService(
	repo postrepo.Repository,
	feed feedservice.Service,
	store storage.ObjectStorage,
	idGen crypto.IDGenerator,
	clk clock.Clock,
	log *logger.Logger,
) *PostService {
	return &PostService{
		repo:  repo,
		feed:  feed,
		store: store,
		idGen: idGen,
		clock: clk,
		log:   log,
	}
}

// CreatePost uploads every image concurrently, waits for the whole batch,
// and persists the post only when all uploads landed. On any upload failure
// the create fails as a unit and the uploads that did complete are deleted
// again so no orphaned objects remain in storage.
func (s *PostService) CreatePost(ctx context.Context, authorID userdomain.ID, detail string, images []ImageUpload) (domain.Post, error) {
	if len(images) == 0 {
		return domain.Post{}, commonerrors.ErrNoImages
	}
	if len(images) > constants.MaxPostImages {
		return domain.Post{}, commonerrors.ErrTooManyImages
	}

	uploaded, err := s.uploadAll(ctx, images)
	if err != nil {
		return domain.Post{}, err
	}

	id, err := s.idGen.NewID()
	if err != nil {
		s.cleanupUploads(uploaded)
		return domain.Post{}, fmt.Errorf("failed to generate post id: %w", err)
	}

	post := domain.Post{
		ID:        domain.ID(id),
		AuthorID:  authorID,
		Detail:    detail,
		Images:    uploaded,
		Likes:     []userdomain.ID{},
		CreatedAt: s.clock.Now().UTC(),
	}

	if err := s.repo.Create(ctx, post); err != nil {
		s.cleanupUploads(uploaded)
		return domain.Post{}, commonerrors.ErrDatabaseError.WithCause(err)
	}

	s.log.WithFields(ctx, logger.Fields{
		"post_id":   post.ID,
		"author_id": authorID,
		"images":    len(uploaded),
		"action":    "post_created",
	}).Info("post created")
	return post, nil
}

// DeletePost removes the post when ownerID owns it; a non-owner gets the
// same not-found as a missing post. Stored images are deleted afterwards in
// a detached goroutine: cleanup failures are logged, never surfaced, and the
// response does not wait for them.
func (s *PostService) DeletePost(ctx context.Context, ownerID userdomain.ID, postID domain.ID) (domain.Post, error) {
	post, err := s.repo.DeleteByIDAndAuthor(ctx, postID, ownerID)
	if err != nil {
		if errors.Is(err, commonerrors.ErrPostNotFound) {
			return domain.Post{}, commonerrors.ErrPostNotFound
		}
		return domain.Post{}, commonerrors.ErrDatabaseError.WithCause(err)
	}

	go s.deleteImages(post)

	s.log.WithFields(ctx, logger.Fields{
		"post_id":  postID,
		"owner_id": ownerID,
		"action":   "post_deleted",
	}).Info("post deleted")
	return post, nil
}

// Like adds the viewer to the post's like set (idempotent) and returns the
// post re-joined through the feed aggregator so the caller sees the full
// author/isFollowing context.
func (s *PostService) Like(ctx context.Context, viewerID userdomain.ID, postID domain.ID) (domain.FeedEntry, error) {
	if err := s.repo.AddLike(ctx, postID, viewerID); err != nil {
		if errors.Is(err, commonerrors.ErrPostNotFound) {
			return domain.FeedEntry{}, commonerrors.ErrPostNotFound
		}
		return domain.FeedEntry{}, commonerrors.ErrDatabaseError.WithCause(err)
	}
	return s.feed.FeedForPost(ctx, postID, viewerID)
}

// Unlike removes the viewer from the like set; removing a like that was
// never there is a no-op with the same return contract.
func (s *PostService) Unlike(ctx context.Context, viewerID userdomain.ID, postID domain.ID) (domain.FeedEntry, error) {
	if err := s.repo.RemoveLike(ctx, postID, viewerID); err != nil {
		if errors.Is(err, commonerrors.ErrPostNotFound) {
			return domain.FeedEntry{}, commonerrors.ErrPostNotFound
		}
		return domain.FeedEntry{}, commonerrors.ErrDatabaseError.WithCause(err)
	}
	return s.feed.FeedForPost(ctx, postID, viewerID)
}

// uploadAll fans the batch out concurrently and waits for every upload to
// finish. In-flight siblings of a failed upload are not cancelled; their
// results are only used for cleanup.
func (s *PostService) uploadAll(ctx context.Context, images []ImageUpload) ([]storage.StoredObject, error) {
	type result struct {
		obj storage.StoredObject
		err error
	}

	results := make([]result, len(images))
	var wg sync.WaitGroup

	for i, img := range images {
		wg.Add(1)
		go func(i int, img ImageUpload) {
			defer wg.Done()
			obj, err := s.store.Put(ctx, img.Data, img.Name)
			results[i] = result{obj: obj, err: err}
		}(i, img)
	}
	wg.Wait()

	var firstErr error
	uploaded := make([]storage.StoredObject, 0, len(images))

	for _, res := range results {
		if res.err != nil {
			if firstErr == nil {
				firstErr = res.err
			}
			continue
		}
		uploaded = append(uploaded, res.obj)
	}

	if firstErr != nil {
		s.cleanupUploads(uploaded)
		if _, ok := commonerrors.AsDomainError(firstErr); !ok {
			firstErr = commonerrors.ErrStorageError.WithCause(firstErr)
		}
		return nil, firstErr
	}
	return uploaded, nil
}

// cleanupUploads deletes objects that were stored for a create that did not
// go through. Best effort: failures are logged and counted, nothing more.
func (s *PostService) cleanupUploads(objects []storage.StoredObject) {
	if len(objects) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), constants.ImageCleanupTimeout)
	defer cancel()

	for _, obj := range objects {
		if err := s.store.Delete(ctx, obj.Key); err != nil {
			s.log.WithFields(ctx, logger.Fields{
				"key":    obj.Key,
				"action": "orphan_cleanup_failed",
			}).Warnf("failed to clean up orphaned upload: %v", err)
			continue
		}
		metrics.StorageOrphanCleanups.Inc()
	}
}

// deleteImages runs detached from the request that triggered it.
func (s *PostService) deleteImages(post domain.Post) {
	ctx, cancel := context.WithTimeout(context.Background(), constants.ImageCleanupTimeout)
	defer cancel()

	for _, img := range post.Images {
		if err := s.store.Delete(ctx, img.Key); err != nil {
			s.log.WithFields(ctx, logger.Fields{
				"post_id": post.ID,
				"key":     img.Key,
				"action":  "post_image_delete_failed",
			}).Warnf("failed to delete post image: %v", err)
		}
	}
}
