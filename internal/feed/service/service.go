package service

import (
	"context"
	"errors"
	"fmt"

	commonerrors "github.com/pixfeed/pixfeed/backend/internal/common/errors"
	"github.com/pixfeed/pixfeed/backend/internal/common/logger"
	"github.com/pixfeed/pixfeed/backend/internal/observability/metrics"
	postdomain "github.com/pixfeed/pixfeed/backend/internal/post/domain"
	postrepo "github.com/pixfeed/pixfeed/backend/internal/post/repository"
	userdomain "github.com/pixfeed/pixfeed/backend/internal/user/domain"
	userrepo "github.com/pixfeed/pixfeed/backend/internal/user/repository"
)

type Service interface {
	FeedForViewer(ctx context.Context, viewerID userdomain.ID) ([]postdomain.FeedEntry, error)
	FeedForPost(ctx context.Context, postID postdomain.ID, viewerID userdomain.ID) (postdomain.FeedEntry, error)
	PostsByAuthor(ctx context.Context, authorID, viewerID userdomain.ID) ([]postdomain.FeedEntry, error)
}

// FeedService owns the read-path join. All code that needs an
// author-annotated post goes through here so the projection logic exists
// exactly once.
type FeedService struct {
	users userrepo.Repository
	posts postrepo.Repository
	log   *logger.Logger
}

func NewFeedService(users userrepo.Repository, posts postrepo.Repository, log *logger.Logger) *FeedService {
	return &FeedService{
		users: users,
		posts: posts,
		log:   log,
	}
}

// FeedForViewer returns posts from everyone the viewer follows plus the
// viewer's own, newest first. Each entry carries isFollowing computed
// against the author's follower set at query time; the viewer never appears
// in their own follower set, so their own posts come back isFollowing=false.
func (s *FeedService) FeedForViewer(ctx context.Context, viewerID userdomain.ID) ([]postdomain.FeedEntry, error) {
	viewer, err := s.users.FindByID(ctx, viewerID)
	if err != nil {
		if errors.Is(err, commonerrors.ErrUserNotFound) {
			return nil, commonerrors.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load viewer: %w", err)
	}

	authors := make([]userdomain.ID, 0, len(viewer.Following)+1)
	authors = append(authors, viewer.Following...)
	authors = append(authors, viewerID)

	entries, err := s.posts.FeedByAuthors(ctx, authors, viewerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load feed: %w", err)
	}

	metrics.FeedEntriesReturned.Observe(float64(len(entries)))
	s.log.WithFields(ctx, logger.Fields{
		"viewer_id": viewerID,
		"authors":   len(authors),
		"entries":   len(entries),
		"action":    "feed_materialized",
	}).Debug("feed query served")
	return entries, nil
}

func (s *FeedService) FeedForPost(ctx context.Context, postID postdomain.ID, viewerID userdomain.ID) (postdomain.FeedEntry, error) {
	entry, err := s.posts.FeedByID(ctx, postID, viewerID)
	if err != nil {
		if errors.Is(err, commonerrors.ErrPostNotFound) {
			return postdomain.FeedEntry{}, commonerrors.ErrPostNotFound
		}
		return postdomain.FeedEntry{}, fmt.Errorf("failed to load post: %w", err)
	}
	return entry, nil
}

// PostsByAuthor serves profile pages: one author's posts with the same
// projection the feed uses, newest first.
func (s *FeedService) PostsByAuthor(ctx context.Context, authorID, viewerID userdomain.ID) ([]postdomain.FeedEntry, error) {
	entries, err := s.posts.FeedByAuthors(ctx, []userdomain.ID{authorID}, viewerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load author posts: %w", err)
	}
	return entries, nil
}
