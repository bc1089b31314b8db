package service_test

import (
	"context"
	"errors"
	"testing"

	commonerrors "github.com/pixfeed/pixfeed/backend/internal/common/errors"
	"github.com/pixfeed/pixfeed/backend/internal/common/logger"
	"github.com/pixfeed/pixfeed/backend/internal/feed/service"
	postdomain "github.com/pixfeed/pixfeed/backend/internal/post/domain"
	postrepo "github.com/pixfeed/pixfeed/backend/internal/post/repository"
	"github.com/pixfeed/pixfeed/backend/internal/user/domain"
	userrepo "github.com/pixfeed/pixfeed/backend/internal/user/repository"
)

type mockUserRepo struct {
	userrepo.Repository
	findByIDFunc func(ctx context.Context, id domain.ID) (domain.User, error)
}

func (m *mockUserRepo) FindByID(ctx context.Context, id domain.ID) (domain.User, error) {
	return m.findByIDFunc(ctx, id)
}

type mockPostRepo struct {
	postrepo.Repository
	feedByAuthorsFunc func(ctx context.Context, authorIDs []domain.ID, viewerID domain.ID) ([]postdomain.FeedEntry, error)
	feedByIDFunc      func(ctx context.Context, id postdomain.ID, viewerID domain.ID) (postdomain.FeedEntry, error)
}

func (m *mockPostRepo) FeedByAuthors(ctx context.Context, authorIDs []domain.ID, viewerID domain.ID) ([]postdomain.FeedEntry, error) {
	return m.feedByAuthorsFunc(ctx, authorIDs, viewerID)
}

func (m *mockPostRepo) FeedByID(ctx context.Context, id postdomain.ID, viewerID domain.ID) (postdomain.FeedEntry, error) {
	return m.feedByIDFunc(ctx, id, viewerID)
}

func setupFeedService(t *testing.T) (*service.FeedService, *mockUserRepo, *mockPostRepo) {
	t.Helper()
	log, err := logger.New("", "test", "ERROR")
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	users := &mockUserRepo{}
	posts := &mockPostRepo{}
	return service.NewFeedService(users, posts, log), users, posts
}

func TestFeedService_FeedForViewer_IncludesViewerPosts(t *testing.T) {
	svc, users, posts := setupFeedService(t)

	viewer := domain.ID("viewer-1")
	users.findByIDFunc = func(ctx context.Context, id domain.ID) (domain.User, error) {
		return domain.User{
			ID:        viewer,
			Following: []domain.ID{"a", "b"},
		}, nil
	}

	var gotAuthors []domain.ID
	posts.feedByAuthorsFunc = func(ctx context.Context, authorIDs []domain.ID, viewerID domain.ID) ([]postdomain.FeedEntry, error) {
		gotAuthors = authorIDs
		if viewerID != viewer {
			t.Errorf("expected viewer %s, got %s", viewer, viewerID)
		}
		return []postdomain.FeedEntry{}, nil
	}

	if _, err := svc.FeedForViewer(context.Background(), viewer); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	want := map[domain.ID]bool{"a": true, "b": true, viewer: true}
	if len(gotAuthors) != len(want) {
		t.Fatalf("expected %d authors, got %d", len(want), len(gotAuthors))
	}
	for _, id := range gotAuthors {
		if !want[id] {
			t.Errorf("unexpected author %s", id)
		}
	}
}

func TestFeedService_FeedForViewer_UnknownViewer(t *testing.T) {
	svc, users, _ := setupFeedService(t)

	users.findByIDFunc = func(ctx context.Context, id domain.ID) (domain.User, error) {
		return domain.User{}, commonerrors.ErrUserNotFound
	}

	_, err := svc.FeedForViewer(context.Background(), "ghost")
	if !errors.Is(err, commonerrors.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestFeedService_FeedForViewer_NoFollowing(t *testing.T) {
	svc, users, posts := setupFeedService(t)

	viewer := domain.ID("loner")
	users.findByIDFunc = func(ctx context.Context, id domain.ID) (domain.User, error) {
		return domain.User{ID: viewer}, nil
	}
	posts.feedByAuthorsFunc = func(ctx context.Context, authorIDs []domain.ID, viewerID domain.ID) ([]postdomain.FeedEntry, error) {
		if len(authorIDs) != 1 || authorIDs[0] != viewer {
			t.Errorf("expected only the viewer as author, got %v", authorIDs)
		}
		return []postdomain.FeedEntry{}, nil
	}

	entries, err := svc.FeedForViewer(context.Background(), viewer)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected empty feed, got %d entries", len(entries))
	}
}

func TestFeedService_FeedForPost_NotFound(t *testing.T) {
	svc, _, posts := setupFeedService(t)

	posts.feedByIDFunc = func(ctx context.Context, id postdomain.ID, viewerID domain.ID) (postdomain.FeedEntry, error) {
		return postdomain.FeedEntry{}, commonerrors.ErrPostNotFound
	}

	_, err := svc.FeedForPost(context.Background(), "missing", "viewer-1")
	if !errors.Is(err, commonerrors.ErrPostNotFound) {
		t.Fatalf("expected ErrPostNotFound, got %v", err)
	}
}

func TestFeedService_PostsByAuthor_SingleAuthorJoin(t *testing.T) {
	svc, _, posts := setupFeedService(t)

	author := domain.ID("author-1")
	viewer := domain.ID("viewer-1")

	posts.feedByAuthorsFunc = func(ctx context.Context, authorIDs []domain.ID, viewerID domain.ID) ([]postdomain.FeedEntry, error) {
		if len(authorIDs) != 1 || authorIDs[0] != author {
			t.Errorf("expected single author %s, got %v", author, authorIDs)
		}
		return []postdomain.FeedEntry{
			{Post: postdomain.Post{ID: "p1", AuthorID: author}, IsFollowing: true},
		}, nil
	}

	entries, err := svc.PostsByAuthor(context.Background(), author, viewer)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(entries) != 1 || entries[0].ID != "p1" {
		t.Fatalf("unexpected entries: %v", entries)
	}
}
