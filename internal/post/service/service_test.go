package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/pixfeed/pixfeed/backend/internal/common/clock"
	commonerrors "github.com/pixfeed/pixfeed/backend/internal/common/errors"
	"github.com/pixfeed/pixfeed/backend/internal/common/logger"
	feedservice "github.com/pixfeed/pixfeed/backend/internal/feed/service"
	"github.com/pixfeed/pixfeed/backend/internal/post/domain"
	postrepo "github.com/pixfeed/pixfeed/backend/internal/post/repository"
	"github.com/pixfeed/pixfeed/backend/internal/post/service"
	"github.com/pixfeed/pixfeed/backend/internal/storage"
	userdomain "github.com/pixfeed/pixfeed/backend/internal/user/domain"
)

type mockPostRepo struct {
	postrepo.Repository
	createFunc              func(ctx context.Context, post domain.Post) error
	deleteByIDAndAuthorFunc func(ctx context.Context, id domain.ID, authorID userdomain.ID) (domain.Post, error)
	addLikeFunc             func(ctx context.Context, id domain.ID, userID userdomain.ID) error
	removeLikeFunc          func(ctx context.Context, id domain.ID, userID userdomain.ID) error
}

func (m *mockPostRepo) Create(ctx context.Context, post domain.Post) error {
	return m.createFunc(ctx, post)
}

func (m *mockPostRepo) DeleteByIDAndAuthor(ctx context.Context, id domain.ID, authorID userdomain.ID) (domain.Post, error) {
	return m.deleteByIDAndAuthorFunc(ctx, id, authorID)
}

func (m *mockPostRepo) AddLike(ctx context.Context, id domain.ID, userID userdomain.ID) error {
	return m.addLikeFunc(ctx, id, userID)
}

func (m *mockPostRepo) RemoveLike(ctx context.Context, id domain.ID, userID userdomain.ID) error {
	return m.removeLikeFunc(ctx, id, userID)
}

type mockFeed struct {
	feedservice.Service
	feedForPostFunc func(ctx context.Context, postID domain.ID, viewerID userdomain.ID) (domain.FeedEntry, error)
}

func (m *mockFeed) FeedForPost(ctx context.Context, postID domain.ID, viewerID userdomain.ID) (domain.FeedEntry, error) {
	return m.feedForPostFunc(ctx, postID, viewerID)
}

type mockStorage struct {
	mu      sync.Mutex
	putFunc func(ctx context.Context, data []byte, suggestedName string) (storage.StoredObject, error)
	deleted chan string
}

func newMockStorage() *mockStorage {
	return &mockStorage{deleted: make(chan string, 32)}
}

func (m *mockStorage) Put(ctx context.Context, data []byte, suggestedName string) (storage.StoredObject, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putFunc != nil {
		return m.putFunc(ctx, data, suggestedName)
	}
	return storage.StoredObject{
		URL: "https://example.test/" + suggestedName,
		Key: suggestedName,
	}, nil
}

func (m *mockStorage) Delete(ctx context.Context, key string) error {
	m.deleted <- key
	return nil
}

func (m *mockStorage) deletedKeys(n int, timeout time.Duration) []string {
	keys := make([]string, 0, n)
	deadline := time.After(timeout)
	for len(keys) < n {
		select {
		case key := <-m.deleted:
			keys = append(keys, key)
		case <-deadline:
			return keys
		}
	}
	return keys
}

type mockIDGen struct {
	next int
}

func (g *mockIDGen) NewID() (string, error) {
	g.next++
	return fmt.Sprintf("id-%d", g.next), nil
}

func setupPostService(t *testing.T) (*service.PostService, *mockPostRepo, *mockFeed, *mockStorage, *clock.MockClock) {
	t.Helper()
	log, err := logger.New("", "test", "ERROR")
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	repo := &mockPostRepo{}
	feed := &mockFeed{}
	store := newMockStorage()
	clk := clock.NewMockClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	svc := service.NewPostService(repo, feed, store, &mockIDGen{}, clk, log)
	return svc, repo, feed, store, clk
}

func uploads(n int) []service.ImageUpload {
	out := make([]service.ImageUpload, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, service.ImageUpload{
			Name: fmt.Sprintf("img-%d.jpg", i),
			Data: []byte{0xff, 0xd8},
		})
	}
	return out
}

func TestPostService_CreatePost_NoImages(t *testing.T) {
	svc, _, _, _, _ := setupPostService(t)

	_, err := svc.CreatePost(context.Background(), "author-1", "hello", nil)
	if !errors.Is(err, commonerrors.ErrNoImages) {
		t.Fatalf("expected ErrNoImages, got %v", err)
	}
}

func TestPostService_CreatePost_TooManyImages(t *testing.T) {
	svc, _, _, _, _ := setupPostService(t)

	_, err := svc.CreatePost(context.Background(), "author-1", "hello", uploads(11))
	if !errors.Is(err, commonerrors.ErrTooManyImages) {
		t.Fatalf("expected ErrTooManyImages, got %v", err)
	}
}

func TestPostService_CreatePost_Success(t *testing.T) {
	svc, repo, _, _, clk := setupPostService(t)

	var created domain.Post
	repo.createFunc = func(ctx context.Context, post domain.Post) error {
		created = post
		return nil
	}

	post, err := svc.CreatePost(context.Background(), "author-1", "three pics", uploads(3))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if post.ID == "" {
		t.Error("expected generated post id")
	}
	if post.AuthorID != "author-1" {
		t.Errorf("expected author author-1, got %s", post.AuthorID)
	}
	if len(post.Images) != 3 {
		t.Fatalf("expected 3 stored images, got %d", len(post.Images))
	}
	if len(post.Likes) != 0 {
		t.Errorf("expected empty like set, got %v", post.Likes)
	}
	if !post.CreatedAt.Equal(clk.Now().UTC()) {
		t.Errorf("expected createdAt %v, got %v", clk.Now().UTC(), post.CreatedAt)
	}
	if created.ID != post.ID {
		t.Errorf("persisted post %s differs from returned %s", created.ID, post.ID)
	}
}

func TestPostService_CreatePost_UploadFailureCleansUp(t *testing.T) {
	svc, _, _, store, _ := setupPostService(t)

	store.putFunc = func(ctx context.Context, data []byte, suggestedName string) (storage.StoredObject, error) {
		if suggestedName == "img-1.jpg" {
			return storage.StoredObject{}, errors.New("bucket unavailable")
		}
		return storage.StoredObject{URL: "u/" + suggestedName, Key: suggestedName}, nil
	}

	_, err := svc.CreatePost(context.Background(), "author-1", "bad batch", uploads(3))
	if !errors.Is(err, commonerrors.ErrStorageError) {
		t.Fatalf("expected ErrStorageError, got %v", err)
	}

	keys := store.deletedKeys(2, time.Second)
	if len(keys) != 2 {
		t.Fatalf("expected 2 orphan deletions, got %v", keys)
	}
}

func TestPostService_CreatePost_RepoFailureCleansUp(t *testing.T) {
	svc, repo, _, store, _ := setupPostService(t)

	repo.createFunc = func(ctx context.Context, post domain.Post) error {
		return errors.New("insert failed")
	}

	_, err := svc.CreatePost(context.Background(), "author-1", "doomed", uploads(2))
	if !errors.Is(err, commonerrors.ErrDatabaseError) {
		t.Fatalf("expected ErrDatabaseError, got %v", err)
	}

	keys := store.deletedKeys(2, time.Second)
	if len(keys) != 2 {
		t.Fatalf("expected 2 orphan deletions, got %v", keys)
	}
}

func TestPostService_DeletePost_NotOwner(t *testing.T) {
	svc, repo, _, _, _ := setupPostService(t)

	repo.deleteByIDAndAuthorFunc = func(ctx context.Context, id domain.ID, authorID userdomain.ID) (domain.Post, error) {
		return domain.Post{}, commonerrors.ErrPostNotFound
	}

	_, err := svc.DeletePost(context.Background(), "intruder", "post-1")
	if !errors.Is(err, commonerrors.ErrPostNotFound) {
		t.Fatalf("expected ErrPostNotFound, got %v", err)
	}
}

func TestPostService_DeletePost_RemovesImages(t *testing.T) {
	svc, repo, _, store, _ := setupPostService(t)

	repo.deleteByIDAndAuthorFunc = func(ctx context.Context, id domain.ID, authorID userdomain.ID) (domain.Post, error) {
		return domain.Post{
			ID:       id,
			AuthorID: authorID,
			Images: []storage.StoredObject{
				{URL: "u/a", Key: "a"},
				{URL: "u/b", Key: "b"},
			},
		}, nil
	}

	post, err := svc.DeletePost(context.Background(), "owner-1", "post-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if post.ID != "post-1" {
		t.Errorf("expected deleted post returned, got %s", post.ID)
	}

	keys := store.deletedKeys(2, time.Second)
	if len(keys) != 2 {
		t.Fatalf("expected both images deleted, got %v", keys)
	}
}

func TestPostService_Like_ReturnsJoinedEntry(t *testing.T) {
	svc, repo, feed, _, _ := setupPostService(t)

	repo.addLikeFunc = func(ctx context.Context, id domain.ID, userID userdomain.ID) error {
		return nil
	}
	feed.feedForPostFunc = func(ctx context.Context, postID domain.ID, viewerID userdomain.ID) (domain.FeedEntry, error) {
		return domain.FeedEntry{
			Post:        domain.Post{ID: postID, Likes: []userdomain.ID{viewerID}},
			IsFollowing: true,
		}, nil
	}

	entry, err := svc.Like(context.Background(), "viewer-1", "post-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !entry.IsLikedBy("viewer-1") {
		t.Error("expected viewer in the like set")
	}
	if !entry.IsFollowing {
		t.Error("expected isFollowing from the join")
	}
}

func TestPostService_Like_MissingPost(t *testing.T) {
	svc, repo, _, _, _ := setupPostService(t)

	repo.addLikeFunc = func(ctx context.Context, id domain.ID, userID userdomain.ID) error {
		return commonerrors.ErrPostNotFound
	}

	_, err := svc.Like(context.Background(), "viewer-1", "missing")
	if !errors.Is(err, commonerrors.ErrPostNotFound) {
		t.Fatalf("expected ErrPostNotFound, got %v", err)
	}
}

func TestPostService_Unlike_Idempotent(t *testing.T) {
	svc, repo, feed, _, _ := setupPostService(t)

	repo.removeLikeFunc = func(ctx context.Context, id domain.ID, userID userdomain.ID) error {
		return nil
	}
	feed.feedForPostFunc = func(ctx context.Context, postID domain.ID, viewerID userdomain.ID) (domain.FeedEntry, error) {
		return domain.FeedEntry{Post: domain.Post{ID: postID}}, nil
	}

	entry, err := svc.Unlike(context.Background(), "viewer-1", "post-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if entry.IsLikedBy("viewer-1") {
		t.Error("expected viewer removed from like set")
	}
}
