package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgconn"

	commonerrors "github.com/pixfeed/pixfeed/backend/internal/common/errors"
	"github.com/pixfeed/pixfeed/backend/internal/common/logger"
	"github.com/pixfeed/pixfeed/backend/internal/graph/service"
	"github.com/pixfeed/pixfeed/backend/internal/storage"
	"github.com/pixfeed/pixfeed/backend/internal/user/domain"
)

type mockUserRepo struct {
	createFunc             func(ctx context.Context, user domain.User) error
	findByIDFunc           func(ctx context.Context, id domain.ID) (domain.User, error)
	findByUsernameFunc     func(ctx context.Context, username string) (domain.User, error)
	findSummariesByIDsFunc func(ctx context.Context, ids []domain.ID) ([]domain.Summary, error)
	searchFunc             func(ctx context.Context, viewerID domain.ID, query string, limit int) ([]domain.Summary, error)
	updateFullNameFunc     func(ctx context.Context, id domain.ID, fullName string) error
	setProfileImageFunc    func(ctx context.Context, id domain.ID, image storage.StoredObject) error
	clearProfileImageFunc  func(ctx context.Context, id domain.ID) error
	addFollowerFunc        func(ctx context.Context, id, follower domain.ID) error
	removeFollowerFunc     func(ctx context.Context, id, follower domain.ID) error
	addFollowingFunc       func(ctx context.Context, id, target domain.ID) error
	removeFollowingFunc    func(ctx context.Context, id, target domain.ID) error
}

func (m *mockUserRepo) Create(ctx context.Context, user domain.User) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, user)
	}
	return nil
}

func (m *mockUserRepo) FindByID(ctx context.Context, id domain.ID) (domain.User, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return domain.User{}, nil
}

func (m *mockUserRepo) FindByUsername(ctx context.Context, username string) (domain.User, error) {
	if m.findByUsernameFunc != nil {
		return m.findByUsernameFunc(ctx, username)
	}
	return domain.User{}, nil
}

func (m *mockUserRepo) FindSummariesByIDs(ctx context.Context, ids []domain.ID) ([]domain.Summary, error) {
	if m.findSummariesByIDsFunc != nil {
		return m.findSummariesByIDsFunc(ctx, ids)
	}
	return nil, nil
}

func (m *mockUserRepo) Search(ctx context.Context, viewerID domain.ID, query string, limit int) ([]domain.Summary, error) {
	if m.searchFunc != nil {
		return m.searchFunc(ctx, viewerID, query, limit)
	}
	return nil, nil
}

func (m *mockUserRepo) UpdateFullName(ctx context.Context, id domain.ID, fullName string) error {
	if m.updateFullNameFunc != nil {
		return m.updateFullNameFunc(ctx, id, fullName)
	}
	return nil
}

func (m *mockUserRepo) SetProfileImage(ctx context.Context, id domain.ID, image storage.StoredObject) error {
	if m.setProfileImageFunc != nil {
		return m.setProfileImageFunc(ctx, id, image)
	}
	return nil
}

func (m *mockUserRepo) ClearProfileImage(ctx context.Context, id domain.ID) error {
	if m.clearProfileImageFunc != nil {
		return m.clearProfileImageFunc(ctx, id)
	}
	return nil
}

func (m *mockUserRepo) AddFollower(ctx context.Context, id, follower domain.ID) error {
	if m.addFollowerFunc != nil {
		return m.addFollowerFunc(ctx, id, follower)
	}
	return nil
}

func (m *mockUserRepo) RemoveFollower(ctx context.Context, id, follower domain.ID) error {
	if m.removeFollowerFunc != nil {
		return m.removeFollowerFunc(ctx, id, follower)
	}
	return nil
}

func (m *mockUserRepo) AddFollowing(ctx context.Context, id, target domain.ID) error {
	if m.addFollowingFunc != nil {
		return m.addFollowingFunc(ctx, id, target)
	}
	return nil
}

func (m *mockUserRepo) RemoveFollowing(ctx context.Context, id, target domain.ID) error {
	if m.removeFollowingFunc != nil {
		return m.removeFollowingFunc(ctx, id, target)
	}
	return nil
}

func setupGraphService(t *testing.T) (*service.GraphService, *mockUserRepo) {
	t.Helper()
	log, err := logger.New("", "test", "ERROR")
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	repo := &mockUserRepo{}
	return service.NewGraphService(repo, log), repo
}

func TestGraphService_Follow_WritesBothSides(t *testing.T) {
	svc, repo := setupGraphService(t)

	viewer := domain.ID("viewer-1")
	target := domain.ID("target-1")

	var followerCalls, followingCalls int
	repo.addFollowerFunc = func(ctx context.Context, id, follower domain.ID) error {
		followerCalls++
		if id != target || follower != viewer {
			t.Errorf("unexpected follower write: id=%s follower=%s", id, follower)
		}
		return nil
	}
	repo.addFollowingFunc = func(ctx context.Context, id, tgt domain.ID) error {
		followingCalls++
		if id != viewer || tgt != target {
			t.Errorf("unexpected following write: id=%s target=%s", id, tgt)
		}
		return nil
	}

	if err := svc.Follow(context.Background(), viewer, target); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if followerCalls != 1 || followingCalls != 1 {
		t.Errorf("expected one write per side, got follower=%d following=%d", followerCalls, followingCalls)
	}
}

func TestGraphService_Follow_Self(t *testing.T) {
	svc, repo := setupGraphService(t)

	repo.addFollowerFunc = func(ctx context.Context, id, follower domain.ID) error {
		t.Error("no write expected for self-follow")
		return nil
	}

	err := svc.Follow(context.Background(), "user-1", "user-1")
	if !errors.Is(err, commonerrors.ErrSelfFollow) {
		t.Fatalf("expected ErrSelfFollow, got %v", err)
	}
}

func TestGraphService_Follow_TargetNotFound(t *testing.T) {
	svc, repo := setupGraphService(t)

	repo.addFollowerFunc = func(ctx context.Context, id, follower domain.ID) error {
		return commonerrors.ErrUserNotFound
	}
	repo.addFollowingFunc = func(ctx context.Context, id, target domain.ID) error {
		t.Error("viewer side must not be written when the target is missing")
		return nil
	}

	err := svc.Follow(context.Background(), "viewer-1", "ghost")
	if !errors.Is(err, commonerrors.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestGraphService_Follow_SecondWriteRetried(t *testing.T) {
	svc, repo := setupGraphService(t)

	attempts := 0
	repo.addFollowingFunc = func(ctx context.Context, id, target domain.ID) error {
		attempts++
		if attempts < 3 {
			return &pgconn.PgError{Code: "08006"}
		}
		return nil
	}

	if err := svc.Follow(context.Background(), "viewer-1", "target-1"); err != nil {
		t.Fatalf("expected retries to recover, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestGraphService_Follow_SecondWriteNotRetriedOnMissingViewer(t *testing.T) {
	svc, repo := setupGraphService(t)

	attempts := 0
	repo.addFollowingFunc = func(ctx context.Context, id, target domain.ID) error {
		attempts++
		return commonerrors.ErrUserNotFound
	}

	err := svc.Follow(context.Background(), "ghost", "target-1")
	if !errors.Is(err, commonerrors.ErrGraphWriteIncomplete) {
		t.Fatalf("expected ErrGraphWriteIncomplete, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("expected a single attempt for a non-transient failure, got %d", attempts)
	}
}

func TestGraphService_Follow_SecondWriteExhausted(t *testing.T) {
	svc, repo := setupGraphService(t)

	repo.addFollowingFunc = func(ctx context.Context, id, target domain.ID) error {
		return &pgconn.PgError{Code: "40001"}
	}

	err := svc.Follow(context.Background(), "viewer-1", "target-1")
	if !errors.Is(err, commonerrors.ErrGraphWriteIncomplete) {
		t.Fatalf("expected ErrGraphWriteIncomplete, got %v", err)
	}
}

func TestGraphService_Unfollow_MissingTargetIsNoOp(t *testing.T) {
	svc, repo := setupGraphService(t)

	repo.removeFollowerFunc = func(ctx context.Context, id, follower domain.ID) error {
		return commonerrors.ErrUserNotFound
	}
	repo.removeFollowingFunc = func(ctx context.Context, id, target domain.ID) error {
		return commonerrors.ErrUserNotFound
	}

	if err := svc.Unfollow(context.Background(), "viewer-1", "ghost"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestGraphService_Unfollow_Self(t *testing.T) {
	svc, _ := setupGraphService(t)

	err := svc.Unfollow(context.Background(), "user-1", "user-1")
	if !errors.Is(err, commonerrors.ErrSelfFollow) {
		t.Fatalf("expected ErrSelfFollow, got %v", err)
	}
}
