package service

import (
	"context"
	"errors"
	"strings"

	"github.com/pixfeed/pixfeed/backend/internal/common/constants"
	commonerrors "github.com/pixfeed/pixfeed/backend/internal/common/errors"
	"github.com/pixfeed/pixfeed/backend/internal/common/logger"
	"github.com/pixfeed/pixfeed/backend/internal/storage"
	"github.com/pixfeed/pixfeed/backend/internal/user/domain"
	userrepo "github.com/pixfeed/pixfeed/backend/internal/user/repository"
)

// SocialStatsType selects which side of the follow graph a stats request
// expands.
type SocialStatsType string

const (
	StatsFollowers SocialStatsType = "followers"
	StatsFollowing SocialStatsType = "following"
)

type Service interface {
	Profile(ctx context.Context, id domain.ID) (domain.User, error)
	ProfileByUsername(ctx context.Context, username string) (domain.User, error)
	Search(ctx context.Context, viewerID domain.ID, query string, limit int) ([]domain.Summary, error)
	UpdateFullName(ctx context.Context, id domain.ID, fullName string) (domain.User, error)
	UploadProfileImage(ctx context.Context, id domain.ID, name string, data []byte) (domain.User, error)
	DeleteProfileImage(ctx context.Context, id domain.ID) (domain.User, error)
	SocialStats(ctx context.Context, id domain.ID, statsType SocialStatsType) ([]domain.Summary, error)
}

type UserService struct {
	repo  userrepo.Repository
	store storage.ObjectStorage
	log   *logger.Logger
}

func NewUserService(repo userrepo.Repository, store storage.ObjectStorage, log *logger.Logger) *UserService {
	return &UserService{repo: repo, store: store, log: log}
}

func (s *UserService) Profile(ctx context.Context, id domain.ID) (domain.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return domain.User{}, translateLookupError(err)
	}
	return user, nil
}

func (s *UserService) ProfileByUsername(ctx context.Context, username string) (domain.User, error) {
	user, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		return domain.User{}, translateLookupError(err)
	}
	return user, nil
}

// Search matches the query against usernames and full names, never returning
// the viewer themselves. An empty query yields an empty result rather than
// the whole user table.
func (s *UserService) Search(ctx context.Context, viewerID domain.ID, query string, limit int) ([]domain.Summary, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []domain.Summary{}, nil
	}
	if limit <= 0 || limit > constants.MaxSearchLimit {
		limit = constants.DefaultSearchLimit
	}

	summaries, err := s.repo.Search(ctx, viewerID, query, limit)
	if err != nil {
		return nil, commonerrors.ErrDatabaseError.WithCause(err)
	}
	return summaries, nil
}

func (s *UserService) UpdateFullName(ctx context.Context, id domain.ID, fullName string) (domain.User, error) {
	if err := s.repo.UpdateFullName(ctx, id, strings.TrimSpace(fullName)); err != nil {
		return domain.User{}, translateLookupError(err)
	}
	return s.Profile(ctx, id)
}

// UploadProfileImage stores the new image, points the profile at it, and
// then deletes the previous object. The old object is only removed after the
// profile row references the new one, so a failed swap never leaves the
// profile pointing at nothing.
func (s *UserService) UploadProfileImage(ctx context.Context, id domain.ID, name string, data []byte) (domain.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return domain.User{}, translateLookupError(err)
	}

	obj, err := s.store.Put(ctx, data, name)
	if err != nil {
		return domain.User{}, err
	}

	if err := s.repo.SetProfileImage(ctx, id, obj); err != nil {
		s.deleteObject(obj.Key)
		return domain.User{}, translateLookupError(err)
	}

	if old := user.ProfileImage; old != nil {
		s.deleteObject(old.Key)
	}

	s.log.WithFields(ctx, logger.Fields{
		"user_id": id,
		"key":     obj.Key,
		"action":  "profile_image_updated",
	}).Info("profile image updated")
	return s.Profile(ctx, id)
}

func (s *UserService) DeleteProfileImage(ctx context.Context, id domain.ID) (domain.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return domain.User{}, translateLookupError(err)
	}
	if user.ProfileImage == nil {
		return domain.User{}, commonerrors.ErrProfileImageNotSet
	}

	if err := s.repo.ClearProfileImage(ctx, id); err != nil {
		return domain.User{}, translateLookupError(err)
	}
	s.deleteObject(user.ProfileImage.Key)

	return s.Profile(ctx, id)
}

// SocialStats expands one side of the user's follow graph into public
// summaries. Dangling references, if any, are silently skipped by the batch
// lookup.
func (s *UserService) SocialStats(ctx context.Context, id domain.ID, statsType SocialStatsType) ([]domain.Summary, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, translateLookupError(err)
	}

	var ids []domain.ID
	switch statsType {
	case StatsFollowers:
		ids = user.Followers
	case StatsFollowing:
		ids = user.Following
	default:
		return nil, commonerrors.ErrInvalidSocialStatsType
	}

	if len(ids) == 0 {
		return []domain.Summary{}, nil
	}

	summaries, err := s.repo.FindSummariesByIDs(ctx, ids)
	if err != nil {
		return nil, commonerrors.ErrDatabaseError.WithCause(err)
	}
	return summaries, nil
}

// deleteObject is best effort: a stale object in storage is preferable to a
// failed profile update.
func (s *UserService) deleteObject(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), constants.ImageCleanupTimeout)
	defer cancel()

	if err := s.store.Delete(ctx, key); err != nil {
		s.log.Warnf("failed to delete profile image object %s: %v", key, err)
	}
}

func translateLookupError(err error) error {
	if errors.Is(err, commonerrors.ErrUserNotFound) {
		return commonerrors.ErrUserNotFound
	}
	return commonerrors.ErrDatabaseError.WithCause(err)
}
