package service

import (
	"context"
	"errors"
	"time"

	"github.com/pixfeed/pixfeed/backend/internal/common/constants"
	"github.com/pixfeed/pixfeed/backend/internal/common/db"
	commonerrors "github.com/pixfeed/pixfeed/backend/internal/common/errors"
	"github.com/pixfeed/pixfeed/backend/internal/common/logger"
	"github.com/pixfeed/pixfeed/backend/internal/observability/metrics"
	userdomain "github.com/pixfeed/pixfeed/backend/internal/user/domain"
	userrepo "github.com/pixfeed/pixfeed/backend/internal/user/repository"
)

type Service interface {
	Follow(ctx context.Context, viewerID, targetID userdomain.ID) error
	Unfollow(ctx context.Context, viewerID, targetID userdomain.ID) error
}

// GraphService maintains the denormalized follow edge. Every edge lives in
// two arrays (following of the actor, followers of the target) and the two
// writes are not transactional: a reader between them can observe a
// one-sided edge. Both writes are idempotent, so the second one is re-driven
// on failure until it lands or the retry budget runs out.
type GraphService struct {
	users userrepo.Repository
	log   *logger.Logger
}

func NewGraphService(users userrepo.Repository, log *logger.Logger) *GraphService {
	return &GraphService{users: users, log: log}
}

func (s *GraphService) Follow(ctx context.Context, viewerID, targetID userdomain.ID) error {
	if viewerID == targetID {
		metrics.GraphMutationsTotal.WithLabelValues("follow", "self_follow").Inc()
		return commonerrors.ErrSelfFollow
	}

	// The target-side write goes first: it doubles as the existence check,
	// so a follow of an unknown user fails before the viewer's state is
	// touched.
	if err := s.users.AddFollower(ctx, targetID, viewerID); err != nil {
		if errors.Is(err, commonerrors.ErrUserNotFound) {
			metrics.GraphMutationsTotal.WithLabelValues("follow", "target_not_found").Inc()
			return commonerrors.ErrUserNotFound
		}
		metrics.GraphMutationsTotal.WithLabelValues("follow", "error").Inc()
		return commonerrors.ErrDatabaseError.WithCause(err)
	}

	if err := s.retrySecondWrite(ctx, func(ctx context.Context) error {
		return s.users.AddFollowing(ctx, viewerID, targetID)
	}); err != nil {
		s.log.WithFields(ctx, logger.Fields{
			"viewer_id": viewerID,
			"target_id": targetID,
			"action":    "follow_partial_failure",
		}).Errorf("follow left one-sided edge: %v", err)
		metrics.GraphMutationsTotal.WithLabelValues("follow", "partial").Inc()
		return commonerrors.ErrGraphWriteIncomplete.WithCause(err)
	}

	metrics.GraphMutationsTotal.WithLabelValues("follow", "ok").Inc()
	s.log.WithFields(ctx, logger.Fields{
		"viewer_id": viewerID,
		"target_id": targetID,
		"action":    "followed",
	}).Info("follow applied")
	return nil
}

// Unfollow removes both sides of the edge. Unfollowing a user that was never
// followed, or one that no longer exists, is a no-op.
func (s *GraphService) Unfollow(ctx context.Context, viewerID, targetID userdomain.ID) error {
	if viewerID == targetID {
		metrics.GraphMutationsTotal.WithLabelValues("unfollow", "self_follow").Inc()
		return commonerrors.ErrSelfFollow
	}

	if err := s.users.RemoveFollower(ctx, targetID, viewerID); err != nil &&
		!errors.Is(err, commonerrors.ErrUserNotFound) {
		metrics.GraphMutationsTotal.WithLabelValues("unfollow", "error").Inc()
		return commonerrors.ErrDatabaseError.WithCause(err)
	}

	if err := s.retrySecondWrite(ctx, func(ctx context.Context) error {
		err := s.users.RemoveFollowing(ctx, viewerID, targetID)
		if errors.Is(err, commonerrors.ErrUserNotFound) {
			return nil
		}
		return err
	}); err != nil {
		s.log.WithFields(ctx, logger.Fields{
			"viewer_id": viewerID,
			"target_id": targetID,
			"action":    "unfollow_partial_failure",
		}).Errorf("unfollow left one-sided edge: %v", err)
		metrics.GraphMutationsTotal.WithLabelValues("unfollow", "partial").Inc()
		return commonerrors.ErrGraphWriteIncomplete.WithCause(err)
	}

	metrics.GraphMutationsTotal.WithLabelValues("unfollow", "ok").Inc()
	return nil
}

// graphWriteRetryConfig drives the second edge write. Only transient
// database failures are worth re-driving; anything else (a deleted viewer,
// a constraint violation) surfaces immediately as a partial write.
var graphWriteRetryConfig = db.RetryConfig{
	MaxAttempts:  constants.GraphWriteRetries,
	InitialDelay: constants.GraphWriteRetryDelay,
	MaxDelay:     time.Second,
	Multiplier:   2.0,
}

func (s *GraphService) retrySecondWrite(ctx context.Context, write func(ctx context.Context) error) error {
	attempt := 0
	return db.RetryWithBackoff(ctx, s.log, graphWriteRetryConfig, func() error {
		attempt++
		if attempt > 1 {
			metrics.GraphWriteRetries.Inc()
		}
		return write(ctx)
	})
}
