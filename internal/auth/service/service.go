package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pixfeed/pixfeed/backend/internal/common/clock"
	"github.com/pixfeed/pixfeed/backend/internal/common/crypto"
	commonerrors "github.com/pixfeed/pixfeed/backend/internal/common/errors"
	"github.com/pixfeed/pixfeed/backend/internal/common/logger"
	"github.com/pixfeed/pixfeed/backend/internal/user/domain"
	userrepo "github.com/pixfeed/pixfeed/backend/internal/user/repository"
)

// Credentials is the issued session: the bearer token plus the user it
// authenticates.
type Credentials struct {
	Token string
	User  domain.User
}

type Service interface {
	Register(ctx context.Context, username, fullName, email, password string) (Credentials, error)
	Login(ctx context.Context, username, password string) (Credentials, error)
}

type AuthService struct {
	users    userrepo.Repository
	hasher   crypto.PasswordHasher
	idGen    crypto.IDGenerator
	clock    clock.Clock
	secret   []byte
	tokenTTL time.Duration
	log      *logger.Logger
}

func NewAuthService(
	users userrepo.Repository,
	hasher crypto.PasswordHasher,
	idGen crypto.IDGenerator,
	clk clock.Clock,
	secret []byte,
	tokenTTL time.Duration,
	log *logger.Logger,
) *AuthService {
	return &AuthService{
		users:    users,
		hasher:   hasher,
		idGen:    idGen,
		clock:    clk,
		secret:   secret,
		tokenTTL: tokenTTL,
		log:      log,
	}
}

// Register creates the account and signs the caller straight in. Username
// and email collisions surface as conflict errors from the repository,
// matched case-insensitively.
func (s *AuthService) Register(ctx context.Context, username, fullName, email, password string) (Credentials, error) {
	id, err := s.idGen.NewID()
	if err != nil {
		return Credentials{}, commonerrors.ErrDatabaseError.WithCause(err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return Credentials{}, commonerrors.ErrDatabaseError.WithCause(err)
	}

	now := s.clock.Now().UTC()
	user := domain.User{
		ID:           domain.ID(id),
		Username:     strings.TrimSpace(username),
		FullName:     strings.TrimSpace(fullName),
		Email:        strings.TrimSpace(email),
		PasswordHash: hash,
		Followers:    []domain.ID{},
		Following:    []domain.ID{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, commonerrors.ErrUsernameAlreadyExists) || errors.Is(err, commonerrors.ErrEmailAlreadyExists) {
			return Credentials{}, err
		}
		return Credentials{}, commonerrors.ErrDatabaseError.WithCause(err)
	}

	token, err := s.issueToken(user)
	if err != nil {
		return Credentials{}, err
	}

	s.log.WithFields(ctx, logger.Fields{
		"user_id":   user.ID,
		"user_name": user.Username,
		"action":    "user_registered",
	}).Info("user registered")
	return Credentials{Token: token, User: user}, nil
}

// Login authenticates by username, matched case-insensitively. A missing
// user and a wrong password produce the same error so the response does not
// reveal which usernames exist.
func (s *AuthService) Login(ctx context.Context, username, password string) (Credentials, error) {
	user, err := s.users.FindByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, commonerrors.ErrUserNotFound) {
			return Credentials{}, commonerrors.ErrInvalidCredentials
		}
		return Credentials{}, commonerrors.ErrDatabaseError.WithCause(err)
	}

	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		return Credentials{}, commonerrors.ErrInvalidCredentials
	}

	token, err := s.issueToken(user)
	if err != nil {
		return Credentials{}, err
	}

	s.log.WithFields(ctx, logger.Fields{
		"user_id": user.ID,
		"action":  "user_logged_in",
	}).Info("user logged in")
	return Credentials{Token: token, User: user}, nil
}

func (s *AuthService) issueToken(user domain.User) (string, error) {
	now := s.clock.Now()
	claims := jwt.MapClaims{
		"sub": string(user.ID),
		"usr": user.Username,
		"iat": now.Unix(),
		"exp": now.Add(s.tokenTTL).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", commonerrors.ErrInvalidToken.WithCause(err)
	}
	return signed, nil
}
