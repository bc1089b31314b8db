package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgconn"
	pgx "github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/pixfeed/pixfeed/backend/internal/common/db"
	commonerrors "github.com/pixfeed/pixfeed/backend/internal/common/errors"
	"github.com/pixfeed/pixfeed/backend/internal/storage"
	"github.com/pixfeed/pixfeed/backend/internal/user/domain"
)

type Repository interface {
	Create(ctx context.Context, user domain.User) error
	FindByID(ctx context.Context, id domain.ID) (domain.User, error)
	FindByUsername(ctx context.Context, username string) (domain.User, error)
	FindSummariesByIDs(ctx context.Context, ids []domain.ID) ([]domain.Summary, error)
	Search(ctx context.Context, viewerID domain.ID, query string, limit int) ([]domain.Summary, error)
	UpdateFullName(ctx context.Context, id domain.ID, fullName string) error
	SetProfileImage(ctx context.Context, id domain.ID, image storage.StoredObject) error
	ClearProfileImage(ctx context.Context, id domain.ID) error
	AddFollower(ctx context.Context, id, follower domain.ID) error
	RemoveFollower(ctx context.Context, id, follower domain.ID) error
	AddFollowing(ctx context.Context, id, target domain.ID) error
	RemoveFollowing(ctx context.Context, id, target domain.ID) error
}

const userColumns = `id, user_name, full_name, email, password_hash,
	profile_image_url, profile_image_key, followers, following, created_at, updated_at`

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func (r *PgRepository) Create(ctx context.Context, user domain.User) error {
	start := time.Now()

	var imgURL, imgKey *string
	if user.ProfileImage != nil {
		imgURL = &user.ProfileImage.URL
		imgKey = &user.ProfileImage.Key
	}

	_, err := r.pool.Exec(
		ctx,
		`INSERT INTO users (id, user_name, full_name, email, password_hash,
			profile_image_url, profile_image_key, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)`,
		string(user.ID),
		user.Username,
		user.FullName,
		user.Email,
		user.PasswordHash,
		imgURL,
		imgKey,
		user.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			if pgErr.ConstraintName == "users_email_lower_key" {
				return commonerrors.ErrEmailAlreadyExists
			}
			return commonerrors.ErrUsernameAlreadyExists
		}
		return db.HandleExecError(err, "create user", start)
	}
	return db.HandleExecError(nil, "create user", start)
}

func (r *PgRepository) FindByID(ctx context.Context, id domain.ID) (domain.User, error) {
	start := time.Now()
	row := r.pool.QueryRow(
		ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`,
		string(id),
	)
	return scanUser(row, "find user by id", start)
}

func (r *PgRepository) FindByUsername(ctx context.Context, username string) (domain.User, error) {
	start := time.Now()
	row := r.pool.QueryRow(
		ctx,
		`SELECT `+userColumns+` FROM users WHERE LOWER(user_name) = LOWER($1)`,
		username,
	)
	return scanUser(row, "find user by username", start)
}

func (r *PgRepository) FindSummariesByIDs(ctx context.Context, ids []domain.ID) ([]domain.Summary, error) {
	start := time.Now()

	if len(ids) == 0 {
		return []domain.Summary{}, nil
	}

	rows, err := r.pool.Query(
		ctx,
		`SELECT id, user_name, full_name, profile_image_url, profile_image_key, created_at
		 FROM users
		 WHERE id = ANY($1::text[])
		 ORDER BY user_name ASC`,
		idsToStrings(ids),
	)
	if err != nil {
		return nil, db.HandleQueryError(err, commonerrors.ErrUserNotFound, "find users by ids", start)
	}
	defer rows.Close()

	return scanSummaries(rows, "find users by ids", start)
}

func (r *PgRepository) Search(ctx context.Context, viewerID domain.ID, query string, limit int) ([]domain.Summary, error) {
	start := time.Now()

	pattern := "%" + query + "%"
	rows, err := r.pool.Query(
		ctx,
		`SELECT id, user_name, full_name, profile_image_url, profile_image_key, created_at
		 FROM users
		 WHERE id <> $1 AND (user_name ILIKE $2 OR full_name ILIKE $2)
		 ORDER BY user_name ASC
		 LIMIT $3`,
		string(viewerID),
		pattern,
		limit,
	)
	if err != nil {
		return nil, db.HandleQueryError(err, commonerrors.ErrUserNotFound, "search users", start)
	}
	defer rows.Close()

	return scanSummaries(rows, "search users", start)
}

func (r *PgRepository) UpdateFullName(ctx context.Context, id domain.ID, fullName string) error {
	start := time.Now()
	ct, err := r.pool.Exec(
		ctx,
		`UPDATE users SET full_name = $2, updated_at = NOW() WHERE id = $1`,
		string(id),
		fullName,
	)
	if err := db.HandleExecError(err, "update user profile", start); err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return commonerrors.ErrUserNotFound
	}
	return nil
}

func (r *PgRepository) SetProfileImage(ctx context.Context, id domain.ID, image storage.StoredObject) error {
	start := time.Now()
	ct, err := r.pool.Exec(
		ctx,
		`UPDATE users SET profile_image_url = $2, profile_image_key = $3, updated_at = NOW() WHERE id = $1`,
		string(id),
		image.URL,
		image.Key,
	)
	if err := db.HandleExecError(err, "set profile image", start); err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return commonerrors.ErrUserNotFound
	}
	return nil
}

func (r *PgRepository) ClearProfileImage(ctx context.Context, id domain.ID) error {
	start := time.Now()
	ct, err := r.pool.Exec(
		ctx,
		`UPDATE users SET profile_image_url = NULL, profile_image_key = NULL, updated_at = NOW() WHERE id = $1`,
		string(id),
	)
	if err := db.HandleExecError(err, "clear profile image", start); err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return commonerrors.ErrUserNotFound
	}
	return nil
}

// AddFollower appends follower to the user's follower set. The CASE guard
// keeps the write idempotent: re-adding an existing member leaves the array
// untouched, and the statement still reports one affected row for an
// existing user.
func (r *PgRepository) AddFollower(ctx context.Context, id, follower domain.ID) error {
	return r.addMember(ctx, "followers", id, follower, "add follower")
}

func (r *PgRepository) RemoveFollower(ctx context.Context, id, follower domain.ID) error {
	return r.removeMember(ctx, "followers", id, follower, "remove follower")
}

func (r *PgRepository) AddFollowing(ctx context.Context, id, target domain.ID) error {
	return r.addMember(ctx, "following", id, target, "add following")
}

func (r *PgRepository) RemoveFollowing(ctx context.Context, id, target domain.ID) error {
	return r.removeMember(ctx, "following", id, target, "remove following")
}

func (r *PgRepository) addMember(ctx context.Context, column string, id, member domain.ID, operation string) error {
	start := time.Now()
	ct, err := r.pool.Exec(
		ctx,
		`UPDATE users
		 SET `+column+` = CASE
				WHEN `+column+` @> ARRAY[$2]::text[] THEN `+column+`
				ELSE array_append(`+column+`, $2)
			END,
			updated_at = NOW()
		 WHERE id = $1`,
		string(id),
		string(member),
	)
	if err := db.HandleExecError(err, operation, start); err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return commonerrors.ErrUserNotFound
	}
	return nil
}

func (r *PgRepository) removeMember(ctx context.Context, column string, id, member domain.ID, operation string) error {
	start := time.Now()
	ct, err := r.pool.Exec(
		ctx,
		`UPDATE users
		 SET `+column+` = array_remove(`+column+`, $2), updated_at = NOW()
		 WHERE id = $1`,
		string(id),
		string(member),
	)
	if err := db.HandleExecError(err, operation, start); err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return commonerrors.ErrUserNotFound
	}
	return nil
}

func scanUser(row pgx.Row, operation string, start time.Time) (domain.User, error) {
	var (
		user         domain.User
		id           string
		imgURL       *string
		imgKey       *string
		followersRaw []string
		followingRaw []string
	)

	err := row.Scan(
		&id,
		&user.Username,
		&user.FullName,
		&user.Email,
		&user.PasswordHash,
		&imgURL,
		&imgKey,
		&followersRaw,
		&followingRaw,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err := db.HandleQueryError(err, commonerrors.ErrUserNotFound, operation, start); err != nil {
		return domain.User{}, err
	}

	user.ID = domain.ID(id)
	user.ProfileImage = storedObject(imgURL, imgKey)
	user.Followers = stringsToIDs(followersRaw)
	user.Following = stringsToIDs(followingRaw)
	return user, nil
}

func scanSummaries(rows pgx.Rows, operation string, start time.Time) ([]domain.Summary, error) {
	summaries := []domain.Summary{}
	for rows.Next() {
		var (
			s      domain.Summary
			id     string
			imgURL *string
			imgKey *string
		)
		if err := rows.Scan(&id, &s.Username, &s.FullName, &imgURL, &imgKey, &s.CreatedAt); err != nil {
			return nil, db.HandleQueryError(err, commonerrors.ErrUserNotFound, operation, start)
		}
		s.ID = domain.ID(id)
		s.ProfileImage = storedObject(imgURL, imgKey)
		summaries = append(summaries, s)
	}

	if err := rows.Err(); err != nil {
		return nil, db.HandleQueryError(err, commonerrors.ErrUserNotFound, operation, start)
	}

	db.MeasureQueryDuration(operation, start)
	return summaries, nil
}

func storedObject(url, key *string) *storage.StoredObject {
	if url == nil || key == nil {
		return nil
	}
	return &storage.StoredObject{URL: *url, Key: *key}
}

func idsToStrings(ids []domain.ID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

func stringsToIDs(values []string) []domain.ID {
	out := make([]domain.ID, len(values))
	for i, v := range values {
		out[i] = domain.ID(v)
	}
	return out
}
