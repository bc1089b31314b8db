package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	pgx "github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/pixfeed/pixfeed/backend/internal/common/db"
	commonerrors "github.com/pixfeed/pixfeed/backend/internal/common/errors"
	"github.com/pixfeed/pixfeed/backend/internal/post/domain"
	"github.com/pixfeed/pixfeed/backend/internal/storage"
	userdomain "github.com/pixfeed/pixfeed/backend/internal/user/domain"
)

type Repository interface {
	Create(ctx context.Context, post domain.Post) error
	DeleteByIDAndAuthor(ctx context.Context, id domain.ID, authorID userdomain.ID) (domain.Post, error)
	AddLike(ctx context.Context, id domain.ID, userID userdomain.ID) error
	RemoveLike(ctx context.Context, id domain.ID, userID userdomain.ID) error
	FeedByAuthors(ctx context.Context, authorIDs []userdomain.ID, viewerID userdomain.ID) ([]domain.FeedEntry, error)
	FeedByID(ctx context.Context, id domain.ID, viewerID userdomain.ID) (domain.FeedEntry, error)
}

// feedQuery is the read-path aggregation: post joined with its author row,
// the author projected down to public fields, is_following computed against
// the viewer at query time. created_at DESC with id DESC as a deterministic
// tiebreaker.
const feedQuery = `
	SELECT p.id, p.author_id, p.detail, p.images, p.likes, p.created_at,
	       u.user_name, u.full_name, u.profile_image_url, u.profile_image_key, u.created_at,
	       $2 = ANY(u.followers) AS is_following
	FROM posts p
	JOIN users u ON u.id = p.author_id`

const feedByAuthorsQuery = feedQuery + `
	WHERE p.author_id = ANY($1::text[])
	ORDER BY p.created_at DESC, p.id DESC`

const feedByIDQuery = feedQuery + `
	WHERE p.id = $1`

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func (r *PgRepository) Create(ctx context.Context, post domain.Post) error {
	start := time.Now()

	imagesJSON, err := json.Marshal(post.Images)
	if err != nil {
		return fmt.Errorf("failed to encode post images: %w", err)
	}

	_, err = r.pool.Exec(
		ctx,
		`INSERT INTO posts (id, author_id, detail, images, likes, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		string(post.ID),
		string(post.AuthorID),
		post.Detail,
		imagesJSON,
		idsToStrings(post.Likes),
		post.CreatedAt,
	)
	return db.HandleExecError(err, "create post", start)
}

// DeleteByIDAndAuthor removes the post only when authorID owns it and
// returns the deleted record so the caller can clean up stored images.
// A non-owner and a missing post are indistinguishable: both report
// not-found.
func (r *PgRepository) DeleteByIDAndAuthor(ctx context.Context, id domain.ID, authorID userdomain.ID) (domain.Post, error) {
	start := time.Now()

	row := r.pool.QueryRow(
		ctx,
		`DELETE FROM posts
		 WHERE id = $1 AND author_id = $2
		 RETURNING id, author_id, detail, images, likes, created_at`,
		string(id),
		string(authorID),
	)

	post, err := scanPostRow(row)
	if err := db.HandleQueryError(err, commonerrors.ErrPostNotFound, "delete post", start); err != nil {
		return domain.Post{}, err
	}
	return post, nil
}

// AddLike relies on the store's atomic array update so concurrent likes from
// different viewers cannot lose each other. The CASE guard gives set
// semantics.
func (r *PgRepository) AddLike(ctx context.Context, id domain.ID, userID userdomain.ID) error {
	start := time.Now()
	ct, err := r.pool.Exec(
		ctx,
		`UPDATE posts
		 SET likes = CASE
				WHEN likes @> ARRAY[$2]::text[] THEN likes
				ELSE array_append(likes, $2)
			END
		 WHERE id = $1`,
		string(id),
		string(userID),
	)
	if err := db.HandleExecError(err, "like post", start); err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return commonerrors.ErrPostNotFound
	}
	return nil
}

func (r *PgRepository) RemoveLike(ctx context.Context, id domain.ID, userID userdomain.ID) error {
	start := time.Now()
	ct, err := r.pool.Exec(
		ctx,
		`UPDATE posts SET likes = array_remove(likes, $2) WHERE id = $1`,
		string(id),
		string(userID),
	)
	if err := db.HandleExecError(err, "unlike post", start); err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return commonerrors.ErrPostNotFound
	}
	return nil
}

func (r *PgRepository) FeedByAuthors(ctx context.Context, authorIDs []userdomain.ID, viewerID userdomain.ID) ([]domain.FeedEntry, error) {
	start := time.Now()

	if len(authorIDs) == 0 {
		return []domain.FeedEntry{}, nil
	}

	rows, err := r.pool.Query(
		ctx,
		feedByAuthorsQuery,
		idsToStrings(authorIDs),
		string(viewerID),
	)
	if err != nil {
		return nil, db.HandleQueryError(err, commonerrors.ErrPostNotFound, "feed by authors", start)
	}
	defer rows.Close()

	entries := []domain.FeedEntry{}
	for rows.Next() {
		entry, err := scanFeedEntry(rows)
		if err != nil {
			return nil, db.HandleQueryError(err, commonerrors.ErrPostNotFound, "feed by authors", start)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, db.HandleQueryError(err, commonerrors.ErrPostNotFound, "feed by authors", start)
	}

	db.MeasureQueryDuration("feed by authors", start)
	return entries, nil
}

func (r *PgRepository) FeedByID(ctx context.Context, id domain.ID, viewerID userdomain.ID) (domain.FeedEntry, error) {
	start := time.Now()

	rows, err := r.pool.Query(
		ctx,
		feedByIDQuery,
		string(id),
		string(viewerID),
	)
	if err != nil {
		return domain.FeedEntry{}, db.HandleQueryError(err, commonerrors.ErrPostNotFound, "feed by id", start)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return domain.FeedEntry{}, db.HandleQueryError(err, commonerrors.ErrPostNotFound, "feed by id", start)
		}
		return domain.FeedEntry{}, commonerrors.ErrPostNotFound
	}

	entry, err := scanFeedEntry(rows)
	if err := db.HandleQueryError(err, commonerrors.ErrPostNotFound, "feed by id", start); err != nil {
		return domain.FeedEntry{}, err
	}
	return entry, nil
}

type postScanner interface {
	Scan(dest ...interface{}) error
}

func scanPost(s postScanner) (domain.Post, error) {
	var (
		post      domain.Post
		id        string
		authorID  string
		imagesRaw []byte
		likesRaw  []string
	)

	if err := s.Scan(&id, &authorID, &post.Detail, &imagesRaw, &likesRaw, &post.CreatedAt); err != nil {
		return domain.Post{}, err
	}

	images := []storage.StoredObject{}
	if len(imagesRaw) > 0 {
		if err := json.Unmarshal(imagesRaw, &images); err != nil {
			return domain.Post{}, fmt.Errorf("failed to decode post images: %w", err)
		}
	}

	post.ID = domain.ID(id)
	post.AuthorID = userdomain.ID(authorID)
	post.Images = images
	post.Likes = stringsToIDs(likesRaw)
	return post, nil
}

func scanPostRow(row pgx.Row) (domain.Post, error) {
	return scanPost(row)
}

func scanFeedEntry(s postScanner) (domain.FeedEntry, error) {
	var (
		entry     domain.FeedEntry
		id        string
		authorID  string
		imagesRaw []byte
		likesRaw  []string
		imgURL    *string
		imgKey    *string
	)

	err := s.Scan(
		&id,
		&authorID,
		&entry.Detail,
		&imagesRaw,
		&likesRaw,
		&entry.CreatedAt,
		&entry.Author.Username,
		&entry.Author.FullName,
		&imgURL,
		&imgKey,
		&entry.Author.CreatedAt,
		&entry.IsFollowing,
	)
	if err != nil {
		return domain.FeedEntry{}, err
	}

	images := []storage.StoredObject{}
	if len(imagesRaw) > 0 {
		if err := json.Unmarshal(imagesRaw, &images); err != nil {
			return domain.FeedEntry{}, fmt.Errorf("failed to decode post images: %w", err)
		}
	}

	entry.ID = domain.ID(id)
	entry.AuthorID = userdomain.ID(authorID)
	entry.Images = images
	entry.Likes = stringsToIDs(likesRaw)
	entry.Author.ID = userdomain.ID(authorID)
	if imgURL != nil && imgKey != nil {
		entry.Author.ProfileImage = &storage.StoredObject{URL: *imgURL, Key: *imgKey}
	}
	return entry, nil
}

func idsToStrings(ids []userdomain.ID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

func stringsToIDs(values []string) []userdomain.ID {
	out := make([]userdomain.ID, len(values))
	for i, v := range values {
		out[i] = userdomain.ID(v)
	}
	return out
}
