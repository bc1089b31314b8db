package domain

import (
	"time"

	"github.com/pixfeed/pixfeed/backend/internal/storage"
	userdomain "github.com/pixfeed/pixfeed/backend/internal/user/domain"
)

type ID string

type Post struct {
	ID       ID
	AuthorID userdomain.ID
	Detail   string
	// Images keeps upload order. Non-empty for every persisted post.
	Images    []storage.StoredObject
	Likes     []userdomain.ID
	CreatedAt time.Time
}

// FeedEntry is the read-side projection: a post joined with its author's
// public fields and annotated for the requesting viewer. Never persisted.
type FeedEntry struct {
	Post
	Author      userdomain.Summary
	IsFollowing bool
}

func (p Post) IsLikedBy(userID userdomain.ID) bool {
	for _, l := range p.Likes {
		if l == userID {
			return true
		}
	}
	return false
}
