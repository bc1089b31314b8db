package domain

import (
	"time"

	"github.com/pixfeed/pixfeed/backend/internal/storage"
)

type ID string

// User carries both adjacency lists inline. An edge a→b is stored twice:
// b in Following(a) and a in Followers(b).
type User struct {
	ID           ID
	Username     string
	FullName     string
	Email        string
	PasswordHash string
	ProfileImage *storage.StoredObject
	Followers    []ID
	Following    []ID
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Summary is the public-safe projection used in search results, social
// stats and feed author joins. Password and adjacency internals excluded.
type Summary struct {
	ID           ID
	Username     string
	FullName     string
	ProfileImage *storage.StoredObject
	CreatedAt    time.Time
}

func (u User) Summary() Summary {
	return Summary{
		ID:           u.ID,
		Username:     u.Username,
		FullName:     u.FullName,
		ProfileImage: u.ProfileImage,
		CreatedAt:    u.CreatedAt,
	}
}

// IsFollowedBy reports whether viewer appears in the user's follower set.
func (u User) IsFollowedBy(viewer ID) bool {
	for _, f := range u.Followers {
		if f == viewer {
			return true
		}
	}
	return false
}
