// Package domain holds the entities persisted by the store and exposed over
// GraphQL.
package domain

import (
	"strconv"
	"time"
)

// SnippetLength is the number of runes kept by Post.TextSnippet.
const SnippetLength = 50

type User struct {
	ID        int       `json:"id" db:"id"`
	Username  string    `json:"username" db:"username"`
	Email     string    `json:"email" db:"email"`
	Password  string    `json:"-" db:"password"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

type Post struct {
	ID        int       `json:"id" db:"id"`
	Title     string    `json:"title" db:"title"`
	Text      string    `json:"text" db:"text"`
	Points    int       `json:"points" db:"points"`
	CreatorID int       `json:"creatorId" db:"creator_id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// Updoot is a single user's vote on a post. Value is either 1 or -1.
type Updoot struct {
	UserID int `json:"userId" db:"user_id"`
	PostID int `json:"postId" db:"post_id"`
	Value  int `json:"value" db:"value"`
}

// TextSnippet returns the first SnippetLength runes of the post body.
func (p *Post) TextSnippet() string {
	r := []rune(p.Text)
	if len(r) <= SnippetLength {
		return p.Text
	}
	return string(r[:SnippetLength])
}

// VoteValue normalizes a client supplied vote: anything but -1 is an upvote.
func VoteValue(v int) int {
	if v == -1 {
		return -1
	}
	return 1
}

// FormatMillis renders t as milliseconds since the Unix epoch, the format
// used for timestamps and pagination cursors on the wire.
func FormatMillis(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

// ParseMillis is the inverse of FormatMillis.
func ParseMillis(s string) (time.Time, error) {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms), nil
}
