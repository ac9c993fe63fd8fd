package models

import (
	"time"

	"github.com/google/uuid"
)

// Post описывает публикацию пользователя.
type Post struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	AuthorID  uuid.UUID  `db:"author_id" json:"author_id"`
	Content   string     `db:"content" json:"content"`
	MediaID   *uuid.UUID `db:"media_id" json:"media_id,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

// FeedPost — пост в ленте вместе с данными автора и счётчиками.
type FeedPost struct {
	Post
	AuthorUsername string     `db:"author_username" json:"author_username"`
	AuthorAvatarID *uuid.UUID `db:"author_avatar_id" json:"author_avatar_id,omitempty"`
	LikeCount      int        `db:"like_count" json:"like_count"`
	CommentCount   int        `db:"comment_count" json:"comment_count"`
	LikedByViewer  bool       `db:"liked_by_viewer" json:"liked_by_viewer"`
}

// Comment — комментарий к посту.
type Comment struct {
	ID             uuid.UUID `db:"id" json:"id"`
	PostID         uuid.UUID `db:"post_id" json:"post_id"`
	AuthorID       uuid.UUID `db:"author_id" json:"author_id"`
	AuthorUsername string    `db:"author_username" json:"author_username"`
	Content        string    `db:"content" json:"content"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// Bookmark — закладка пользователя на пост.
type Bookmark struct {
	UserID    uuid.UUID `db:"user_id" json:"user_id"`
	PostID    uuid.UUID `db:"post_id" json:"post_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Follow — подписка одного пользователя на другого.
type Follow struct {
	FollowerID uuid.UUID `db:"follower_id" json:"follower_id"`
	FolloweeID uuid.UUID `db:"followee_id" json:"followee_id"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
