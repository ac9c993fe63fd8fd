package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"socialspace/internal/models"
)

// ErrFollowNotFound возвращается при попытке отписаться без подписки.
var ErrFollowNotFound = errors.New("follow not found")

// SocialRepository отвечает за таблицы follows и bookmarks.
type SocialRepository struct {
	db *sqlx.DB
}

// NewSocialRepository создаёт экземпляр репозитория.
func NewSocialRepository(db *sqlx.DB) *SocialRepository {
	return &SocialRepository{db: db}
}

// Follow подписывает follower на followee. Повторная подписка — no-op.
// Возвращает true, если подписка была создана этой операцией.
func (r *SocialRepository) Follow(ctx context.Context, followerID, followeeID uuid.UUID) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO follows (follower_id, followee_id)
		VALUES ($1, $2)
		ON CONFLICT (follower_id, followee_id) DO NOTHING
	`, followerID, followeeID)
	if err != nil {
		return false, fmt.Errorf("social repository: follow %w", err)
	}

	n, _ := res.RowsAffected()
	return n > 0, nil
}

// Unfollow снимает подписку.
func (r *SocialRepository) Unfollow(ctx context.Context, followerID, followeeID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM follows WHERE follower_id = $1 AND followee_id = $2`,
		followerID, followeeID,
	)
	if err != nil {
		return fmt.Errorf("social repository: unfollow %w", err)
	}

	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrFollowNotFound
	}
	return nil
}

// ListFollowers возвращает подписчиков пользователя.
func (r *SocialRepository) ListFollowers(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.PublicProfile, error) {
	rows := []models.PublicProfile{}
	query := `
		SELECT u.id, u.username, u.bio, u.avatar_id, u.created_at,
		       0 AS post_count, 0 AS follower_count, 0 AS following_count
		FROM follows f
		JOIN users u ON u.id = f.follower_id
		WHERE f.followee_id = $1
		ORDER BY f.created_at DESC
		LIMIT $2 OFFSET $3
	`
	if err := r.db.SelectContext(ctx, &rows, query, userID, limit, offset); err != nil {
		return nil, fmt.Errorf("social repository: list followers %w", err)
	}

	return rows, nil
}

// ListFollowing возвращает подписки пользователя.
func (r *SocialRepository) ListFollowing(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.PublicProfile, error) {
	rows := []models.PublicProfile{}
	query := `
		SELECT u.id, u.username, u.bio, u.avatar_id, u.created_at,
		       0 AS post_count, 0 AS follower_count, 0 AS following_count
		FROM follows f
		JOIN users u ON u.id = f.followee_id
		WHERE f.follower_id = $1
		ORDER BY f.created_at DESC
		LIMIT $2 OFFSET $3
	`
	if err := r.db.SelectContext(ctx, &rows, query, userID, limit, offset); err != nil {
		return nil, fmt.Errorf("social repository: list following %w", err)
	}

	return rows, nil
}

// AddBookmark добавляет пост в закладки. Дубликат — no-op.
func (r *SocialRepository) AddBookmark(ctx context.Context, userID, postID uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO bookmarks (user_id, post_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, post_id) DO NOTHING
	`, userID, postID); err != nil {
		return fmt.Errorf("social repository: add bookmark %w", err)
	}
	return nil
}

// RemoveBookmark убирает пост из закладок. Отсутствие строки не ошибка.
func (r *SocialRepository) RemoveBookmark(ctx context.Context, userID, postID uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM bookmarks WHERE user_id = $1 AND post_id = $2`,
		userID, postID,
	); err != nil {
		return fmt.Errorf("social repository: remove bookmark %w", err)
	}
	return nil
}

// ListBookmarks возвращает закладки пользователя вместе с постами.
func (r *SocialRepository) ListBookmarks(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.FeedPost, error) {
	posts := []models.FeedPost{}
	query := `
		SELECT p.id, p.author_id, p.content, p.media_id, p.created_at, p.updated_at,
		       u.username AS author_username, u.avatar_id AS author_avatar_id,
		       (SELECT COUNT(*) FROM post_likes l WHERE l.post_id = p.id) AS like_count,
		       (SELECT COUNT(*) FROM comments c WHERE c.post_id = p.id) AS comment_count,
		       EXISTS(SELECT 1 FROM post_likes l WHERE l.post_id = p.id AND l.user_id = $1) AS liked_by_viewer
		FROM bookmarks b
		JOIN posts p ON p.id = b.post_id
		JOIN users u ON u.id = p.author_id
		WHERE b.user_id = $1
		ORDER BY b.created_at DESC
		LIMIT $2 OFFSET $3
	`
	if err := r.db.SelectContext(ctx, &posts, query, userID, limit, offset); err != nil {
		return nil, fmt.Errorf("social repository: list bookmarks %w", err)
	}

	return posts, nil
}
