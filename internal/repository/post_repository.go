package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"socialspace/internal/models"
)

// ErrPostNotFound возвращается, когда пост не найден.
var ErrPostNotFound = errors.New("post not found")

// PostRepository отвечает за таблицы posts, post_likes и comments.
type PostRepository struct {
	db *sqlx.DB
}

// NewPostRepository создаёт экземпляр репозитория.
func NewPostRepository(db *sqlx.DB) *PostRepository {
	return &PostRepository{db: db}
}

// Create создаёт новый пост.
func (r *PostRepository) Create(ctx context.Context, post *models.Post) error {
	query := `
		INSERT INTO posts (author_id, content, media_id)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at
	`
	if err := r.db.QueryRowxContext(
		ctx, query,
		post.AuthorID, post.Content, post.MediaID,
	).Scan(&post.ID, &post.CreatedAt, &post.UpdatedAt); err != nil {
		return fmt.Errorf("post repository: create %w", err)
	}

	return nil
}

// GetByID возвращает пост со счётчиками и данными автора.
func (r *PostRepository) GetByID(ctx context.Context, id uuid.UUID, viewerID uuid.UUID) (*models.FeedPost, error) {
	var post models.FeedPost
	query := `
		SELECT p.id, p.author_id, p.content, p.media_id, p.created_at, p.updated_at,
		       u.username AS author_username, u.avatar_id AS author_avatar_id,
		       (SELECT COUNT(*) FROM post_likes l WHERE l.post_id = p.id) AS like_count,
		       (SELECT COUNT(*) FROM comments c WHERE c.post_id = p.id) AS comment_count,
		       EXISTS(SELECT 1 FROM post_likes l WHERE l.post_id = p.id AND l.user_id = $2) AS liked_by_viewer
		FROM posts p
		JOIN users u ON u.id = p.author_id
		WHERE p.id = $1
	`
	if err := r.db.GetContext(ctx, &post, query, id, viewerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPostNotFound
		}
		return nil, fmt.Errorf("post repository: get by id %w", err)
	}

	return &post, nil
}

// ListFeed возвращает ленту постов, свежие первыми.
func (r *PostRepository) ListFeed(ctx context.Context, viewerID uuid.UUID, limit, offset int) ([]models.FeedPost, error) {
	posts := []models.FeedPost{}
	query := `
		SELECT p.id, p.author_id, p.content, p.media_id, p.created_at, p.updated_at,
		       u.username AS author_username, u.avatar_id AS author_avatar_id,
		       (SELECT COUNT(*) FROM post_likes l WHERE l.post_id = p.id) AS like_count,
		       (SELECT COUNT(*) FROM comments c WHERE c.post_id = p.id) AS comment_count,
		       EXISTS(SELECT 1 FROM post_likes l WHERE l.post_id = p.id AND l.user_id = $1) AS liked_by_viewer
		FROM posts p
		JOIN users u ON u.id = p.author_id
		ORDER BY p.created_at DESC
		LIMIT $2 OFFSET $3
	`
	if err := r.db.SelectContext(ctx, &posts, query, viewerID, limit, offset); err != nil {
		return nil, fmt.Errorf("post repository: list feed %w", err)
	}

	return posts, nil
}

// ListByAuthor возвращает посты конкретного пользователя.
func (r *PostRepository) ListByAuthor(ctx context.Context, authorID, viewerID uuid.UUID, limit, offset int) ([]models.FeedPost, error) {
	posts := []models.FeedPost{}
	query := `
		SELECT p.id, p.author_id, p.content, p.media_id, p.created_at, p.updated_at,
		       u.username AS author_username, u.avatar_id AS author_avatar_id,
		       (SELECT COUNT(*) FROM post_likes l WHERE l.post_id = p.id) AS like_count,
		       (SELECT COUNT(*) FROM comments c WHERE c.post_id = p.id) AS comment_count,
		       EXISTS(SELECT 1 FROM post_likes l WHERE l.post_id = p.id AND l.user_id = $2) AS liked_by_viewer
		FROM posts p
		JOIN users u ON u.id = p.author_id
		WHERE p.author_id = $1
		ORDER BY p.created_at DESC
		LIMIT $3 OFFSET $4
	`
	if err := r.db.SelectContext(ctx, &posts, query, authorID, viewerID, limit, offset); err != nil {
		return nil, fmt.Errorf("post repository: list by author %w", err)
	}

	return posts, nil
}

// Update изменяет текст поста. Проверка авторства выражена в WHERE.
func (r *PostRepository) Update(ctx context.Context, postID, authorID uuid.UUID, content string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE posts SET content = $1, updated_at = NOW() WHERE id = $2 AND author_id = $3`,
		content, postID, authorID,
	)
	if err != nil {
		return fmt.Errorf("post repository: update %w", err)
	}

	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrPostNotFound
	}
	return nil
}

// Delete удаляет пост вместе с лайками и комментариями (каскад в схеме).
func (r *PostRepository) Delete(ctx context.Context, postID, authorID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM posts WHERE id = $1 AND author_id = $2`,
		postID, authorID,
	)
	if err != nil {
		return fmt.Errorf("post repository: delete %w", err)
	}

	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrPostNotFound
	}
	return nil
}

// Search ищет посты по вхождению подстроки в текст.
func (r *PostRepository) Search(ctx context.Context, term string, viewerID uuid.UUID, limit int) ([]models.FeedPost, error) {
	posts := []models.FeedPost{}
	query := `
		SELECT p.id, p.author_id, p.content, p.media_id, p.created_at, p.updated_at,
		       u.username AS author_username, u.avatar_id AS author_avatar_id,
		       (SELECT COUNT(*) FROM post_likes l WHERE l.post_id = p.id) AS like_count,
		       (SELECT COUNT(*) FROM comments c WHERE c.post_id = p.id) AS comment_count,
		       EXISTS(SELECT 1 FROM post_likes l WHERE l.post_id = p.id AND l.user_id = $2) AS liked_by_viewer
		FROM posts p
		JOIN users u ON u.id = p.author_id
		WHERE p.content ILIKE '%' || $1 || '%'
		ORDER BY p.created_at DESC
		LIMIT $3
	`
	if err := r.db.SelectContext(ctx, &posts, query, term, viewerID, limit); err != nil {
		return nil, fmt.Errorf("post repository: search %w", err)
	}

	return posts, nil
}

// AddLike ставит лайк. Повторный лайк того же пользователя — no-op.
// Возвращает true, если лайк был добавлен этой операцией.
func (r *PostRepository) AddLike(ctx context.Context, postID, userID uuid.UUID) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO post_likes (post_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (post_id, user_id) DO NOTHING
	`, postID, userID)
	if err != nil {
		return false, fmt.Errorf("post repository: add like %w", err)
	}

	n, _ := res.RowsAffected()
	return n > 0, nil
}

// RemoveLike снимает лайк.
func (r *PostRepository) RemoveLike(ctx context.Context, postID, userID uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM post_likes WHERE post_id = $1 AND user_id = $2`,
		postID, userID,
	); err != nil {
		return fmt.Errorf("post repository: remove like %w", err)
	}
	return nil
}

// HasLike сообщает, лайкнул ли пользователь пост.
func (r *PostRepository) HasLike(ctx context.Context, postID, userID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM post_likes WHERE post_id = $1 AND user_id = $2)`,
		postID, userID,
	)
	if err != nil {
		return false, fmt.Errorf("post repository: has like %w", err)
	}
	return exists, nil
}

// CreateComment добавляет комментарий к посту.
func (r *PostRepository) CreateComment(ctx context.Context, comment *models.Comment) error {
	query := `
		INSERT INTO comments (post_id, author_id, content)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`
	if err := r.db.QueryRowxContext(
		ctx, query,
		comment.PostID, comment.AuthorID, comment.Content,
	).Scan(&comment.ID, &comment.CreatedAt); err != nil {
		return fmt.Errorf("post repository: create comment %w", err)
	}

	return nil
}

// ListComments возвращает комментарии поста в хронологическом порядке.
func (r *PostRepository) ListComments(ctx context.Context, postID uuid.UUID, limit, offset int) ([]models.Comment, error) {
	comments := []models.Comment{}
	query := `
		SELECT c.id, c.post_id, c.author_id, u.username AS author_username, c.content, c.created_at
		FROM comments c
		JOIN users u ON u.id = c.author_id
		WHERE c.post_id = $1
		ORDER BY c.created_at
		LIMIT $2 OFFSET $3
	`
	if err := r.db.SelectContext(ctx, &comments, query, postID, limit, offset); err != nil {
		return nil, fmt.Errorf("post repository: list comments %w", err)
	}

	return comments, nil
}
