package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"socialspace/internal/logger"
	"socialspace/internal/models"
	"socialspace/internal/pkg/apperror"
	"socialspace/internal/validation"
)

// PostRepository описывает зависимости сервиса постов от хранилища.
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uuid.UUID, viewerID uuid.UUID) (*models.FeedPost, error)
	ListFeed(ctx context.Context, viewerID uuid.UUID, limit, offset int) ([]models.FeedPost, error)
	ListByAuthor(ctx context.Context, authorID, viewerID uuid.UUID, limit, offset int) ([]models.FeedPost, error)
	Update(ctx context.Context, postID, authorID uuid.UUID, content string) error
	Delete(ctx context.Context, postID, authorID uuid.UUID) error
	Search(ctx context.Context, term string, viewerID uuid.UUID, limit int) ([]models.FeedPost, error)
	AddLike(ctx context.Context, postID, userID uuid.UUID) (bool, error)
	RemoveLike(ctx context.Context, postID, userID uuid.UUID) error
	HasLike(ctx context.Context, postID, userID uuid.UUID) (bool, error)
	CreateComment(ctx context.Context, comment *models.Comment) error
	ListComments(ctx context.Context, postID uuid.UUID, limit, offset int) ([]models.Comment, error)
}

// SocialGraph описывает операции подписок и закладок.
type SocialGraph interface {
	Follow(ctx context.Context, followerID, followeeID uuid.UUID) (bool, error)
	Unfollow(ctx context.Context, followerID, followeeID uuid.UUID) error
	ListFollowers(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.PublicProfile, error)
	ListFollowing(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.PublicProfile, error)
	AddBookmark(ctx context.Context, userID, postID uuid.UUID) error
	RemoveBookmark(ctx context.Context, userID, postID uuid.UUID) error
	ListBookmarks(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.FeedPost, error)
}

// Notifier доставляет событие пользователю (WebSocket + запись в БД).
type Notifier interface {
	BroadcastToUser(userID uuid.UUID, event string, data any) error
}

// PostService содержит бизнес-логику ленты, лайков, комментариев,
// подписок и закладок.
type PostService struct {
	posts    PostRepository
	social   SocialGraph
	notifier Notifier
}

// NewPostService создаёт сервис постов.
func NewPostService(posts PostRepository, social SocialGraph, notifier Notifier) *PostService {
	return &PostService{
		posts:    posts,
		social:   social,
		notifier: notifier,
	}
}

// CreatePost публикует новый пост.
func (s *PostService) CreatePost(ctx context.Context, authorID uuid.UUID, content string, mediaID *uuid.UUID) (*models.Post, error) {
	if err := validation.ValidateLength("текст поста", content, validation.MinPostLength, validation.MaxPostLength); err != nil {
		return nil, fmt.Errorf("post service: %w", err)
	}

	post := &models.Post{
		AuthorID: authorID,
		Content:  content,
		MediaID:  mediaID,
	}

	if err := s.posts.Create(ctx, post); err != nil {
		return nil, err
	}

	return post, nil
}

// GetPost возвращает пост со счётчиками.
func (s *PostService) GetPost(ctx context.Context, postID, viewerID uuid.UUID) (*models.FeedPost, error) {
	return s.posts.GetByID(ctx, postID, viewerID)
}

// Feed возвращает ленту постов.
func (s *PostService) Feed(ctx context.Context, viewerID uuid.UUID, limit, offset int) ([]models.FeedPost, error) {
	limit, offset = clampPage(limit, offset)
	return s.posts.ListFeed(ctx, viewerID, limit, offset)
}

// UserPosts возвращает посты пользователя.
func (s *PostService) UserPosts(ctx context.Context, authorID, viewerID uuid.UUID, limit, offset int) ([]models.FeedPost, error) {
	limit, offset = clampPage(limit, offset)
	return s.posts.ListByAuthor(ctx, authorID, viewerID, limit, offset)
}

// UpdatePost меняет текст собственного поста.
func (s *PostService) UpdatePost(ctx context.Context, postID, authorID uuid.UUID, content string) error {
	if err := validation.ValidateLength("текст поста", content, validation.MinPostLength, validation.MaxPostLength); err != nil {
		return fmt.Errorf("post service: %w", err)
	}
	return s.posts.Update(ctx, postID, authorID, content)
}

// DeletePost удаляет собственный пост.
func (s *PostService) DeletePost(ctx context.Context, postID, authorID uuid.UUID) error {
	return s.posts.Delete(ctx, postID, authorID)
}

// SearchPosts ищет посты по тексту.
func (s *PostService) SearchPosts(ctx context.Context, term string, viewerID uuid.UUID, limit int) ([]models.FeedPost, error) {
	if limit <= 0 || limit > 50 {
		limit = 20
	}
	return s.posts.Search(ctx, term, viewerID, limit)
}

// ToggleLike ставит либо снимает лайк и возвращает итоговое состояние.
// Автору поста уходит уведомление только о новом лайке.
func (s *PostService) ToggleLike(ctx context.Context, postID, userID uuid.UUID) (bool, error) {
	post, err := s.posts.GetByID(ctx, postID, userID)
	if err != nil {
		return false, err
	}

	liked, err := s.posts.HasLike(ctx, postID, userID)
	if err != nil {
		return false, err
	}

	if liked {
		if err := s.posts.RemoveLike(ctx, postID, userID); err != nil {
			return false, err
		}
		return false, nil
	}

	added, err := s.posts.AddLike(ctx, postID, userID)
	if err != nil {
		return false, err
	}

	if added && post.AuthorID != userID {
		s.notify(post.AuthorID, models.NotificationEventLike, map[string]any{
			"post_id": postID,
			"user_id": userID,
		})
	}

	return true, nil
}

// AddComment добавляет комментарий и уведомляет автора поста.
func (s *PostService) AddComment(ctx context.Context, postID, authorID uuid.UUID, content string) (*models.Comment, error) {
	if err := validation.ValidateLength("комментарий", content, validation.MinCommentLength, validation.MaxCommentLength); err != nil {
		return nil, fmt.Errorf("post service: %w", err)
	}

	post, err := s.posts.GetByID(ctx, postID, authorID)
	if err != nil {
		return nil, err
	}

	comment := &models.Comment{
		PostID:   postID,
		AuthorID: authorID,
		Content:  content,
	}

	if err := s.posts.CreateComment(ctx, comment); err != nil {
		return nil, err
	}

	if post.AuthorID != authorID {
		s.notify(post.AuthorID, models.NotificationEventComment, map[string]any{
			"post_id":    postID,
			"comment_id": comment.ID,
			"user_id":    authorID,
		})
	}

	return comment, nil
}

// Comments возвращает комментарии поста.
func (s *PostService) Comments(ctx context.Context, postID uuid.UUID, limit, offset int) ([]models.Comment, error) {
	limit, offset = clampPage(limit, offset)
	return s.posts.ListComments(ctx, postID, limit, offset)
}

// FollowUser подписывает пользователя. Подписка на себя запрещена.
func (s *PostService) FollowUser(ctx context.Context, followerID, followeeID uuid.UUID) error {
	if followerID == followeeID {
		return apperror.New(apperror.ErrCodeBadRequest, "нельзя подписаться на себя")
	}

	created, err := s.social.Follow(ctx, followerID, followeeID)
	if err != nil {
		return err
	}

	if created {
		s.notify(followeeID, models.NotificationEventFollow, map[string]any{
			"user_id": followerID,
		})
	}

	return nil
}

// UnfollowUser снимает подписку.
func (s *PostService) UnfollowUser(ctx context.Context, followerID, followeeID uuid.UUID) error {
	return s.social.Unfollow(ctx, followerID, followeeID)
}

// Followers возвращает подписчиков пользователя.
func (s *PostService) Followers(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.PublicProfile, error) {
	limit, offset = clampPage(limit, offset)
	return s.social.ListFollowers(ctx, userID, limit, offset)
}

// Following возвращает подписки пользователя.
func (s *PostService) Following(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.PublicProfile, error) {
	limit, offset = clampPage(limit, offset)
	return s.social.ListFollowing(ctx, userID, limit, offset)
}

// AddBookmark сохраняет пост в закладки.
func (s *PostService) AddBookmark(ctx context.Context, userID, postID uuid.UUID) error {
	if _, err := s.posts.GetByID(ctx, postID, userID); err != nil {
		return err
	}
	return s.social.AddBookmark(ctx, userID, postID)
}

// RemoveBookmark убирает пост из закладок.
func (s *PostService) RemoveBookmark(ctx context.Context, userID, postID uuid.UUID) error {
	return s.social.RemoveBookmark(ctx, userID, postID)
}

// Bookmarks возвращает закладки пользователя.
func (s *PostService) Bookmarks(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.FeedPost, error) {
	limit, offset = clampPage(limit, offset)
	return s.social.ListBookmarks(ctx, userID, limit, offset)
}

// notify отправляет уведомление, не прерывая основную операцию при сбое.
func (s *PostService) notify(userID uuid.UUID, event string, data map[string]any) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.BroadcastToUser(userID, event, data); err != nil {
		logger.WithComponent("post service").Warnf("не удалось отправить уведомление %s: %v", event, err)
	}
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
