package service

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"

	"socialspace/internal/models"
	"socialspace/internal/repository"
)

// mockPostRepository реализует PostRepository в памяти.
type mockPostRepository struct {
	posts map[uuid.UUID]*models.Post
	likes map[uuid.UUID]map[uuid.UUID]bool
}

func newMockPostRepository() *mockPostRepository {
	return &mockPostRepository{
		posts: make(map[uuid.UUID]*models.Post),
		likes: make(map[uuid.UUID]map[uuid.UUID]bool),
	}
}

func (m *mockPostRepository) Create(ctx context.Context, post *models.Post) error {
	post.ID = uuid.New()
	m.posts[post.ID] = post
	m.likes[post.ID] = make(map[uuid.UUID]bool)
	return nil
}

func (m *mockPostRepository) GetByID(ctx context.Context, id uuid.UUID, viewerID uuid.UUID) (*models.FeedPost, error) {
	post, ok := m.posts[id]
	if !ok {
		return nil, repository.ErrPostNotFound
	}
	return &models.FeedPost{Post: *post, LikeCount: len(m.likes[id])}, nil
}

func (m *mockPostRepository) ListFeed(ctx context.Context, viewerID uuid.UUID, limit, offset int) ([]models.FeedPost, error) {
	return nil, nil
}

func (m *mockPostRepository) ListByAuthor(ctx context.Context, authorID, viewerID uuid.UUID, limit, offset int) ([]models.FeedPost, error) {
	return nil, nil
}

func (m *mockPostRepository) Update(ctx context.Context, postID, authorID uuid.UUID, content string) error {
	post, ok := m.posts[postID]
	if !ok || post.AuthorID != authorID {
		return repository.ErrPostNotFound
	}
	post.Content = content
	return nil
}

func (m *mockPostRepository) Delete(ctx context.Context, postID, authorID uuid.UUID) error {
	post, ok := m.posts[postID]
	if !ok || post.AuthorID != authorID {
		return repository.ErrPostNotFound
	}
	delete(m.posts, postID)
	return nil
}

func (m *mockPostRepository) Search(ctx context.Context, term string, viewerID uuid.UUID, limit int) ([]models.FeedPost, error) {
	return nil, nil
}

func (m *mockPostRepository) AddLike(ctx context.Context, postID, userID uuid.UUID) (bool, error) {
	if m.likes[postID][userID] {
		return false, nil
	}
	m.likes[postID][userID] = true
	return true, nil
}

func (m *mockPostRepository) RemoveLike(ctx context.Context, postID, userID uuid.UUID) error {
	delete(m.likes[postID], userID)
	return nil
}

func (m *mockPostRepository) HasLike(ctx context.Context, postID, userID uuid.UUID) (bool, error) {
	return m.likes[postID][userID], nil
}

func (m *mockPostRepository) CreateComment(ctx context.Context, comment *models.Comment) error {
	comment.ID = uuid.New()
	return nil
}

func (m *mockPostRepository) ListComments(ctx context.Context, postID uuid.UUID, limit, offset int) ([]models.Comment, error) {
	return nil, nil
}

// mockSocialGraph реализует SocialGraph в памяти.
type mockSocialGraph struct {
	follows map[string]bool
}

func newMockSocialGraph() *mockSocialGraph {
	return &mockSocialGraph{follows: make(map[string]bool)}
}

func followKey(followerID, followeeID uuid.UUID) string {
	return followerID.String() + "|" + followeeID.String()
}

func (m *mockSocialGraph) Follow(ctx context.Context, followerID, followeeID uuid.UUID) (bool, error) {
	key := followKey(followerID, followeeID)
	if m.follows[key] {
		return false, nil
	}
	m.follows[key] = true
	return true, nil
}

func (m *mockSocialGraph) Unfollow(ctx context.Context, followerID, followeeID uuid.UUID) error {
	delete(m.follows, followKey(followerID, followeeID))
	return nil
}

func (m *mockSocialGraph) ListFollowers(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.PublicProfile, error) {
	return nil, nil
}

func (m *mockSocialGraph) ListFollowing(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.PublicProfile, error) {
	return nil, nil
}

func (m *mockSocialGraph) AddBookmark(ctx context.Context, userID, postID uuid.UUID) error {
	return nil
}

func (m *mockSocialGraph) RemoveBookmark(ctx context.Context, userID, postID uuid.UUID) error {
	return nil
}

func (m *mockSocialGraph) ListBookmarks(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.FeedPost, error) {
	return nil, nil
}

// mockNotifier записывает отправленные события.
type mockNotifier struct {
	events []string
	users  []uuid.UUID
}

func (m *mockNotifier) BroadcastToUser(userID uuid.UUID, event string, data any) error {
	m.events = append(m.events, event)
	m.users = append(m.users, userID)
	return nil
}

func TestPostService_ToggleLike(t *testing.T) {
	posts := newMockPostRepository()
	notifier := &mockNotifier{}
	svc := NewPostService(posts, newMockSocialGraph(), notifier)
	ctx := context.Background()

	author := uuid.New()
	viewer := uuid.New()
	post, err := svc.CreatePost(ctx, author, "привет, мир", nil)
	if err != nil {
		t.Fatalf("createPost вернул ошибку: %v", err)
	}

	liked, err := svc.ToggleLike(ctx, post.ID, viewer)
	if err != nil {
		t.Fatalf("toggleLike вернул ошибку: %v", err)
	}
	if !liked {
		t.Fatalf("первый вызов должен поставить лайк")
	}

	// Автору ушло уведомление о новом лайке.
	if len(notifier.events) != 1 || notifier.events[0] != models.NotificationEventLike {
		t.Fatalf("ожидалось уведомление %s, получили %v", models.NotificationEventLike, notifier.events)
	}
	if notifier.users[0] != author {
		t.Fatalf("уведомление должно уйти автору поста")
	}

	liked, err = svc.ToggleLike(ctx, post.ID, viewer)
	if err != nil {
		t.Fatalf("toggleLike вернул ошибку: %v", err)
	}
	if liked {
		t.Fatalf("второй вызов должен снять лайк")
	}

	// Снятие лайка уведомления не порождает.
	if len(notifier.events) != 1 {
		t.Fatalf("лишние уведомления: %v", notifier.events)
	}
}

func TestPostService_SelfLikeNoNotification(t *testing.T) {
	posts := newMockPostRepository()
	notifier := &mockNotifier{}
	svc := NewPostService(posts, newMockSocialGraph(), notifier)
	ctx := context.Background()

	author := uuid.New()
	post, _ := svc.CreatePost(ctx, author, "свой пост", nil)

	if _, err := svc.ToggleLike(ctx, post.ID, author); err != nil {
		t.Fatalf("toggleLike вернул ошибку: %v", err)
	}

	if len(notifier.events) != 0 {
		t.Fatalf("лайк собственного поста не должен порождать уведомления: %v", notifier.events)
	}
}

func TestPostService_CreatePostTooLong(t *testing.T) {
	svc := NewPostService(newMockPostRepository(), newMockSocialGraph(), nil)

	content := strings.Repeat("а", 5001)
	if _, err := svc.CreatePost(context.Background(), uuid.New(), content, nil); err == nil {
		t.Fatalf("слишком длинный пост должен отклоняться")
	}
}

func TestPostService_SelfFollowRejected(t *testing.T) {
	svc := NewPostService(newMockPostRepository(), newMockSocialGraph(), nil)

	userID := uuid.New()
	if err := svc.FollowUser(context.Background(), userID, userID); err == nil {
		t.Fatalf("подписка на себя должна отклоняться")
	}
}

func TestPostService_RepeatFollowNoDuplicateNotification(t *testing.T) {
	notifier := &mockNotifier{}
	svc := NewPostService(newMockPostRepository(), newMockSocialGraph(), notifier)
	ctx := context.Background()

	follower := uuid.New()
	followee := uuid.New()

	if err := svc.FollowUser(ctx, follower, followee); err != nil {
		t.Fatalf("followUser вернул ошибку: %v", err)
	}
	if err := svc.FollowUser(ctx, follower, followee); err != nil {
		t.Fatalf("повторная подписка не должна быть ошибкой: %v", err)
	}

	if len(notifier.events) != 1 {
		t.Fatalf("повторная подписка не должна дублировать уведомление: %v", notifier.events)
	}
}
