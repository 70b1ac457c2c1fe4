package repository

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"study-with-speech/internal/model"
	"study-with-speech/pkg/database"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.Open("sqlite", fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(model.AllModels()...))
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		_ = sqlDB.Close()
	})
	return db
}

func seedUser(t *testing.T, db *gorm.DB, email string) *model.User {
	t.Helper()
	u := &model.User{Email: email, Password: "hash", Name: "Test"}
	require.NoError(t, NewUserRepository(db).Create(context.Background(), u))
	return u
}

func TestUserRepositoryDuplicateEmail(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewUserRepository(db)

	seedUser(t, db, "alice@example.com")
	err := repo.Create(ctx, &model.User{Email: "alice@example.com", Password: "x", Name: "Other"})
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)

	found, err := repo.FindByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Test", found.Name)

	_, err = repo.FindByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestUserRepositoryUpdateProfileImage(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewUserRepository(db)
	u := seedUser(t, db, "bob@example.com")

	require.NoError(t, repo.UpdateProfileImage(ctx, u.ID, "https://cdn/avatar.png"))
	found, err := repo.FindByID(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, found.ProfileImage)
	assert.Equal(t, "https://cdn/avatar.png", *found.ProfileImage)

	assert.ErrorIs(t, repo.UpdateProfileImage(ctx, 9999, "x"), gorm.ErrRecordNotFound)
}

func TestMessageRepositoryIncrement(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewMessageRepository(db)
	u := seedUser(t, db, "carol@example.com")

	msg := &model.Message{Content: "hello", UserID: u.ID, Role: model.RoleUser}
	require.NoError(t, repo.Create(ctx, msg))

	for i := 1; i <= 3; i++ {
		likes, err := repo.Increment(ctx, msg.ID, CounterLikes)
		require.NoError(t, err)
		assert.Equal(t, i, likes)
	}
	dislikes, err := repo.Increment(ctx, msg.ID, CounterDislikes)
	require.NoError(t, err)
	assert.Equal(t, 1, dislikes)

	stored, err := repo.FindByID(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stored.Likes)
	assert.Equal(t, 1, stored.Dislikes)

	_, err = repo.Increment(ctx, 424242, CounterLikes)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	_, err = repo.Increment(ctx, msg.ID, "content")
	assert.Error(t, err)
}

func TestMessageRepositoryConcurrentIncrement(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewMessageRepository(db)
	u := seedUser(t, db, "dave@example.com")
	msg := &model.Message{Content: "hi", UserID: u.ID, Role: model.RoleUser}
	require.NoError(t, repo.Create(ctx, msg))

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Increment(ctx, msg.ID, CounterLikes)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	stored, err := repo.FindByID(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, n, stored.Likes)
}

func TestMessageRepositoryFindByUserWithUser(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewMessageRepository(db)
	alice := seedUser(t, db, "alice@example.com")
	bob := seedUser(t, db, "bob@example.com")

	require.NoError(t, repo.Create(ctx, &model.Message{Content: "q", UserID: alice.ID, Role: model.RoleUser}))
	require.NoError(t, repo.Create(ctx, &model.Message{Content: "a", UserID: alice.ID, Role: model.RoleAssistant}))
	require.NoError(t, repo.Create(ctx, &model.Message{Content: "other", UserID: bob.ID, Role: model.RoleUser}))

	msgs, err := repo.FindByUserWithUser(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "q", msgs[0].Content)
	assert.Equal(t, "a", msgs[1].Content)
	require.NotNil(t, msgs[0].User)
	assert.Equal(t, "alice@example.com", msgs[0].User.Email)
}

func TestSavedMessageRepository(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	msgs := NewMessageRepository(db)
	repo := NewSavedMessageRepository(db)
	alice := seedUser(t, db, "alice@example.com")
	bob := seedUser(t, db, "bob@example.com")

	first := &model.Message{Content: "first", UserID: alice.ID, Role: model.RoleAssistant}
	second := &model.Message{Content: "second", UserID: alice.ID, Role: model.RoleAssistant}
	require.NoError(t, msgs.Create(ctx, first))
	require.NoError(t, msgs.Create(ctx, second))

	require.NoError(t, repo.Create(ctx, &model.SavedMessage{UserID: alice.ID, MessageID: second.ID}))
	require.NoError(t, repo.Create(ctx, &model.SavedMessage{UserID: alice.ID, MessageID: first.ID}))
	require.NoError(t, repo.Create(ctx, &model.SavedMessage{UserID: bob.ID, MessageID: first.ID}))

	err := repo.Create(ctx, &model.SavedMessage{UserID: alice.ID, MessageID: first.ID})
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)

	list, err := repo.FindByUserWithMessage(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "second", list[0].Message.Content)
	assert.Equal(t, "first", list[1].Message.Content)

	found, err := repo.FindByUserAndMessage(ctx, bob.ID, first.ID)
	require.NoError(t, err)
	require.NoError(t, repo.Delete(ctx, found.ID))
	assert.ErrorIs(t, repo.Delete(ctx, found.ID), gorm.ErrRecordNotFound)
}

func TestSuggestionRepository(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewSuggestionRepository(db)

	require.NoError(t, repo.Create(ctx, &model.Suggestion{Text: "dark mode"}))
	require.NoError(t, repo.Create(ctx, &model.Suggestion{Text: "more voices"}))

	all, err := repo.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "dark mode", all[0].Text)
}

func TestTokenRepository(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	repo := NewTokenRepository(client)
	ctx := context.Background()

	ok, err := repo.IsBlacklisted(ctx, "tok")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.Blacklist(ctx, "tok", time.Minute))
	ok, err = repo.IsBlacklisted(ctx, "tok")
	require.NoError(t, err)
	assert.True(t, ok)

	mr.FastForward(2 * time.Minute)
	ok, err = repo.IsBlacklisted(ctx, "tok")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNoopTokenRepository(t *testing.T) {
	repo := NewTokenRepository(nil)
	require.NoError(t, repo.Blacklist(context.Background(), "tok", time.Minute))
	ok, err := repo.IsBlacklisted(context.Background(), "tok")
	require.NoError(t, err)
	assert.False(t, ok)
}
