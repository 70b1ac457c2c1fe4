package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"study-with-speech/internal/config"
	"study-with-speech/internal/model"
	"study-with-speech/internal/repository"
	"study-with-speech/pkg/database"
	"study-with-speech/pkg/hash"
	"study-with-speech/pkg/kafka"
	"study-with-speech/pkg/llm"
	"study-with-speech/pkg/token"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeLLM struct {
	mu    sync.Mutex
	reply string
	err   error
	calls [][]llm.Message
}

func (f *fakeLLM) Complete(_ context.Context, messages []llm.Message, _ *llm.GenerationParams) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, messages)
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []kafka.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e kafka.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.Open("sqlite", fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", name))
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(model.AllModels()...))
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		_ = sqlDB.Close()
	})
	return db
}

type fixture struct {
	db        *gorm.DB
	jwt       *token.JWTManager
	llm       *fakeLLM
	events    *recordingPublisher
	users     UserService
	chat      ChatService
	feedback  FeedbackService
	saved     SavedMessageService
	suggest   SuggestionService
	messages  repository.MessageRepository
	redisAddr string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	f := &fixture{
		db:        db,
		jwt:       token.NewJWTManager("test-secret", 168, 30),
		llm:       &fakeLLM{reply: "Photosynthesis converts light into chemical energy."},
		events:    &recordingPublisher{},
		messages:  repository.NewMessageRepository(db),
		redisAddr: mr.Addr(),
	}
	f.users = NewUserService(repository.NewUserRepository(db), repository.NewTokenRepository(rdb), f.jwt, nil)
	f.chat = NewChatService(f.messages, f.llm, NewPromptBuilder(config.PromptConfig{}), config.LLMGenerationConfig{Temperature: 0.7}, f.events)
	f.feedback = NewFeedbackService(f.messages, f.events)
	f.saved = NewSavedMessageService(repository.NewSavedMessageRepository(db), f.messages, f.events)
	f.suggest = NewSuggestionService(repository.NewSuggestionRepository(db), f.events)
	return f
}

func (f *fixture) register(t *testing.T, email string) *model.User {
	t.Helper()
	u, err := f.users.Register(context.Background(), email, "pw123456", "Alice")
	require.NoError(t, err)
	return u
}

func TestRegister(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u, err := f.users.Register(ctx, "  Alice@Example.com ", "pw123456", "Alice")
	require.NoError(t, err)
	assert.NotZero(t, u.ID)
	assert.Equal(t, "alice@example.com", u.Email)
	assert.NotEqual(t, "pw123456", u.Password)

	_, err = f.users.Register(ctx, "alice@example.com", "other", "Other")
	assert.ErrorIs(t, err, ErrDuplicateEmail)

	for _, tc := range []struct{ email, pw, name string }{
		{"", "pw", "n"},
		{"bob@example.com", "", "n"},
		{"bob@example.com", "pw", "  "},
		{"not-an-email", "pw", "n"},
		{"bob@example.com", strings.Repeat("a", hash.MaxPasswordBytes+1), "n"},
	} {
		_, err := f.users.Register(ctx, tc.email, tc.pw, tc.name)
		assert.ErrorIs(t, err, ErrInvalidRequest, "%+v", tc)
	}
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	registered := f.register(t, "alice@example.com")

	access, refresh, user, err := f.users.Login(ctx, "alice@example.com", "pw123456")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, user.ID)
	assert.NotEmpty(t, refresh)

	claims, err := f.jwt.VerifyToken(access)
	require.NoError(t, err)
	assert.Equal(t, registered.ID, claims.UserID)

	_, _, _, errUnknown := f.users.Login(ctx, "nobody@example.com", "pw123456")
	_, _, _, errWrong := f.users.Login(ctx, "alice@example.com", "wrong")
	assert.ErrorIs(t, errUnknown, ErrInvalidCredentials)
	assert.ErrorIs(t, errWrong, ErrInvalidCredentials)
	assert.Equal(t, errUnknown.Error(), errWrong.Error())
}

func TestRegisterAcceptsMaxLengthPassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pw := strings.Repeat("a", hash.MaxPasswordBytes)

	_, err := f.users.Register(ctx, "alice@example.com", pw, "Alice")
	require.NoError(t, err)
	_, _, _, err = f.users.Login(ctx, "alice@example.com", pw)
	assert.NoError(t, err)
}

func TestRefreshToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "alice@example.com")
	access, refresh, _, err := f.users.Login(ctx, "alice@example.com", "pw123456")
	require.NoError(t, err)

	_, _, err = f.users.RefreshToken(ctx, access)
	assert.ErrorIs(t, err, ErrInvalidToken)

	newAccess, newRefresh, err := f.users.RefreshToken(ctx, refresh)
	require.NoError(t, err)
	assert.NotEmpty(t, newAccess)
	assert.NotEmpty(t, newRefresh)
}

func TestAuthenticateAndLogout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	registered := f.register(t, "alice@example.com")
	access, _, _, err := f.users.Login(ctx, "alice@example.com", "pw123456")
	require.NoError(t, err)

	user, claims, err := f.users.Authenticate(ctx, access)
	require.NoError(t, err)
	assert.Equal(t, registered.ID, user.ID)
	assert.Equal(t, "alice@example.com", claims.Email)

	require.NoError(t, f.users.Logout(ctx, access, ""))
	_, _, err = f.users.Authenticate(ctx, access)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, _, err = f.users.Authenticate(ctx, "garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.ErrorIs(t, f.users.Logout(ctx, "garbage", ""), ErrInvalidToken)
}

func TestLogoutRevokesRefreshToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "alice@example.com")
	f.register(t, "bob@example.com")
	access, refresh, _, err := f.users.Login(ctx, "alice@example.com", "pw123456")
	require.NoError(t, err)
	_, bobRefresh, _, err := f.users.Login(ctx, "bob@example.com", "pw123456")
	require.NoError(t, err)

	// 他人的 refresh token 或 access token 不能当作 refresh token 吊销
	assert.ErrorIs(t, f.users.Logout(ctx, access, bobRefresh), ErrInvalidToken)
	assert.ErrorIs(t, f.users.Logout(ctx, access, access), ErrInvalidToken)
	_, _, err = f.users.RefreshToken(ctx, bobRefresh)
	require.NoError(t, err)

	require.NoError(t, f.users.Logout(ctx, access, refresh))
	_, _, err = f.users.Authenticate(ctx, access)
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, _, err = f.users.RefreshToken(ctx, refresh)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestUpdateProfileImage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.register(t, "alice@example.com")

	stored, err := f.users.UpdateProfileImage(ctx, u.ID, "https://example.com/a.png")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/a.png", stored)

	got, err := f.users.GetUser(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ProfileImage)
	assert.Equal(t, stored, *got.ProfileImage)

	_, err = f.users.UpdateProfileImage(ctx, u.ID, "  ")
	assert.ErrorIs(t, err, ErrInvalidRequest)
	_, err = f.users.UpdateProfileImage(ctx, u.ID, "data:image/png;base64,!!!")
	assert.ErrorIs(t, err, ErrInvalidRequest)
	_, err = f.users.UpdateProfileImage(ctx, 9999, "https://example.com/a.png")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestChatSend(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.register(t, "alice@example.com")

	res, err := f.chat.Send(ctx, u, SendInput{Content: "  What is photosynthesis?  ", Level: "iniciante", Speech: true})
	require.NoError(t, err)

	assert.Equal(t, "  What is photosynthesis?  ", res.UserMessage.Content)
	assert.Equal(t, model.RoleUser, res.UserMessage.Role)
	assert.Equal(t, model.RoleAssistant, res.BotMessage.Role)
	assert.Equal(t, u.ID, res.BotMessage.UserID)
	assert.NotEmpty(t, res.BotMessage.Content)
	assert.Greater(t, res.BotMessage.ID, res.UserMessage.ID)

	require.Len(t, f.llm.calls, 1)
	sent := f.llm.calls[0]
	require.Len(t, sent, 2)
	assert.Equal(t, llm.RoleSystem, sent[0].Role)
	assert.Contains(t, sent[0].Content, defaultLevelStyles[LevelBeginner])
	assert.Contains(t, sent[0].Content, defaultNarration)
	assert.Equal(t, "  What is photosynthesis?  ", sent[1].Content)

	assert.Equal(t, []string{kafka.EventMessageCreated, kafka.EventMessageCreated}, f.events.types())

	msgs, err := f.chat.ListMessages(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, res.UserMessage.ID, msgs[0].ID)
	require.NotNil(t, msgs[0].User)
	assert.Equal(t, "alice@example.com", msgs[0].User.Email)
}

func TestChatSendProviderFailureKeepsUserMessage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.register(t, "alice@example.com")
	f.llm.err = fmt.Errorf("%w: status 500", llm.ErrProviderUnavailable)

	_, err := f.chat.Send(ctx, u, SendInput{Content: "hello"})
	assert.ErrorIs(t, err, ErrMessageCreationFailed)

	msgs, err := f.chat.ListMessages(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, model.RoleUser, msgs[0].Role)
	assert.Equal(t, "hello", msgs[0].Content)
}

func TestChatSendRejectsEmptyContent(t *testing.T) {
	f := newFixture(t)
	u := f.register(t, "alice@example.com")

	_, err := f.chat.Send(context.Background(), u, SendInput{Content: " \n\t"})
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.Empty(t, f.llm.calls)

	msgs, err := f.chat.ListMessages(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestChatSendIgnoresPublishFailure(t *testing.T) {
	f := newFixture(t)
	u := f.register(t, "alice@example.com")
	f.events.err = errors.New("broker down")

	_, err := f.chat.Send(context.Background(), u, SendInput{Content: "hello"})
	assert.NoError(t, err)
}

func TestFeedbackCounters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.register(t, "alice@example.com")
	res, err := f.chat.Send(ctx, u, SendInput{Content: "hello"})
	require.NoError(t, err)
	id := res.BotMessage.ID

	for i := 1; i <= 3; i++ {
		n, err := f.feedback.Like(ctx, u, id)
		require.NoError(t, err)
		assert.Equal(t, i, n)
	}
	n, err := f.feedback.Dislike(ctx, u, id)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	msg, err := f.messages.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 3, msg.Likes)
	assert.Equal(t, 1, msg.Dislikes)

	_, err = f.feedback.Like(ctx, u, 9999)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.feedback.Dislike(ctx, u, 0)
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestSavedMessages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice@example.com")
	bob := f.register(t, "bob@example.com")

	res, err := f.chat.Send(ctx, alice, SendInput{Content: "hello"})
	require.NoError(t, err)

	saved, err := f.saved.Save(ctx, alice, res.BotMessage.ID)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, saved.UserID)

	_, err = f.saved.Save(ctx, alice, res.BotMessage.ID)
	assert.ErrorIs(t, err, ErrAlreadySaved)
	_, err = f.saved.Save(ctx, alice, 9999)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.saved.Save(ctx, alice, 0)
	assert.ErrorIs(t, err, ErrInvalidRequest)

	list, err := f.saved.ListSaved(ctx, alice)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, res.BotMessage.Content, list[0].Content)
	assert.Equal(t, res.BotMessage.ID, list[0].MessageID)

	bobList, err := f.saved.ListSaved(ctx, bob)
	require.NoError(t, err)
	assert.Empty(t, bobList)

	assert.ErrorIs(t, f.saved.Unsave(ctx, bob, saved.ID), ErrForbidden)
	require.NoError(t, f.saved.Unsave(ctx, alice, saved.ID))
	assert.ErrorIs(t, f.saved.Unsave(ctx, alice, saved.ID), ErrNotFound)

	list, err = f.saved.ListSaved(ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, list)

	// 取消收藏后可以再次收藏
	resaved, err := f.saved.Save(ctx, alice, res.BotMessage.ID)
	require.NoError(t, err)
	list, err = f.saved.ListSaved(ctx, alice)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, resaved.ID, list[0].ID)

	assert.Contains(t, f.events.types(), kafka.EventMessageSaved)
	assert.Contains(t, f.events.types(), kafka.EventMessageUnsaved)
}

func TestSuggestions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.register(t, "alice@example.com")

	_, err := f.suggest.Create(ctx, u, "   ")
	assert.ErrorIs(t, err, ErrInvalidRequest)

	s, err := f.suggest.Create(ctx, u, " More biology lessons ")
	require.NoError(t, err)
	assert.Equal(t, "More biology lessons", s.Text)

	all, err := f.suggest.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, s.ID, all[0].ID)
}
