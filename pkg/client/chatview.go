package client

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrBusy 表示上一条消息仍在等待回复。
	ErrBusy = errors.New("a message is already being sent")
	// ErrEmptyMessage 表示输入为空。
	ErrEmptyMessage = errors.New("message is empty")
	// ErrUnknownEntry 表示视图中没有该消息。
	ErrUnknownEntry = errors.New("message not in view")
)

// DefaultErrorReply 是发送失败且服务端未给出原因时显示的助手消息。
const DefaultErrorReply = "Desculpe, não consegui responder agora. Tente novamente."

// 消息发送方
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Rating 是用户对助手回复的评价。
type Rating int

const (
	RatingNone Rating = iota
	RatingPositive
	RatingNegative
)

// Entry 是聊天视图中的一条消息。
// 乐观插入的消息 ID 为 0，只有 LocalID；本地错误消息的 Failed 为 true。
type Entry struct {
	LocalID   string
	ID        uint
	Role      string
	Content   string
	CreatedAt time.Time
	Likes     int
	Dislikes  int
	Rating    Rating
	Saved     bool
	SavedID   uint
	Pending   bool
	Failed    bool
}

// ChatAPI 是 ChatView 依赖的后端接口，*Client 实现了它。
type ChatAPI interface {
	ListMessages(ctx context.Context) ([]Message, error)
	SendMessage(ctx context.Context, req SendRequest) (*SendResponse, error)
	Like(ctx context.Context, messageID uint) (int, error)
	Dislike(ctx context.Context, messageID uint) (int, error)
	ListSaved(ctx context.Context) ([]SavedItem, error)
	SaveMessage(ctx context.Context, messageID uint) (*SavedMessage, error)
	Unsave(ctx context.Context, savedID uint) error
}

// ChatView 保存有序的消息列表和发送中的状态。并发安全。
type ChatView struct {
	api     ChatAPI
	session *Session
	synth   Synthesizer
	now     func() time.Time

	// OnSpeechError 在后台朗读失败时被调用（可为 nil）。
	OnSpeechError func(error)

	mu      sync.Mutex
	entries []Entry
	loading bool
}

// NewChatView 创建聊天视图。synth 为 nil 时不朗读。
func NewChatView(api ChatAPI, session *Session, synth Synthesizer) *ChatView {
	if session == nil {
		session = &Session{}
	}
	if synth == nil {
		synth = NoopSynthesizer{}
	}
	return &ChatView{api: api, session: session, synth: synth, now: time.Now}
}

// Entries 返回当前消息列表的副本。
func (v *ChatView) Entries() []Entry {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]Entry, len(v.entries))
	copy(out, v.entries)
	return out
}

// Loading 报告是否有消息正在等待回复。
func (v *ChatView) Loading() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.loading
}

// Load 从服务端加载历史消息与收藏状态，替换当前列表。
func (v *ChatView) Load(ctx context.Context) error {
	msgs, err := v.api.ListMessages(ctx)
	if err != nil {
		return err
	}
	saved, err := v.api.ListSaved(ctx)
	if err != nil {
		return err
	}
	savedByMessage := make(map[uint]uint, len(saved))
	for _, s := range saved {
		savedByMessage[s.MessageID] = s.ID
	}

	entries := make([]Entry, 0, len(msgs))
	for _, m := range msgs {
		e := entryFromMessage(m)
		if id, ok := savedByMessage[m.ID]; ok {
			e.Saved, e.SavedID = true, id
		}
		entries = append(entries, e)
	}

	v.mu.Lock()
	v.entries = entries
	v.mu.Unlock()
	return nil
}

func entryFromMessage(m Message) Entry {
	role := m.Role
	if role == "" {
		role = RoleUser
	}
	return Entry{
		ID:        m.ID,
		Role:      role,
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
		Likes:     m.Likes,
		Dislikes:  m.Dislikes,
	}
}

// Send 乐观地追加用户消息并请求回复。
// 成功时用服务端的消息替换乐观条目并追加助手回复；失败时保留用户条目并追加一条本地错误消息。
func (v *ChatView) Send(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}

	v.mu.Lock()
	if v.loading {
		v.mu.Unlock()
		return ErrBusy
	}
	v.loading = true
	localID := uuid.NewString()
	v.entries = append(v.entries, Entry{
		LocalID:   localID,
		Role:      RoleUser,
		Content:   text,
		CreatedAt: v.now(),
		Pending:   true,
	})
	req := SendRequest{Content: text, Level: v.session.Level, Speech: v.session.SpeechEnabled}
	speak := v.session.SpeechEnabled
	v.mu.Unlock()

	res, err := v.api.SendMessage(ctx, req)

	v.mu.Lock()
	v.loading = false
	idx := v.indexOfLocal(localID)
	if err != nil {
		if idx >= 0 {
			v.entries[idx].Pending = false
		}
		v.entries = append(v.entries, Entry{
			LocalID:   uuid.NewString(),
			Role:      RoleAssistant,
			Content:   errorReply(err),
			CreatedAt: v.now(),
			Failed:    true,
		})
		v.mu.Unlock()
		return err
	}

	userEntry := entryFromMessage(res.UserMessage)
	userEntry.Role = RoleUser
	if idx >= 0 {
		v.entries[idx] = userEntry
	} else {
		v.entries = append(v.entries, userEntry)
	}
	botEntry := entryFromMessage(res.BotMessage)
	botEntry.Role = RoleAssistant
	v.entries = append(v.entries, botEntry)
	v.mu.Unlock()

	if speak {
		v.speak(res.BotMessage.Content)
	}
	return nil
}

func errorReply(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" && apiErr.Status < http.StatusInternalServerError {
		return apiErr.Message
	}
	return DefaultErrorReply
}

// speak 在后台朗读，不阻塞聊天流程。
func (v *ChatView) speak(text string) {
	go func() {
		err := v.synth.Speak(context.Background(), text, DefaultSpeechOptions)
		if err != nil && !errors.Is(err, ErrSpeechUnavailable) && v.OnSpeechError != nil {
			v.OnSpeechError(err)
		}
	}()
}

// Rate 对一条已持久化的消息点赞或点踩，并更新计数。每次调用都会请求服务端。
func (v *ChatView) Rate(ctx context.Context, id uint, rating Rating) error {
	if _, err := v.lookup(id); err != nil {
		return err
	}

	var (
		count int
		err   error
	)
	switch rating {
	case RatingPositive:
		count, err = v.api.Like(ctx, id)
	case RatingNegative:
		count, err = v.api.Dislike(ctx, id)
	default:
		return errors.New("unknown rating")
	}
	if err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if i := v.indexOfID(id); i >= 0 {
		v.entries[i].Rating = rating
		if rating == RatingPositive {
			v.entries[i].Likes = count
		} else {
			v.entries[i].Dislikes = count
		}
	}
	return nil
}

// ToggleSave 收藏或取消收藏一条消息，返回操作后的收藏状态。
func (v *ChatView) ToggleSave(ctx context.Context, id uint) (bool, error) {
	entry, err := v.lookup(id)
	if err != nil {
		return false, err
	}

	if entry.Saved {
		if err := v.api.Unsave(ctx, entry.SavedID); err != nil && StatusOf(err) != http.StatusNotFound {
			return true, err
		}
		v.setSaved(id, false, 0)
		return false, nil
	}

	saved, err := v.api.SaveMessage(ctx, id)
	if err != nil {
		if StatusOf(err) != http.StatusConflict {
			return false, err
		}
		// 已在其他设备收藏过，找回收藏记录的 ID
		savedID, lookupErr := v.findSavedID(ctx, id)
		if lookupErr != nil {
			return false, lookupErr
		}
		v.setSaved(id, true, savedID)
		return true, nil
	}
	v.setSaved(id, true, saved.ID)
	return true, nil
}

func (v *ChatView) findSavedID(ctx context.Context, messageID uint) (uint, error) {
	items, err := v.api.ListSaved(ctx)
	if err != nil {
		return 0, err
	}
	for _, it := range items {
		if it.MessageID == messageID {
			return it.ID, nil
		}
	}
	return 0, ErrUnknownEntry
}

func (v *ChatView) setSaved(id uint, saved bool, savedID uint) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if i := v.indexOfID(id); i >= 0 {
		v.entries[i].Saved = saved
		v.entries[i].SavedID = savedID
	}
}

func (v *ChatView) lookup(id uint) (Entry, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	i := v.indexOfID(id)
	if i < 0 {
		return Entry{}, ErrUnknownEntry
	}
	return v.entries[i], nil
}

func (v *ChatView) indexOfID(id uint) int {
	if id == 0 {
		return -1
	}
	for i := range v.entries {
		if v.entries[i].ID == id {
			return i
		}
	}
	return -1
}

func (v *ChatView) indexOfLocal(localID string) int {
	for i := range v.entries {
		if v.entries[i].LocalID == localID {
			return i
		}
	}
	return -1
}
