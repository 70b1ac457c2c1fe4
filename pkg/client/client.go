// Package client 是后端 HTTP API 的 Go 客户端，以及终端前端使用的会话与聊天视图状态。
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

const defaultTimeout = 60 * time.Second

// APIError 是服务端返回的 {"error": "..."} 错误。
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// StatusOf 返回 err 对应的 HTTP 状态码，非 APIError 时返回 0。
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// User 是服务端返回的用户信息。
type User struct {
	ID           uint      `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	ProfileImage *string   `json:"profileImage,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Message 是一条持久化的聊天消息。
type Message struct {
	ID        uint      `json:"id"`
	Content   string    `json:"content"`
	UserID    uint      `json:"userId"`
	Role      string    `json:"role"`
	Likes     int       `json:"likes"`
	Dislikes  int       `json:"dislikes"`
	CreatedAt time.Time `json:"createdAt"`
	User      *User     `json:"user,omitempty"`
}

// SendRequest 是 POST /messages 的请求体。
type SendRequest struct {
	Content string `json:"content"`
	Level   string `json:"level,omitempty"`
	Speech  bool   `json:"speech,omitempty"`
}

// SendResponse 是 POST /messages 的响应。
type SendResponse struct {
	UserMessage Message `json:"userMessage"`
	BotMessage  Message `json:"botMessage"`
}

// LoginResponse 是 POST /login 的响应。
type LoginResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
	User         User   `json:"user"`
}

// SavedMessage 是 POST /saved-messages 的响应。
type SavedMessage struct {
	ID        uint      `json:"id"`
	UserID    uint      `json:"userId"`
	MessageID uint      `json:"messageId"`
	CreatedAt time.Time `json:"createdAt"`
}

// SavedItem 是收藏列表中的一项。
type SavedItem struct {
	ID        uint      `json:"id"`
	MessageID uint      `json:"messageId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// Suggestion 是用户提交的建议。
type Suggestion struct {
	ID        uint      `json:"id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// Client 调用后端 API，自动附带 bearer token。并发安全。
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu    sync.RWMutex
	token string
}

// Option 配置 Client。
type Option func(*Client)

// WithHTTPClient 替换底层 http.Client。
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithToken 设置初始 access token。
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// New 创建一个新的 Client。
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetToken 更新后续请求使用的 access token，空字符串表示匿名。
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Token 返回当前的 access token。
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if tok := c.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var payload struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &payload) == nil && payload.Error != "" {
			apiErr.Message = payload.Error
		}
		return apiErr
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) Register(ctx context.Context, email, password, name string) (*User, error) {
	var u User
	err := c.do(ctx, http.MethodPost, "/register", map[string]string{"email": email, "password": password, "name": name}, &u)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Login 登录成功后会把 token 设置到 Client 上。
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	var out LoginResponse
	if err := c.do(ctx, http.MethodPost, "/login", map[string]string{"email": email, "password": password}, &out); err != nil {
		return nil, err
	}
	c.SetToken(out.Token)
	return &out, nil
}

// Refresh 使用 refresh token 换取新的 token 对，并更新 Client 的 access token。
func (c *Client) Refresh(ctx context.Context, refreshToken string) (accessToken, newRefreshToken string, err error) {
	var out struct {
		Token        string `json:"token"`
		RefreshToken string `json:"refreshToken"`
	}
	if err := c.do(ctx, http.MethodPost, "/auth/refresh", map[string]string{"refreshToken": refreshToken}, &out); err != nil {
		return "", "", err
	}
	c.SetToken(out.Token)
	return out.Token, out.RefreshToken, nil
}

// Logout 吊销当前 token（以及非空的 refreshToken）并清空本地 token。
func (c *Client) Logout(ctx context.Context, refreshToken string) error {
	var body interface{}
	if refreshToken != "" {
		body = map[string]string{"refreshToken": refreshToken}
	}
	err := c.do(ctx, http.MethodPost, "/logout", body, nil)
	c.SetToken("")
	return err
}

func (c *Client) Me(ctx context.Context) (*User, error) {
	var u User
	if err := c.do(ctx, http.MethodGet, "/me", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) ListUsers(ctx context.Context) ([]User, error) {
	var out []User
	if err := c.do(ctx, http.MethodGet, "/users", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListMessages(ctx context.Context) ([]Message, error) {
	var out []Message
	if err := c.do(ctx, http.MethodGet, "/messages", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) SendMessage(ctx context.Context, req SendRequest) (*SendResponse, error) {
	var out SendResponse
	if err := c.do(ctx, http.MethodPost, "/messages", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Like(ctx context.Context, messageID uint) (int, error) {
	var out struct {
		Likes int `json:"likes"`
	}
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/messages/%d/like", messageID), nil, &out)
	return out.Likes, err
}

func (c *Client) Dislike(ctx context.Context, messageID uint) (int, error) {
	var out struct {
		Dislikes int `json:"dislikes"`
	}
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/messages/%d/dislike", messageID), nil, &out)
	return out.Dislikes, err
}

func (c *Client) ListSuggestions(ctx context.Context) ([]Suggestion, error) {
	var out []Suggestion
	if err := c.do(ctx, http.MethodGet, "/suggestions", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateSuggestion(ctx context.Context, text string) (*Suggestion, error) {
	var out Suggestion
	if err := c.do(ctx, http.MethodPost, "/suggestions", map[string]string{"text": text}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateProfileImage 返回服务端最终保存的头像值。
func (c *Client) UpdateProfileImage(ctx context.Context, value string) (string, error) {
	var out struct {
		ProfileImage string `json:"profileImage"`
	}
	err := c.do(ctx, http.MethodPatch, "/profile-image", map[string]string{"profileImage": value}, &out)
	return out.ProfileImage, err
}

func (c *Client) ListSaved(ctx context.Context) ([]SavedItem, error) {
	var out []SavedItem
	if err := c.do(ctx, http.MethodGet, "/saved-messages", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) SaveMessage(ctx context.Context, messageID uint) (*SavedMessage, error) {
	var out SavedMessage
	if err := c.do(ctx, http.MethodPost, "/saved-messages", map[string]uint{"messageId": messageID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Unsave(ctx context.Context, savedID uint) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/saved-messages/%d", savedID), nil, nil)
}
