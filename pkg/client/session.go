package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Session 是本地持久化的登录状态与偏好设置。
type Session struct {
	Token         string `json:"token,omitempty"`
	RefreshToken  string `json:"refreshToken,omitempty"`
	User          *User  `json:"user,omitempty"`
	Level         string `json:"level,omitempty"`
	SpeechEnabled bool   `json:"speechEnabled"`
}

// Authenticated 为 false 时前端应进入登录界面。
func (s *Session) Authenticated() bool {
	return s != nil && s.Token != ""
}

// SignOut 清除凭证，保留偏好设置。
func (s *Session) SignOut() {
	s.Token = ""
	s.RefreshToken = ""
	s.User = nil
}

// SessionStore 负责会话的读写。
type SessionStore interface {
	// Load 在没有保存过会话时返回空 Session 而不是错误。
	Load() (*Session, error)
	Save(s *Session) error
	Clear() error
}

// FileStore 把会话保存为 JSON 文件，权限 0600。
type FileStore struct {
	Path string
}

// DefaultSessionPath 返回用户配置目录下的会话文件路径。
func DefaultSessionPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "study-with-speech", "session.json"), nil
}

func (f FileStore) Load() (*Session, error) {
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return &Session{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &s, nil
}

func (f FileStore) Save(s *Session) error {
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	tmp := f.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return os.Rename(tmp, f.Path)
}

func (f FileStore) Clear() error {
	if err := os.Remove(f.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// MemoryStore 在内存中保存会话，用于测试。
type MemoryStore struct {
	mu      sync.Mutex
	session *Session
}

func (m *MemoryStore) Load() (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return &Session{}, nil
	}
	cp := *m.session
	return &cp, nil
}

func (m *MemoryStore) Save(s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.session = &cp
	return nil
}

func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = nil
	return nil
}
