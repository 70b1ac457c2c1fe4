package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"study-with-speech/internal/model"
	"study-with-speech/internal/repository"
	"study-with-speech/pkg/hash"
	"study-with-speech/pkg/log"
	"study-with-speech/pkg/storage"
	"study-with-speech/pkg/token"

	"gorm.io/gorm"
)

// UserService 接口定义了所有与用户相关的业务操作。
type UserService interface {
	Register(ctx context.Context, email, password, name string) (*model.User, error)
	Login(ctx context.Context, email, password string) (accessToken, refreshToken string, user *model.User, err error)
	RefreshToken(ctx context.Context, refreshTokenString string) (newAccessToken, newRefreshToken string, err error)
	Logout(ctx context.Context, accessToken, refreshToken string) error
	Authenticate(ctx context.Context, tokenString string) (*model.User, *token.CustomClaims, error)
	GetUser(ctx context.Context, userID uint) (*model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)
	UpdateProfileImage(ctx context.Context, userID uint, value string) (string, error)
}

// userService 是 UserService 接口的实现。
type userService struct {
	userRepo   repository.UserRepository
	tokenRepo  repository.TokenRepository
	jwtManager *token.JWTManager
	images     storage.ImageStore
}

// NewUserService 创建一个新的 UserService 实例。
func NewUserService(userRepo repository.UserRepository, tokenRepo repository.TokenRepository, jwtManager *token.JWTManager, images storage.ImageStore) UserService {
	if images == nil {
		images = storage.NewPassthroughStore(0)
	}
	return &userService{
		userRepo:   userRepo,
		tokenRepo:  tokenRepo,
		jwtManager: jwtManager,
		images:     images,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register 处理用户注册的业务逻辑。
func (s *userService) Register(ctx context.Context, email, password, name string) (*model.User, error) {
	email = normalizeEmail(email)
	name = strings.TrimSpace(name)
	if email == "" || password == "" || name == "" {
		return nil, fmt.Errorf("%w: email, password and name are required", ErrInvalidRequest)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: malformed email", ErrInvalidRequest)
	}
	if len(password) > hash.MaxPasswordBytes {
		return nil, fmt.Errorf("%w: password must be at most %d bytes", ErrInvalidRequest, hash.MaxPasswordBytes)
	}

	// 1. 检查邮箱是否已存在
	_, err := s.userRepo.FindByEmail(ctx, email)
	if err == nil {
		return nil, ErrDuplicateEmail
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	// 2. 对密码进行哈希处理
	hashedPassword, err := hash.HashPassword(password)
	if err != nil {
		return nil, err
	}

	// 3. 入库；并发注册由唯一索引兜底
	newUser := &model.User{
		Email:    email,
		Password: hashedPassword,
		Name:     name,
	}
	if err := s.userRepo.Create(ctx, newUser); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateEmail
		}
		return nil, err
	}
	log.Infow("用户注册成功", "userId", newUser.ID)
	return newUser, nil
}

// Login 处理用户登录的业务逻辑。未知邮箱和错误密码返回同一个错误。
func (s *userService) Login(ctx context.Context, email, password string) (string, string, *model.User, error) {
	// 1. 查找用户
	user, err := s.userRepo.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// 未知邮箱也做一次 bcrypt 比较，耗时与密码错误一致
			hash.CheckDummyHash(password)
			return "", "", nil, ErrInvalidCredentials
		}
		return "", "", nil, err
	}

	// 2. 验证密码
	if !hash.CheckPasswordHash(password, user.Password) {
		return "", "", nil, ErrInvalidCredentials
	}

	// 3. 生成 access token 和 refresh token
	accessToken, refreshToken, err := s.issueTokens(user)
	if err != nil {
		return "", "", nil, err
	}
	return accessToken, refreshToken, user, nil
}

func (s *userService) issueTokens(user *model.User) (string, string, error) {
	accessToken, err := s.jwtManager.GenerateToken(user.ID, user.Email)
	if err != nil {
		return "", "", err
	}
	refreshToken, err := s.jwtManager.GenerateRefreshToken(user.ID, user.Email)
	if err != nil {
		return "", "", err
	}
	return accessToken, refreshToken, nil
}

// RefreshToken 验证 refresh token 并签发新的 access token 和 refresh token。
func (s *userService) RefreshToken(ctx context.Context, refreshTokenString string) (string, string, error) {
	// 1. 验证 refresh token 是否有效
	claims, err := s.jwtManager.VerifyRefreshToken(refreshTokenString)
	if err != nil {
		return "", "", ErrInvalidToken
	}
	if revoked, err := s.tokenRepo.IsBlacklisted(ctx, refreshTokenString); err != nil {
		return "", "", err
	} else if revoked {
		return "", "", ErrInvalidToken
	}

	// 2. 检查用户是否存在
	user, err := s.userRepo.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", "", ErrInvalidToken
		}
		return "", "", err
	}

	// 3. 签发新的 token
	return s.issueTokens(user)
}

// Logout 将 access token 加入黑名单，剩余有效期作为过期时间。
// refreshToken 非空时一并吊销，它必须属于同一用户。
func (s *userService) Logout(ctx context.Context, accessToken, refreshToken string) error {
	claims, err := s.jwtManager.VerifyToken(accessToken)
	if err != nil {
		return ErrInvalidToken
	}
	if refreshToken != "" {
		refreshClaims, err := s.jwtManager.VerifyRefreshToken(refreshToken)
		if err != nil || refreshClaims.UserID != claims.UserID {
			return ErrInvalidToken
		}
		if err := s.revoke(ctx, refreshToken, refreshClaims); err != nil {
			return err
		}
	}
	return s.revoke(ctx, accessToken, claims)
}

func (s *userService) revoke(ctx context.Context, tokenString string, claims *token.CustomClaims) error {
	var ttl time.Duration
	if claims.ExpiresAt != nil {
		ttl = time.Until(claims.ExpiresAt.Time)
	}
	if ttl <= 0 {
		return nil
	}
	return s.tokenRepo.Blacklist(ctx, tokenString, ttl)
}

// Authenticate 校验 access token，并加载 token 对应的用户。
func (s *userService) Authenticate(ctx context.Context, tokenString string) (*model.User, *token.CustomClaims, error) {
	claims, err := s.jwtManager.VerifyToken(tokenString)
	if err != nil {
		return nil, nil, ErrInvalidToken
	}
	revoked, err := s.tokenRepo.IsBlacklisted(ctx, tokenString)
	if err != nil {
		return nil, nil, err
	}
	if revoked {
		return nil, nil, ErrInvalidToken
	}
	user, err := s.userRepo.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrInvalidToken
		}
		return nil, nil, err
	}
	return user, claims, nil
}

// GetUser 根据 ID 获取用户详细信息。
func (s *userService) GetUser(ctx context.Context, userID uint) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return user, err
}

func (s *userService) ListUsers(ctx context.Context) ([]model.User, error) {
	return s.userRepo.FindAll(ctx)
}

// UpdateProfileImage 保存头像。data URL 在配置了对象存储时会被上传，其余值按原样保存。
func (s *userService) UpdateProfileImage(ctx context.Context, userID uint, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("%w: profileImage is required", ErrInvalidRequest)
	}
	stored, err := s.images.StoreProfileImage(ctx, userID, value)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidImage) || errors.Is(err, storage.ErrImageTooLarge) {
			return "", fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		return "", err
	}
	if err := s.userRepo.UpdateProfileImage(ctx, userID, stored); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrNotFound
		}
		return "", err
	}
	return stored, nil
}
