// Package service 包含了应用的业务逻辑层。
package service

import "errors"

// 业务层的哨兵错误，由 handler 统一映射为 HTTP 状态码。
var (
	ErrInvalidRequest        = errors.New("invalid request")
	ErrDuplicateEmail        = errors.New("email already registered")
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrInvalidToken          = errors.New("invalid or expired token")
	ErrNotFound              = errors.New("not found")
	ErrAlreadySaved          = errors.New("message already saved")
	ErrForbidden             = errors.New("forbidden")
	ErrMessageCreationFailed = errors.New("failed to create message")
)
