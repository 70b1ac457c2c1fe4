// Package hash 提供基于 bcrypt 的密码哈希与校验。
package hash

import (
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// Cost 是固定的 bcrypt 工作因子。
const Cost = 10

// MaxPasswordBytes 是 bcrypt 能处理的最大密码长度（字节）。
const MaxPasswordBytes = 72

// HashPassword 返回密码的 bcrypt 哈希。
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), Cost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// CheckPasswordHash 校验明文密码是否与哈希匹配。
func CheckPasswordHash(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// 与真实哈希同样 cost 的占位哈希，首次使用时生成
var dummyHash = sync.OnceValue(func() string {
	h, err := HashPassword("dummy-password-for-timing")
	if err != nil {
		panic(err)
	}
	return h
})

// CheckDummyHash 对占位哈希做一次完整的 bcrypt 比较，始终返回 false。
// 用户不存在时调用，使其耗时与密码错误一致。
func CheckDummyHash(password string) bool {
	_ = CheckPasswordHash(password, dummyHash())
	return false
}
