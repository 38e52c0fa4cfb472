package client

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/genba-dispatch/dispatch/backend/internal/presence"
)

type tokenClaims struct {
	Name string `json:"name"`
	jwt.RegisteredClaims
}

// Identity 从访问令牌中读出当前用户，用于编辑状态的展示
//
// 签名只在服务端校验，这里不需要密钥。
func Identity(token string) (presence.Editor, error) {
	claims := &tokenClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return presence.Editor{}, fmt.Errorf("无法解析令牌: %w", err)
	}
	if claims.Subject == "" {
		return presence.Editor{}, errors.New("令牌中没有用户 ID")
	}
	return presence.Editor{UserID: claims.Subject, Name: claims.Name}, nil
}
