package handler

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/genba-dispatch/dispatch/backend/internal/domain"
)

type AuthClaims struct {
	Name string `json:"name"`
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// SignToken 为员工签发访问令牌，sub 为员工 ID
func SignToken(secret string, employee *domain.Employee, expiration time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, AuthClaims{
		Name: employee.FullName,
		Role: string(employee.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(expiration)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Subject:   employee.ID,
		},
	})
	return token.SignedString([]byte(secret))
}
