package session

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Session 是显式注入的当前会话：用户标识加原始令牌。
// 网关自己校验令牌签名，原始令牌原样转发给上游。
type Session struct {
	UserID string
	Token  string
}

// Claims 表示 JWT 中的业务字段，便于中间件读取用户信息。
type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// Verifier 负责校验访问令牌。
type Verifier struct {
	secret []byte
}

// NewVerifier 构造 HMAC 校验器。
func NewVerifier(secret string) (*Verifier, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	return &Verifier{secret: []byte(secret)}, nil
}

// Verify 解析并验证 JWT。
func (v *Verifier) Verify(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, errors.New("token string is empty")
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %s", token.Method.Alg())
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	if claims.UserID == "" {
		return nil, errors.New("token missing user id")
	}

	return claims, nil
}
