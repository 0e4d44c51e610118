package upstream

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// 上游错误在这里一次性归类成哨兵错误，调用方只用 errors.Is 判断，
// 不允许在别处再去解析错误文案。
var (
	ErrAuth            = errors.New("upstream: unauthorized")
	ErrNoResume        = errors.New("upstream: no resume found")
	ErrUserNotFound    = errors.New("upstream: user not found")
	ErrAlreadyApplied  = errors.New("upstream: already applied")
	ErrPaymentRequired = errors.New("upstream: payment required")
)

// StatusError 保留未被归类的上游失败的状态码与原始消息。
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream status %d: %s", e.Status, e.Message)
}

// classify 根据状态码和响应消息判定错误类别。
// 上游用消息文本区分业务原因（状态码都是 404/400），所以这里不得不做子串匹配，
// 但只在这一个边界做。
func classify(status int, message string) error {
	lower := strings.ToLower(strings.TrimSpace(message))

	switch {
	case status == http.StatusUnauthorized:
		return ErrAuth
	case status == http.StatusPaymentRequired:
		return ErrPaymentRequired
	case strings.Contains(lower, "no resume found"):
		return ErrNoResume
	case strings.Contains(lower, "user not found"), strings.Contains(lower, "no user found"):
		return ErrUserNotFound
	case strings.Contains(lower, "already applied"):
		return ErrAlreadyApplied
	}

	return &StatusError{Status: status, Message: message}
}
