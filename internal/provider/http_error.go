package provider

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoMedia 表示后端“成功”返回，但既没有视频也没有图集。
	ErrNoMedia = errors.New("no media found")
	// ErrTokenMissing 表示会话类后端的落地页里没有找到授权 token。
	ErrTokenMissing = errors.New("session token not found")
	// ErrUnexpectedShape 表示响应结构与约定不符（例如 JSON 信封里缺少 markup）。
	ErrUnexpectedShape = errors.New("unexpected response shape")
)

// HTTPStatusError 表示站点返回了非 2xx 的 HTTP 状态码。
// 注意：Error() 只输出状态码，不输出 URL/body（避免内部细节泄露到对外 error 文本）。
type HTTPStatusError struct {
	URL        string
	StatusCode int
	Location   string
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "HTTP status error"
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

// BlockedError 表示请求被站点引导到了“验证/拦截”页面（例如 Cloudflare challenge）。
// 产品约束：不尝试绕过，直接视为该后端失败，让上层走 fallback。
type BlockedError struct {
	URL    string
	Reason string // 例如 "cf-challenge"
}

func (e *BlockedError) Error() string {
	if e == nil {
		return "blocked"
	}
	if strings.TrimSpace(e.Reason) == "" {
		return "blocked"
	}
	return "blocked: " + strings.TrimSpace(e.Reason)
}
