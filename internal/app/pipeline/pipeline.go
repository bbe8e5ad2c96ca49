// Package pipeline 串起一次解析：校验链接 -> fallback 链 -> 投影为对外 Payload。
package pipeline

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/John-Robertt/tikfetch/internal/domain"
	"github.com/John-Robertt/tikfetch/internal/logx"
	"github.com/John-Robertt/tikfetch/internal/project"
	"github.com/John-Robertt/tikfetch/internal/provider"
)

// ValidationError 表示输入不是受支持的 TikTok 链接。永远不会触发任何网络请求。
type ValidationError struct {
	Input string
}

func (e *ValidationError) Error() string { return msgInvalidURL }

// Pipeline 是无状态的：同一个实例可被多个请求并发使用。
type Pipeline struct {
	Registry       provider.Registry
	Client         *http.Client
	Policy         project.HDPolicy
	AttemptTimeout time.Duration
}

// Result 是一次成功解析的完整结果（Payload + 执行轨迹）。
type Result struct {
	Payload  domain.Payload
	Provider string
	Attempts []provider.Attempt
}

// Resolve 解析 raw 并返回对外 Payload。
func (p *Pipeline) Resolve(ctx context.Context, raw string) (domain.Payload, error) {
	res, err := p.ResolveWithObserver(ctx, raw, nil)
	return res.Payload, err
}

// ResolveWithObserver 与 Resolve 相同，但会把尝试过程通知给 obs（可为 nil）。
// 失败时 Result.Attempts 仍然保留已发生的尝试。
func (p *Pipeline) ResolveWithObserver(ctx context.Context, raw string, obs Observer) (Result, error) {
	started := time.Now()
	link, ok := domain.ParseLink(raw)
	if !ok {
		err := &ValidationError{Input: raw}
		logx.FromContext(ctx).WithField("input", raw).Info("链接校验失败")
		if obs != nil {
			obs.OnDone("", err, time.Since(started))
		}
		return Result{}, err
	}
	if obs != nil {
		obs.OnStart(link, p.Registry.Names())
	}

	opts := provider.Options{AttemptTimeout: p.AttemptTimeout}
	if obs != nil {
		opts.OnAttempt = obs.OnAttempt
	}
	desc, used, attempts, err := provider.ResolveTrace(ctx, p.Registry, link, p.Client, opts)
	res := Result{Provider: used, Attempts: attempts}
	if err == nil {
		res.Payload, err = project.Project(desc, p.Policy)
	}

	log := logx.FromContext(ctx).WithFields(logrus.Fields{
		"provider": used,
		"attempts": len(attempts),
		"elapsed":  time.Since(started).Round(time.Millisecond).String(),
	})
	if err != nil {
		log.WithError(err).Warn("解析失败")
	} else {
		log.WithField("type", res.Payload.Type).Info("解析成功")
	}
	if obs != nil {
		obs.OnDone(used, err, time.Since(started))
	}
	return res, err
}

const (
	msgInvalidURL      = "Invalid TikTok URL"
	msgAllFailedPrefix = "All services failed: "
	msgNoVideo         = "No video URLs found"
)

// HTTPStatus 把错误映射为 HTTP 状态码：校验失败 400，其余失败 500。
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// PublicMessage 返回可以直接放进对外 {"error": ...} 的文本，不包含响应体等内部细节。
func PublicMessage(err error) string {
	var (
		ve *ValidationError
		ee *provider.ExhaustedError
		pe *project.ProjectionError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &ve):
		return msgInvalidURL
	case errors.As(err, &ee):
		return msgAllFailedPrefix + ee.Cause()
	case errors.Is(err, project.ErrNoVideo):
		return msgNoVideo
	case errors.As(err, &pe):
		return pe.Error()
	case errors.Is(err, context.Canceled):
		return "request cancelled"
	case errors.Is(err, context.DeadlineExceeded):
		return "request timed out"
	default:
		return "internal error"
	}
}
