package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/John-Robertt/tikfetch/internal/domain"
	"github.com/John-Robertt/tikfetch/internal/logx"
)

const (
	StageResolve = "resolve" // provider.Resolve 返回错误（网络/状态码/结构/token/超时）
	StageAccept  = "accept"  // Resolve 成功，但结果不满足接受谓词
	StageOK      = "ok"
)

// Attempt 记录一次 provider 尝试（用于解释 fallback 原因）。
// 注意：这是内部执行轨迹，是否呈现由上层决定。
type Attempt struct {
	Provider string // provider name（小写）
	Stage    string
	Err      error // nil when Stage==StageOK
	Duration time.Duration
}

// Options 控制一次 fallback 链的执行。
type Options struct {
	// AttemptTimeout 是单个 provider 的总超时（<=0 表示只依赖上层 ctx 与 http.Client.Timeout）。
	AttemptTimeout time.Duration
	// OnAttempt 在每次尝试结束后同步调用（可为 nil）。
	OnAttempt func(Attempt)
}

// Resolve 按注册顺序依次尝试 provider，返回第一个被接受的结果。
func Resolve(ctx context.Context, reg Registry, link domain.Link, c *http.Client, opts Options) (desc domain.MediaDescriptor, providerUsed string, err error) {
	desc, providerUsed, _, err = ResolveTrace(ctx, reg, link, c, opts)
	return desc, providerUsed, err
}

type phase int

const (
	phasePending phase = iota
	phaseSucceeded
	phaseExhausted
)

// chainState 是 fallback 状态机：Pending(index) -> Succeeded(desc) | Exhausted(attempts)。
type chainState struct {
	phase    phase
	index    int
	desc     domain.MediaDescriptor
	used     string
	attempts []Attempt
}

// ResolveTrace 与 Resolve 相同，但额外返回尝试链路（用于解释回退原因）。
//
// 规则：
// - 初始状态 Pending(0)
// - provider 返回错误，或结果既无视频也无图集：记录原因，进入 Pending(index+1)
// - index 越过最后一个 provider：Exhausted，返回 *ExhaustedError
// - 第一个被接受的结果直接胜出，不再尝试后续 provider，也不合并部分结果
// - 上层 ctx 被取消：立即停止并返回 ctx.Err()
func ResolveTrace(ctx context.Context, reg Registry, link domain.Link, c *http.Client, opts Options) (domain.MediaDescriptor, string, []Attempt, error) {
	if link == "" {
		return domain.MediaDescriptor{}, "", nil, fmt.Errorf("link 不能为空")
	}

	st := chainState{phase: phasePending}
	if reg.Len() == 0 {
		st.phase = phaseExhausted
	}
	for st.phase == phasePending {
		if err := ctx.Err(); err != nil {
			return domain.MediaDescriptor{}, "", st.attempts, err
		}
		st = step(ctx, reg, link, c, opts, st)
	}

	if st.phase == phaseSucceeded {
		return st.desc, st.used, st.attempts, nil
	}
	if err := ctx.Err(); err != nil {
		return domain.MediaDescriptor{}, "", st.attempts, err
	}
	return domain.MediaDescriptor{}, "", st.attempts, &ExhaustedError{Attempts: st.attempts}
}

func step(ctx context.Context, reg Registry, link domain.Link, c *http.Client, opts Options, st chainState) chainState {
	p := reg.at(st.index)
	a, desc := attemptOne(ctx, p, link, c, opts.AttemptTimeout)
	st.attempts = append(st.attempts, a)
	if opts.OnAttempt != nil {
		opts.OnAttempt(a)
	}

	log := logx.FromContext(ctx).WithFields(logrus.Fields{
		"provider": a.Provider,
		"stage":    a.Stage,
		"dur_ms":   a.Duration.Milliseconds(),
	})
	if a.Err == nil {
		log.Info("provider 解析成功")
		st.phase = phaseSucceeded
		st.desc = desc
		st.used = a.Provider
		return st
	}
	log.WithError(a.Err).Warn("provider 失败，尝试下一个")

	st.index++
	if st.index >= reg.Len() {
		st.phase = phaseExhausted
	}
	return st
}

func attemptOne(ctx context.Context, p Provider, link domain.Link, c *http.Client, timeout time.Duration) (Attempt, domain.MediaDescriptor) {
	name := strings.ToLower(strings.TrimSpace(p.Name()))

	actx := ctx
	cancel := func() {}
	if timeout > 0 {
		actx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	started := time.Now()
	desc, err := p.Resolve(actx, link, c)
	dur := time.Since(started)

	if err != nil {
		if ctx.Err() == nil && errors.Is(actx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("timed out after %s: %w", timeout, context.DeadlineExceeded)
		}
		return Attempt{Provider: name, Stage: StageResolve, Err: err, Duration: dur}, domain.MediaDescriptor{}
	}
	if !desc.HasMedia() {
		return Attempt{Provider: name, Stage: StageAccept, Err: ErrNoMedia, Duration: dur}, domain.MediaDescriptor{}
	}
	return Attempt{Provider: name, Stage: StageOK, Duration: dur}, desc
}

// Error 是 provider 阶段的可追溯错误（BackendError）。
// 它总是可恢复的：fallback 链据此前进到下一个 provider。
type Error struct {
	Provider string // provider name（小写）
	Stage    string // StageResolve 或 StageAccept
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider=%s stage=%s: %v", e.Provider, e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// ExhaustedError 表示所有 provider 都失败（终态）。
// Error() 使用最后一次失败原因；Attempts 保留完整链路。
type ExhaustedError struct {
	Attempts []Attempt
}

func (e *ExhaustedError) Error() string {
	return "all providers failed: " + e.Cause()
}

// Cause 返回最后一次失败的原因（人类可读，不含 provider/stage 前缀）。
func (e *ExhaustedError) Cause() string {
	last := e.last()
	if last == nil || last.Err == nil {
		return "no provider available"
	}
	return reason(last.Err)
}

// reason 返回错误文本，并把其中的 *url.Error 还原为内层原因（不暴露后端 endpoint）。
func reason(err error) string {
	s := err.Error()
	var ue *url.Error
	if errors.As(err, &ue) && ue.Err != nil {
		s = strings.Replace(s, ue.Error(), ue.Err.Error(), 1)
	}
	return s
}

// Unwrap 返回最后一次失败（包装为 *Error），便于 errors.Is/As 判断具体原因。
func (e *ExhaustedError) Unwrap() error {
	last := e.last()
	if last == nil || last.Err == nil {
		return nil
	}
	return &Error{Provider: last.Provider, Stage: last.Stage, Err: last.Err}
}

func (e *ExhaustedError) last() *Attempt {
	if e == nil || len(e.Attempts) == 0 {
		return nil
	}
	return &e.Attempts[len(e.Attempts)-1]
}
