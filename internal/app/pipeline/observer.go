package pipeline

import (
	"time"

	"github.com/John-Robertt/tikfetch/internal/domain"
	"github.com/John-Robertt/tikfetch/internal/provider"
)

// Observer 用于把“解析进度”从核心执行流程中解耦出来。
//
// 约束：
// - pipeline 只负责发事件，不做任何输出（避免污染 stdout 的 JSON 契约）
// - 事件在调用 Resolve 的 goroutine 上同步触发
type Observer interface {
	// OnStart 在链接校验通过、开始尝试后端之前调用。
	OnStart(link domain.Link, providers []string)
	// OnAttempt 在每个后端尝试结束后调用。
	OnAttempt(a provider.Attempt)
	// OnDone 在整个解析结束时调用（err 为 nil 表示成功）。
	OnDone(providerUsed string, err error, dur time.Duration)
}
