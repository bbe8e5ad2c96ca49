package main

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/John-Robertt/tikfetch/internal/app/pipeline"
	"github.com/John-Robertt/tikfetch/internal/domain"
	"github.com/John-Robertt/tikfetch/internal/provider"
)

var _ pipeline.Observer = (*progressUI)(nil)

// progressUI 是 resolve --verbose 的逐行进度输出。
//
// - 只写 stderr，不污染 stdout 的 JSON 输出
// - 事件驱动：pipeline 只发事件，CLI 决定如何展示
type progressUI struct {
	w io.Writer

	mu        sync.Mutex
	startedAt time.Time
	total     int
	n         int
}

func newProgressUI(w io.Writer) *progressUI {
	return &progressUI{w: w}
}

func (p *progressUI) OnStart(link domain.Link, providers []string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.startedAt = time.Now()
	p.total = len(providers)
	fmt.Fprintf(p.w, "[%s] 解析 %s\n", p.startedAt.Format("15:04:05"), truncate(link.String(), 120))
	fmt.Fprintf(p.w, "  provider: %s\n", strings.Join(providers, " -> "))
}

func (p *progressUI) OnAttempt(a provider.Attempt) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.n++
	fmt.Fprintf(p.w, "  [%d/%d] %s\n", p.n, p.total, formatAttempt(a))
}

func (p *progressUI) OnDone(used string, err error, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err != nil {
		fmt.Fprintf(p.w, "失败：%s (%s)\n", truncate(pipeline.PublicMessage(err), 160), formatShortDuration(dur))
		return
	}
	fmt.Fprintf(p.w, "完成：provider=%s (%s)\n", used, formatShortDuration(dur))
}

// formatAttempt 输出 "name:stage (1.2s)" 或 "name:stage:原因 (1.2s)"。
func formatAttempt(a provider.Attempt) string {
	s := strings.TrimSpace(a.Provider) + ":" + strings.TrimSpace(a.Stage)
	if a.Err != nil {
		s += ":" + truncate(a.Err.Error(), 90)
	}
	return s + " (" + formatShortDuration(a.Duration) + ")"
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}
