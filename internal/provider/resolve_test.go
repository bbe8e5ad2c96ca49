package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/John-Robertt/tikfetch/internal/domain"
)

type stubProvider struct {
	name string

	err  error
	desc domain.MediaDescriptor
	wait bool // 阻塞直到 ctx 结束

	calls int
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) Resolve(ctx context.Context, link domain.Link, c *http.Client) (domain.MediaDescriptor, error) {
	p.calls++
	if p.wait {
		<-ctx.Done()
		return domain.MediaDescriptor{}, ctx.Err()
	}
	if p.err != nil {
		return domain.MediaDescriptor{}, p.err
	}
	return p.desc, nil
}

const testLink = domain.Link("https://www.tiktok.com/@u/video/1")

func TestResolve_FallbackOnError(t *testing.T) {
	a := &stubProvider{name: "a", err: errors.New("nope")}
	b := &stubProvider{name: "b", desc: domain.MediaDescriptor{Title: "t", Videos: []string{"v.mp4"}}}

	reg, err := NewRegistry(a, b)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	desc, used, err := Resolve(context.Background(), reg, testLink, nil, Options{})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if used != "b" {
		t.Fatalf("期望 used=b，实际=%q", used)
	}
	if desc.Title != "t" || len(desc.Videos) != 1 {
		t.Fatalf("descriptor 不符合预期：%+v", desc)
	}
}

func TestResolve_EmptyDescriptorAdvancesAndStopsAtFirstAccepted(t *testing.T) {
	a := &stubProvider{name: "a", desc: domain.MediaDescriptor{Title: "better title"}}
	b := &stubProvider{name: "b", desc: domain.MediaDescriptor{Slide: []string{"1.jpg"}}}
	c := &stubProvider{name: "c", desc: domain.MediaDescriptor{Videos: []string{"c.mp4"}}}

	reg, _ := NewRegistry(a, b, c)
	desc, used, attempts, err := ResolveTrace(context.Background(), reg, testLink, nil, Options{})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if used != "b" {
		t.Fatalf("期望 used=b，实际=%q", used)
	}
	// 不合并部分结果：a 的标题不会出现在最终结果中。
	if desc.Title != "" {
		t.Fatalf("不应合并前序 provider 的字段：%+v", desc)
	}
	if c.calls != 0 {
		t.Fatalf("接受后不应再调用后续 provider，c.calls=%d", c.calls)
	}
	if len(attempts) != 2 {
		t.Fatalf("期望 2 条 attempts，实际 %d: %+v", len(attempts), attempts)
	}
	if attempts[0].Stage != StageAccept || !errors.Is(attempts[0].Err, ErrNoMedia) {
		t.Fatalf("attempt[0] 不符合预期：%+v", attempts[0])
	}
	if attempts[1].Stage != StageOK || attempts[1].Err != nil {
		t.Fatalf("attempt[1] 不符合预期：%+v", attempts[1])
	}
}

func TestResolve_ExhaustedCarriesLastReason(t *testing.T) {
	a := &stubProvider{name: "a", err: errors.New("first")}
	b := &stubProvider{name: "b", desc: domain.MediaDescriptor{}}
	c := &stubProvider{name: "c", err: ErrTokenMissing}

	reg, _ := NewRegistry(a, b, c)
	_, _, attempts, err := ResolveTrace(context.Background(), reg, testLink, nil, Options{})

	var ex *ExhaustedError
	if !errors.As(err, &ex) {
		t.Fatalf("期望 *ExhaustedError，实际 %T: %v", err, err)
	}
	if ex.Cause() != ErrTokenMissing.Error() {
		t.Fatalf("期望最后原因=%q，实际=%q", ErrTokenMissing.Error(), ex.Cause())
	}
	if !errors.Is(err, ErrTokenMissing) {
		t.Fatalf("期望 errors.Is(err, ErrTokenMissing)")
	}
	var pe *Error
	if !errors.As(err, &pe) || pe.Provider != "c" || pe.Stage != StageResolve {
		t.Fatalf("期望可 As 为 *Error(provider=c)，实际 %+v", pe)
	}
	if len(attempts) != 3 || a.calls != 1 || b.calls != 1 || c.calls != 1 {
		t.Fatalf("每个 provider 应恰好尝试一次：attempts=%d calls=%d/%d/%d", len(attempts), a.calls, b.calls, c.calls)
	}
}

func TestResolve_EmptyRegistry(t *testing.T) {
	reg, _ := NewRegistry()
	_, _, err := Resolve(context.Background(), reg, testLink, nil, Options{})
	var ex *ExhaustedError
	if !errors.As(err, &ex) {
		t.Fatalf("期望 *ExhaustedError，实际 %v", err)
	}
	if ex.Cause() == "" {
		t.Fatalf("失败原因不应为空")
	}
}

func TestResolve_AttemptTimeoutAdvances(t *testing.T) {
	slow := &stubProvider{name: "slow", wait: true}
	fast := &stubProvider{name: "fast", desc: domain.MediaDescriptor{Videos: []string{"v.mp4"}}}

	reg, _ := NewRegistry(slow, fast)
	_, used, attempts, err := ResolveTrace(context.Background(), reg, testLink, nil, Options{AttemptTimeout: 20 * time.Millisecond})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if used != "fast" {
		t.Fatalf("期望 used=fast，实际=%q", used)
	}
	if !errors.Is(attempts[0].Err, context.DeadlineExceeded) {
		t.Fatalf("期望超时错误，实际 %v", attempts[0].Err)
	}
}

func TestResolve_CanceledContextStops(t *testing.T) {
	a := &stubProvider{name: "a", desc: domain.MediaDescriptor{Videos: []string{"v.mp4"}}}
	reg, _ := NewRegistry(a)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := Resolve(ctx, reg, testLink, nil, Options{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("期望 context.Canceled，实际 %v", err)
	}
	if a.calls != 0 {
		t.Fatalf("ctx 已取消时不应调用 provider，calls=%d", a.calls)
	}
}

func TestResolve_CancelDuringAttemptDoesNotAdvance(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	a := &stubProvider{name: "a", wait: true}
	b := &stubProvider{name: "b", desc: domain.MediaDescriptor{Videos: []string{"v.mp4"}}}
	reg, _ := NewRegistry(a, b)

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, _, err := Resolve(ctx, reg, testLink, nil, Options{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("期望 context.Canceled，实际 %v", err)
	}
	if b.calls != 0 {
		t.Fatalf("调用方断开后不应继续尝试后续 provider，b.calls=%d", b.calls)
	}
}

func TestResolve_OnAttemptHook(t *testing.T) {
	a := &stubProvider{name: "a", err: errors.New("x")}
	b := &stubProvider{name: "b", desc: domain.MediaDescriptor{Videos: []string{"v.mp4"}}}
	reg, _ := NewRegistry(a, b)

	var seen []string
	_, _, err := Resolve(context.Background(), reg, testLink, nil, Options{
		OnAttempt: func(at Attempt) { seen = append(seen, at.Provider+":"+at.Stage) },
	})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(seen) != 2 || seen[0] != "a:resolve" || seen[1] != "b:ok" {
		t.Fatalf("OnAttempt 事件不符合预期：%v", seen)
	}
}

func TestResolve_EmptyLink(t *testing.T) {
	reg, _ := NewRegistry(&stubProvider{name: "a"})
	if _, _, err := Resolve(context.Background(), reg, "", nil, Options{}); err == nil {
		t.Fatalf("期望错误，但得到 nil")
	}
}

func TestExhaustedError_CauseHidesRequestURL(t *testing.T) {
	inner := errors.New("dial tcp: connection refused")
	ue := &url.Error{Op: "Post", URL: "https://backend.test/api/ajaxSearch?k=secret", Err: inner}
	cases := map[string]error{
		"bare":    ue,
		"wrapped": fmt.Errorf("tiksave: %w", ue),
	}
	for name, err := range cases {
		ex := &ExhaustedError{Attempts: []Attempt{{Provider: "tiksave", Stage: StageResolve, Err: err}}}
		got := ex.Cause()
		if strings.Contains(got, "backend.test") || !strings.Contains(got, inner.Error()) {
			t.Fatalf("%s：Cause 不应包含请求 URL：%q", name, got)
		}
		if !errors.Is(ex, inner) {
			t.Fatalf("%s：期望 errors.Is 仍能找到内层错误", name)
		}
	}
}
