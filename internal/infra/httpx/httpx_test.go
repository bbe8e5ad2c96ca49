package httpx

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewClient_ProxyDisablesKeepAlive(t *testing.T) {
	c, err := NewClient(Options{ProxyURL: "http://127.0.0.1:8080"})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	tr, ok := c.Transport.(*Transport)
	if !ok {
		t.Fatalf("期望 *Transport，实际 %T", c.Transport)
	}
	base, ok := tr.Base.(*http.Transport)
	if !ok {
		t.Fatalf("期望 *http.Transport，实际 %T", tr.Base)
	}
	if base.Proxy == nil {
		t.Fatalf("期望启用代理，但 Proxy=nil")
	}
	if !base.DisableKeepAlives || !tr.DisableKeepAlives {
		t.Fatalf("期望代理模式禁用 keep-alive")
	}
}

func TestNewClient_Defaults(t *testing.T) {
	c, err := NewClient(Options{})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if c.Timeout != DefaultTimeout {
		t.Fatalf("期望默认超时 %s，实际 %s", DefaultTimeout, c.Timeout)
	}
	if c.Jar != nil {
		t.Fatalf("共享 client 不应持有 cookie jar")
	}
	tr := c.Transport.(*Transport)
	if base := tr.Base.(*http.Transport); base.Proxy != nil || base.DisableKeepAlives {
		t.Fatalf("无代理时不应启用代理/禁用 keep-alive")
	}
	if tr.RetryMax != 0 {
		t.Fatalf("默认不做传输层重试，实际 RetryMax=%d", tr.RetryMax)
	}
}

func TestNewClient_ClampsRetry(t *testing.T) {
	c, err := NewClient(Options{RetryMax: 99, Timeout: time.Second})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if tr := c.Transport.(*Transport); tr.RetryMax != maxRetry {
		t.Fatalf("期望 RetryMax 截断为 %d，实际 %d", maxRetry, tr.RetryMax)
	}
	if c.Timeout != time.Second {
		t.Fatalf("期望超时 1s，实际 %s", c.Timeout)
	}
}

func TestNewClient_InvalidProxyURL(t *testing.T) {
	if _, err := NewClient(Options{ProxyURL: "http://[::1"}); err == nil {
		t.Fatalf("期望错误，但得到 nil")
	}
	if _, err := NewClient(Options{ProxyURL: "127.0.0.1:8080"}); err == nil {
		t.Fatalf("缺少 scheme 时期望错误")
	}
}

func TestNewClient_Fingerprint(t *testing.T) {
	c, err := NewClient(Options{Fingerprint: true})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if _, ok := c.Transport.(*Transport).Base.(*fingerprintTransport); !ok {
		t.Fatalf("期望 fingerprintTransport")
	}
	if _, err := NewClient(Options{Fingerprint: true, ProxyURL: "http://127.0.0.1:1"}); err == nil {
		t.Fatalf("fingerprint + proxy 期望报错")
	}
}

type flakyRT struct {
	fails int32
	calls int32
}

func (f *flakyRT) RoundTrip(req *http.Request) (*http.Response, error) {
	n := atomic.AddInt32(&f.calls, 1)
	if n <= f.fails {
		return nil, errors.New("conn reset")
	}
	return &http.Response{StatusCode: 200, Body: http.NoBody, Request: req, Header: http.Header{}}, nil
}

func TestTransport_RetriesOnlyReplayableRequests(t *testing.T) {
	rt := &flakyRT{fails: 2}
	tr := &Transport{Base: rt, ua: globalUA, RetryMax: 2}

	req, _ := http.NewRequest(http.MethodGet, "http://example.test/", nil)
	if _, err := tr.RoundTrip(req); err != nil {
		t.Fatalf("GET 期望重试后成功：%v", err)
	}
	if rt.calls != 3 {
		t.Fatalf("期望 3 次调用，实际 %d", rt.calls)
	}

	rt2 := &flakyRT{fails: 1}
	tr2 := &Transport{Base: rt2, ua: globalUA, RetryMax: 2}
	post, _ := http.NewRequest(http.MethodPost, "http://example.test/", strings.NewReader("a=b"))
	if _, err := tr2.RoundTrip(post); err == nil {
		t.Fatalf("POST 不应重试")
	}
	if rt2.calls != 1 {
		t.Fatalf("POST 期望 1 次调用，实际 %d", rt2.calls)
	}
}

func TestTransport_FillsUserAgentOnlyWhenMissing(t *testing.T) {
	var (
		mu  sync.Mutex
		got []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		got = append(got, r.Header.Get("User-Agent"))
		mu.Unlock()
	}))
	defer srv.Close()

	c, err := NewClient(Options{})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	req1, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	resp, err := c.Do(req1)
	if err != nil {
		t.Fatalf("请求失败：%v", err)
	}
	resp.Body.Close()

	req2, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	req2.Header.Set("User-Agent", "custom/1.0")
	resp, err = c.Do(req2)
	if err != nil {
		t.Fatalf("请求失败：%v", err)
	}
	resp.Body.Close()

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 2 || !strings.Contains(got[0], "Mozilla/5.0") || got[1] != "custom/1.0" {
		t.Fatalf("UA 不符合预期：%v", got)
	}
	if req1.Header.Get("User-Agent") != "" {
		t.Fatalf("不应修改调用方的 request header")
	}
}
