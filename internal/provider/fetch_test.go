package provider

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestDo_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>secret internal trace</html>"))
	}))
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	_, err := Do(srv.Client(), req)
	var se *HTTPStatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusBadGateway {
		t.Fatalf("期望 HTTPStatusError(502)，实际 %v", err)
	}
	if strings.Contains(err.Error(), "secret") {
		t.Fatalf("错误文本不应包含响应体：%q", err.Error())
	}
}

func TestDo_Challenge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`<script src="/cdn-cgi/challenge-platform/x.js"></script>`))
	}))
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	_, err := Do(srv.Client(), req)
	var be *BlockedError
	if !errors.As(err, &be) {
		t.Fatalf("期望 BlockedError，实际 %v", err)
	}
}

func TestDo_EmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("  \n"))
	}))
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	if _, err := Do(srv.Client(), req); err == nil {
		t.Fatalf("期望空 body 报错")
	}
}

func TestDo_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	b, err := Do(srv.Client(), req)
	if err != nil || string(b) != "ok" {
		t.Fatalf("期望 body=ok，实际 %q err=%v", b, err)
	}
}
