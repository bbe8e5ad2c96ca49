package tiksave

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/John-Robertt/tikfetch/internal/domain"
	providerx "github.com/John-Robertt/tikfetch/internal/provider"
)

const link = domain.Link("https://vt.tiktok.com/ZSabc/")

func TestResolve_PostsFormAndExtracts(t *testing.T) {
	markup := readFixture(t, "video.html")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/ajaxSearch" {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("解析表单失败：%v", err)
		}
		if r.PostForm.Get("q") != string(link) || r.PostForm.Get("lang") != "en" {
			t.Errorf("表单不符合预期：%v", r.PostForm)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok", "data": markup})
	}))
	defer srv.Close()

	d, err := Provider{BaseURL: srv.URL, Locale: "en"}.Resolve(context.Background(), link, srv.Client())
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(d.Videos) != 2 || d.Creator != "kopi.lover" {
		t.Fatalf("descriptor 不符合预期：%+v", d)
	}
}

func TestResolve_NestedData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok","data":{"data":"<div class=\"dl-action\"><a href=\"https://x.test/v.mp4\">v</a></div>"}}`))
	}))
	defer srv.Close()

	d, err := Provider{BaseURL: srv.URL}.Resolve(context.Background(), link, srv.Client())
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(d.Videos) != 1 || d.Videos[0] != "https://x.test/v.mp4" {
		t.Fatalf("videos 不符合预期：%v", d.Videos)
	}
}

func TestResolve_UnexpectedShape(t *testing.T) {
	for _, body := range []string{`{"status":"ok","data":42}`, `{"status":"ok"}`, `not json`} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(body))
		}))
		_, err := Provider{BaseURL: srv.URL}.Resolve(context.Background(), link, srv.Client())
		srv.Close()
		if !errors.Is(err, providerx.ErrUnexpectedShape) {
			t.Fatalf("body=%s 期望 ErrUnexpectedShape，实际 %v", body, err)
		}
	}
}

func TestResolve_BackendErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"error","mess":"Video tidak ditemukan"}`))
	}))
	defer srv.Close()

	_, err := Provider{BaseURL: srv.URL}.Resolve(context.Background(), link, srv.Client())
	if err == nil || err.Error() != "Video tidak ditemukan" {
		t.Fatalf("期望后端错误信息，实际 %v", err)
	}
}

func TestResolve_HTTPStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("down"))
	}))
	defer srv.Close()

	_, err := Provider{BaseURL: srv.URL}.Resolve(context.Background(), link, srv.Client())
	var se *providerx.HTTPStatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("期望 HTTPStatusError(503)，实际 %v", err)
	}
}
