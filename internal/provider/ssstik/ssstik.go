package ssstik

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/John-Robertt/tikfetch/internal/domain"
	"github.com/John-Robertt/tikfetch/internal/infra/httpx"
	"github.com/John-Robertt/tikfetch/internal/logx"
	providerx "github.com/John-Robertt/tikfetch/internal/provider"
)

const (
	Name           = "ssstik"
	DefaultBaseURL = "https://ssstik.io"
	DefaultLocale  = "id"
)

// Provider 走 ssstik 的两步会话流程：先 GET 落地页拿 token，再带 token POST 换结果 markup。
//
// 约束：
// - 两次请求使用同一个 User-Agent
// - 落地页没有 token 时直接失败，不发第二次请求
type Provider struct {
	BaseURL string
	Locale  string
}

func (Provider) Name() string { return Name }

func (p Provider) Resolve(ctx context.Context, link domain.Link, c *http.Client) (domain.MediaDescriptor, error) {
	base := strings.TrimRight(strings.TrimSpace(p.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	locale := strings.TrimSpace(p.Locale)
	if locale == "" {
		locale = DefaultLocale
	}
	ua := httpx.UserAgent()
	log := logx.FromContext(ctx).WithField("provider", Name)

	token, err := fetchToken(ctx, c, base, ua)
	if err != nil {
		return domain.MediaDescriptor{}, err
	}
	log.Debug("ssstik 已取得 token")

	markup, err := fetchResult(ctx, c, base, ua, locale, token, link)
	if err != nil {
		return domain.MediaDescriptor{}, err
	}
	d := Extract(markup)

	log.WithFields(logrus.Fields{
		"videos": d.Videos,
		"audio":  d.Audio,
		"slides": len(d.Slide),
	}).Debug("ssstik 提取结果")
	return d, nil
}

func fetchToken(ctx context.Context, c *http.Client, base, ua string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", ua)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	b, err := providerx.Do(c, req)
	if err != nil {
		return "", err
	}
	token, ok := ExtractToken(string(b))
	if !ok {
		return "", providerx.ErrTokenMissing
	}
	return token, nil
}

func fetchResult(ctx context.Context, c *http.Client, base, ua, locale, token string, link domain.Link) (string, error) {
	form := url.Values{}
	form.Set("id", link.String())
	form.Set("locale", locale)
	form.Set("tt", token)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/abc?url=dl", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", ua)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")
	req.Header.Set("HX-Request", "true")
	req.Header.Set("HX-Trigger", "_gcaptcha_pt")
	req.Header.Set("HX-Target", "target")
	req.Header.Set("HX-Current-URL", base+"/"+locale)
	req.Header.Set("Origin", base)
	req.Header.Set("Referer", base+"/"+locale)

	b, err := providerx.Do(c, req)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
