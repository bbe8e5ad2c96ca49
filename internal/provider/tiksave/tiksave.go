package tiksave

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/John-Robertt/tikfetch/internal/domain"
	"github.com/John-Robertt/tikfetch/internal/logx"
	providerx "github.com/John-Robertt/tikfetch/internal/provider"
)

const (
	Name           = "tiksave"
	DefaultBaseURL = "https://tiksave.io"
	DefaultLocale  = "id"
)

// Provider 调用 tiksave 的 ajaxSearch 接口：JSON 信封里的 data 是一段 markup，再从中提取字段。
//
// 约束：
// - Resolve 只发一次 POST，不做缓存/重试
// - 解析部分（Extract）是纯函数
type Provider struct {
	BaseURL string // 为空时使用 DefaultBaseURL
	Locale  string // 为空时使用 DefaultLocale
}

func (Provider) Name() string { return Name }

func (p Provider) Resolve(ctx context.Context, link domain.Link, c *http.Client) (domain.MediaDescriptor, error) {
	markup, err := p.fetch(ctx, link, c)
	if err != nil {
		return domain.MediaDescriptor{}, err
	}
	d := Extract(markup)

	logx.FromContext(ctx).WithFields(logrus.Fields{
		"provider": Name,
		"videos":   d.Videos,
		"audio":    d.Audio,
		"slides":   len(d.Slide),
	}).Debug("tiksave 提取结果")
	return d, nil
}

type envelope struct {
	Status string          `json:"status"`
	Mess   string          `json:"mess"`
	Data   json.RawMessage `json:"data"`
}

func (p Provider) fetch(ctx context.Context, link domain.Link, c *http.Client) (string, error) {
	base := strings.TrimRight(strings.TrimSpace(p.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	locale := strings.TrimSpace(p.Locale)
	if locale == "" {
		locale = DefaultLocale
	}

	form := url.Values{}
	form.Set("q", link.String())
	form.Set("lang", locale)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/api/ajaxSearch", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Origin", base)
	req.Header.Set("Referer", base+"/"+locale+"/download-tiktok-mp3")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")

	b, err := providerx.Do(c, req)
	if err != nil {
		return "", err
	}
	return decodeEnvelope(b)
}

// decodeEnvelope 取出信封里的 markup：data 可能直接是字符串，也可能再包一层 {"data": "..."}。
func decodeEnvelope(b []byte) (string, error) {
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return "", fmt.Errorf("%w: %v", providerx.ErrUnexpectedShape, err)
	}
	if strings.EqualFold(env.Status, "error") {
		msg := strings.TrimSpace(env.Mess)
		if msg == "" {
			msg = "backend reported error"
		}
		return "", errors.New(msg)
	}

	data := bytes.TrimSpace(env.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return "", fmt.Errorf("%w: missing data", providerx.ErrUnexpectedShape)
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return s, nil
	}
	var nested struct {
		Data *string `json:"data"`
	}
	if err := json.Unmarshal(data, &nested); err == nil && nested.Data != nil {
		return *nested.Data, nil
	}
	return "", fmt.Errorf("%w: data is not markup", providerx.ErrUnexpectedShape)
}
