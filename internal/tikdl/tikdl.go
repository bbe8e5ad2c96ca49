// Package tikdl 是内嵌的下载器库：对同一个分享链接提供三种协议版本（v1/v2/v3），
// 返回统一的 Response 结构。
//
// 约束：
// - Download 永远不 panic；所有失败都体现为 Status=error + Message
// - 库本身不做版本间 fallback，由调用方决定尝试顺序
package tikdl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

type Version string

const (
	V1 Version = "v1" // aweme feed JSON API
	V2 Version = "v2" // musicaldown 表单流程
	V3 Version = "v3" // tikwm JSON API
)

// ParseVersion 校验版本字符串（大小写不敏感）。
func ParseVersion(s string) (Version, error) {
	switch v := Version(strings.ToLower(strings.TrimSpace(s))); v {
	case V1, V2, V3:
		return v, nil
	default:
		return "", fmt.Errorf("unknown tikdl version %q", s)
	}
}

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

const (
	TypeVideo = "video"
	TypeImage = "image"
)

type Author struct {
	UniqueID string `json:"uniqueId,omitempty"`
	Nickname string `json:"nickname,omitempty"`
}

// Video 是一个视频帖子的几种清晰度/水印版本，缺失的字段为空串。
type Video struct {
	NoWatermark string `json:"noWatermark,omitempty"`
	Watermark   string `json:"watermark,omitempty"`
	HD          string `json:"hd,omitempty"`
}

type Result struct {
	Type         string   `json:"type"` // TypeVideo | TypeImage
	ID           string   `json:"id,omitempty"`
	Desc         string   `json:"desc,omitempty"`
	Author       Author   `json:"author"`
	Cover        string   `json:"cover,omitempty"`
	DynamicCover string   `json:"dynamicCover,omitempty"`
	Video        Video    `json:"video"`
	Images       []string `json:"images,omitempty"`
	Music        string   `json:"music,omitempty"`
}

type Response struct {
	Status  string  `json:"status"`
	Message string  `json:"message,omitempty"`
	Result  *Result `json:"result,omitempty"`
}

func (r Response) OK() bool { return r.Status == StatusSuccess && r.Result != nil }

// Endpoints 是三个版本各自的服务根地址。测试里替换为 httptest 地址。
type Endpoints struct {
	Aweme       string
	MusicalDown string
	TikWM       string
}

var DefaultEndpoints = Endpoints{
	Aweme:       "https://api22-normal-c-alisg.tiktokv.com",
	MusicalDown: "https://musicaldown.com",
	TikWM:       "https://www.tikwm.com",
}

type Downloader struct {
	client    *http.Client
	endpoints Endpoints
}

type Options struct {
	Version Version // 为空时使用 V1
}

// New 构造 Downloader；c 为 nil 时使用 http.DefaultClient，ep 中为空的字段取默认值。
func New(c *http.Client, ep Endpoints) *Downloader {
	if c == nil {
		c = http.DefaultClient
	}
	if strings.TrimSpace(ep.Aweme) == "" {
		ep.Aweme = DefaultEndpoints.Aweme
	}
	if strings.TrimSpace(ep.MusicalDown) == "" {
		ep.MusicalDown = DefaultEndpoints.MusicalDown
	}
	if strings.TrimSpace(ep.TikWM) == "" {
		ep.TikWM = DefaultEndpoints.TikWM
	}
	ep.Aweme = strings.TrimRight(ep.Aweme, "/")
	ep.MusicalDown = strings.TrimRight(ep.MusicalDown, "/")
	ep.TikWM = strings.TrimRight(ep.TikWM, "/")
	return &Downloader{client: c, endpoints: ep}
}

// Download 用指定版本解析 link。
func (d *Downloader) Download(ctx context.Context, link string, opts Options) Response {
	link = strings.TrimSpace(link)
	u, err := url.Parse(link)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return failure(errors.New("invalid url"))
	}

	v := opts.Version
	if v == "" {
		v = V1
	}

	var res *Result
	switch v {
	case V1:
		res, err = d.aweme(ctx, link)
	case V2:
		res, err = d.musicalDown(ctx, link)
	case V3:
		res, err = d.tikwm(ctx, link)
	default:
		err = fmt.Errorf("unknown version %q", v)
	}
	if err != nil {
		return failure(err)
	}
	return Response{Status: StatusSuccess, Result: res}
}

// failure 生成错误响应；*url.Error 只保留内层原因，Message 不带请求 URL。
func failure(err error) Response {
	msg := err.Error()
	var ue *url.Error
	if errors.As(err, &ue) && ue.Err != nil {
		msg = strings.Replace(msg, ue.Error(), ue.Err.Error(), 1)
	}
	return Response{Status: StatusError, Message: msg}
}

// maxBody 限制单个响应体大小。
const maxBody = 4 << 20

func (d *Downloader) do(req *http.Request) ([]byte, error) {
	return doWith(d.client, req)
}

func doWith(c *http.Client, req *http.Request) ([]byte, error) {
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "*/*")
	}
	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	if len(b) == 0 {
		return nil, errors.New("empty response body")
	}
	return b, nil
}

// absolute 把服务返回的相对路径拼到 base 上；已是绝对地址或为空时原样返回。
func absolute(base, s string) string {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
		return s
	}
	if strings.HasPrefix(s, "/") {
		return base + s
	}
	return s
}
