package tikdl

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/samber/lo"
	"golang.org/x/net/publicsuffix"
)

// ErrFormMissing 表示落地页里没有找到提交表单（页面改版或被拦截）。
var ErrFormMissing = errors.New("musicaldown form not found")

type formField struct {
	Name  string
	Value string
}

// musicalDown 走两步表单流程：GET 落地页拿隐藏字段和 cookie，再 POST 到 /download。
// 每次调用使用独立的 cookie jar，调用之间不共享会话。
func (d *Downloader) musicalDown(ctx context.Context, link string) (*Result, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}
	c := *d.client
	c.Jar = jar

	base := d.endpoints.MusicalDown
	landing, err := getPage(ctx, &c, base+"/id")
	if err != nil {
		return nil, err
	}
	fields, err := parseForm(landing)
	if err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set(fields[0].Name, link)
	for _, f := range fields[1:] {
		form.Set(f.Name, f.Value)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/id/download", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Origin", base)
	req.Header.Set("Referer", base+"/id")
	b, err := doWith(&c, req)
	if err != nil {
		return nil, err
	}
	return parseMusicalDownResult(string(b))
}

func getPage(ctx context.Context, c *http.Client, u string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "text/html")
	b, err := doWith(c, req)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// parseForm 按文档顺序取出表单输入框：第一个是链接输入框，其余是随页面变化的隐藏字段。
func parseForm(page string) ([]formField, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return nil, err
	}
	var fields []formField
	doc.Find("form#submit-form input[name]").Each(func(_ int, in *goquery.Selection) {
		fields = append(fields, formField{
			Name:  strings.TrimSpace(in.AttrOr("name", "")),
			Value: in.AttrOr("value", ""),
		})
	})
	fields = lo.Filter(fields, func(f formField, _ int) bool { return f.Name != "" })
	if len(fields) == 0 {
		return nil, ErrFormMissing
	}
	return fields, nil
}

func parseMusicalDownResult(page string) (*Result, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return nil, err
	}
	if msg := strings.TrimSpace(doc.Find("div.card-panel.red").First().Text()); msg != "" {
		return nil, fmt.Errorf("musicaldown: %s", strings.Join(strings.Fields(msg), " "))
	}

	r := &Result{
		Desc:   strings.TrimSpace(doc.Find("p.video-desc").First().Text()),
		Author: Author{Nickname: strings.TrimSpace(doc.Find("h2.video-author").First().Text())},
		Cover:  doc.Find("img.video-cover").First().AttrOr("src", ""),
		Music:  doc.Find(`a[data-event="mp3_download_click"]`).First().AttrOr("href", ""),
	}
	if strings.HasPrefix(r.Author.Nickname, "@") {
		r.Author.UniqueID = strings.TrimPrefix(r.Author.Nickname, "@")
		r.Author.Nickname = ""
	}

	var images []string
	doc.Find("div.card-image img[src]").Each(func(_ int, img *goquery.Selection) {
		if src := strings.TrimSpace(img.AttrOr("src", "")); src != "" {
			images = append(images, src)
		}
	})
	if len(images) > 0 {
		r.Type = TypeImage
		r.Images = lo.Uniq(images)
		return r, nil
	}

	href := func(event string) string {
		return strings.TrimSpace(doc.Find(`a[data-event="` + event + `"]`).First().AttrOr("href", ""))
	}
	r.Type = TypeVideo
	r.Video = Video{
		NoWatermark: href("mp4_download_click"),
		HD:          href("hd_download_click"),
		Watermark:   href("watermark_download_click"),
	}
	if r.Video == (Video{}) {
		return nil, errors.New("musicaldown: no download links")
	}
	return r, nil
}
