package tikdl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
)

var postIDRE = regexp.MustCompile(`/(?:video|photo)/(\d+)`)

// ErrPostNotFound 表示 feed 接口没有返回与目标 id 匹配的帖子。
var ErrPostNotFound = errors.New("post not found")

type awemeURLs struct {
	URLList []string `json:"url_list"`
}

func (u awemeURLs) first() string {
	if len(u.URLList) == 0 {
		return ""
	}
	return u.URLList[0]
}

type awemeItem struct {
	AwemeID string `json:"aweme_id"`
	Desc    string `json:"desc"`
	Author  struct {
		UniqueID string `json:"unique_id"`
		Nickname string `json:"nickname"`
	} `json:"author"`
	Video struct {
		PlayAddr     awemeURLs `json:"play_addr"`
		DownloadAddr awemeURLs `json:"download_addr"`
		Cover        awemeURLs `json:"cover"`
		DynamicCover awemeURLs `json:"dynamic_cover"`
		BitRate      []struct {
			QualityType int       `json:"quality_type"`
			PlayAddr    awemeURLs `json:"play_addr"`
		} `json:"bit_rate"`
	} `json:"video"`
	Music struct {
		PlayURL awemeURLs `json:"play_url"`
	} `json:"music"`
	ImagePostInfo *struct {
		Images []struct {
			DisplayImage awemeURLs `json:"display_image"`
		} `json:"images"`
	} `json:"image_post_info"`
}

type awemeFeed struct {
	StatusCode int         `json:"status_code"`
	AwemeList  []awemeItem `json:"aweme_list"`
}

func (d *Downloader) aweme(ctx context.Context, link string) (*Result, error) {
	id, err := d.postID(ctx, link)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("aweme_id", id)
	q.Set("iid", "7318518857994389254")
	q.Set("device_id", "7318517321748022790")
	q.Set("version_code", "300904")
	q.Set("app_name", "musical_ly")
	q.Set("device_platform", "android")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.endpoints.Aweme+"/aweme/v1/feed/?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "com.zhiliaoapp.musically/300904 (Linux; U; Android 10; en_US; Pixel 4; Build/QQ3A.200805.001; Cronet/58.0.2991.0)")

	b, err := d.do(req)
	if err != nil {
		return nil, err
	}
	var feed awemeFeed
	if err := json.Unmarshal(b, &feed); err != nil {
		return nil, fmt.Errorf("decode feed: %w", err)
	}
	for _, it := range feed.AwemeList {
		if it.AwemeID == id {
			return it.result(), nil
		}
	}
	return nil, ErrPostNotFound
}

func (it awemeItem) result() *Result {
	r := &Result{
		ID:           it.AwemeID,
		Desc:         it.Desc,
		Author:       Author{UniqueID: it.Author.UniqueID, Nickname: it.Author.Nickname},
		Cover:        it.Video.Cover.first(),
		DynamicCover: it.Video.DynamicCover.first(),
		Music:        it.Music.PlayURL.first(),
	}
	if it.ImagePostInfo != nil && len(it.ImagePostInfo.Images) > 0 {
		r.Type = TypeImage
		for _, img := range it.ImagePostInfo.Images {
			if u := img.DisplayImage.first(); u != "" {
				r.Images = append(r.Images, u)
			}
		}
		return r
	}
	r.Type = TypeVideo
	r.Video.NoWatermark = it.Video.PlayAddr.first()
	r.Video.Watermark = it.Video.DownloadAddr.first()
	for _, br := range it.Video.BitRate {
		if u := br.PlayAddr.first(); u != "" && u != r.Video.NoWatermark {
			r.Video.HD = u
			break
		}
	}
	return r
}

// postID 从链接中取出帖子 id；短链（vt./vm.）先跟随跳转，再从最终地址里取。
func (d *Downloader) postID(ctx context.Context, link string) (string, error) {
	if m := postIDRE.FindStringSubmatch(link); len(m) == 2 {
		return m[1], nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return "", err
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return "", err
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBody))
	_ = resp.Body.Close()

	if resp.Request != nil && resp.Request.URL != nil {
		if m := postIDRE.FindStringSubmatch(resp.Request.URL.String()); len(m) == 2 {
			return m[1], nil
		}
	}
	return "", errors.New("post id not found in link")
}
