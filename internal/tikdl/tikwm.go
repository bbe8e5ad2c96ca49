package tikdl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

type tikwmEnvelope struct {
	Code int        `json:"code"`
	Msg  string     `json:"msg"`
	Data *tikwmData `json:"data"`
}

type tikwmData struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Cover          string   `json:"cover"`
	AIDynamicCover string   `json:"ai_dynamic_cover"`
	Play           string   `json:"play"`
	WMPlay         string   `json:"wmplay"`
	HDPlay         string   `json:"hdplay"`
	Music          string   `json:"music"`
	Images         []string `json:"images"`
	Author         struct {
		UniqueID string `json:"unique_id"`
		Nickname string `json:"nickname"`
	} `json:"author"`
}

func (d *Downloader) tikwm(ctx context.Context, link string) (*Result, error) {
	base := d.endpoints.TikWM
	form := url.Values{}
	form.Set("url", link)
	form.Set("hd", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/api/", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")
	req.Header.Set("Accept", "application/json")

	b, err := d.do(req)
	if err != nil {
		return nil, err
	}
	var env tikwmEnvelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("decode tikwm: %w", err)
	}
	if env.Code != 0 {
		msg := strings.TrimSpace(env.Msg)
		if msg == "" {
			msg = fmt.Sprintf("tikwm code %d", env.Code)
		}
		return nil, errors.New(msg)
	}
	if env.Data == nil {
		return nil, errors.New("tikwm: missing data")
	}
	return env.Data.result(base), nil
}

func (t *tikwmData) result(base string) *Result {
	r := &Result{
		ID:           t.ID,
		Desc:         t.Title,
		Author:       Author{UniqueID: t.Author.UniqueID, Nickname: t.Author.Nickname},
		Cover:        absolute(base, t.Cover),
		DynamicCover: absolute(base, t.AIDynamicCover),
		Music:        absolute(base, t.Music),
	}
	if len(t.Images) > 0 {
		r.Type = TypeImage
		for _, img := range t.Images {
			r.Images = append(r.Images, absolute(base, img))
		}
		return r
	}
	r.Type = TypeVideo
	r.Video = Video{
		NoWatermark: absolute(base, t.Play),
		Watermark:   absolute(base, t.WMPlay),
		HD:          absolute(base, t.HDPlay),
	}
	return r
}
