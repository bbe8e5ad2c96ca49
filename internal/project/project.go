// Package project 把通过验收的 MediaDescriptor 映射为对外 Payload。
package project

import (
	"errors"
	"strings"

	"github.com/samber/lo"

	"github.com/John-Robertt/tikfetch/internal/domain"
)

// ErrNoVideo 表示视频类结果里没有任何视频 URL。
var ErrNoVideo = errors.New("no video URLs found")

// ProjectionError 表示已被接受的 descriptor 违反了投影不变量（属于缺陷信号，理论上不应出现）。
type ProjectionError struct {
	Err error
}

func (e *ProjectionError) Error() string {
	if e == nil || e.Err == nil {
		return "projection failed"
	}
	return e.Err.Error()
}

func (e *ProjectionError) Unwrap() error { return e.Err }

// HDPolicy 决定 videoHd 的选取方式。
//
// 规则：
// - 先找第一个包含任一 Marker 的视频 URL（可能就是 videos[0]）
// - 找不到且 Positional=true 时取 videos[1]
// - 否则省略 videoHd
type HDPolicy struct {
	Markers    []string
	Positional bool
}

var DefaultHDPolicy = HDPolicy{
	Markers:    []string{"snapcdn.app", "hd", "HD"},
	Positional: true,
}

func (p HDPolicy) pick(videos []string) string {
	markers := lo.Filter(p.Markers, func(m string, _ int) bool { return m != "" })
	if hd, ok := lo.Find(videos, func(u string) bool {
		return lo.SomeBy(markers, func(m string) bool { return strings.Contains(u, m) })
	}); ok {
		return hd
	}
	if p.Positional && len(videos) > 1 {
		return videos[1]
	}
	return ""
}

// Project 是确定性的纯映射：相同输入 => 相同输出。
func Project(d domain.MediaDescriptor, policy HDPolicy) (domain.Payload, error) {
	out := domain.Payload{
		Type:        domain.PayloadTypeVideo,
		Images:      []string{},
		Description: d.Title,
		Creator:     d.Creator,
		Music:       d.Audio,
	}

	if d.IsSlideshow() {
		out.Type = domain.PayloadTypeImage
		out.Images = append(out.Images, d.Slide...)
		return out, nil
	}

	if len(d.Videos) == 0 {
		return domain.Payload{}, &ProjectionError{Err: ErrNoVideo}
	}
	out.Videos = append([]string(nil), d.Videos...)
	out.Video = d.Videos[0]
	out.VideoHD = policy.pick(d.Videos)
	return out, nil
}
