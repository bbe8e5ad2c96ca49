package libdl

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/John-Robertt/tikfetch/internal/domain"
	"github.com/John-Robertt/tikfetch/internal/logx"
	"github.com/John-Robertt/tikfetch/internal/tikdl"
)

const Name = "tikdl"

// DefaultVersions 是单次 Resolve 内依次尝试的协议版本。
var DefaultVersions = []tikdl.Version{tikdl.V1, tikdl.V2, tikdl.V3}

// Provider 把内嵌下载器包装成与其他后端相同的 Resolve 契约。
//
// 约束：
// - 版本间的 fallback 发生在这一次 attempt 内部，对编排器不可见
// - 库报告失败时返回错误，不返回部分结果
type Provider struct {
	Endpoints tikdl.Endpoints
	Versions  []tikdl.Version // 为空时使用 DefaultVersions
}

func (Provider) Name() string { return Name }

func (p Provider) Resolve(ctx context.Context, link domain.Link, c *http.Client) (domain.MediaDescriptor, error) {
	versions := p.Versions
	if len(versions) == 0 {
		versions = DefaultVersions
	}
	dl := tikdl.New(c, p.Endpoints)
	log := logx.FromContext(ctx).WithField("provider", Name)

	// 下载器只接受绝对 URL。
	target := link.Absolute()

	var last tikdl.Response
	for _, v := range versions {
		res := dl.Download(ctx, target, tikdl.Options{Version: v})
		if err := ctx.Err(); err != nil {
			return domain.MediaDescriptor{}, err
		}
		if res.OK() {
			d := Normalize(*res.Result)
			log.WithFields(logrus.Fields{
				"version": v,
				"videos":  d.Videos,
				"slides":  len(d.Slide),
			}).Debug("tikdl 提取结果")
			return d, nil
		}
		log.WithFields(logrus.Fields{"version": v, "reason": res.Message}).Debug("tikdl 版本失败，尝试下一个")
		last = res
	}

	msg := strings.TrimSpace(last.Message)
	if msg == "" {
		msg = "no version succeeded"
	}
	return domain.MediaDescriptor{}, fmt.Errorf("tikdl failed: %s", msg)
}

// Normalize 把库的结果映射为统一的 MediaDescriptor。
func Normalize(r tikdl.Result) domain.MediaDescriptor {
	d := domain.MediaDescriptor{
		Title:     strings.TrimSpace(r.Desc),
		Creator:   lo.Ternary(r.Author.UniqueID != "", r.Author.UniqueID, r.Author.Nickname),
		Thumbnail: lo.Ternary(r.Cover != "", r.Cover, r.DynamicCover),
		Audio:     r.Music,
	}
	if r.Type == tikdl.TypeImage {
		d.Slide = lo.Compact(r.Images)
		return d
	}
	d.Videos = lo.Uniq(lo.Compact([]string{r.Video.NoWatermark, r.Video.HD, r.Video.Watermark}))
	return d
}
