package ssstik

import (
	"encoding/base64"
	"html"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/samber/lo"

	"github.com/John-Robertt/tikfetch/internal/domain"
)

// obfuscatedHost 上的链接把真实 URL 以 base64 形式放在第 5 个 '/' 之后。
const obfuscatedHost = "ssscdn.io"

const maxVideos = 2

var tokenRE = regexp.MustCompile(`tt:\s*['"](\w+)['"]`)

// titleRules 按优先级排列：第一个产出非空文本的规则胜出。
var titleRules = []*regexp.Regexp{
	regexp.MustCompile(`(?i)<h2[^>]*>([\s\S]*?)</h2>`),
	regexp.MustCompile(`(?i)<p[^>]*>([\s\S]*?)</p>`),
	regexp.MustCompile(`(?i)<div[^>]*id\s*=\s*["']mainresult["'][^>]*>([\s\S]*?)</div>`),
	regexp.MustCompile(`(?i)<span[^>]*class\s*=\s*["']result-overlay["'][^>]*>([\s\S]*?)</span>`),
}

var (
	creatorRE    = regexp.MustCompile(`@([\w.]+)`)
	pureImgRE    = regexp.MustCompile(`(?i)<img[^>]*src="([^"]+)"[^>]*class\s*=\s*["']pure-img["']`)
	anyImgRE     = regexp.MustCompile(`(?i)<img[^>]*src="([^"]+)"`)
	tagRE        = regexp.MustCompile(`<[^>]+>`)
	slideRegions = []string{".splide__list", "ul.slides"}
)

// ExtractToken 从落地页中取出短期授权 token（形如 tt:'abc123'）。
func ExtractToken(page string) (string, bool) {
	m := tokenRE.FindStringSubmatch(page)
	if len(m) < 2 || m[1] == "" {
		return "", false
	}
	return m[1], true
}

// Extract 从结果页 markup 中提取结构化字段。纯函数：相同输入 => 相同输出。
func Extract(markup string) domain.MediaDescriptor {
	d := domain.MediaDescriptor{
		Title:     extractTitle(markup),
		Creator:   firstGroup(creatorRE, markup),
		Thumbnail: html.UnescapeString(firstGroup(pureImgRE, markup)),
	}
	if d.Thumbnail == "" {
		d.Thumbnail = html.UnescapeString(firstGroup(anyImgRE, markup))
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return d
	}

	hrefs := lo.Map(collectHrefs(doc), func(h string, _ int) string { return Deobfuscate(h) })
	hrefs = lo.Uniq(hrefs)

	d.Videos = lo.Filter(hrefs, func(u string, _ int) bool { return isVideo(u) })
	if len(d.Videos) > maxVideos {
		d.Videos = d.Videos[:maxVideos]
	}
	d.Audio, _ = lo.Find(hrefs, isAudio)

	if slides, ok := regionSlides(doc); ok {
		// 图集页的 "Download" 链接指向单张图片，不是视频。
		d.Slide = slides
		d.Videos = nil
	} else if len(d.Videos) == 0 {
		d.Slide = looseSlides(doc, d.Thumbnail)
	}
	return d
}

// Deobfuscate 还原 ssscdn.io 上 base64 编码的真实 URL；无法还原时原样返回。
func Deobfuscate(h string) string {
	if !strings.Contains(h, obfuscatedHost) {
		return h
	}
	parts := strings.Split(h, "/")
	if len(parts) <= 5 {
		return h
	}
	enc := strings.Join(parts[5:], "/")
	if u, err := url.PathUnescape(enc); err == nil {
		enc = u
	}
	for _, e := range []*base64.Encoding{base64.StdEncoding, base64.URLEncoding, base64.RawStdEncoding, base64.RawURLEncoding} {
		b, err := e.DecodeString(enc)
		if err != nil || !utf8.Valid(b) {
			continue
		}
		s := strings.TrimSpace(string(b))
		if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
			return s
		}
	}
	return h
}

func isVideo(u string) bool {
	return strings.HasSuffix(u, ".mp4") ||
		strings.Contains(u, "video") ||
		(strings.Contains(u, "download") && !strings.Contains(u, "mp3") && !strings.Contains(u, "music"))
}

func isAudio(u string) bool {
	return strings.HasSuffix(u, ".mp3") || strings.Contains(u, "mp3") || strings.Contains(u, "music")
}

func extractTitle(markup string) string {
	for _, re := range titleRules {
		if t := stripTags(firstGroup(re, markup)); t != "" {
			return t
		}
	}
	return ""
}

func collectHrefs(doc *goquery.Document) []string {
	var out []string
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		h := strings.TrimSpace(a.AttrOr("href", ""))
		if h == "" || h == "#" || strings.HasPrefix(strings.ToLower(h), "javascript:") {
			return
		}
		out = append(out, h)
	})
	return out
}

func regionSlides(doc *goquery.Document) ([]string, bool) {
	for _, sel := range slideRegions {
		region := doc.Find(sel).First()
		if region.Length() == 0 {
			continue
		}
		srcs := imgSrcs(region)
		if len(srcs) > 0 {
			return srcs, true
		}
	}
	return nil, false
}

func looseSlides(doc *goquery.Document, thumbnail string) []string {
	return lo.Filter(imgSrcs(doc.Selection), func(u string, _ int) bool {
		if u == thumbnail {
			return false
		}
		return strings.Contains(u, ".jpg") || strings.Contains(u, ".png") || strings.Contains(u, "photo")
	})
}

func imgSrcs(s *goquery.Selection) []string {
	var out []string
	s.Find("img[src]").Each(func(_ int, img *goquery.Selection) {
		if src := strings.TrimSpace(img.AttrOr("src", "")); src != "" {
			out = append(out, src)
		}
	})
	return lo.Uniq(out)
}

func firstGroup(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}

func stripTags(s string) string {
	s = tagRE.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)
	return strings.Join(strings.Fields(s), " ")
}
