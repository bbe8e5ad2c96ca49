package tiksave

import (
	"html"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/samber/lo"

	"github.com/John-Robertt/tikfetch/internal/domain"
)

// preferredCDN 的视频链接排在最前（该 CDN 直链最稳定，且通常是高清版本）。
const preferredCDN = "snapcdn.app"

const maxVideos = 2

// titleRules 按优先级排列：第一个产出非空文本的规则胜出。
var titleRules = []*regexp.Regexp{
	regexp.MustCompile(`(?i)<div[^>]*class\s*=\s*["']content["'][^>]*>([\s\S]*?)</div>`),
	regexp.MustCompile(`(?i)class\s*=\s*["']content["'][^>]*>([\s\S]*?)</div>`),
	regexp.MustCompile(`(?i)<div[^>]*class\s*=\s*["']desc["'][^>]*>([\s\S]*?)</div>`),
	regexp.MustCompile(`(?i)<div[^>]*class\s*=\s*["']description["'][^>]*>([\s\S]*?)</div>`),
	regexp.MustCompile(`(?i)<p[^>]*class\s*=\s*["']desc["'][^>]*>([\s\S]*?)</p>`),
	regexp.MustCompile(`(?i)<span[^>]*class\s*=\s*["']desc["'][^>]*>([\s\S]*?)</span>`),
	regexp.MustCompile(`(?i)class\s*=\s*["']tik-left["'][\s\S]*?<div[^>]*class\s*=\s*["']content["'][^>]*>([\s\S]*?)</div>`),
	regexp.MustCompile(`(?i)<div[^>]*class\s*=\s*["']content["'][^>]*>([\s\S]*?)(?:</div>|$)`),
	regexp.MustCompile(`(?i)<div[^>]*class\s*=\s*["']text["'][^>]*>([\s\S]*?)</div>`),
	regexp.MustCompile(`(?i)<div[^>]*class\s*=\s*["']caption["'][^>]*>([\s\S]*?)</div>`),
}

// hashtagRules 是标题的兜底：任意包含 '#' 的纯文本块（长度 > 5）。
var hashtagRules = []*regexp.Regexp{
	regexp.MustCompile(`(?i)<div[^>]*>([^<]*#[^<]*?)</div>`),
	regexp.MustCompile(`(?i)<p[^>]*>([^<]*#[^<]*?)</p>`),
	regexp.MustCompile(`(?i)<span[^>]*>([^<]*#[^<]*?)</span>`),
}

var (
	creatorRE   = regexp.MustCompile(`(?i)class\s*=\s*["']tik-left["'][\s\S]*?<div[^>]*class\s*=\s*["']user["'][^>]*>.*?<a[^>]*>@([^<]+)</a>`)
	anyHandleRE = regexp.MustCompile(`@([a-zA-Z0-9_.]+)`)
	thumbnailRE = regexp.MustCompile(`(?i)class\s*=\s*["']tik-left["'][\s\S]*?<img[^>]*src="([^"]+)"`)
	tagRE       = regexp.MustCompile(`<[^>]+>`)
)

const minHashtagLen = 6

// regionSelectors 定位“下载按钮区域”，按优先级排列。
var regionSelectors = []string{
	".dl-action",
	".download",
	".download-box",
	`div[class*="download"]`,
}

const slideSelector = `ul[class*="download-box"] img`

// Extract 从 tiksave 返回的 markup 中提取结构化字段。纯函数：相同输入 => 相同输出。
func Extract(markup string) domain.MediaDescriptor {
	d := domain.MediaDescriptor{
		Title:     extractTitle(markup),
		Creator:   extractCreator(markup),
		Thumbnail: html.UnescapeString(firstGroup(thumbnailRE, markup)),
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return d
	}

	d.Videos, d.Audio = extractLinks(doc)
	d.Slide = extractSlides(doc)
	if len(d.Slide) > 0 {
		// 图集页里的“下载”链接指向单张图片，不是视频。
		d.Videos = nil
	}
	return d
}

func extractTitle(markup string) string {
	for _, re := range titleRules {
		if t := stripTags(firstGroup(re, markup)); t != "" {
			return t
		}
	}
	for _, re := range hashtagRules {
		if t := strings.TrimSpace(html.UnescapeString(firstGroup(re, markup))); len(t) >= minHashtagLen {
			return t
		}
	}
	return ""
}

func extractCreator(markup string) string {
	if c := strings.TrimSpace(firstGroup(creatorRE, markup)); c != "" {
		return c
	}
	return firstGroup(anyHandleRE, markup)
}

func extractLinks(doc *goquery.Document) (videos []string, audio string) {
	var region *goquery.Selection
	for _, sel := range regionSelectors {
		if s := doc.Find(sel).First(); s.Length() > 0 {
			region = s
			break
		}
	}

	if region != nil {
		hrefs := collectHrefs(region)
		vs := lo.Filter(hrefs, func(u string, _ int) bool {
			return strings.Contains(u, ".mp4") || strings.Contains(u, "video") || !isAudio(u)
		})
		preferred, others := lo.FilterReject(vs, func(u string, _ int) bool {
			return strings.Contains(u, preferredCDN)
		})
		videos = head(append(preferred, others...), maxVideos)
		audio = firstAudio(hrefs)
		return videos, audio
	}

	// 没有下载区域：扫描全部 href，用更宽松的规则（非音频、非绝对外链也视为候选视频）。
	hrefs := collectHrefs(doc.Selection)
	strong, rest := lo.FilterReject(hrefs, func(u string, _ int) bool {
		return strings.Contains(u, ".mp4") || strings.Contains(u, "video")
	})
	loose := lo.Filter(rest, func(u string, _ int) bool {
		return !isAudio(u) && !strings.Contains(u, "http")
	})
	videos = head(append(strong, loose...), maxVideos)
	audio = firstAudio(hrefs)
	return videos, audio
}

func extractSlides(doc *goquery.Document) []string {
	var out []string
	doc.Find(slideSelector).Each(func(_ int, s *goquery.Selection) {
		if src := strings.TrimSpace(s.AttrOr("src", "")); src != "" {
			out = append(out, src)
		}
	})
	return lo.Uniq(out)
}

func collectHrefs(s *goquery.Selection) []string {
	var out []string
	s.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		h := strings.TrimSpace(a.AttrOr("href", ""))
		if h == "" || h == "#" || strings.HasPrefix(strings.ToLower(h), "javascript:") {
			return
		}
		out = append(out, h)
	})
	return lo.Uniq(out)
}

func isAudio(u string) bool {
	return strings.Contains(u, ".mp3") || strings.Contains(u, "audio")
}

func firstAudio(hrefs []string) string {
	a, _ := lo.Find(hrefs, isAudio)
	return a
}

func head(in []string, n int) []string {
	if len(in) > n {
		return in[:n]
	}
	return in
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
