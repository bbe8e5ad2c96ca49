package ssstik

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func readFixture(t *testing.T, name string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("读取 fixture 失败：%v", err)
	}
	return string(b)
}

func TestExtractToken(t *testing.T) {
	tok, ok := ExtractToken(readFixture(t, "landing.html"))
	if !ok || tok != "Y2NkZWY0" {
		t.Fatalf("token 不符合预期：%q ok=%v", tok, ok)
	}
	if _, ok := ExtractToken(`<html><script>var x = 1;</script></html>`); ok {
		t.Fatalf("没有 token 的页面不应成功")
	}
	if tok, ok := ExtractToken(`tt: "dbl9"`); !ok || tok != "dbl9" {
		t.Fatalf("双引号 token 不符合预期：%q", tok)
	}
}

func TestExtract_Video(t *testing.T) {
	d := Extract(readFixture(t, "video.html"))

	if d.Title != "Tari tradisional #budaya" {
		t.Fatalf("title 不符合预期：%q", d.Title)
	}
	if d.Creator != "ayu.dance" {
		t.Fatalf("creator 不符合预期：%q", d.Creator)
	}
	if d.Thumbnail != "https://p16.tiktokcdn.com/cover.jpeg" {
		t.Fatalf("thumbnail 不符合预期：%q", d.Thumbnail)
	}
	wantVideos := []string{
		"https://tikcdn.io/ssstik/download/7312345",
		"https://v16.tiktokcdn.com/hd/video.mp4",
	}
	if !reflect.DeepEqual(d.Videos, wantVideos) {
		t.Fatalf("videos 不符合预期：%v", d.Videos)
	}
	if d.Audio != "https://tikcdn.io/ssstik/music/7312345" {
		t.Fatalf("audio 不符合预期：%q", d.Audio)
	}
	if len(d.Slide) != 0 || d.IsSlideshow() {
		t.Fatalf("视频页不应有图集：%v", d.Slide)
	}
}

func TestExtract_Slideshow(t *testing.T) {
	d := Extract(readFixture(t, "slideshow.html"))

	want := []string{"https://p16.tiktokcdn.com/photo1.jpeg", "https://p16.tiktokcdn.com/photo2.jpeg"}
	if !reflect.DeepEqual(d.Slide, want) {
		t.Fatalf("slide 不符合预期：%v", d.Slide)
	}
	if len(d.Videos) != 0 {
		t.Fatalf("图集页不应有视频：%v", d.Videos)
	}
	if d.Audio != "https://tikcdn.io/ssstik/music/9.mp3" {
		t.Fatalf("audio 不符合预期：%q", d.Audio)
	}
	if d.Title != "Foto liburan" || d.Creator != "jalan.jalan" {
		t.Fatalf("title/creator 不符合预期：%q %q", d.Title, d.Creator)
	}
}

func TestExtract_LooseImagesOnlyWithoutVideos(t *testing.T) {
	markup := `<div><img src="https://x.test/cover.jpg" class="pure-img">` +
		`<img src="https://x.test/a.jpg"><img src="https://x.test/b.png"><img src="https://x.test/icon.svg"></div>`
	d := Extract(markup)
	want := []string{"https://x.test/a.jpg", "https://x.test/b.png"}
	if !reflect.DeepEqual(d.Slide, want) {
		t.Fatalf("slide 不符合预期：%v", d.Slide)
	}

	d = Extract(markup + `<a href="https://x.test/v.mp4">v</a>`)
	if len(d.Slide) != 0 || len(d.Videos) != 1 {
		t.Fatalf("有视频时不应回退到散落图片：%+v", d)
	}
}

func TestExtract_KeepsTwoVideos(t *testing.T) {
	d := Extract(`<a href="https://x.test/1.mp4">1</a><a href="https://x.test/2.mp4">2</a><a href="https://x.test/3.mp4">3</a>`)
	if len(d.Videos) != 2 || d.Videos[1] != "https://x.test/2.mp4" {
		t.Fatalf("videos 不符合预期：%v", d.Videos)
	}
}

func TestDeobfuscate(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"https://ssscdn.io/ssstik/v/aHR0cHM6Ly92MTYudGlrdG9rY2RuLmNvbS9oZC92aWRlby5tcDQ=", "https://v16.tiktokcdn.com/hd/video.mp4"},
		{"https://ssscdn.io/ssstik/v/aHR0cHM6Ly92MTYudGlrdG9rY2RuLmNvbS9oZC92aWRlby5tcDQ", "https://v16.tiktokcdn.com/hd/video.mp4"},
		{"https://ssscdn.io/short", "https://ssscdn.io/short"},
		{"https://ssscdn.io/ssstik/v/not-base64!!", "https://ssscdn.io/ssstik/v/not-base64!!"},
		{"https://tikcdn.io/ssstik/a/b/c/d", "https://tikcdn.io/ssstik/a/b/c/d"},
	}
	for _, c := range cases {
		if got := Deobfuscate(c.in); got != c.want {
			t.Fatalf("Deobfuscate(%q)=%q，期望 %q", c.in, got, c.want)
		}
	}
}

func TestExtract_Empty(t *testing.T) {
	if d := Extract(""); d.HasMedia() {
		t.Fatalf("空 markup 不应产出媒体：%+v", d)
	}
}
