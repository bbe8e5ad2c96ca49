package domain

import (
	"regexp"
	"strings"
)

// Link 是通过校验的分享链接（保留用户输入的原始形态，只做首尾空白裁剪）。
//
// 约束：要么得到合法 Link，要么失败；失败必须发生在任何网络请求之前。
type Link string

// 允许的形态：[http(s)://][www.|m.|vt.|vm.]tiktok.com/...
// host 是固定白名单，不做“聪明”的子域名泛匹配。
var linkRE = regexp.MustCompile(`^(?i)(https?://)?(www\.|m\.|vt\.|vm\.)?tiktok\.com/`)

// ParseLink 校验并返回 Link。纯函数，无 I/O。
func ParseLink(s string) (Link, bool) {
	s = strings.TrimSpace(s)
	if s == "" || strings.ContainsAny(s, " \t\r\n") {
		return "", false
	}
	if !linkRE.MatchString(s) {
		return "", false
	}
	return Link(s), true
}

// ValidLink 只回答“是否合法”。
func ValidLink(s string) bool {
	_, ok := ParseLink(s)
	return ok
}

func (l Link) String() string { return string(l) }

var schemeRE = regexp.MustCompile(`^(?i)https?://`)

// Absolute 返回带 scheme 的形态；输入未写 scheme 时补 https://。
func (l Link) Absolute() string {
	s := string(l)
	if s == "" || schemeRE.MatchString(s) {
		return s
	}
	return "https://" + s
}
