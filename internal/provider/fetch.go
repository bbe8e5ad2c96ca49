package provider

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strings"
)

// maxBodyBytes 限制单个响应体大小（结果页通常 < 1MiB）。
const maxBodyBytes = 8 << 20

// Do 执行请求并读取完整 body，供各 provider 共用。
//
// - 非 2xx：返回 *HTTPStatusError（不携带 body）
// - Cloudflare 等拦截页：返回 *BlockedError
// - 空 body：视为失败
func Do(c *http.Client, req *http.Request) ([]byte, error) {
	if c == nil {
		return nil, errors.New("http client 不能为空")
	}
	if req == nil {
		return nil, errors.New("request 不能为空")
	}
	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}

	if isChallenge(resp, b) {
		return nil, &BlockedError{URL: req.URL.String(), Reason: "cf-challenge"}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPStatusError{
			URL:        req.URL.String(),
			StatusCode: resp.StatusCode,
			Location:   strings.TrimSpace(resp.Header.Get("Location")),
		}
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return nil, errors.New("empty response body")
	}
	return b, nil
}

func isChallenge(resp *http.Response, body []byte) bool {
	if strings.EqualFold(resp.Header.Get("cf-mitigated"), "challenge") {
		return true
	}
	if resp.StatusCode != http.StatusForbidden && resp.StatusCode != http.StatusServiceUnavailable {
		return false
	}
	return bytes.Contains(body, []byte("challenge-platform")) || bytes.Contains(body, []byte("cf-chl-"))
}
