package config

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// ErrCodeNotFound 表示 --config 指定的文件不存在。
	ErrCodeNotFound = "config_not_found"
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = "config_invalid"
)

const (
	// FileName 是工作目录下可选配置文件的文件名（不含扩展名：yaml/json/toml 均可）。
	FileName  = "tikfetch"
	EnvPrefix = "TIKFETCH"
)

// 配置键。flag 与环境变量都映射到这些键上（环境变量：前缀 + 键名大写，"." 换成 "_"）。
const (
	KeyListen         = "listen"
	KeyLogLevel       = "log.level"
	KeyLogJSON        = "log.json"
	KeyHTTPTimeout    = "http.timeout"
	KeyAttemptTimeout = "http.attempt_timeout"
	KeyRetryMax       = "http.retry_max"
	KeyProxy          = "http.proxy"
	KeyFingerprint    = "http.fingerprint"
	KeyProviders      = "providers.order"
	KeyLocale         = "providers.locale"
	KeyTiksaveBase    = "tiksave.base_url"
	KeySsstikBase     = "ssstik.base_url"
	KeyTikdlVersions  = "tikdl.versions"
	KeyAwemeBase      = "tikdl.aweme_base"
	KeyMusicalDown    = "tikdl.musicaldown_base"
	KeyTikWMBase      = "tikdl.tikwm_base"
	KeyHDMarkers      = "projector.hd_markers"
	KeyHDPositional   = "projector.hd_positional"
)

// flagKeys 把 CLI flag 名映射到配置键（只有显式传入的 flag 才会覆盖）。
var flagKeys = map[string]string{
	"listen":      KeyListen,
	"log-level":   KeyLogLevel,
	"log-json":    KeyLogJSON,
	"proxy":       KeyProxy,
	"fingerprint": KeyFingerprint,
}

// KnownProviders 是可出现在 providers.order 中的名字（顺序即内置默认优先级）。
var KnownProviders = []string{"tiksave", "ssstik", "tikdl"}

// KnownVersions 是 tikdl.versions 的可选值。
var KnownVersions = []string{"v1", "v2", "v3"}

func defaults() map[string]any {
	return map[string]any{
		KeyListen:         ":8080",
		KeyLogLevel:       "info",
		KeyLogJSON:        false,
		KeyHTTPTimeout:    "20s",
		KeyAttemptTimeout: "30s",
		KeyRetryMax:       0,
		KeyProxy:          "",
		KeyFingerprint:    false,
		KeyProviders:      append([]string(nil), KnownProviders...),
		KeyLocale:         "id",
		KeyTiksaveBase:    "https://tiksave.io",
		KeySsstikBase:     "https://ssstik.io",
		KeyTikdlVersions:  append([]string(nil), KnownVersions...),
		KeyAwemeBase:      "https://api22-normal-c-alisg.tiktokv.com",
		KeyMusicalDown:    "https://musicaldown.com",
		KeyTikWMBase:      "https://www.tikwm.com",
		KeyHDMarkers:      []string{"snapcdn.app", "hd", "HD"},
		KeyHDPositional:   true,
	}
}

// Effective 是合并并做最小规范化后的最终配置（实现层直接消费，不再做二次默认/优先级判断）。
type Effective struct {
	// File 是实际读取的配置文件（没有读取任何文件时为空）。
	File string

	Listen   string
	LogLevel string
	LogJSON  bool

	HTTPTimeout    time.Duration
	AttemptTimeout time.Duration
	RetryMax       int
	ProxyURL       string
	Fingerprint    bool

	Providers []string
	Locale    string

	TiksaveBaseURL string
	SsstikBaseURL  string
	TikdlVersions  []string // 已小写并去重
	AwemeBaseURL   string
	MusicalDownURL string
	TikWMBaseURL   string

	HDMarkers    []string
	HDPositional bool
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeInvalid:
		if e.Path == "" {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		if e.Err != nil {
			return fmt.Sprintf("%s：配置文件 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置文件 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Load 按固定规则发现并读取配置，再与环境变量、CLI flag 合并为最终配置。
//
// 发现规则：
// 1) path 非空：必须存在（相对路径以 cwd 为基准），格式由扩展名决定
// 2) path 为空：可选读取 <cwd>/tikfetch.(yaml|json|toml)
//
// 覆盖优先级：显式 flag > 环境变量 TIKFETCH_* > 配置文件 > 内置默认值。
// flags 可为 nil。
func Load(fs afero.Fs, cwd, path string, flags *pflag.FlagSet) (Effective, error) {
	v := viper.New()
	v.SetFs(fs)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for k, val := range defaults() {
		v.SetDefault(k, val)
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Effective{}, &Error{Code: ErrCodeInvalid, Err: err}
				}
			}
		}
	}

	file, err := readFile(v, fs, cwd, path)
	if err != nil {
		return Effective{}, err
	}
	eff, err := build(v)
	if err != nil {
		return Effective{}, &Error{Code: ErrCodeInvalid, Path: file, Err: err}
	}
	eff.File = file
	return eff, nil
}

func readFile(v *viper.Viper, fs afero.Fs, cwd, path string) (string, error) {
	path = strings.TrimSpace(path)
	if path != "" {
		if !filepath.IsAbs(path) {
			path = filepath.Join(cwd, path)
		}
		ok, err := afero.Exists(fs, path)
		if err != nil {
			return "", &Error{Code: ErrCodeInvalid, Path: path, Err: err}
		}
		if !ok {
			return "", &Error{Code: ErrCodeNotFound, Path: path}
		}
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return "", &Error{Code: ErrCodeInvalid, Path: path, Err: err}
		}
		return path, nil
	}

	v.SetConfigName(FileName)
	v.AddConfigPath(cwd)
	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if errors.As(err, &nf) {
			return "", nil
		}
		return "", &Error{Code: ErrCodeInvalid, Path: v.ConfigFileUsed(), Err: err}
	}
	return v.ConfigFileUsed(), nil
}

func build(v *viper.Viper) (Effective, error) {
	eff := Effective{
		Listen:         strings.TrimSpace(v.GetString(KeyListen)),
		LogLevel:       strings.ToLower(strings.TrimSpace(v.GetString(KeyLogLevel))),
		LogJSON:        v.GetBool(KeyLogJSON),
		HTTPTimeout:    v.GetDuration(KeyHTTPTimeout),
		AttemptTimeout: v.GetDuration(KeyAttemptTimeout),
		RetryMax:       v.GetInt(KeyRetryMax),
		ProxyURL:       strings.TrimSpace(v.GetString(KeyProxy)),
		Fingerprint:    v.GetBool(KeyFingerprint),
		Locale:         strings.TrimSpace(v.GetString(KeyLocale)),
		TiksaveBaseURL: strings.TrimSpace(v.GetString(KeyTiksaveBase)),
		SsstikBaseURL:  strings.TrimSpace(v.GetString(KeySsstikBase)),
		AwemeBaseURL:   strings.TrimSpace(v.GetString(KeyAwemeBase)),
		MusicalDownURL: strings.TrimSpace(v.GetString(KeyMusicalDown)),
		TikWMBaseURL:   strings.TrimSpace(v.GetString(KeyTikWMBase)),
		HDMarkers:    list(v.Get(KeyHDMarkers)),
		HDPositional: v.GetBool(KeyHDPositional),
	}

	if eff.Listen == "" {
		return Effective{}, fmt.Errorf("listen 不能为空")
	}
	if eff.HTTPTimeout <= 0 {
		return Effective{}, fmt.Errorf("http.timeout 必须为正数：%q", v.GetString(KeyHTTPTimeout))
	}
	if eff.AttemptTimeout <= 0 {
		return Effective{}, fmt.Errorf("http.attempt_timeout 必须为正数：%q", v.GetString(KeyAttemptTimeout))
	}
	if eff.RetryMax < 0 || eff.RetryMax > 5 {
		return Effective{}, fmt.Errorf("http.retry_max 超出范围 [0, 5]：%d", eff.RetryMax)
	}
	if eff.ProxyURL != "" {
		if err := validateURL(KeyProxy, eff.ProxyURL, "http", "https", "socks5"); err != nil {
			return Effective{}, err
		}
	}
	if eff.Fingerprint && eff.ProxyURL != "" {
		return Effective{}, fmt.Errorf("http.fingerprint 与 http.proxy 不能同时启用")
	}
	if eff.Locale == "" {
		return Effective{}, fmt.Errorf("providers.locale 不能为空")
	}

	providers, err := validateProviders(list(v.Get(KeyProviders)))
	if err != nil {
		return Effective{}, err
	}
	eff.Providers = providers

	for _, raw := range list(v.Get(KeyTikdlVersions)) {
		ver := strings.ToLower(raw)
		if !lo.Contains(KnownVersions, ver) {
			return Effective{}, fmt.Errorf("tikdl.versions 含未知版本 %q（可选：%s）", raw, strings.Join(KnownVersions, ", "))
		}
		eff.TikdlVersions = append(eff.TikdlVersions, ver)
	}
	eff.TikdlVersions = lo.Uniq(eff.TikdlVersions)
	if len(eff.TikdlVersions) == 0 {
		return Effective{}, fmt.Errorf("tikdl.versions 不能为空")
	}

	for key, u := range map[string]string{
		KeyTiksaveBase: eff.TiksaveBaseURL,
		KeySsstikBase:  eff.SsstikBaseURL,
		KeyAwemeBase:   eff.AwemeBaseURL,
		KeyMusicalDown: eff.MusicalDownURL,
		KeyTikWMBase:   eff.TikWMBaseURL,
	} {
		if err := validateURL(key, u, "http", "https"); err != nil {
			return Effective{}, err
		}
	}
	return eff, nil
}

func validateProviders(names []string) ([]string, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("providers.order 不能为空")
	}
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.ToLower(n)
		if !lo.Contains(KnownProviders, n) {
			return nil, fmt.Errorf("providers.order 含未知 provider %q（可选：%s）", n, strings.Join(KnownProviders, ", "))
		}
		if lo.Contains(out, n) {
			return nil, fmt.Errorf("providers.order 含重复 provider %q", n)
		}
		out = append(out, n)
	}
	return out, nil
}

func validateURL(key, raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s 无效：%q", key, raw)
	}
	if !lo.Contains(schemes, strings.ToLower(u.Scheme)) {
		return fmt.Errorf("%s 必须是 %s：%q", key, strings.Join(schemes, "/"), raw)
	}
	return nil
}

// list 把配置值规范化为字符串列表：文件里的数组原样使用，环境变量里的字符串按逗号/空白切分。
func list(v any) []string {
	var raw []string
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		raw = strings.FieldsFunc(x, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' || r == '\n' })
	case []string:
		raw = x
	case []any:
		for _, e := range x {
			raw = append(raw, fmt.Sprint(e))
		}
	default:
		raw = []string{fmt.Sprint(x)}
	}
	return lo.Filter(lo.Map(raw, func(s string, _ int) string { return strings.TrimSpace(s) }),
		func(s string, _ int) bool { return s != "" })
}
