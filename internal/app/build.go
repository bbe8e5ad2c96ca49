// Package app 把生效配置装配成可运行的解析 pipeline。
package app

import (
	"fmt"

	"github.com/John-Robertt/tikfetch/internal/app/pipeline"
	"github.com/John-Robertt/tikfetch/internal/config"
	"github.com/John-Robertt/tikfetch/internal/infra/httpx"
	"github.com/John-Robertt/tikfetch/internal/project"
	"github.com/John-Robertt/tikfetch/internal/provider"
	"github.com/John-Robertt/tikfetch/internal/provider/libdl"
	"github.com/John-Robertt/tikfetch/internal/provider/ssstik"
	"github.com/John-Robertt/tikfetch/internal/provider/tiksave"
	"github.com/John-Robertt/tikfetch/internal/tikdl"
)

// Providers 返回按配置参数化的全部后端（顺序即内置默认优先级）。
func Providers(eff config.Effective) ([]provider.Provider, error) {
	versions := make([]tikdl.Version, 0, len(eff.TikdlVersions))
	for _, raw := range eff.TikdlVersions {
		v, err := tikdl.ParseVersion(raw)
		if err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return []provider.Provider{
		tiksave.Provider{BaseURL: eff.TiksaveBaseURL, Locale: eff.Locale},
		ssstik.Provider{BaseURL: eff.SsstikBaseURL, Locale: eff.Locale},
		libdl.Provider{
			Endpoints: tikdl.Endpoints{
				Aweme:       eff.AwemeBaseURL,
				MusicalDown: eff.MusicalDownURL,
				TikWM:       eff.TikWMBaseURL,
			},
			Versions: versions,
		},
	}, nil
}

// Build 构造共享的 http.Client 与 registry。顺序在进程启动时固定，之后不再变化。
func Build(eff config.Effective) (*pipeline.Pipeline, error) {
	c, err := httpx.NewClient(httpx.Options{
		ProxyURL:    eff.ProxyURL,
		Timeout:     eff.HTTPTimeout,
		RetryMax:    eff.RetryMax,
		Fingerprint: eff.Fingerprint,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化 HTTP client 失败：%w", err)
	}

	ps, err := Providers(eff)
	if err != nil {
		return nil, fmt.Errorf("tikdl.versions 无效：%w", err)
	}
	reg, err := provider.NewRegistry(ps...)
	if err != nil {
		return nil, fmt.Errorf("初始化 provider registry 失败：%w", err)
	}
	reg, err = reg.Reorder(eff.Providers)
	if err != nil {
		return nil, fmt.Errorf("providers.order 无效：%w", err)
	}

	return &pipeline.Pipeline{
		Registry:       reg,
		Client:         c,
		Policy:         project.HDPolicy{Markers: eff.HDMarkers, Positional: eff.HDPositional},
		AttemptTimeout: eff.AttemptTimeout,
	}, nil
}
