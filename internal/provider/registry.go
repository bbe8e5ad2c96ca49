package provider

import (
	"fmt"
	"strings"
)

// Registry 是 provider 的只读注册表。
// 注册顺序就是 fallback 的优先级顺序（按可靠性排序，进程内固定，不随请求变化）。
type Registry struct {
	order  []Provider
	byName map[string]Provider
}

func NewRegistry(providers ...Provider) (Registry, error) {
	byName := make(map[string]Provider, len(providers))
	order := make([]Provider, 0, len(providers))
	for _, p := range providers {
		if p == nil {
			return Registry{}, fmt.Errorf("provider 不能为空")
		}
		name := strings.ToLower(strings.TrimSpace(p.Name()))
		if name == "" {
			return Registry{}, fmt.Errorf("provider.Name 不能为空")
		}
		if _, ok := byName[name]; ok {
			return Registry{}, fmt.Errorf("重复的 provider：%q", name)
		}
		byName[name] = p
		order = append(order, p)
	}
	return Registry{order: order, byName: byName}, nil
}

// Reorder 按 names 返回一个新的 Registry（只包含 names 中列出的 provider）。
// 用于启动时按配置调整优先级；未知或重复的 name 直接报错。
func (r Registry) Reorder(names []string) (Registry, error) {
	if len(names) == 0 {
		return Registry{}, fmt.Errorf("provider 顺序不能为空")
	}
	ps := make([]Provider, 0, len(names))
	for _, n := range names {
		p, ok := r.Get(n)
		if !ok {
			return Registry{}, fmt.Errorf("provider 未注册：%q", n)
		}
		ps = append(ps, p)
	}
	return NewRegistry(ps...)
}

func (r Registry) Get(name string) (Provider, bool) {
	if r.byName == nil {
		return nil, false
	}
	name = strings.ToLower(strings.TrimSpace(name))
	p, ok := r.byName[name]
	return p, ok
}

// Len 返回已注册 provider 数量。
func (r Registry) Len() int { return len(r.order) }

// Names 按优先级顺序返回 provider name（小写）。
func (r Registry) Names() []string {
	out := make([]string, 0, len(r.order))
	for _, p := range r.order {
		out = append(out, strings.ToLower(strings.TrimSpace(p.Name())))
	}
	return out
}

func (r Registry) at(i int) Provider { return r.order[i] }
