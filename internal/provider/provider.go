package provider

import (
	"context"
	"net/http"

	"github.com/John-Robertt/tikfetch/internal/domain"
)

// Provider 把“后端变化”限制在 provider 子包内部；fallback 链只依赖统一接口与稳定的 MediaDescriptor。
//
// 约束：
// - Resolve 不做缓存、不做重试、不做限速（每个请求每个 provider 只尝试一次）
// - Resolve 必须幂等，除出站请求外无副作用；实现只能持有不可变配置
// - 返回前必须完成 URL 反混淆（例如 base64 路径段）
// - 响应解析部分应拆成纯函数，便于用固定 fixture 测试
type Provider interface {
	Name() string
	Resolve(ctx context.Context, link domain.Link, c *http.Client) (domain.MediaDescriptor, error)
}
