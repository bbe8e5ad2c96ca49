// Package logx 负责 logrus 的初始化，以及“请求级” logger 在 context 中的传递。
package logx

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
)

// New 构造一个独立的 logger（不修改 logrus 全局实例）。
// level 为空时默认 info；json=true 输出 JSON 行，否则输出 text。
func New(w io.Writer, level string, json bool) (*logrus.Logger, error) {
	l := logrus.New()
	if w != nil {
		l.SetOutput(w)
	}

	level = strings.TrimSpace(level)
	if level == "" {
		level = "info"
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log.level 无效：%w", err)
	}
	l.SetLevel(lvl)

	if json {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return l, nil
}

type ctxKey struct{}

// WithEntry 把请求级 entry 放入 ctx（通常带 request_id/url 字段）。
func WithEntry(ctx context.Context, e *logrus.Entry) context.Context {
	if e == nil {
		return ctx
	}
	return context.WithValue(ctx, ctxKey{}, e)
}

// FromContext 取出请求级 entry；没有时返回丢弃输出的 entry（调用方无需判空）。
func FromContext(ctx context.Context) *logrus.Entry {
	if ctx != nil {
		if e, ok := ctx.Value(ctxKey{}).(*logrus.Entry); ok && e != nil {
			return e
		}
	}
	return logrus.NewEntry(discard)
}

var discard = func() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	l.SetLevel(logrus.PanicLevel)
	return l
}()
