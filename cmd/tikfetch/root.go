package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/John-Robertt/tikfetch/internal/config"
	"github.com/John-Robertt/tikfetch/internal/logx"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

type streams struct {
	out io.Writer
	err io.Writer
}

// exitError 携带进程退出码；RunE 返回它来区分“解析失败”和“用法错误”。
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func usageErr(format string, a ...any) error {
	return &exitError{code: exitUsage, err: fmt.Errorf(format, a...)}
}

func failure(err error) error { return &exitError{code: exitFailure, err: err} }

// env 是一次命令执行共享的依赖（测试里替换 fs 与输出流）。
type env struct {
	fs      afero.Fs
	cwd     string
	streams streams
}

func execute(ctx context.Context, args []string, s streams) int {
	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(s.err, "读取当前目录失败：%v\n", err)
		return exitFailure
	}
	return executeWith(ctx, args, &env{fs: afero.NewOsFs(), cwd: cwd, streams: s})
}

func executeWith(ctx context.Context, args []string, e *env) int {
	root := newRootCmd(e)
	root.SetArgs(args)
	root.SetOut(e.streams.out)
	root.SetErr(e.streams.err)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}
	fmt.Fprintf(e.streams.err, "错误：%v\n", err)

	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	// cobra 自身的参数/flag 解析错误。
	return exitUsage
}

func newRootCmd(e *env) *cobra.Command {
	root := &cobra.Command{
		Use:           "tikfetch",
		Short:         "把 TikTok 分享链接解析为可下载的媒体地址",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.String("config", "", "配置文件路径（yaml/json/toml；默认读取当前目录下的 tikfetch.*，可选）")
	pf.String("log-level", "info", "日志级别：trace|debug|info|warn|error")
	pf.Bool("log-json", false, "以 JSON 行输出日志")
	pf.String("proxy", "", "HTTP 代理（http/https/socks5）")
	pf.Bool("fingerprint", false, "使用 Chrome TLS 指纹（不能与 --proxy 同时使用）")
	lo.Must0(root.RegisterFlagCompletionFunc("log-level", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return []string{"trace", "debug", "info", "warn", "error"}, cobra.ShellCompDirectiveNoFileComp
	}))

	root.AddCommand(newServeCmd(e), newResolveCmd(e))
	return root
}

// loadConfig 读取生效配置并构造 logger（日志统一写 stderr，stdout 只留给 JSON 结果）。
func loadConfig(cmd *cobra.Command, e *env) (config.Effective, *logrus.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	eff, err := config.Load(e.fs, e.cwd, path, cmd.Flags())
	if err != nil {
		return config.Effective{}, nil, usageErr("%w", err)
	}
	log, err := logx.New(e.streams.err, eff.LogLevel, eff.LogJSON)
	if err != nil {
		return config.Effective{}, nil, usageErr("%w", err)
	}
	if eff.File != "" {
		log.WithField("file", eff.File).Debug("已读取配置文件")
	}
	return eff, log, nil
}
