package main

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/John-Robertt/tikfetch/internal/app"
	"github.com/John-Robertt/tikfetch/internal/app/pipeline"
	"github.com/John-Robertt/tikfetch/internal/infra/fsx"
	"github.com/John-Robertt/tikfetch/internal/logx"
)

func newResolveCmd(e *env) *cobra.Command {
	var (
		outPath string
		force   bool
		verbose bool
	)
	cmd := &cobra.Command{
		Use:   "resolve <url>",
		Short: "解析一个链接，把 JSON 结果写到 stdout（或 -o 指定的文件）",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eff, log, err := loadConfig(cmd, e)
			if err != nil {
				return err
			}
			p, err := app.Build(eff)
			if err != nil {
				return usageErr("%w", err)
			}

			raw := args[0]
			ctx := logx.WithEntry(cmd.Context(), log.WithFields(logrus.Fields{
				"request_id": uuid.NewString(),
				"url":        raw,
			}))

			var obs pipeline.Observer
			if verbose {
				obs = newProgressUI(e.streams.err)
			}
			res, err := p.ResolveWithObserver(ctx, raw, obs)
			if err != nil {
				var ve *pipeline.ValidationError
				if errors.As(err, &ve) {
					return usageErr("%s", pipeline.PublicMessage(err))
				}
				return failure(errors.New(pipeline.PublicMessage(err)))
			}

			b, err := json.MarshalIndent(res.Payload, "", "  ")
			if err != nil {
				return failure(err)
			}
			b = append(b, '\n')

			if strings.TrimSpace(outPath) == "" {
				_, err = e.streams.out.Write(b)
				return err
			}
			dst := outPath
			if !filepath.IsAbs(dst) {
				dst = filepath.Join(e.cwd, dst)
			}
			if err := fsx.WriteFile(dst, b, force); err != nil {
				if errors.Is(err, os.ErrExist) {
					return usageErr("输出文件已存在（使用 --force 覆盖）：%s", dst)
				}
				return failure(err)
			}
			log.WithField("file", dst).Info("结果已写入")
			return nil
		},
	}
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "把 JSON 结果原子写入该文件")
	cmd.Flags().BoolVar(&force, "force", false, "允许覆盖已存在的输出文件")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "在 stderr 逐行打印每个后端的尝试结果")
	return cmd
}
