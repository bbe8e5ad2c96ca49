package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/John-Robertt/tikfetch/internal/app"
	"github.com/John-Robertt/tikfetch/internal/server"
)

const writeSlack = 10 * time.Second

func newServeCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "启动 HTTP 服务（POST /api/tiktok）",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			eff, log, err := loadConfig(cmd, e)
			if err != nil {
				return err
			}
			p, err := app.Build(eff)
			if err != nil {
				return usageErr("%w", err)
			}

			srv := server.New(p, log)
			// 写超时需覆盖整条 fallback 链：每个后端一个 attempt_timeout，再留一点余量。
			srv.WriteTimeout = eff.AttemptTimeout*time.Duration(p.Registry.Len()) + writeSlack
			log.WithField("providers", p.Registry.Names()).Info("provider 顺序")
			if err := srv.Run(cmd.Context(), eff.Listen); err != nil {
				return failure(err)
			}
			return nil
		},
	}
	cmd.Flags().String("listen", ":8080", "监听地址")
	return cmd
}
