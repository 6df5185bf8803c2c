package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jwulff/vidchat/internal/mcpserver"
	"github.com/jwulff/vidchat/internal/session"
)

func newMCPCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve select_video, ask and match_image as MCP tools over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd, v, false)
			if err != nil {
				return err
			}
			defer e.Close()

			sess := session.New(session.WithLogger(e.log))
			defer sess.Close()

			srv := mcpserver.New(sess, e.client, version, e.log)
			e.log.Info("mcp server listening on stdio", "base_url", e.cfg.BaseURL)
			return srv.Serve(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}
