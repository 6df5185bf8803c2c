package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jwulff/vidchat/internal/render"
	"github.com/jwulff/vidchat/internal/session"
)

func newAskCmd(v *viper.Viper) *cobra.Command {
	var videoPath string

	cmd := &cobra.Command{
		Use:   "ask --video <file> <question>",
		Short: "Ask one question about a video and print the answer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd, v, false)
			if err != nil {
				return err
			}
			defer e.Close()

			sess := session.New(session.WithLogger(e.log))
			defer sess.Close()

			r := render.New(e.cfg.Style, 100)
			out := cmd.OutOrStdout()

			if err := sess.SelectVideo(videoPath); err != nil {
				fmt.Fprintln(out, r.Entry(sess.Snapshot().Entries[0]))
				return err
			}

			entry, err := sess.Ask(cmd.Context(), e.client, strings.Join(args, " "))
			if errors.Is(err, session.ErrEmptyPrompt) {
				return err
			}
			fmt.Fprintln(out, r.Entry(entry))
			if err != nil {
				return errors.New(entry.Text)
			}
			if uri := sess.Snapshot().RemoteVideoURI; uri != "" {
				fmt.Fprintf(out, "\nvideo uri: %s\n", uri)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&videoPath, "video", "", "video file to upload")
	_ = cmd.MarkFlagRequired("video")
	return cmd
}
