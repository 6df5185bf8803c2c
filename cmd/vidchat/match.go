package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jwulff/vidchat/internal/session"
)

func newMatchCmd(v *viper.Viper) *cobra.Command {
	var in session.MatchInput

	cmd := &cobra.Command{
		Use:   "match --image <file> --video-uri gs://bucket/video.mp4",
		Short: "Find frames of an uploaded video that resemble an image",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd, v, false)
			if err != nil {
				return err
			}
			defer e.Close()

			sess := session.New(session.WithLogger(e.log))
			defer sess.Close()

			res, err := sess.Match(cmd.Context(), e.client, in)
			if err != nil {
				return errors.New(session.MatchMessage(err))
			}

			out := cmd.OutOrStdout()
			if res.Message != "" {
				fmt.Fprintln(out, res.Message)
			}
			if res.QueryImageURL != "" {
				fmt.Fprintf(out, "query image: %s\n", res.QueryImageURL)
			}
			if len(res.Results) == 0 {
				fmt.Fprintln(out, "No matching frames.")
				return nil
			}
			for _, hit := range res.Results {
				fmt.Fprintf(out, "%-10s %.2f", hit.Timestamp, hit.Similarity)
				if hit.ImageURL != "" {
					fmt.Fprintf(out, "  %s", hit.ImageURL)
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&in.ImagePath, "image", "", "query image file")
	flags.StringVar(&in.VideoURI, "video-uri", "", "gs:// URI of a video the service already holds")
	flags.Float64Var(&in.Threshold, "threshold", session.DefaultThreshold, "similarity threshold between 0 and 1")
	flags.IntVar(&in.Interval, "interval", session.DefaultInterval, "frame sampling interval in seconds")
	return cmd
}
