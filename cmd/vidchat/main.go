package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jwulff/vidchat/internal/analysis"
	"github.com/jwulff/vidchat/internal/app"
	"github.com/jwulff/vidchat/internal/config"
	"github.com/jwulff/vidchat/internal/logging"
	"github.com/jwulff/vidchat/internal/session"

	tea "github.com/charmbracelet/bubbletea"
)

var version = "dev"

// env holds what every command needs once flags are parsed.
type env struct {
	cfg    *config.Config
	log    *slog.Logger
	client *analysis.Client
	closer io.Closer
}

func (e *env) Close() error {
	if e.closer != nil {
		return e.closer.Close()
	}
	return nil
}

// setup resolves configuration and logging. When tui is set the terminal
// belongs to bubbletea, so logs go to the log file, by default the one
// under the user cache dir.
func setup(cmd *cobra.Command, v *viper.Viper, tui bool) (*env, error) {
	cfg, err := config.Load(v)
	if err != nil {
		return nil, err
	}

	e := &env{cfg: cfg}
	logFile := cfg.LogFile
	if logFile == "" && tui {
		logFile = logging.DefaultLogPath()
	}
	if logFile != "" {
		logger, closer, err := logging.OpenFile(logFile, cfg.Verbose)
		if err != nil {
			return nil, err
		}
		e.log, e.closer = logger, closer
	} else {
		e.log = logging.New(cmd.ErrOrStderr(), cfg.Verbose)
	}

	e.client = analysis.New(cfg.BaseURL,
		analysis.WithTimeout(cfg.Timeout),
		analysis.WithLogger(e.log),
	)
	return e, nil
}

func newRootCmd() *cobra.Command {
	v := config.New()
	var videoPath string

	root := &cobra.Command{
		Use:           "vidchat",
		Short:         "Chat with a video through the video analysis service",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Long: `vidchat opens a terminal chat about a local video file. Every question
uploads the whole video to the analysis service, which answers and points at
the frames it used.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			config.LoadEnv()
			return config.BindFlags(v, cmd.Flags())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd, v, videoPath)
		},
	}

	flags := root.PersistentFlags()
	flags.String("base-url", analysis.DefaultBaseURL, "analysis service base URL")
	flags.Duration("timeout", analysis.DefaultTimeout, "per-request timeout")
	flags.String("log-file", "", "write logs to this file (default: the user cache dir while the TUI runs, stderr otherwise)")
	flags.BoolP("verbose", "v", false, "enable debug logging")
	flags.String("style", "dark", "markdown style for answers: dark, light or notty")

	root.Flags().StringVar(&videoPath, "video", "", "video to open on start")

	root.AddCommand(newAskCmd(v), newMatchCmd(v), newMCPCmd(v))
	return root
}

func runTUI(cmd *cobra.Command, v *viper.Viper, videoPath string) error {
	e, err := setup(cmd, v, true)
	if err != nil {
		return err
	}
	defer e.Close()

	sess := session.New(session.WithLogger(e.log))
	defer sess.Close()

	ctx := cmd.Context()
	model := app.New(sess, e.client,
		app.WithContext(ctx),
		app.WithLogger(e.log),
		app.WithBaseURL(e.cfg.BaseURL),
		app.WithMarkdownStyle(e.cfg.Style),
		app.WithInitialVideo(videoPath),
	)

	e.log.Info("tui starting", "base_url", e.cfg.BaseURL, "timeout", e.cfg.Timeout)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run tui: %w", err)
	}
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
