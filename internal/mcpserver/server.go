// Package mcpserver exposes a vidchat session as MCP tools over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jwulff/vidchat/internal/analysis"
	"github.com/jwulff/vidchat/internal/session"
)

// Tool names.
const (
	ToolSelectVideo = "select_video"
	ToolAsk         = "ask"
	ToolMatchImage  = "match_image"
	ToolStatus      = "session_status"
)

// Service is the remote side the tools call.
type Service interface {
	session.Analyzer
	session.Matcher
}

// Server wraps an MCP server bound to one session.
type Server struct {
	sess *session.Session
	svc  Service
	log  *slog.Logger
	mcp  *server.MCPServer
}

// New registers the vidchat tools and returns the server.
func New(sess *session.Session, svc Service, version string, log *slog.Logger) *Server {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	s := &Server{
		sess: sess,
		svc:  svc,
		log:  log,
		mcp: server.NewMCPServer("vidchat", version,
			server.WithToolCapabilities(false),
			server.WithRecovery(),
		),
	}

	s.mcp.AddTool(mcp.NewTool(ToolSelectVideo,
		mcp.WithDescription("Select a local video file. Resets the conversation."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path to the video file")),
	), s.handleSelectVideo)

	s.mcp.AddTool(mcp.NewTool(ToolAsk,
		mcp.WithDescription("Ask a question about the selected video. The whole video is uploaded with every question."),
		mcp.WithString("prompt", mcp.Required(), mcp.Description("The question to ask")),
	), s.handleAsk)

	s.mcp.AddTool(mcp.NewTool(ToolMatchImage,
		mcp.WithDescription("Find frames in an uploaded video that resemble a query image."),
		mcp.WithString("image", mcp.Required(), mcp.Description("Path to the query image")),
		mcp.WithString("video_uri", mcp.Description("gs:// URI of the video; defaults to the one reported for the selected video")),
		mcp.WithNumber("threshold", mcp.Description("Similarity threshold between 0 and 1"), mcp.DefaultNumber(session.DefaultThreshold)),
		mcp.WithNumber("interval", mcp.Description("Frame sampling interval in seconds"), mcp.DefaultNumber(session.DefaultInterval)),
	), s.handleMatchImage)

	s.mcp.AddTool(mcp.NewTool(ToolStatus,
		mcp.WithDescription("Show the selected video and the conversation so far."),
	), s.handleStatus)

	return s
}

// MCPServer returns the underlying server.
func (s *Server) MCPServer() *server.MCPServer { return s.mcp }

// Serve speaks MCP over in and out until ctx is done or in is closed.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(slog.NewLogLogger(s.log.Handler(), slog.LevelError))
	if err := stdio.Listen(ctx, in, out); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("mcp stdio: %w", err)
	}
	return nil
}

func (s *Server) handleSelectVideo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.sess.SelectVideo(path); err != nil {
		if errors.Is(err, session.ErrRequestInFlight) {
			return mcp.NewToolResultError("A question is still being answered."), nil
		}
		return mcp.NewToolResultError(session.MsgInvalidVideo), nil
	}
	snap := s.sess.Snapshot()
	return mcp.NewToolResultText(snap.Entries[0].Text), nil
}

func (s *Server) handleAsk(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	prompt, err := req.RequireString("prompt")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	entry, err := s.sess.Ask(ctx, s.svc, prompt)
	switch {
	case errors.Is(err, session.ErrNoVideo):
		return mcp.NewToolResultError(session.MsgNoVideo), nil
	case errors.Is(err, session.ErrEmptyPrompt):
		return mcp.NewToolResultError("prompt is empty"), nil
	case errors.Is(err, session.ErrRequestInFlight):
		return mcp.NewToolResultError("A question is still being answered."), nil
	case err != nil:
		return mcp.NewToolResultError(entry.Text), nil
	}
	return mcp.NewToolResultText(formatAnswer(entry)), nil
}

func (s *Server) handleMatchImage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	image, err := req.RequireString("image")
	if err != nil {
		return mcp.NewToolResultError(session.MsgNoQueryImage), nil
	}
	res, err := s.sess.Match(ctx, s.svc, session.MatchInput{
		ImagePath: image,
		VideoURI:  req.GetString("video_uri", ""),
		Threshold: req.GetFloat("threshold", session.DefaultThreshold),
		Interval:  req.GetInt("interval", session.DefaultInterval),
	})
	if err != nil {
		return mcp.NewToolResultError(session.MatchMessage(err)), nil
	}
	return mcp.NewToolResultText(formatMatch(res)), nil
}

type statusView struct {
	Phase          string          `json:"phase"`
	Video          string          `json:"video,omitempty"`
	RemoteVideoURI string          `json:"remoteVideoUri,omitempty"`
	LastError      string          `json:"lastError,omitempty"`
	Entries        []session.Entry `json:"entries"`
}

func (s *Server) handleStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snap := s.sess.Snapshot()
	view := statusView{
		Phase:          snap.Phase().String(),
		RemoteVideoURI: snap.RemoteVideoURI,
		LastError:      snap.LastError,
		Entries:        snap.Entries,
	}
	if snap.Video != nil {
		view.Video = snap.Video.Path
	}
	data, err := json.MarshalIndent(view, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal status: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

func formatAnswer(e session.Entry) string {
	var b strings.Builder
	b.WriteString(e.Text)
	if len(e.Media) > 0 {
		b.WriteString("\n\nRelevant frames:")
		for _, m := range e.Media {
			fmt.Fprintf(&b, "\n- %s %s", m.Timestamp, m.Description)
			if m.ImageURL != "" {
				fmt.Fprintf(&b, " (%s)", m.ImageURL)
			}
		}
	}
	return b.String()
}

func formatMatch(res *analysis.MatchResult) string {
	var b strings.Builder
	b.WriteString(res.Message)
	if len(res.Results) == 0 {
		if b.Len() == 0 {
			b.WriteString("No matching frames.")
		}
		return b.String()
	}
	for _, hit := range res.Results {
		fmt.Fprintf(&b, "\n- %s similarity %.2f", hit.Timestamp, hit.Similarity)
		if hit.ImageURL != "" {
			fmt.Fprintf(&b, " (%s)", hit.ImageURL)
		}
	}
	return strings.TrimLeft(b.String(), "\n")
}
