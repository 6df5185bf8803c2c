package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jwulff/vidchat/internal/analysis"
)

// Match defaults used when the caller leaves a parameter unset.
const (
	DefaultThreshold = 0.85
	DefaultInterval  = 5
)

var (
	ErrNoQueryImage    = errors.New("no query image")
	ErrInvalidVideoURI = errors.New("video uri is not a gs:// location")
	ErrThreshold       = errors.New("threshold out of range")
	ErrInterval        = errors.New("interval must be at least one second")
)

// User-facing match texts.
const (
	MsgNoQueryImage    = "Please select a query image."
	MsgInvalidVideoURI = "Please provide a valid Google Cloud Storage URI (e.g., gs://your-bucket/your-video.mp4)."
	MsgThreshold       = "Similarity threshold must be between 0 and 1."
	MsgInterval        = "Frame sampling interval must be at least 1 second."
	MsgMatchFailure    = "Failed to match image in video. Please try again."
)

// Matcher performs the remote match call.
type Matcher interface {
	Match(ctx context.Context, req analysis.MatchRequest) (*analysis.MatchResult, error)
}

// MatchInput is a query-image search. An empty VideoURI falls back to the
// URI the service reported for the currently selected video.
type MatchInput struct {
	ImagePath string
	VideoURI  string
	Threshold float64
	Interval  int
}

// MatchMessage maps a Match error to the text shown to the user.
func MatchMessage(err error) string {
	switch {
	case errors.Is(err, ErrNoQueryImage):
		return MsgNoQueryImage
	case errors.Is(err, ErrInvalidVideoURI):
		return MsgInvalidVideoURI
	case errors.Is(err, ErrThreshold):
		return MsgThreshold
	case errors.Is(err, ErrInterval):
		return MsgInterval
	}
	return FailureMessage(err, MsgMatchFailure)
}

// Match validates in and searches the stored video for the query image.
// It does not touch the conversation.
func (s *Session) Match(ctx context.Context, m Matcher, in MatchInput) (*analysis.MatchResult, error) {
	uri := strings.TrimSpace(in.VideoURI)
	if uri == "" {
		s.mu.Lock()
		uri = s.remoteVideoURI
		s.mu.Unlock()
	}

	if strings.TrimSpace(in.ImagePath) == "" {
		return nil, ErrNoQueryImage
	}
	if !strings.HasPrefix(uri, "gs://") {
		return nil, ErrInvalidVideoURI
	}
	if !(in.Threshold >= 0 && in.Threshold <= 1) {
		return nil, ErrThreshold
	}
	if in.Interval < 1 {
		return nil, ErrInterval
	}

	f, err := os.Open(in.ImagePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoQueryImage, err)
	}
	defer f.Close()

	s.log.Debug("match started", "video_uri", uri, "threshold", in.Threshold, "interval", in.Interval)
	res, err := m.Match(ctx, analysis.MatchRequest{
		QueryImage: analysis.Upload{Name: filepath.Base(in.ImagePath), Reader: f},
		VideoURI:   uri,
		Threshold:  in.Threshold,
		Interval:   in.Interval,
	})
	if err != nil {
		s.log.Error("match failed", "err", err)
		return nil, err
	}
	return res, nil
}
