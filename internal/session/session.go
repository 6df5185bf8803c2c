// Package session holds the conversation state machine for one video
// question-and-answer session: video selection, the ordered entry log, and
// the single in-flight analyze request.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwulff/vidchat/internal/analysis"
)

var (
	ErrNoVideo         = errors.New("no video selected")
	ErrInvalidVideo    = errors.New("invalid video file")
	ErrEmptyPrompt     = errors.New("empty prompt")
	ErrRequestInFlight = errors.New("request already in flight")
)

// User-facing entry texts.
const (
	MsgInvalidVideo   = "Please upload a valid video file."
	MsgNoVideo        = "Please upload a video first."
	MsgAnalyzeFailure = "Failed to analyze video. Please try again."
)

var videoExts = map[string]bool{
	".mp4": true, ".m4v": true, ".mov": true, ".webm": true, ".mkv": true,
	".avi": true, ".mpeg": true, ".mpg": true, ".3gp": true, ".ogv": true,
	".wmv": true, ".flv": true,
}

// Analyzer performs the remote analyze call.
type Analyzer interface {
	Analyze(ctx context.Context, video analysis.Upload, prompt string) (*analysis.AnalyzeResult, error)
}

// video is the selected file and the handle the session owns.
type video struct {
	info VideoInfo
	file *os.File
}

// Session is the explicit state container mutated by SelectVideo and the
// ask lifecycle (Begin, Request.Run, Request.Finish).
type Session struct {
	mu sync.Mutex

	entries        []Entry
	video          *video
	remoteVideoURI string
	pending        bool
	lastError      string

	now func() time.Time
	log *slog.Logger
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.log = l
		}
	}
}

// WithClock overrides the entry timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates an empty session with no video selected.
func New(opts ...Option) *Session {
	s := &Session{
		now: time.Now,
		log: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Entries:        append([]Entry(nil), s.entries...),
		RemoteVideoURI: s.remoteVideoURI,
		Pending:        s.pending,
		LastError:      s.lastError,
	}
	if s.video != nil {
		info := s.video.info
		snap.Video = &info
	}
	return snap
}

// Phase reports whether a request is outstanding.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending {
		return AwaitingAnswer
	}
	return Idle
}

// SelectVideo replaces the selected video with the file at path. An empty
// or unusable path appends an error entry and leaves the current video in
// place.
func (s *Session) SelectVideo(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending {
		return ErrRequestInFlight
	}

	v, err := openVideo(path)
	if err != nil {
		s.log.Warn("video rejected", "path", path, "err", err)
		s.appendLocked(KindError, MsgInvalidVideo, nil)
		return err
	}

	if s.video != nil {
		if cerr := s.video.file.Close(); cerr != nil {
			s.log.Warn("release previous video", "path", s.video.info.Path, "err", cerr)
		}
	}
	s.video = v
	s.remoteVideoURI = ""
	s.lastError = ""
	s.entries = nil
	s.appendLocked(KindInfo, fmt.Sprintf("This is the video %q you uploaded. You can now ask me questions!", v.info.Name), nil)

	s.log.Info("video selected", "name", v.info.Name, "size", v.info.Size)
	return nil
}

func openVideo(path string) (*video, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("%w: no file chosen", ErrInvalidVideo)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidVideo, err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %v", ErrInvalidVideo, err)
	}
	if !fi.Mode().IsRegular() || fi.Size() == 0 {
		f.Close()
		return nil, fmt.Errorf("%w: %s is not a non-empty file", ErrInvalidVideo, path)
	}
	if !looksLikeVideo(f, path) {
		f.Close()
		return nil, fmt.Errorf("%w: %s is not a video", ErrInvalidVideo, path)
	}

	return &video{
		info: VideoInfo{Name: filepath.Base(path), Path: path, Size: fi.Size()},
		file: f,
	}, nil
}

func looksLikeVideo(f *os.File, path string) bool {
	if videoExts[strings.ToLower(filepath.Ext(path))] {
		return true
	}
	head := make([]byte, 512)
	n, _ := f.ReadAt(head, 0)
	return strings.HasPrefix(http.DetectContentType(head[:n]), "video/")
}

// Close releases the selected video handle.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.video == nil {
		return nil
	}
	err := s.video.file.Close()
	s.video = nil
	return err
}

// Request is an accepted ask awaiting its transport result. Exactly one
// Request may be outstanding per session.
type Request struct {
	s      *Session
	prompt string
	name   string
	body   io.ReaderAt
	size   int64
	once   sync.Once
}

// Prompt returns the question text.
func (r *Request) Prompt() string { return r.prompt }

// Begin validates an ask and moves the session to AwaitingAnswer. Without a
// selected video it appends an error entry and returns ErrNoVideo.
func (s *Session) Begin(prompt string) (*Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending {
		return nil, ErrRequestInFlight
	}
	if s.video == nil {
		s.appendLocked(KindError, MsgNoVideo, nil)
		return nil, ErrNoVideo
	}
	if strings.TrimSpace(prompt) == "" {
		return nil, ErrEmptyPrompt
	}

	s.appendLocked(KindUser, prompt, nil)
	s.pending = true
	s.lastError = ""

	s.log.Debug("ask started", "video", s.video.info.Name)
	return &Request{
		s:      s,
		prompt: prompt,
		name:   s.video.info.Name,
		body:   s.video.file,
		size:   s.video.info.Size,
	}, nil
}

// Run performs the single analyze attempt. It holds no session lock.
func (r *Request) Run(ctx context.Context, a Analyzer) (*analysis.AnalyzeResult, error) {
	up := analysis.Upload{Name: r.name, Reader: io.NewSectionReader(r.body, 0, r.size)}
	return a.Analyze(ctx, up, r.prompt)
}

// Finish records the outcome of Run and returns the session to Idle. It
// appends exactly one assistant or error entry and returns it. Calls after
// the first are ignored and return the zero Entry.
func (r *Request) Finish(res *analysis.AnalyzeResult, err error) Entry {
	var out Entry
	r.once.Do(func() {
		out = r.s.finish(res, err)
	})
	return out
}

func (s *Session) finish(res *analysis.AnalyzeResult, err error) Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() { s.pending = false }()

	if err == nil && res == nil {
		err = errors.New("empty analyze result")
	}
	if err != nil {
		msg := FailureMessage(err, MsgAnalyzeFailure)
		s.lastError = msg
		s.log.Error("ask failed", "err", err)
		return s.appendLocked(KindError, msg, nil)
	}

	media := append([]analysis.Occurrence{}, res.RelevantOccurrences...)
	if res.VideoURI != "" {
		s.remoteVideoURI = res.VideoURI
	}
	s.log.Info("ask answered", "occurrences", len(media))
	return s.appendLocked(KindAssistant, res.Answer, media)
}

// Ask runs the whole ask lifecycle synchronously and returns the entry that
// concluded it. The error is non-nil when that entry is an error entry.
func (s *Session) Ask(ctx context.Context, a Analyzer, prompt string) (Entry, error) {
	req, err := s.Begin(prompt)
	if err != nil {
		if errors.Is(err, ErrNoVideo) {
			return s.lastEntry(), err
		}
		return Entry{}, err
	}
	res, err := req.Run(ctx, a)
	return req.Finish(res, err), err
}

func (s *Session) lastEntry() Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.entries) == 0 {
		return Entry{}
	}
	return s.entries[len(s.entries)-1]
}

func (s *Session) appendLocked(kind Kind, text string, media []analysis.Occurrence) Entry {
	e := Entry{
		ID:        uuid.NewString(),
		Kind:      kind,
		Text:      text,
		Media:     media,
		CreatedAt: s.now(),
	}
	s.entries = append(s.entries, e)
	return e
}

// FailureMessage picks the text shown for a failed request: the service's
// own message when it sent one, otherwise fallback.
func FailureMessage(err error, fallback string) string {
	if msg := analysis.ServiceMessage(err); msg != "" {
		return msg
	}
	return fallback
}
