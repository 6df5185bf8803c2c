package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultBaseURL is the deployed analysis service.
const DefaultBaseURL = "https://video-analysis-service-812352403145.us-central1.run.app"

// DefaultTimeout covers server-side frame extraction and inference on large videos.
const DefaultTimeout = 10 * time.Minute

// maxErrorBody caps how much of a failed response is read looking for a message.
const maxErrorBody = 1 << 20

// Client talks to the analysis service. It makes a single attempt per call
// and never retries.
type Client struct {
	baseURL string
	http    *http.Client
	log     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the end-to-end timeout for each request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// New returns a client for the service at baseURL.
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
		log:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the service address the client posts to.
func (c *Client) BaseURL() string { return c.baseURL }

// Analyze uploads a video with a question and returns the service's answer.
func (c *Client) Analyze(ctx context.Context, video Upload, prompt string) (*AnalyzeResult, error) {
	if video.Reader == nil || video.Name == "" {
		return nil, fmt.Errorf("%s: %w", FieldVideo, ErrEmptyField)
	}
	if strings.TrimSpace(prompt) == "" {
		return nil, fmt.Errorf("%s: %w", FieldPrompt, ErrEmptyField)
	}

	write := func(w *multipart.Writer) error {
		if err := writeFile(w, FieldVideo, video); err != nil {
			return err
		}
		return w.WriteField(FieldPrompt, prompt)
	}

	var result AnalyzeResult
	if err := c.post(ctx, AnalyzePath, write, &result); err != nil {
		return nil, err
	}
	if result.RelevantOccurrences == nil {
		result.RelevantOccurrences = []Occurrence{}
	}
	return &result, nil
}

// Match searches a stored video for frames resembling the query image.
func (c *Client) Match(ctx context.Context, req MatchRequest) (*MatchResult, error) {
	if req.QueryImage.Reader == nil || req.QueryImage.Name == "" {
		return nil, fmt.Errorf("%s: %w", FieldQueryImage, ErrEmptyField)
	}
	if strings.TrimSpace(req.VideoURI) == "" {
		return nil, fmt.Errorf("%s: %w", FieldVideoURI, ErrEmptyField)
	}

	write := func(w *multipart.Writer) error {
		if err := writeFile(w, FieldQueryImage, req.QueryImage); err != nil {
			return err
		}
		if err := w.WriteField(FieldVideoURI, req.VideoURI); err != nil {
			return err
		}
		if err := w.WriteField(FieldThreshold, strconv.FormatFloat(req.Threshold, 'f', -1, 64)); err != nil {
			return err
		}
		return w.WriteField(FieldInterval, strconv.Itoa(req.Interval))
	}

	var result MatchResult
	if err := c.post(ctx, MatchPath, write, &result); err != nil {
		return nil, err
	}
	if result.Results == nil {
		result.Results = []MatchHit{}
	}
	return &result, nil
}

func writeFile(w *multipart.Writer, field string, up Upload) error {
	part, err := w.CreateFormFile(field, up.Name)
	if err != nil {
		return fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, up.Reader); err != nil {
		return fmt.Errorf("copy %s: %w", field, err)
	}
	return nil
}

// post streams a multipart body built by write to path and decodes a JSON
// response into out.
func (c *Client) post(ctx context.Context, path string, write func(*multipart.Writer) error, out any) error {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		err := write(mw)
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, pr)
	if err != nil {
		pr.Close()
		return fmt.Errorf("create request: %w", err)
	}
	reqID := uuid.NewString()
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", reqID)

	log := c.log.With("path", path, "request_id", reqID)
	log.Debug("sending request")
	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		log.Warn("request failed", "err", err, "elapsed", time.Since(start))
		return &TransportError{Err: err}
	}
	defer resp.Body.Close()

	log.Debug("response received", "status", resp.StatusCode, "elapsed", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		te := &TransportError{StatusCode: resp.StatusCode}
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		if err != nil {
			te.Err = fmt.Errorf("read error body: %w", err)
			return te
		}
		var eb errorBody
		if json.Unmarshal(body, &eb) == nil {
			te.Message = eb.Error
		}
		if te.Message == "" {
			te.Err = fmt.Errorf("%s", http.StatusText(resp.StatusCode))
		}
		return te
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &TransportError{StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
