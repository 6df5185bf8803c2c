package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startMockService serves handler on a local listener and returns a client
// pointed at it.
func startMockService(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return New(srv.URL, opts...)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestAnalyzeSendsMultipart(t *testing.T) {
	var gotPrompt, gotName, gotBody, gotReqID string

	client := startMockService(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != AnalyzePath {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f, hdr, err := r.FormFile(FieldVideo)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer f.Close()
		data, _ := io.ReadAll(f)

		gotName = hdr.Filename
		gotBody = string(data)
		gotPrompt = r.FormValue(FieldPrompt)
		gotReqID = r.Header.Get("X-Request-ID")

		writeJSON(w, http.StatusOK, map[string]any{
			"answer": "Red",
			"relevantOccurrences": []map[string]string{
				{"imageUrl": "https://img/1.jpg", "description": "car", "timestamp": "00:03"},
				{"imageUrl": "https://img/2.jpg", "description": "car again", "timestamp": "00:09"},
			},
			"videoGCSUri": "gs://bucket/clip.mp4",
		})
	})

	res, err := client.Analyze(context.Background(),
		Upload{Name: "clip.mp4", Reader: strings.NewReader("fake video bytes")},
		"What color is the car?")
	require.NoError(t, err)

	assert.Equal(t, "clip.mp4", gotName)
	assert.Equal(t, "fake video bytes", gotBody)
	assert.Equal(t, "What color is the car?", gotPrompt)
	assert.NotEmpty(t, gotReqID)

	assert.Equal(t, "Red", res.Answer)
	assert.Equal(t, "gs://bucket/clip.mp4", res.VideoURI)
	require.Len(t, res.RelevantOccurrences, 2)
	assert.Equal(t, Occurrence{ImageURL: "https://img/2.jpg", Description: "car again", Timestamp: "00:09"}, res.RelevantOccurrences[1])
}

func TestAnalyzeMissingOccurrences(t *testing.T) {
	client := startMockService(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"answer": "Nothing here"})
	})

	res, err := client.Analyze(context.Background(), Upload{Name: "a.mp4", Reader: strings.NewReader("x")}, "anything?")
	require.NoError(t, err)
	assert.NotNil(t, res.RelevantOccurrences)
	assert.Empty(t, res.RelevantOccurrences)
	assert.Empty(t, res.VideoURI)
}

func TestAnalyzeServiceError(t *testing.T) {
	client := startMockService(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "model unavailable"})
	})

	_, err := client.Analyze(context.Background(), Upload{Name: "a.mp4", Reader: strings.NewReader("x")}, "q")
	require.Error(t, err)

	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, http.StatusInternalServerError, te.StatusCode)
	assert.Equal(t, "model unavailable", te.Message)
	assert.Equal(t, "model unavailable", ServiceMessage(err))
}

func TestAnalyzeNonJSONErrorBody(t *testing.T) {
	client := startMockService(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	})

	_, err := client.Analyze(context.Background(), Upload{Name: "a.mp4", Reader: strings.NewReader("x")}, "q")

	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, http.StatusBadGateway, te.StatusCode)
	assert.Empty(t, te.Message)
	assert.Contains(t, te.Error(), "502")
}

func TestAnalyzeUndecodableSuccessBody(t *testing.T) {
	client := startMockService(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "<html>not json</html>")
	})

	_, err := client.Analyze(context.Background(), Upload{Name: "a.mp4", Reader: strings.NewReader("x")}, "q")

	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, http.StatusOK, te.StatusCode)
	assert.Empty(t, te.Message)
}

func TestAnalyzeTimeout(t *testing.T) {
	client := startMockService(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}, WithTimeout(50*time.Millisecond))

	_, err := client.Analyze(context.Background(), Upload{Name: "a.mp4", Reader: strings.NewReader("x")}, "q")

	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.Zero(t, te.StatusCode)
	assert.Empty(t, te.Message)
}

func TestAnalyzeConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := New(url).Analyze(context.Background(), Upload{Name: "a.mp4", Reader: strings.NewReader("x")}, "q")

	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.Zero(t, te.StatusCode)
}

func TestAnalyzeRejectsEmptyFields(t *testing.T) {
	client := New("http://127.0.0.1:1")

	_, err := client.Analyze(context.Background(), Upload{Name: "a.mp4"}, "q")
	assert.ErrorIs(t, err, ErrEmptyField)

	_, err = client.Analyze(context.Background(), Upload{Name: "a.mp4", Reader: strings.NewReader("x")}, "   ")
	assert.ErrorIs(t, err, ErrEmptyField)
}

func TestMatchSendsFields(t *testing.T) {
	got := map[string]string{}

	client := startMockService(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != MatchPath {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		_, hdr, err := r.FormFile(FieldQueryImage)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		got["name"] = hdr.Filename
		for _, f := range []string{FieldVideoURI, FieldThreshold, FieldInterval} {
			got[f] = r.FormValue(f)
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"message":       "2 matches",
			"queryImageUrl": "https://img/q.jpg",
			"results": []map[string]any{
				{"timestamp": "00:01", "similarity": 0.91, "imageUrl": "https://img/f1.jpg"},
				{"timestamp": "00:06", "similarity": 0.88},
			},
		})
	})

	res, err := client.Match(context.Background(), MatchRequest{
		QueryImage: Upload{Name: "q.jpg", Reader: strings.NewReader("img")},
		VideoURI:   "gs://bucket/clip.mp4",
		Threshold:  0.85,
		Interval:   5,
	})
	require.NoError(t, err)

	assert.Equal(t, "q.jpg", got["name"])
	assert.Equal(t, "gs://bucket/clip.mp4", got[FieldVideoURI])
	assert.Equal(t, "0.85", got[FieldThreshold])
	assert.Equal(t, "5", got[FieldInterval])

	assert.Equal(t, "2 matches", res.Message)
	require.Len(t, res.Results, 2)
	assert.InDelta(t, 0.91, res.Results[0].Similarity, 1e-9)
	assert.Empty(t, res.Results[1].ImageURL)
}

func TestMatchRejectsEmptyVideoURI(t *testing.T) {
	_, err := New("").Match(context.Background(), MatchRequest{
		QueryImage: Upload{Name: "q.jpg", Reader: strings.NewReader("img")},
	})
	assert.ErrorIs(t, err, ErrEmptyField)
}

func TestNewTrimsBaseURL(t *testing.T) {
	assert.Equal(t, "http://svc", New("http://svc/").BaseURL())
	assert.Equal(t, DefaultBaseURL, New("").BaseURL())
}

func TestTransportErrorString(t *testing.T) {
	tests := []struct {
		err  *TransportError
		want string
	}{
		{&TransportError{StatusCode: 500, Message: "boom"}, "analysis service: status 500: boom"},
		{&TransportError{StatusCode: 404}, "analysis service: status 404"},
		{&TransportError{Err: errors.New("dial tcp: refused")}, "analysis service: dial tcp: refused"},
		{&TransportError{}, "analysis service: request failed"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.err.Error())
	}

	assert.Empty(t, ServiceMessage(errors.New("plain")))
}
