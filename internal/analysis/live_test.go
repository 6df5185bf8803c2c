package analysis

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// TestLiveAnalyze uploads a real video to the deployed service.
// Skipped unless VIDCHAT_LIVE_VIDEO points at a video file.
func TestLiveAnalyze(t *testing.T) {
	path := os.Getenv("VIDCHAT_LIVE_VIDEO")
	if path == "" {
		t.Skip("VIDCHAT_LIVE_VIDEO not set")
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	client := New(os.Getenv("VIDCHAT_BASE_URL"))
	res, err := client.Analyze(context.Background(), Upload{Name: filepath.Base(path), Reader: f}, "Describe what happens in this video.")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if res.Answer == "" {
		t.Error("expected a non-empty answer")
	}
	fmt.Printf("Answer: %s\n", res.Answer)
	fmt.Printf("Occurrences: %d videoUri=%q\n", len(res.RelevantOccurrences), res.VideoURI)
}
