// Package analysis provides the client and wire types for talking to the
// remote video-analysis service over multipart HTTP.
package analysis

import "io"

// Endpoint paths relative to the service base URL.
const (
	AnalyzePath = "/analyze-video"
	MatchPath   = "/match-image-in-video"
)

// Multipart field names.
const (
	FieldVideo      = "video"
	FieldPrompt     = "prompt"
	FieldQueryImage = "queryImage"
	FieldVideoURI   = "videoUri"
	FieldThreshold  = "threshold"
	FieldInterval   = "interval"
)

// Upload is a named binary part of a multipart request.
type Upload struct {
	Name   string
	Reader io.Reader
}

// Occurrence is an illustrative frame the service attached to an answer.
type Occurrence struct {
	ImageURL    string `json:"imageUrl"`
	Description string `json:"description"`
	Timestamp   string `json:"timestamp"`
}

// AnalyzeResult is the body of a successful analyze call.
type AnalyzeResult struct {
	Answer              string       `json:"answer"`
	RelevantOccurrences []Occurrence `json:"relevantOccurrences"`
	VideoURI            string       `json:"videoGCSUri,omitempty"`
}

// MatchRequest describes a query-image search over a stored video.
type MatchRequest struct {
	QueryImage Upload
	VideoURI   string
	Threshold  float64
	Interval   int
}

// MatchHit is a single frame that matched the query image.
type MatchHit struct {
	Timestamp  string  `json:"timestamp"`
	Similarity float64 `json:"similarity"`
	ImageURL   string  `json:"imageUrl,omitempty"`
}

// MatchResult is the body of a successful match call.
type MatchResult struct {
	Message       string     `json:"message"`
	QueryImageURL string     `json:"queryImageUrl,omitempty"`
	Results       []MatchHit `json:"results"`
}

// errorBody is the shape the service uses for failure messages.
type errorBody struct {
	Error string `json:"error"`
}
