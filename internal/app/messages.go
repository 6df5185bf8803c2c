package app

import (
	"github.com/jwulff/vidchat/internal/analysis"
	"github.com/jwulff/vidchat/internal/session"
)

// AnswerMsg carries the outcome of an in-flight analyze request.
type AnswerMsg struct {
	Request *session.Request
	Result  *analysis.AnalyzeResult
	Err     error
}

// SelectVideoMsg asks the model to select the video at Path. An empty Path
// means the picker was dismissed without a choice.
type SelectVideoMsg struct {
	Path string
}
