package adapter

import (
	"context"

	"interview-ai-recorder/internal/domain/model"
)

// AnalysisRequest carries everything for one inference call: the clip and
// the question it answers. DurationSeconds may be zero when the client did
// not report it.
type AnalysisRequest struct {
	VideoPath       string
	MIMEType        string
	QuestionText    string
	DurationSeconds int
}

// VideoAnalyzer performs exactly one external inference call per invocation.
// Implementations classify failures via domain.AnalysisError; they never
// retry internally — all retry policy lives in the job queue.
type VideoAnalyzer interface {
	Analyze(ctx context.Context, req AnalysisRequest) (*model.AnalysisResult, error)
}
