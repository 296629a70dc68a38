package ai

import (
	"context"
	"log"
	"time"

	"interview-ai-recorder/internal/domain/model"
	"interview-ai-recorder/internal/domain/ports/adapter"
)

var _ adapter.VideoAnalyzer = (*NoopAnalyzer)(nil)

// NoopAnalyzer implements adapter.VideoAnalyzer for local/dev testing.
// It logs the request and returns a canned result instead of calling Gemini.
type NoopAnalyzer struct{}

func NewNoopAnalyzer() *NoopAnalyzer {
	return &NoopAnalyzer{}
}

func (a *NoopAnalyzer) Analyze(ctx context.Context, req adapter.AnalysisRequest) (*model.AnalysisResult, error) {
	// Simulate slight processing time and respect ctx
	select {
	case <-time.After(100 * time.Millisecond):
		// proceed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	log.Printf("[noop-ai] Analyze %s (question: %s)\n", req.VideoPath, req.QuestionText)
	return &model.AnalysisResult{
		Transcript:   "This is a noop transcript.",
		MatchScore:   75,
		Feedback:     "Noop feedback for local development.",
		Emotion:      "neutral",
		EmotionScore: 80,
	}, nil
}
