package ai

import (
	"errors"
	"testing"

	"interview-ai-recorder/internal/domain"
)

func TestParseAnalysisReply(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		wantErr bool
	}{
		{
			name:  "plain json",
			reply: `{"transcript":"hi","match_score":80,"feedback":"ok","emotion":"calm","emotion_score":70}`,
		},
		{
			name:  "fenced json",
			reply: "```json\n{\"transcript\":\"hi\",\"match_score\":80,\"feedback\":\"ok\",\"emotion\":\"calm\",\"emotion_score\":70}\n```",
		},
		{
			name:  "json wrapped in prose",
			reply: "Here is my evaluation:\n{\"transcript\":\"hi\",\"match_score\":55,\"feedback\":\"ok\",\"emotion\":\"nervous\",\"emotion_score\":60}\nHope this helps!",
		},
		{
			name:    "empty reply",
			reply:   "",
			wantErr: true,
		},
		{
			name:    "not json at all",
			reply:   "I cannot analyze this video.",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseAnalysisReply(tt.reply)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Transcript != "hi" {
				t.Errorf("transcript = %q, want %q", got.Transcript, "hi")
			}
			if got.MatchScore == 0 {
				t.Error("match_score not decoded")
			}
		})
	}
}

func TestClassifyAPIError(t *testing.T) {
	err := classifyAPIError(errors.New("connection reset"))
	if got := domain.Classify(err); got != domain.FailureServer {
		t.Errorf("unclassified error = %s, want %s", got, domain.FailureServer)
	}

	var ae *domain.AnalysisError
	if !errors.As(err, &ae) {
		t.Fatal("expected an AnalysisError wrapper")
	}
}
