package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"interview-ai-recorder/internal/domain/model"
)

// statusScript serves a sequence of session status payloads, repeating the
// last one once the script is exhausted.
type statusScript struct {
	mu       sync.Mutex
	payloads []sessionStatus
	hits     int
}

func (s *statusScript) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		idx := s.hits
		if idx >= len(s.payloads) {
			idx = len(s.payloads) - 1
		}
		payload := s.payloads[idx]
		s.hits++
		s.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(payload)
	}
}

func (s *statusScript) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits
}

func statusWith(status model.QuestionStatus) sessionStatus {
	return sessionStatus{
		State: model.SessionActive,
		Questions: map[int]*model.QuestionRecord{
			0: {Filename: "Q1.webm", Status: status},
		},
	}
}

func pollClient(baseURL string, maxPolls int) *PollingClient {
	return NewPollingClient(PollConfig{
		Interval: 2 * time.Millisecond,
		MaxPolls: maxPolls,
	}, baseURL, "tok", &testLogger)
}

func TestWaitForQuestion_SettlesOnDone(t *testing.T) {
	script := &statusScript{payloads: []sessionStatus{
		statusWith(model.QuestionUploaded),
		statusWith(model.QuestionProcessing),
		statusWith(model.QuestionDone),
	}}
	srv := httptest.NewServer(script.handler())
	defer srv.Close()

	rec, settled, err := pollClient(srv.URL, 12).WaitForQuestion(context.Background(), 0)
	if err != nil {
		t.Fatalf("WaitForQuestion failed: %v", err)
	}
	if !settled {
		t.Fatal("expected settled")
	}
	if rec.Status != model.QuestionDone {
		t.Errorf("status = %s, want done", rec.Status)
	}
	if script.count() != 3 {
		t.Errorf("polls = %d, want 3", script.count())
	}
}

func TestWaitForQuestion_SettlesOnAIError(t *testing.T) {
	script := &statusScript{payloads: []sessionStatus{
		statusWith(model.QuestionProcessing),
		statusWith(model.QuestionAIError),
	}}
	srv := httptest.NewServer(script.handler())
	defer srv.Close()

	rec, settled, err := pollClient(srv.URL, 12).WaitForQuestion(context.Background(), 0)
	if err != nil {
		t.Fatalf("WaitForQuestion failed: %v", err)
	}
	if !settled || rec.Status != model.QuestionAIError {
		t.Errorf("settled=%v status=%s, want settled ai_error", settled, rec.Status)
	}
}

func TestWaitForQuestion_GivesUpAtBudget(t *testing.T) {
	script := &statusScript{payloads: []sessionStatus{
		statusWith(model.QuestionProcessing),
	}}
	srv := httptest.NewServer(script.handler())
	defer srv.Close()

	rec, settled, err := pollClient(srv.URL, 4).WaitForQuestion(context.Background(), 0)
	if err != nil {
		t.Fatalf("WaitForQuestion returned error: %v", err)
	}
	if settled {
		t.Error("must not settle on a non-terminal status")
	}
	if rec == nil || rec.Status != model.QuestionProcessing {
		t.Errorf("rec = %+v, want last observed processing record", rec)
	}
	if script.count() != 4 {
		t.Errorf("polls = %d, want exactly 4", script.count())
	}
}

func TestWaitForQuestion_ContextCancel(t *testing.T) {
	script := &statusScript{payloads: []sessionStatus{
		statusWith(model.QuestionProcessing),
	}}
	srv := httptest.NewServer(script.handler())
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()

	_, settled, err := pollClient(srv.URL, 1000).WaitForQuestion(ctx, 0)
	if settled {
		t.Error("must not settle after cancel")
	}
	if err == nil {
		t.Error("expected context error")
	}
}

func TestFetch(t *testing.T) {
	script := &statusScript{payloads: []sessionStatus{
		{
			State: model.SessionSubmitted,
			Questions: map[int]*model.QuestionRecord{
				0: {Filename: "Q1.webm", Status: model.QuestionDone, MatchScore: 85},
				1: {Filename: "Q2.webm", Status: model.QuestionProcessing},
			},
		},
	}}
	srv := httptest.NewServer(script.handler())
	defer srv.Close()

	questions, state, err := pollClient(srv.URL, 1).Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if state != model.SessionSubmitted {
		t.Errorf("state = %s", state)
	}
	if len(questions) != 2 {
		t.Fatalf("questions = %d, want 2", len(questions))
	}
	if questions[0].MatchScore != 85 {
		t.Errorf("match score = %d, want 85", questions[0].MatchScore)
	}
}
