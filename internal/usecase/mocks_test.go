package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"interview-ai-recorder/internal/domain"
	"interview-ai-recorder/internal/domain/model"
	"interview-ai-recorder/internal/domain/ports/repository"
	"interview-ai-recorder/internal/queue"
)

var testLogger = zerolog.Nop()

// --- in-memory session repository ---

type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*model.Session
	saveErr  error
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: map[string]*model.Session{}}
}

func (r *fakeSessionRepo) Create(ctx context.Context, tx repository.Tx, s *model.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[s.Token]; ok {
		return domain.ErrAlreadyExists
	}
	cp := *s
	r.sessions[s.Token] = &cp
	return nil
}

func (r *fakeSessionRepo) Save(ctx context.Context, tx repository.Tx, s *model.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	if _, ok := r.sessions[s.Token]; !ok {
		return domain.ErrNotFound
	}
	cp := *s
	r.sessions[s.Token] = &cp
	return nil
}

func (r *fakeSessionRepo) FindByToken(ctx context.Context, tx repository.Tx, token string) (*model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[token]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *fakeSessionRepo) MergeQuestion(ctx context.Context, token string, index int, p *model.QuestionPatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[token]
	if !ok {
		return domain.ErrNotFound
	}
	p.Apply(s.Question(index))
	s.RecalcTotalSize()
	answered := 0
	for _, rec := range s.Questions {
		if rec.Filename != "" {
			answered++
		}
	}
	s.AnsweredCount = answered
	return nil
}

// --- in-memory clip store ---

type fakeClipStore struct {
	mu      sync.Mutex
	folders map[string]bool
	clips   map[string][]byte
	saveErr error
}

func newFakeClipStore() *fakeClipStore {
	return &fakeClipStore{folders: map[string]bool{}, clips: map[string][]byte{}}
}

func (s *fakeClipStore) key(folder string, idx int) string {
	return fmt.Sprintf("%s/%d", folder, idx)
}

func (s *fakeClipStore) EnsureFolder(folder string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.folders[folder] = true
	return nil
}

func (s *fakeClipStore) SaveVideo(ctx context.Context, folder string, idx int, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return "", s.saveErr
	}
	s.clips[s.key(folder, idx)] = data
	return s.VideoPath(folder, idx), nil
}

func (s *fakeClipStore) HasVideo(folder string, idx int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.clips[s.key(folder, idx)]
	return ok
}

func (s *fakeClipStore) VideoPath(folder string, idx int) string {
	return fmt.Sprintf("/uploads/%s/Q%d.webm", folder, idx+1)
}

// --- rate limiter stub ---

type fakeLimiter struct {
	mu    sync.Mutex
	allow bool
	err   error
	calls int
}

func (l *fakeLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	return l.allow, l.err
}

// --- queue stub ---

type fakeSubmitter struct {
	mu          sync.Mutex
	submissions []queue.Submission
	jobs        map[string]queue.Job
	submitErr   error
}

func newFakeSubmitter() *fakeSubmitter {
	return &fakeSubmitter{jobs: map[string]queue.Job{}}
}

func (q *fakeSubmitter) Submit(ctx context.Context, sub queue.Submission) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.submitErr != nil {
		return "", q.submitErr
	}
	q.submissions = append(q.submissions, sub)
	id := queue.JobID(sub.Token, sub.QuestionIndex)
	q.jobs[id] = queue.Job{ID: id, Token: sub.Token, QuestionIndex: sub.QuestionIndex, State: queue.StateQueued, Manual: sub.Manual}
	return id, nil
}

func (q *fakeSubmitter) Job(ctx context.Context, jobID string) (queue.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	j, ok := q.jobs[jobID]
	if !ok {
		return queue.Job{}, domain.ErrNotFound
	}
	return j, nil
}

func (q *fakeSubmitter) Stats(ctx context.Context) (queue.Stats, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return queue.Stats{QueueLen: len(q.jobs)}, nil
}
