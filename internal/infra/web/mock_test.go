package web

import (
	"context"
	"time"

	"interview-ai-recorder/internal/domain"
	"interview-ai-recorder/internal/domain/model"
	"interview-ai-recorder/internal/queue"
	"interview-ai-recorder/internal/usecase"
)

type stubSessionUC struct {
	sessions map[string]*model.Session
	err      error
}

var _ usecase.SessionUseCase = (*stubSessionUC)(nil)

func newStubSessionUC() *stubSessionUC {
	return &stubSessionUC{sessions: map[string]*model.Session{}}
}

func (s *stubSessionUC) Create(ctx context.Context, interviewerID, candidateName string, questions []string) (*model.Session, error) {
	if s.err != nil {
		return nil, s.err
	}
	sess := model.NewSession("tok-stub", candidateName, interviewerID, time.Now())
	sess.QuestionTexts = questions
	s.sessions[sess.Token] = sess
	return sess, nil
}

func (s *stubSessionUC) Verify(ctx context.Context, token, candidateName string) (*model.Session, error) {
	if s.err != nil {
		return nil, s.err
	}
	sess, ok := s.sessions[token]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if candidateName != sess.CandidateName {
		return nil, domain.ErrNameMismatch
	}
	return sess, nil
}

func (s *stubSessionUC) Start(ctx context.Context, token string) (*model.Session, error) {
	return s.lookup(token)
}

func (s *stubSessionUC) Finish(ctx context.Context, token string) (*model.Session, error) {
	return s.lookup(token)
}

func (s *stubSessionUC) Status(ctx context.Context, token string) (*model.Session, error) {
	return s.lookup(token)
}

func (s *stubSessionUC) lookup(token string) (*model.Session, error) {
	if s.err != nil {
		return nil, s.err
	}
	sess, ok := s.sessions[token]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return sess, nil
}

type stubIngestUC struct {
	lastReq   usecase.IngestRequest
	retried   []string
	jobID     string
	ingestErr error
	job       queue.Job
	jobErr    error
}

var _ usecase.IngestUseCase = (*stubIngestUC)(nil)

func (s *stubIngestUC) Ingest(ctx context.Context, req usecase.IngestRequest) (string, error) {
	if s.ingestErr != nil {
		return "", s.ingestErr
	}
	s.lastReq = req
	return s.jobID, nil
}

func (s *stubIngestUC) RetryAnalysis(ctx context.Context, token string, questionIndex int) (string, error) {
	if s.ingestErr != nil {
		return "", s.ingestErr
	}
	s.retried = append(s.retried, queue.JobID(token, questionIndex))
	return queue.JobID(token, questionIndex), nil
}

func (s *stubIngestUC) JobStatus(ctx context.Context, jobID string) (queue.Job, error) {
	if s.jobErr != nil {
		return queue.Job{}, s.jobErr
	}
	return s.job, nil
}

func (s *stubIngestUC) QueueStats(ctx context.Context) (queue.Stats, error) {
	return queue.Stats{QueueLen: 1}, nil
}
