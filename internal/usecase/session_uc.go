// File: internal/usecase/session_uc.go
package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"interview-ai-recorder/internal/domain"
	"interview-ai-recorder/internal/domain/model"
	"interview-ai-recorder/internal/domain/ports/repository"
)

// FolderCreator is the slice of the clip store the session lifecycle needs.
type FolderCreator interface {
	EnsureFolder(folder string) error
}

// Compile-time check
var _ SessionUseCase = (*sessionUC)(nil)

type SessionUseCase interface {
	// Create registers a new interview session with its question list and
	// returns it with a fresh share token.
	Create(ctx context.Context, interviewerID, candidateName string, questions []string) (*model.Session, error)
	// Verify checks the token and that the typed name matches the candidate
	// the session was created for.
	Verify(ctx context.Context, token, candidateName string) (*model.Session, error)
	// Start moves a pending session to active and provisions its upload folder.
	Start(ctx context.Context, token string) (*model.Session, error)
	// Finish marks the candidate done; analysis may still be running.
	Finish(ctx context.Context, token string) (*model.Session, error)
	// Status returns the session, flipping submitted to complete once every
	// answered question has reached a terminal analysis status.
	Status(ctx context.Context, token string) (*model.Session, error)
}

type sessionUC struct {
	sessions repository.SessionRepository
	store    FolderCreator
	log      *zerolog.Logger
}

func NewSessionUseCase(sessions repository.SessionRepository, store FolderCreator, log *zerolog.Logger) *sessionUC {
	return &sessionUC{sessions: sessions, store: store, log: log}
}

func (u *sessionUC) Create(ctx context.Context, interviewerID, candidateName string, questions []string) (*model.Session, error) {
	candidateName = strings.TrimSpace(candidateName)
	if candidateName == "" || len(questions) == 0 {
		return nil, domain.ErrInvalidArgument
	}
	s := model.NewSession(uuid.NewString(), candidateName, interviewerID, time.Now().UTC())
	s.SessionID = uuid.NewString()
	s.QuestionTexts = questions
	if err := u.sessions.Create(ctx, repository.NoTX, s); err != nil {
		return nil, err
	}
	u.log.Info().Str("token", s.Token).Str("candidate", candidateName).
		Int("questions", len(questions)).Msg("session created")
	return s, nil
}

func (u *sessionUC) Verify(ctx context.Context, token, candidateName string) (*model.Session, error) {
	s, err := u.sessions.FindByToken(ctx, repository.NoTX, token)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(strings.TrimSpace(candidateName), s.CandidateName) {
		return nil, domain.ErrNameMismatch
	}
	if s.State == model.SessionSubmitted || s.State == model.SessionComplete {
		return nil, domain.ErrSessionInactive
	}
	return s, nil
}

func (u *sessionUC) Start(ctx context.Context, token string) (*model.Session, error) {
	s, err := u.sessions.FindByToken(ctx, repository.NoTX, token)
	if err != nil {
		return nil, err
	}
	switch s.State {
	case model.SessionActive:
		return s, nil // re-join after a reload is fine
	case model.SessionPending:
	default:
		return nil, domain.ErrSessionInactive
	}

	now := time.Now().UTC()
	s.State = model.SessionActive
	s.StartedAt = now
	s.Folder = model.FolderName(s.CandidateName, now)
	if err := u.store.EnsureFolder(s.Folder); err != nil {
		return nil, err
	}
	if err := u.sessions.Save(ctx, repository.NoTX, s); err != nil {
		return nil, err
	}
	u.log.Info().Str("token", token).Str("folder", s.Folder).Msg("session started")
	return s, nil
}

func (u *sessionUC) Finish(ctx context.Context, token string) (*model.Session, error) {
	s, err := u.sessions.FindByToken(ctx, repository.NoTX, token)
	if err != nil {
		return nil, err
	}
	if s.State != model.SessionActive {
		return nil, domain.ErrSessionInactive
	}
	s.State = model.SessionSubmitted
	s.FinishedAt = time.Now().UTC()
	if err := u.sessions.Save(ctx, repository.NoTX, s); err != nil {
		return nil, err
	}
	u.log.Info().Str("token", token).Int("answered", s.AnsweredCount).Msg("session submitted")
	return s, nil
}

func (u *sessionUC) Status(ctx context.Context, token string) (*model.Session, error) {
	s, err := u.sessions.FindByToken(ctx, repository.NoTX, token)
	if err != nil {
		return nil, err
	}
	if s.State == model.SessionSubmitted && allAnalysisSettled(s) {
		s.State = model.SessionComplete
		if err := u.sessions.Save(ctx, repository.NoTX, s); err != nil {
			u.log.Warn().Err(err).Str("token", token).Msg("could not persist complete state")
		}
	}
	return s, nil
}

// allAnalysisSettled reports whether every answered question reached a
// terminal analysis status. Unanswered questions do not block completion.
func allAnalysisSettled(s *model.Session) bool {
	for _, rec := range s.Questions {
		if rec.Filename == "" {
			continue
		}
		if rec.Status != model.QuestionDone && rec.Status != model.QuestionAIError {
			return false
		}
	}
	return true
}
