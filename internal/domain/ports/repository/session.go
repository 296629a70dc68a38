package repository

import (
	"context"

	"interview-ai-recorder/internal/domain/model"
)

// SessionRepository is the persisted status store: one record per session,
// a map of question index to QuestionRecord plus overall session state.
//
// MergeQuestion must be atomic per session: two merges for different
// questions of the same session arriving close together must both land
// (serialize writers per session; readers may run concurrently).
type SessionRepository interface {
	Create(ctx context.Context, tx Tx, s *model.Session) error
	Save(ctx context.Context, tx Tx, s *model.Session) error
	FindByToken(ctx context.Context, tx Tx, token string) (*model.Session, error)
	MergeQuestion(ctx context.Context, token string, index int, p *model.QuestionPatch) error
}
