package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"interview-ai-recorder/internal/domain"
	"interview-ai-recorder/internal/domain/model"
	"interview-ai-recorder/internal/domain/ports/repository"
)

var _ repository.SessionRepository = (*sessionRepo)(nil)

// sessionRepo persists interview sessions in one row per session. The
// per-question records live in a JSONB column so a merge touches a single
// row under FOR UPDATE and concurrent merges for different questions of the
// same session serialize instead of clobbering each other.
type sessionRepo struct {
	pool *pgxpool.Pool
	tm   repository.TransactionManager
}

func NewSessionRepo(pool *pgxpool.Pool, tm repository.TransactionManager) *sessionRepo {
	return &sessionRepo{pool: pool, tm: tm}
}

func (r *sessionRepo) Create(ctx context.Context, tx repository.Tx, s *model.Session) error {
	questions, texts, err := marshalQuestions(s)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO interview_sessions (
  token, session_id, candidate_name, interviewer_id, state, folder,
  question_texts, questions, total_size_mb, answered_count, created_at, started_at, finished_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13);`
	_, err = execSQL(ctx, r.pool, tx, q,
		s.Token, s.SessionID, s.CandidateName, s.InterviewerID, string(s.State), s.Folder,
		texts, questions, s.TotalSizeMB, s.AnsweredCount, s.CreatedAt, nullTime(s.StartedAt), nullTime(s.FinishedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (r *sessionRepo) Save(ctx context.Context, tx repository.Tx, s *model.Session) error {
	questions, texts, err := marshalQuestions(s)
	if err != nil {
		return err
	}
	const q = `
UPDATE interview_sessions SET
  session_id=$2, candidate_name=$3, interviewer_id=$4, state=$5, folder=$6,
  question_texts=$7, questions=$8, total_size_mb=$9, answered_count=$10, started_at=$11, finished_at=$12
WHERE token=$1;`
	tag, err := execSQL(ctx, r.pool, tx, q,
		s.Token, s.SessionID, s.CandidateName, s.InterviewerID, string(s.State), s.Folder,
		texts, questions, s.TotalSizeMB, s.AnsweredCount, nullTime(s.StartedAt), nullTime(s.FinishedAt))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *sessionRepo) FindByToken(ctx context.Context, tx repository.Tx, token string) (*model.Session, error) {
	const q = `
SELECT token, session_id, candidate_name, interviewer_id, state, folder,
       question_texts, questions, total_size_mb, answered_count, created_at, started_at, finished_at
  FROM interview_sessions WHERE token=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, token)
	if err != nil {
		return nil, err
	}
	return scanSession(row)
}

// MergeQuestion re-reads the row under FOR UPDATE, applies the patch to the
// single question record, recomputes aggregates, and writes the row back.
// Two merges for different questions of one session both land.
func (r *sessionRepo) MergeQuestion(ctx context.Context, token string, index int, p *model.QuestionPatch) error {
	return r.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		const q = `
SELECT token, session_id, candidate_name, interviewer_id, state, folder,
       question_texts, questions, total_size_mb, answered_count, created_at, started_at, finished_at
  FROM interview_sessions WHERE token=$1 FOR UPDATE;`
		row, err := pickRow(ctx, r.pool, tx, q, token)
		if err != nil {
			return err
		}
		s, err := scanSession(row)
		if err != nil {
			return err
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

		return r.Save(ctx, tx, s)
	})
}

func marshalQuestions(s *model.Session) (questions, texts []byte, err error) {
	questions, err = json.Marshal(s.Questions)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal questions: %w", err)
	}
	if s.QuestionTexts == nil {
		texts = []byte("[]")
	} else if texts, err = json.Marshal(s.QuestionTexts); err != nil {
		return nil, nil, fmt.Errorf("marshal question texts: %w", err)
	}
	return questions, texts, nil
}

func scanSession(row pgx.Row) (*model.Session, error) {
	var (
		s         model.Session
		state     string
		texts     []byte
		questions []byte
		started   *time.Time
		finished  *time.Time
	)
	if err := row.Scan(&s.Token, &s.SessionID, &s.CandidateName, &s.InterviewerID, &state, &s.Folder,
		&texts, &questions, &s.TotalSizeMB, &s.AnsweredCount, &s.CreatedAt, &started, &finished); err != nil {
		return nil, translateScanErr(err)
	}
	if len(texts) > 0 {
		if err := json.Unmarshal(texts, &s.QuestionTexts); err != nil {
			return nil, fmt.Errorf("unmarshal question texts: %w", err)
		}
	}
	s.State = model.SessionState(state)
	if started != nil {
		s.StartedAt = *started
	}
	if finished != nil {
		s.FinishedAt = *finished
	}
	if len(questions) > 0 {
		if err := json.Unmarshal(questions, &s.Questions); err != nil {
			return nil, fmt.Errorf("unmarshal questions: %w", err)
		}
	}
	if s.Questions == nil {
		s.Questions = map[int]*model.QuestionRecord{}
	}
	return &s, nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func isUniqueViolation(err error) bool {
	var pgErr interface{ SQLState() string }
	if errors.As(err, &pgErr) {
		return pgErr.SQLState() == "23505"
	}
	return false
}
