// File: internal/usecase/ingest_uc.go
package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"interview-ai-recorder/internal/domain"
	"interview-ai-recorder/internal/domain/model"
	"interview-ai-recorder/internal/domain/ports/repository"
	"interview-ai-recorder/internal/infra/metrics"
	"interview-ai-recorder/internal/infra/storage"
	"interview-ai-recorder/internal/queue"
)

// ClipStore is the slice of the storage layer ingest needs.
type ClipStore interface {
	SaveVideo(ctx context.Context, folder string, questionIndex int, data []byte) (string, error)
	HasVideo(folder string, questionIndex int) bool
	VideoPath(folder string, questionIndex int) string
}

// RateLimiter bounds ingest per session token. The redis fixed-window
// limiter satisfies this.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// Submitter is the queue surface ingest talks to.
type Submitter interface {
	Submit(ctx context.Context, sub queue.Submission) (string, error)
	Job(ctx context.Context, jobID string) (queue.Job, error)
	Stats(ctx context.Context) (queue.Stats, error)
}

// Compile-time check
var _ IngestUseCase = (*ingestUC)(nil)

type IngestUseCase interface {
	// Ingest stores one recorded clip, marks the question uploaded, and
	// enqueues analysis. Re-uploading the same question replaces the clip
	// and restarts its analysis cycle.
	Ingest(ctx context.Context, req IngestRequest) (jobID string, err error)
	// RetryAnalysis starts a manual single-shot analysis run for a question
	// whose previous run failed.
	RetryAnalysis(ctx context.Context, token string, questionIndex int) (jobID string, err error)
	// JobStatus returns the queue's view of one job.
	JobStatus(ctx context.Context, jobID string) (queue.Job, error)
	// QueueStats exposes the ready set for monitoring.
	QueueStats(ctx context.Context) (queue.Stats, error)
}

type IngestRequest struct {
	Token           string
	QuestionIndex   int
	MIMEType        string
	DurationSeconds int
	Data            []byte
}

type IngestConfig struct {
	MaxSizeMB        int
	AllowedMIMETypes []string
	RatePerMinute    int
}

type ingestUC struct {
	cfg      IngestConfig
	sessions repository.SessionRepository
	store    ClipStore
	limiter  RateLimiter
	jobs     Submitter
	log      *zerolog.Logger
}

func NewIngestUseCase(cfg IngestConfig, sessions repository.SessionRepository, store ClipStore, limiter RateLimiter, jobs Submitter, log *zerolog.Logger) *ingestUC {
	return &ingestUC{cfg: cfg, sessions: sessions, store: store, limiter: limiter, jobs: jobs, log: log}
}

func (u *ingestUC) Ingest(ctx context.Context, req IngestRequest) (string, error) {
	if u.limiter != nil {
		ok, err := u.limiter.Allow(ctx, "rate_limit:upload:"+req.Token, u.cfg.RatePerMinute, time.Minute)
		if err != nil {
			u.log.Warn().Err(err).Msg("rate limiter unavailable, allowing upload")
		} else if !ok {
			metrics.IncUpload("rate_limited")
			return "", domain.ErrRateLimited
		}
	}

	if !u.mimeAllowed(req.MIMEType) {
		metrics.IncUpload("rejected_media")
		return "", domain.ErrUnsupportedMedia
	}
	sizeMB := float64(len(req.Data)) / (1024 * 1024)
	if u.cfg.MaxSizeMB > 0 && sizeMB > float64(u.cfg.MaxSizeMB) {
		metrics.IncUpload("rejected_media")
		return "", domain.ErrInvalidArgument
	}

	s, err := u.sessions.FindByToken(ctx, repository.NoTX, req.Token)
	if err != nil {
		metrics.IncUpload("rejected_session")
		return "", err
	}
	if s.State != model.SessionActive {
		metrics.IncUpload("rejected_session")
		return "", domain.ErrSessionInactive
	}
	if req.QuestionIndex < 0 || req.QuestionIndex >= len(s.QuestionTexts) {
		metrics.IncUpload("rejected_media")
		return "", domain.ErrInvalidArgument
	}

	if _, err := u.store.SaveVideo(ctx, s.Folder, req.QuestionIndex, req.Data); err != nil {
		metrics.IncUpload("error")
		return "", err
	}

	jobID := queue.JobID(req.Token, req.QuestionIndex)
	now := time.Now().UTC()
	filename := storage.VideoFilename(req.QuestionIndex)
	status := model.QuestionUploaded
	patch := &model.QuestionPatch{
		Filename:        &filename,
		Status:          &status,
		SizeMB:          &sizeMB,
		DurationSeconds: &req.DurationSeconds,
		UploadedAt:      &now,
		LastJobID:       &jobID,
	}
	if err := u.sessions.MergeQuestion(ctx, req.Token, req.QuestionIndex, patch); err != nil {
		metrics.IncUpload("error")
		return "", err
	}

	id, err := u.jobs.Submit(ctx, queue.Submission{
		Token:           req.Token,
		QuestionIndex:   req.QuestionIndex,
		QuestionText:    s.QuestionText(req.QuestionIndex),
		VideoPath:       u.store.VideoPath(s.Folder, req.QuestionIndex),
		MIMEType:        req.MIMEType,
		DurationSeconds: req.DurationSeconds,
	})
	if err != nil {
		metrics.IncUpload("error")
		return "", err
	}

	metrics.IncUpload("accepted")
	metrics.ObserveUploadSize(len(req.Data))
	u.log.Info().Str("job_id", id).Float64("size_mb", sizeMB).Msg("clip ingested")
	return id, nil
}

func (u *ingestUC) RetryAnalysis(ctx context.Context, token string, questionIndex int) (string, error) {
	s, err := u.sessions.FindByToken(ctx, repository.NoTX, token)
	if err != nil {
		return "", err
	}
	rec, ok := s.Questions[questionIndex]
	if !ok || rec.Filename == "" {
		return "", domain.ErrVideoNotFound
	}
	if !u.store.HasVideo(s.Folder, questionIndex) {
		return "", domain.ErrVideoNotFound
	}

	id, err := u.jobs.Submit(ctx, queue.Submission{
		Token:           token,
		QuestionIndex:   questionIndex,
		QuestionText:    s.QuestionText(questionIndex),
		VideoPath:       u.store.VideoPath(s.Folder, questionIndex),
		MIMEType:        "video/webm",
		DurationSeconds: rec.DurationSeconds,
		Manual:          true,
	})
	if err != nil {
		return "", err
	}
	u.log.Info().Str("job_id", id).Msg("manual retry requested")
	return id, nil
}

func (u *ingestUC) JobStatus(ctx context.Context, jobID string) (queue.Job, error) {
	return u.jobs.Job(ctx, jobID)
}

func (u *ingestUC) QueueStats(ctx context.Context) (queue.Stats, error) {
	return u.jobs.Stats(ctx)
}

func (u *ingestUC) mimeAllowed(mime string) bool {
	for _, m := range u.cfg.AllowedMIMETypes {
		if m == mime {
			return true
		}
	}
	return false
}
