package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"interview-ai-recorder/internal/domain/model"
	"interview-ai-recorder/internal/domain/ports/adapter"
	"interview-ai-recorder/internal/domain/ports/repository"
	"interview-ai-recorder/internal/infra/metrics"
	"interview-ai-recorder/internal/infra/storage"
	"interview-ai-recorder/internal/queue"
)

var _ queue.Runner = (*AnalysisWorker)(nil)

// AnalysisWorker executes one external inference call per dispatch and
// merge-writes the outcome into the status store. It is stateless per call:
// all retry policy lives in the queue, which classifies the error this
// worker returns.
type AnalysisWorker struct {
	analyzer adapter.VideoAnalyzer
	sessions repository.SessionRepository
	store    *storage.Store
	log      *zerolog.Logger
}

func NewAnalysisWorker(
	analyzer adapter.VideoAnalyzer,
	sessions repository.SessionRepository,
	store *storage.Store,
	log *zerolog.Logger,
) *AnalysisWorker {
	return &AnalysisWorker{
		analyzer: analyzer,
		sessions: sessions,
		store:    store,
		log:      log,
	}
}

// Run performs the single analysis call for a dispatched job.
func (w *AnalysisWorker) Run(ctx context.Context, job queue.Job) error {
	w.log.Info().Str("job_id", job.ID).Int("attempt", job.Attempts).Msg("analyzing clip")
	start := time.Now()

	res, err := w.analyzer.Analyze(ctx, adapter.AnalysisRequest{
		VideoPath:       job.VideoPath,
		MIMEType:        job.MIMEType,
		QuestionText:    job.QuestionText,
		DurationSeconds: job.DurationSeconds,
	})
	latency := time.Since(start)
	if err != nil {
		metrics.ObserveAnalysis(latency, false)
		return fmt.Errorf("analyze %s: %w", job.ID, err)
	}
	metrics.ObserveAnalysis(latency, true)

	res.Emotion = model.NormalizeEmotion(res.Emotion)
	res.MatchScore = model.ClampScore(res.MatchScore)
	res.EmotionScore = model.ClampScore(res.EmotionScore)
	if res.PaceWPM <= 0 {
		res.PaceWPM = model.PaceWPM(res.Transcript, job.DurationSeconds)
	}
	res.PaceLabel = model.PaceLabel(res.PaceWPM)

	// The call may have consumed most of the ctx budget; persist the result
	// on a fresh context so a slow analysis does not lose its outcome.
	saveCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	done := model.QuestionDone
	patch := &model.QuestionPatch{
		Status:       &done,
		Transcript:   &res.Transcript,
		MatchScore:   &res.MatchScore,
		Feedback:     &res.Feedback,
		Emotion:      &res.Emotion,
		EmotionScore: &res.EmotionScore,
		PaceWPM:      &res.PaceWPM,
		PaceLabel:    &res.PaceLabel,
		LastJobID:    &job.ID,
	}
	if err := w.sessions.MergeQuestion(saveCtx, job.Token, job.QuestionIndex, patch); err != nil {
		return fmt.Errorf("persist analysis %s: %w", job.ID, err)
	}

	if w.store != nil {
		sess, err := w.sessions.FindByToken(saveCtx, repository.NoTX, job.Token)
		if err == nil && sess.Folder != "" {
			if err := w.store.WriteTranscript(saveCtx, sess.Folder, job.QuestionIndex,
				job.QuestionText, res.Transcript, res.Feedback, res.MatchScore); err != nil {
				// artifact is a convenience copy; the store already has the result
				w.log.Warn().Err(err).Str("job_id", job.ID).Msg("transcript artifact write failed")
			}
		}
	}

	w.log.Info().Str("job_id", job.ID).Int("score", res.MatchScore).
		Int("pace_wpm", res.PaceWPM).Str("emotion", res.Emotion).
		Dur("duration_ms", latency).Msg("analysis complete")
	return nil
}

// StatusListener mirrors job transitions into the per-question status the
// polling client reads: running marks processing, a permanently failed job
// marks ai_error. Success fields are written by Run before the transition
// fires, so succeeded needs no extra write here.
func StatusListener(sessions repository.SessionRepository, log *zerolog.Logger) queue.Listener {
	return func(job queue.Job) {
		metrics.IncJobTransition(string(job.State))

		var patch *model.QuestionPatch
		switch job.State {
		case queue.StateRunning:
			processing := model.QuestionProcessing
			patch = &model.QuestionPatch{Status: &processing, LastJobID: &job.ID}
		case queue.StateFailed:
			failed := model.QuestionAIError
			patch = &model.QuestionPatch{Status: &failed, LastError: &job.LastError, LastJobID: &job.ID}
		default:
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := sessions.MergeQuestion(ctx, job.Token, job.QuestionIndex, patch); err != nil {
			log.Error().Err(err).Str("job_id", job.ID).Str("state", string(job.State)).
				Msg("failed to mirror job state into status store")
		}
	}
}
