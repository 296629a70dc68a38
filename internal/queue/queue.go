package queue

import (
	"container/heap"
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"interview-ai-recorder/internal/domain"
	"interview-ai-recorder/internal/infra/metrics"
)

type State string

const (
	StateQueued         State = "queued"
	StateRunning        State = "running"
	StateRetryScheduled State = "retry_scheduled"
	StateSucceeded      State = "succeeded"
	StateFailed         State = "failed"
)

// Terminal reports whether no further automatic transition exists.
func (s State) Terminal() bool { return s == StateSucceeded || s == StateFailed }

// maxAutoAttempts caps a cycle at the initial run plus one automatic retry.
const maxAutoAttempts = 2

// Job is a scheduled unit of analysis work bound to one (session, question)
// pair. The queue owns all Job instances; callers only ever see copies.
type Job struct {
	ID              string              `json:"id"`
	Token           string              `json:"token"`
	QuestionIndex   int                 `json:"question_index"`
	QuestionText    string              `json:"question_text"`
	VideoPath       string              `json:"video_path"`
	MIMEType        string              `json:"mime_type"`
	DurationSeconds int                 `json:"duration_seconds"`
	State           State               `json:"state"`
	Attempts        int                 `json:"attempts"`
	Manual          bool                `json:"manual"`
	LastError       string              `json:"last_error,omitempty"`
	LastClass       domain.FailureClass `json:"last_class,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
	WakeAt          time.Time           `json:"wake_at"`

	seq uint64
}

// JobID builds the deterministic id for a (token, question) pair, which is
// what makes re-submission idempotent.
func JobID(token string, questionIndex int) string {
	return fmt.Sprintf("%s:q%d", token, questionIndex)
}

// Submission asks the queue to analyze one uploaded clip. Manual marks a
// user-triggered retry: it starts a fresh single-shot cycle with no
// automatic retry of its own.
type Submission struct {
	Token           string
	QuestionIndex   int
	QuestionText    string
	VideoPath       string
	MIMEType        string
	DurationSeconds int
	Manual          bool
}

// Runner performs exactly one external analysis call for a dispatched job.
// The error it returns is classified by the queue; it must not retry.
type Runner interface {
	Run(ctx context.Context, job Job) error
}

// Listener observes job state transitions. It runs on the dispatch
// goroutine and must return quickly.
type Listener func(job Job)

type Config struct {
	// DispatchInterval is the minimum gap between the end of one dispatch
	// and the start of the next. It protects the external service quota
	// and is independent of RetryCooldown.
	DispatchInterval time.Duration
	// RetryCooldown is the fixed wait before the single automatic retry.
	RetryCooldown time.Duration
	// CallTimeout bounds one external call; exceeding it counts as a
	// retryable timeout failure.
	CallTimeout time.Duration
}

func (c *Config) setDefaults() {
	if c.DispatchInterval <= 0 {
		c.DispatchInterval = 15 * time.Second
	}
	if c.RetryCooldown <= 0 {
		c.RetryCooldown = 70 * time.Second
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = 5 * time.Minute
	}
}

// Stats is a point-in-time view for monitoring endpoints.
type Stats struct {
	QueueLen   int    `json:"queue_len"`
	CurrentJob string `json:"current_job,omitempty"`
	Jobs       []Job  `json:"jobs"`
}

type submitReq struct {
	sub   Submission
	reply chan submitReply
}

type submitReply struct {
	jobID string
	err   error
}

type queryReq struct {
	jobID string // empty means stats query
	reply chan queryReply
}

type queryReply struct {
	job   Job
	stats Stats
	err   error
}

type runResult struct {
	runSeq uint64
	err    error
}

// Queue serializes all external analysis calls: one dedicated goroutine owns
// every job, dispatches at most one at a time, and spaces dispatches by
// DispatchInterval. All access goes through channels; there is no shared
// mutable state.
type Queue struct {
	cfg      Config
	runner   Runner
	listener Listener
	log      *zerolog.Logger

	submitCh chan submitReq
	queryCh  chan queryReq
	runDone  chan runResult
	stopped  chan struct{}

	// loop-owned state
	jobs            map[string]*Job
	ready           readyHeap
	running         *Job
	runSeq          uint64
	seq             uint64
	lastDispatchEnd time.Time
}

func New(cfg Config, runner Runner, listener Listener, log *zerolog.Logger) *Queue {
	cfg.setDefaults()
	return &Queue{
		cfg:      cfg,
		runner:   runner,
		listener: listener,
		log:      log,
		submitCh: make(chan submitReq),
		queryCh:  make(chan queryReq),
		runDone:  make(chan runResult, 4),
		stopped:  make(chan struct{}),
		jobs:     map[string]*Job{},
	}
}

// Submit enqueues a job for the (token, question) pair. If an active job
// already exists for the pair the existing job id is returned instead of
// creating a second one.
func (q *Queue) Submit(ctx context.Context, sub Submission) (string, error) {
	req := submitReq{sub: sub, reply: make(chan submitReply, 1)}
	select {
	case q.submitCh <- req:
	case <-q.stopped:
		return "", domain.ErrQueueClosed
	case <-ctx.Done():
		return "", ctx.Err()
	}
	select {
	case rep := <-req.reply:
		return rep.jobID, rep.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Job returns a snapshot of the job with the given id.
func (q *Queue) Job(ctx context.Context, jobID string) (Job, error) {
	rep, err := q.query(ctx, jobID)
	if err != nil {
		return Job{}, err
	}
	return rep.job, rep.err
}

// Stats returns a snapshot of the ready set for monitoring.
func (q *Queue) Stats(ctx context.Context) (Stats, error) {
	rep, err := q.query(ctx, "")
	if err != nil {
		return Stats{}, err
	}
	return rep.stats, rep.err
}

func (q *Queue) query(ctx context.Context, jobID string) (queryReply, error) {
	req := queryReq{jobID: jobID, reply: make(chan queryReply, 1)}
	select {
	case q.queryCh <- req:
	case <-q.stopped:
		return queryReply{}, domain.ErrQueueClosed
	case <-ctx.Done():
		return queryReply{}, ctx.Err()
	}
	select {
	case rep := <-req.reply:
		return rep, nil
	case <-ctx.Done():
		return queryReply{}, ctx.Err()
	}
}

// Run is the dispatch loop. It owns all queue state and returns when ctx is
// cancelled; an in-flight external call is allowed to finish first.
func (q *Queue) Run(ctx context.Context) {
	defer close(q.stopped)
	q.log.Info().
		Dur("dispatch_interval", q.cfg.DispatchInterval).
		Dur("retry_cooldown", q.cfg.RetryCooldown).
		Msg("job queue started")

	for {
		var timerC <-chan time.Time
		var timer *time.Timer
		if q.running == nil {
			if wake, ok := q.nextWake(); ok {
				d := time.Until(wake)
				if d <= 0 {
					q.dispatch(ctx)
					continue
				}
				timer = time.NewTimer(d)
				timerC = timer.C
			}
		}

		select {
		case <-ctx.Done():
			stopTimer(timer)
			if q.running != nil {
				// let the in-flight call settle so the runner is not abandoned
				res := <-q.runDone
				q.finish(res)
			}
			q.log.Info().Msg("job queue stopped")
			return
		case req := <-q.submitCh:
			stopTimer(timer)
			id, err := q.handleSubmit(req.sub)
			req.reply <- submitReply{jobID: id, err: err}
		case req := <-q.queryCh:
			stopTimer(timer)
			req.reply <- q.handleQuery(req.jobID)
		case res := <-q.runDone:
			stopTimer(timer)
			q.finish(res)
		case <-timerC:
			// fall through; next iteration dispatches
		}
	}
}

func stopTimer(t *time.Timer) {
	if t != nil {
		t.Stop()
	}
}

// nextWake returns the earliest instant a dispatch may start: the top job's
// wake time, pushed back by the global throttle.
func (q *Queue) nextWake() (time.Time, bool) {
	if len(q.ready) == 0 {
		return time.Time{}, false
	}
	wake := q.ready[0].WakeAt
	if !q.lastDispatchEnd.IsZero() {
		if throttle := q.lastDispatchEnd.Add(q.cfg.DispatchInterval); throttle.After(wake) {
			wake = throttle
		}
	}
	return wake, true
}

func (q *Queue) handleSubmit(sub Submission) (string, error) {
	id := JobID(sub.Token, sub.QuestionIndex)
	if job, ok := q.jobs[id]; ok {
		if !job.State.Terminal() {
			// one active job per (session, question) pair
			return id, nil
		}
		if job.State == StateFailed || !sub.Manual {
			q.restart(job, sub)
			return id, nil
		}
		// manual retry of a succeeded job is a no-op
		return id, nil
	}

	q.seq++
	job := &Job{
		ID:              id,
		Token:           sub.Token,
		QuestionIndex:   sub.QuestionIndex,
		QuestionText:    sub.QuestionText,
		VideoPath:       sub.VideoPath,
		MIMEType:        sub.MIMEType,
		DurationSeconds: sub.DurationSeconds,
		State:           StateQueued,
		Manual:          sub.Manual,
		CreatedAt:       time.Now(),
		WakeAt:          time.Now(),
		seq:             q.seq,
	}
	q.jobs[id] = job
	heap.Push(&q.ready, job)
	q.log.Info().Str("job_id", id).Bool("manual", sub.Manual).Int("queue_len", len(q.ready)).Msg("job enqueued")
	q.notify(job)
	return id, nil
}

// restart begins a fresh cycle on a terminal job: attempt counter reset,
// back of the queue, still subject to the global throttle.
func (q *Queue) restart(job *Job, sub Submission) {
	q.seq++
	job.State = StateQueued
	job.Attempts = 0
	job.Manual = sub.Manual
	job.LastError = ""
	job.LastClass = ""
	job.WakeAt = time.Now()
	job.seq = q.seq
	if sub.QuestionText != "" {
		job.QuestionText = sub.QuestionText
	}
	if sub.VideoPath != "" {
		job.VideoPath = sub.VideoPath
	}
	if sub.MIMEType != "" {
		job.MIMEType = sub.MIMEType
	}
	if sub.DurationSeconds > 0 {
		job.DurationSeconds = sub.DurationSeconds
	}
	heap.Push(&q.ready, job)
	q.log.Info().Str("job_id", job.ID).Bool("manual", sub.Manual).Msg("job re-enqueued")
	q.notify(job)
}

func (q *Queue) handleQuery(jobID string) queryReply {
	if jobID == "" {
		st := Stats{QueueLen: len(q.ready)}
		if q.running != nil {
			st.CurrentJob = q.running.ID
		}
		for _, j := range q.ready {
			st.Jobs = append(st.Jobs, *j)
		}
		return queryReply{stats: st}
	}
	job, ok := q.jobs[jobID]
	if !ok {
		return queryReply{err: domain.ErrNotFound}
	}
	return queryReply{job: *job}
}

func (q *Queue) dispatch(ctx context.Context) {
	if !q.lastDispatchEnd.IsZero() {
		metrics.ObserveDispatchGap(time.Since(q.lastDispatchEnd).Seconds())
	}
	job := heap.Pop(&q.ready).(*Job)
	job.State = StateRunning
	job.Attempts++
	q.running = job
	q.runSeq++
	q.log.Info().Str("job_id", job.ID).Int("attempt", job.Attempts).Bool("manual", job.Manual).Msg("dispatching job")
	q.notify(job)

	snapshot := *job
	runSeq := q.runSeq
	go func() {
		runCtx, cancel := context.WithTimeout(ctx, q.cfg.CallTimeout)
		defer cancel()
		err := q.runner.Run(runCtx, snapshot)
		q.runDone <- runResult{runSeq: runSeq, err: err}
	}()
}

func (q *Queue) finish(res runResult) {
	if q.running == nil || res.runSeq != q.runSeq {
		return // stale result from a superseded run
	}
	job := q.running
	q.running = nil
	q.lastDispatchEnd = time.Now()

	if res.err == nil {
		job.State = StateSucceeded
		job.LastError = ""
		job.LastClass = ""
		q.log.Info().Str("job_id", job.ID).Int("attempts", job.Attempts).Msg("job succeeded")
		q.notify(job)
		return
	}

	class := domain.Classify(res.err)
	job.LastError = res.err.Error()
	job.LastClass = class
	metrics.IncAnalysisFailure(string(class))

	if class.Retryable() && !job.Manual && job.Attempts < maxAutoAttempts {
		job.State = StateRetryScheduled
		job.WakeAt = time.Now().Add(q.cfg.RetryCooldown)
		q.seq++
		job.seq = q.seq
		heap.Push(&q.ready, job)
		q.log.Warn().Str("job_id", job.ID).Str("class", string(class)).
			Time("wake_at", job.WakeAt).Msg("job failed, auto-retry scheduled")
		q.notify(job)
		return
	}

	job.State = StateFailed
	q.log.Error().Str("job_id", job.ID).Str("class", string(class)).
		Int("attempts", job.Attempts).Str("error", job.LastError).Msg("job failed permanently")
	q.notify(job)
}

func (q *Queue) notify(job *Job) {
	if q.listener != nil {
		q.listener(*job)
	}
}
