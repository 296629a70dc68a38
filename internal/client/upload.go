// File: internal/client/upload.go
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"interview-ai-recorder/internal/domain"
)

// UploadState mirrors the recorder's per-question lifecycle.
type UploadState string

const (
	StateIdle      UploadState = "idle"
	StateRecording UploadState = "recording"
	StateStopped   UploadState = "stopped"
	StateUploading UploadState = "uploading"
	StateRetry     UploadState = "retry"
	StateFailed    UploadState = "failed"
	StateSuccess   UploadState = "success"
)

// UploadEvent is emitted on every state transition.
type UploadEvent struct {
	QuestionIndex int
	State         UploadState
	Attempt       int
	Wait          time.Duration
	Err           error
}

type Config struct {
	BaseURL     string
	HTTPClient  *http.Client
	BackoffBase time.Duration // first retry wait; doubles each attempt
	MaxAttempts int           // total tries including the first
}

func (c *Config) setDefaults() {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = 2 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
}

// UploadClient uploads recorded clips with bounded automatic retries. A clip
// stays buffered until the server accepts it, so a failed upload can always
// be retried manually without re-recording.
type UploadClient struct {
	cfg      Config
	token    string
	log      *zerolog.Logger
	onChange func(UploadEvent)

	mu      sync.Mutex
	buffers map[int]*clipBuffer
	states  map[int]UploadState
}

type clipBuffer struct {
	data     []byte
	mimeType string
	duration int
}

func NewUploadClient(cfg Config, token string, onChange func(UploadEvent), log *zerolog.Logger) *UploadClient {
	cfg.setDefaults()
	return &UploadClient{
		cfg:      cfg,
		token:    token,
		log:      log,
		onChange: onChange,
		buffers:  map[int]*clipBuffer{},
		states:   map[int]UploadState{},
	}
}

// State returns the current lifecycle state for a question.
func (c *UploadClient) State(questionIndex int) UploadState {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.states[questionIndex]; ok {
		return s
	}
	return StateIdle
}

// HasBufferedClip reports whether an unaccepted recording is still held.
func (c *UploadClient) HasBufferedClip(questionIndex int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.buffers[questionIndex]
	return ok
}

// Record buffers a finished recording and marks the question stopped.
func (c *UploadClient) Record(questionIndex int, data []byte, mimeType string, durationSeconds int) {
	c.mu.Lock()
	c.buffers[questionIndex] = &clipBuffer{data: data, mimeType: mimeType, duration: durationSeconds}
	c.mu.Unlock()
	c.transition(questionIndex, StateStopped, 0, 0, nil)
}

// Upload sends the buffered clip, retrying transient failures with
// exponential backoff. A non-429 4xx response is terminal: the server told
// us the request itself is bad, so re-sending cannot help. The buffer is
// cleared only on success.
func (c *UploadClient) Upload(ctx context.Context, questionIndex int) (string, error) {
	c.mu.Lock()
	buf, ok := c.buffers[questionIndex]
	c.mu.Unlock()
	if !ok {
		return "", domain.ErrVideoNotFound
	}

	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		c.transition(questionIndex, StateUploading, attempt, 0, nil)

		jobID, retryable, err := c.post(ctx, questionIndex, buf)
		if err == nil {
			c.mu.Lock()
			delete(c.buffers, questionIndex)
			c.mu.Unlock()
			c.transition(questionIndex, StateSuccess, attempt, 0, nil)
			return jobID, nil
		}
		lastErr = err

		if !retryable || attempt == c.cfg.MaxAttempts {
			break
		}

		wait := c.cfg.BackoffBase << (attempt - 1) // 2s, 4s, 8s
		c.transition(questionIndex, StateRetry, attempt, wait, err)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			c.transition(questionIndex, StateFailed, attempt, 0, ctx.Err())
			return "", ctx.Err()
		}
	}

	c.transition(questionIndex, StateFailed, c.cfg.MaxAttempts, 0, lastErr)
	return "", lastErr
}

// Retry is the manual fallback: it restarts the full upload cycle with the
// buffered clip, attempt counter reset.
func (c *UploadClient) Retry(ctx context.Context, questionIndex int) (string, error) {
	return c.Upload(ctx, questionIndex)
}

// post performs one multipart POST. The bool reports whether the failure is
// worth retrying.
func (c *UploadClient) post(ctx context.Context, questionIndex int, buf *clipBuffer) (string, bool, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="video"; filename="Q%d.webm"`, questionIndex+1))
	h.Set("Content-Type", buf.mimeType)
	part, err := w.CreatePart(h)
	if err != nil {
		return "", false, err
	}
	if _, err := part.Write(buf.data); err != nil {
		return "", false, err
	}
	if err := w.WriteField("duration_seconds", strconv.Itoa(buf.duration)); err != nil {
		return "", false, err
	}
	if err := w.Close(); err != nil {
		return "", false, err
	}

	url := fmt.Sprintf("%s/api/v1/sessions/%s/answers/%d", c.cfg.BaseURL, c.token, questionIndex)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return "", false, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return "", true, err // network errors are transient
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusAccepted:
		var out struct {
			JobID string `json:"job_id"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return "", false, err
		}
		return out.JobID, false, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", true, fmt.Errorf("upload throttled: %w", domain.ErrRateLimited)
	case resp.StatusCode >= 500:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", true, fmt.Errorf("upload failed: %d %s", resp.StatusCode, bytes.TrimSpace(msg))
	default:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", false, fmt.Errorf("upload rejected: %d %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
}

func (c *UploadClient) transition(questionIndex int, state UploadState, attempt int, wait time.Duration, err error) {
	c.mu.Lock()
	c.states[questionIndex] = state
	c.mu.Unlock()
	c.log.Debug().Int("question", questionIndex).Str("state", string(state)).
		Int("attempt", attempt).Dur("wait", wait).Err(err).Msg("upload transition")
	if c.onChange != nil {
		c.onChange(UploadEvent{QuestionIndex: questionIndex, State: state, Attempt: attempt, Wait: wait, Err: err})
	}
}
