// File: internal/client/poll.go
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"interview-ai-recorder/internal/domain/model"
)

// PollConfig bounds the reconciliation loop. With the defaults the client
// gives up after roughly 36 seconds and leaves the question in whatever
// status the server last reported.
type PollConfig struct {
	Interval   time.Duration
	MaxPolls   int
	HTTPClient *http.Client
}

func (c *PollConfig) setDefaults() {
	if c.Interval <= 0 {
		c.Interval = 3 * time.Second
	}
	if c.MaxPolls <= 0 {
		c.MaxPolls = 12
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
}

// sessionStatus matches the server's status payload.
type sessionStatus struct {
	State         model.SessionState            `json:"state"`
	AnsweredCount int                           `json:"answered_count"`
	TotalSizeMB   float64                       `json:"total_size_mb"`
	Questions     map[int]*model.QuestionRecord `json:"questions"`
}

// PollingClient reconciles the local view of a question against the server's
// persisted status record.
type PollingClient struct {
	cfg     PollConfig
	baseURL string
	token   string
	log     *zerolog.Logger
}

func NewPollingClient(cfg PollConfig, baseURL, token string, log *zerolog.Logger) *PollingClient {
	cfg.setDefaults()
	return &PollingClient{cfg: cfg, baseURL: baseURL, token: token, log: log}
}

// WaitForQuestion polls the session status until the question reaches a
// terminal analysis status (done or ai_error) or the poll budget runs out.
// It returns the last observed record; settled reports whether it is
// terminal.
func (p *PollingClient) WaitForQuestion(ctx context.Context, questionIndex int) (rec *model.QuestionRecord, settled bool, err error) {
	for i := 0; i < p.cfg.MaxPolls; i++ {
		if i > 0 {
			select {
			case <-time.After(p.cfg.Interval):
			case <-ctx.Done():
				return rec, false, ctx.Err()
			}
		}

		status, ferr := p.fetch(ctx)
		if ferr != nil {
			p.log.Warn().Err(ferr).Int("poll", i+1).Msg("status poll failed")
			err = ferr
			continue
		}
		err = nil
		if r, ok := status.Questions[questionIndex]; ok {
			rec = r
			if r.Status == model.QuestionDone || r.Status == model.QuestionAIError {
				return r, true, nil
			}
		}
	}
	p.log.Info().Int("question", questionIndex).Msg("poll budget exhausted, giving up")
	return rec, false, err
}

// Fetch returns the current server-side session status once.
func (p *PollingClient) Fetch(ctx context.Context) (map[int]*model.QuestionRecord, model.SessionState, error) {
	status, err := p.fetch(ctx)
	if err != nil {
		return nil, "", err
	}
	return status.Questions, status.State, nil
}

func (p *PollingClient) fetch(ctx context.Context) (*sessionStatus, error) {
	url := fmt.Sprintf("%s/api/v1/sessions/%s/status", p.baseURL, p.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status poll: unexpected status %d", resp.StatusCode)
	}
	var status sessionStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, err
	}
	return &status, nil
}
