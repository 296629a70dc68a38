// File: cmd/agent/main.go
//
// Candidate-side agent. Joins an interview session, uploads a recorded
// clip with automatic retry, then polls until the analysis settles.
// Useful for exercising a running server end to end:
//
//	agent -server http://localhost:8080 -token <t> -name "Jane Doe" \
//	      -question 0 -clip answer.webm -duration 42
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"

	"interview-ai-recorder/internal/client"
	"interview-ai-recorder/internal/domain/model"
)

func main() {
	server := flag.String("server", "http://localhost:8080", "server base URL")
	token := flag.String("token", "", "session token")
	name := flag.String("name", "", "candidate name, must match the session")
	question := flag.Int("question", 0, "zero-based question index")
	clipPath := flag.String("clip", "", "path to the recorded clip")
	mimeType := flag.String("mime", "video/webm", "clip MIME type")
	duration := flag.Int("duration", 0, "clip duration in seconds")
	finish := flag.Bool("finish", false, "submit the session after uploading")
	pollInterval := flag.Duration("poll-interval", 3*time.Second, "status poll interval")
	pollCap := flag.Int("poll-cap", 12, "max polls before giving up")
	flag.Parse()

	if *token == "" || *name == "" || *clipPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	logger := zerolog.New(out).With().Timestamp().Logger()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	if err := postJSON(ctx, *server, *token, "verify", map[string]string{"candidate_name": *name}); err != nil {
		log.Fatalf("verify: %v", err)
	}
	if err := postJSON(ctx, *server, *token, "start", nil); err != nil {
		log.Fatalf("start: %v", err)
	}
	logger.Info().Str("token", *token).Msg("joined session")

	clip, err := os.ReadFile(*clipPath)
	if err != nil {
		log.Fatalf("read clip: %v", err)
	}

	uploader := client.NewUploadClient(client.Config{BaseURL: *server}, *token, func(ev client.UploadEvent) {
		e := logger.Info().Int("question", ev.QuestionIndex).Str("state", string(ev.State))
		if ev.Attempt > 0 {
			e = e.Int("attempt", ev.Attempt)
		}
		if ev.Wait > 0 {
			e = e.Dur("wait", ev.Wait)
		}
		if ev.Err != nil {
			e = e.Err(ev.Err)
		}
		e.Msg("upload")
	}, &logger)

	uploader.Record(*question, clip, *mimeType, *duration)
	jobID, err := uploader.Upload(ctx, *question)
	if err != nil {
		log.Fatalf("upload exhausted retries: %v (keep the clip and retry manually)", err)
	}
	logger.Info().Str("job_id", jobID).Msg("clip accepted")

	poller := client.NewPollingClient(client.PollConfig{
		Interval: *pollInterval,
		MaxPolls: *pollCap,
	}, *server, *token, &logger)

	rec, settled, err := poller.WaitForQuestion(ctx, *question)
	if err != nil {
		log.Fatalf("poll: %v", err)
	}
	printRecord(*question, rec, settled)

	if rec != nil && rec.Status == model.QuestionAIError {
		logger.Warn().Msg("analysis failed, requesting a manual retry")
		if _, err := uploader.Retry(ctx, *question); err != nil {
			logger.Error().Err(err).Msg("manual retry")
		} else if rec, settled, err = poller.WaitForQuestion(ctx, *question); err == nil {
			printRecord(*question, rec, settled)
		}
	}

	if *finish {
		if err := postJSON(ctx, *server, *token, "finish", nil); err != nil {
			log.Fatalf("finish: %v", err)
		}
		logger.Info().Msg("session submitted")
	}
}

func postJSON(ctx context.Context, server, token, action string, body interface{}) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	url := fmt.Sprintf("%s/api/v1/sessions/%s/%s", server, token, action)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s: unexpected status %d", action, resp.StatusCode)
	}
	return nil
}

func printRecord(question int, rec *model.QuestionRecord, settled bool) {
	if rec == nil {
		fmt.Printf("Q%d: no status yet\n", question+1)
		return
	}
	if !settled {
		fmt.Printf("Q%d: still %s after poll budget, check back later\n", question+1, rec.Status)
		return
	}
	switch rec.Status {
	case model.QuestionDone:
		fmt.Printf("Q%d: done\n", question+1)
		fmt.Printf("  match score:   %d/100\n", rec.MatchScore)
		fmt.Printf("  emotion:       %s (%d)\n", rec.Emotion, rec.EmotionScore)
		fmt.Printf("  pace:          %s (%d wpm)\n", rec.PaceLabel, rec.PaceWPM)
		fmt.Printf("  feedback:      %s\n", rec.Feedback)
	case model.QuestionAIError:
		fmt.Printf("Q%d: analysis failed: %s\n", question+1, rec.LastError)
	default:
		fmt.Printf("Q%d: %s\n", question+1, rec.Status)
	}
}
