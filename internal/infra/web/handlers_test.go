package web

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"interview-ai-recorder/internal/domain"
	"interview-ai-recorder/internal/domain/model"
	"interview-ai-recorder/internal/queue"
)

var testLogger = zerolog.Nop()

func testServer(sessionUC *stubSessionUC, ingestUC *stubIngestUC) *Server {
	auth := NewAuthManager("test-secret", false, "", 30*time.Minute)
	hub := NewHub(&testLogger)
	return NewServer(sessionUC, ingestUC, auth, hub, "test-api-key", "http://localhost:8080", "/interviewee", &testLogger)
}

func login(t *testing.T, router http.Handler) string {
	t.Helper()
	body := `{"api_key":"test-api-key","interviewer_id":"iv-1"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("login failed: %d %s", rr.Code, rr.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad login response: %v", err)
	}
	return resp["token"]
}

func TestLoginHandler(t *testing.T) {
	srv := testServer(newStubSessionUC(), &stubIngestUC{})
	router := srv.Router()

	t.Run("wrong key is forbidden", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"api_key":"nope"}`))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		if rr.Code != http.StatusForbidden {
			t.Errorf("status = %d, want 403", rr.Code)
		}
	})

	t.Run("valid key mints a token", func(t *testing.T) {
		if tok := login(t, router); tok == "" {
			t.Error("expected a JWT")
		}
	})
}

func TestSessionCreateRequiresAuth(t *testing.T) {
	srv := testServer(newStubSessionUC(), &stubIngestUC{})
	router := srv.Router()

	body := `{"candidate_name":"Jane","questions":["q1"]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", strings.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rr.Code)
	}
}

func TestSessionCreate(t *testing.T) {
	srv := testServer(newStubSessionUC(), &stubIngestUC{})
	router := srv.Router()
	jwt := login(t, router)

	body := `{"candidate_name":"Jane","questions":["q1","q2"]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+jwt)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rr.Code, rr.Body.String())
	}
	var resp map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response: %v", err)
	}
	if resp["token"] != "tok-stub" {
		t.Errorf("token = %v", resp["token"])
	}
	joinURL, _ := resp["join_url"].(string)
	if !strings.Contains(joinURL, "/interviewee?token=tok-stub") {
		t.Errorf("join_url = %q", joinURL)
	}
}

func TestVerifyHandler(t *testing.T) {
	sessionUC := newStubSessionUC()
	sess := model.NewSession("tok-1", "Jane", "iv", time.Now())
	sess.QuestionTexts = []string{"q1"}
	sessionUC.sessions["tok-1"] = sess

	srv := testServer(sessionUC, &stubIngestUC{})
	router := srv.Router()

	t.Run("matching name", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/tok-1/verify", strings.NewReader(`{"candidate_name":"Jane"}`))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rr.Code)
		}
	})

	t.Run("wrong name is 403", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/tok-1/verify", strings.NewReader(`{"candidate_name":"Bob"}`))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		if rr.Code != http.StatusForbidden {
			t.Errorf("status = %d, want 403", rr.Code)
		}
	})

	t.Run("unknown token is 404", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/tok-x/verify", strings.NewReader(`{"candidate_name":"Jane"}`))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		if rr.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rr.Code)
		}
	})
}

func multipartClip(t *testing.T, mime string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	h := make(map[string][]string)
	h["Content-Disposition"] = []string{`form-data; name="video"; filename="clip.webm"`}
	h["Content-Type"] = []string{mime}
	part, err := w.CreatePart(h)
	if err != nil {
		t.Fatalf("CreatePart: %v", err)
	}
	if _, err := part.Write([]byte("fake-webm-bytes")); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := w.WriteField("duration_seconds", "42"); err != nil {
		t.Fatalf("WriteField: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, w.FormDataContentType()
}

func TestUploadHandler(t *testing.T) {
	ingestUC := &stubIngestUC{jobID: "tok-1:q0"}
	srv := testServer(newStubSessionUC(), ingestUC)
	router := srv.Router()

	body, contentType := multipartClip(t, "video/webm")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/tok-1/answers/0", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %s", rr.Code, rr.Body.String())
	}
	var resp map[string]string
	_ = json.Unmarshal(rr.Body.Bytes(), &resp)
	if resp["job_id"] != "tok-1:q0" {
		t.Errorf("job_id = %q", resp["job_id"])
	}
	if ingestUC.lastReq.MIMEType != "video/webm" {
		t.Errorf("mime = %q", ingestUC.lastReq.MIMEType)
	}
	if ingestUC.lastReq.DurationSeconds != 42 {
		t.Errorf("duration = %d, want 42", ingestUC.lastReq.DurationSeconds)
	}
}

func TestUploadHandlerErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"unsupported media", domain.ErrUnsupportedMedia, http.StatusUnsupportedMediaType},
		{"rate limited", domain.ErrRateLimited, http.StatusTooManyRequests},
		{"inactive session", domain.ErrSessionInactive, http.StatusConflict},
		{"unknown session", domain.ErrNotFound, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := testServer(newStubSessionUC(), &stubIngestUC{ingestErr: tt.err})
			router := srv.Router()

			body, contentType := multipartClip(t, "video/webm")
			req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/tok-1/answers/0", body)
			req.Header.Set("Content-Type", contentType)
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)
			if rr.Code != tt.want {
				t.Errorf("status = %d, want %d", rr.Code, tt.want)
			}
		})
	}
}

func TestRetryHandler(t *testing.T) {
	ingestUC := &stubIngestUC{}
	srv := testServer(newStubSessionUC(), ingestUC)
	router := srv.Router()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/tok-1/answers/2/retry", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rr.Code)
	}
	if len(ingestUC.retried) != 1 || ingestUC.retried[0] != "tok-1:q2" {
		t.Errorf("retried = %v", ingestUC.retried)
	}
}

func TestJobGetHandler(t *testing.T) {
	ingestUC := &stubIngestUC{job: queue.Job{ID: "tok-1:q0", State: queue.StateRetryScheduled, Attempts: 1}}
	srv := testServer(newStubSessionUC(), ingestUC)
	router := srv.Router()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/tok-1:q0", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	var job queue.Job
	if err := json.Unmarshal(rr.Body.Bytes(), &job); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if job.State != queue.StateRetryScheduled {
		t.Errorf("state = %s", job.State)
	}
}

func TestQueueStatsRequiresAuth(t *testing.T) {
	srv := testServer(newStubSessionUC(), &stubIngestUC{})
	router := srv.Router()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/queue/stats", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rr.Code)
	}

	jwt := login(t, router)
	req = httptest.NewRequest(http.MethodGet, "/api/v1/queue/stats", nil)
	req.Header.Set("Authorization", "Bearer "+jwt)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rr.Code)
	}
}

func TestHealth(t *testing.T) {
	srv := testServer(newStubSessionUC(), &stubIngestUC{})
	router := srv.Router()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rr.Code)
	}
}
