package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"interview-ai-recorder/internal/domain"
	"interview-ai-recorder/internal/domain/model"
	"interview-ai-recorder/internal/usecase"
)

// sessionStatusResponse is what the polling client reconciles against.
type sessionStatusResponse struct {
	State         model.SessionState            `json:"state"`
	AnsweredCount int                           `json:"answered_count"`
	TotalSizeMB   float64                       `json:"total_size_mb"`
	Questions     map[int]*model.QuestionRecord `json:"questions"`
}

type loginRequest struct {
	APIKey        string `json:"api_key"`
	InterviewerID string `json:"interviewer_id"`
}

func loginHandler(auth *AuthManager, apiKey string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if apiKey == "" {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if req.APIKey != apiKey {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		id := strings.TrimSpace(req.InterviewerID)
		if id == "" {
			id = "interviewer"
		}
		token, err := auth.Mint(w, id)
		if err != nil {
			http.Error(w, "Failed to mint session", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"token": token})
	}
}

type sessionCreateRequest struct {
	CandidateName string   `json:"candidate_name"`
	Questions     []string `json:"questions"`
}

func sessionCreateHandler(sessionUC usecase.SessionUseCase, baseURL, joinPath string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req sessionCreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		interviewerID, _ := r.Context().Value(ctxInterviewerID).(string)
		if interviewerID == "" {
			interviewerID = "interviewer"
		}

		s, err := sessionUC.Create(r.Context(), interviewerID, req.CandidateName, req.Questions)
		if err != nil {
			httpError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]interface{}{
			"token":          s.Token,
			"candidate_name": s.CandidateName,
			"join_url":       strings.TrimSuffix(baseURL, "/") + joinPath + "?token=" + s.Token,
		})
	}
}

type verifyRequest struct {
	CandidateName string `json:"candidate_name"`
}

func verifyHandler(sessionUC usecase.SessionUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req verifyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		s, err := sessionUC.Verify(r.Context(), chi.URLParam(r, "token"), req.CandidateName)
		if err != nil {
			httpError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"state":     s.State,
			"questions": s.QuestionTexts,
		})
	}
}

func startHandler(sessionUC usecase.SessionUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := sessionUC.Start(r.Context(), chi.URLParam(r, "token"))
		if err != nil {
			httpError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"state":     s.State,
			"questions": s.QuestionTexts,
		})
	}
}

func finishHandler(sessionUC usecase.SessionUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := sessionUC.Finish(r.Context(), chi.URLParam(r, "token"))
		if err != nil {
			httpError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"state": s.State})
	}
}

func statusHandler(sessionUC usecase.SessionUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := sessionUC.Status(r.Context(), chi.URLParam(r, "token"))
		if err != nil {
			httpError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sessionStatusResponse{
			State:         s.State,
			AnsweredCount: s.AnsweredCount,
			TotalSizeMB:   s.TotalSizeMB,
			Questions:     s.Questions,
		})
	}
}

// uploadHandler accepts one recorded clip as multipart form data and replies
// 202 with the analysis job id. The clip field is "video"; the optional
// "duration_seconds" field improves pace computation later.
func uploadHandler(ingestUC usecase.IngestUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		index, err := strconv.Atoi(chi.URLParam(r, "index"))
		if err != nil {
			http.Error(w, "Invalid question index", http.StatusBadRequest)
			return
		}
		if err := r.ParseMultipartForm(64 << 20); err != nil {
			http.Error(w, "Invalid multipart body", http.StatusBadRequest)
			return
		}
		file, header, err := r.FormFile("video")
		if err != nil {
			http.Error(w, "Missing video field", http.StatusBadRequest)
			return
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			http.Error(w, "Failed to read upload", http.StatusInternalServerError)
			return
		}
		duration, _ := strconv.Atoi(r.FormValue("duration_seconds"))

		jobID, err := ingestUC.Ingest(r.Context(), usecase.IngestRequest{
			Token:           chi.URLParam(r, "token"),
			QuestionIndex:   index,
			MIMEType:        header.Header.Get("Content-Type"),
			DurationSeconds: duration,
			Data:            data,
		})
		if err != nil {
			httpError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID})
	}
}

func retryHandler(ingestUC usecase.IngestUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		index, err := strconv.Atoi(chi.URLParam(r, "index"))
		if err != nil {
			http.Error(w, "Invalid question index", http.StatusBadRequest)
			return
		}
		jobID, err := ingestUC.RetryAnalysis(r.Context(), chi.URLParam(r, "token"), index)
		if err != nil {
			httpError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID})
	}
}

func jobGetHandler(ingestUC usecase.IngestUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, err := ingestUC.JobStatus(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			httpError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, job)
	}
}

func queueStatsHandler(ingestUC usecase.IngestUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := ingestUC.QueueStats(r.Context())
		if err != nil {
			httpError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// httpError maps domain errors onto HTTP status codes.
func httpError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrVideoNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, domain.ErrNameMismatch):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, domain.ErrSessionInactive), errors.Is(err, domain.ErrAlreadyExists):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, domain.ErrUnsupportedMedia):
		http.Error(w, err.Error(), http.StatusUnsupportedMediaType)
	case errors.Is(err, domain.ErrInvalidArgument):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrRateLimited):
		http.Error(w, err.Error(), http.StatusTooManyRequests)
	case errors.Is(err, domain.ErrQueueClosed):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	default:
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
