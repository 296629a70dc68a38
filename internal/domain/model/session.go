package model

import (
	"strings"
	"time"
	"unicode"
)

type SessionState string

const (
	SessionPending   SessionState = "pending"   // created by interviewer, not yet joined
	SessionActive    SessionState = "active"    // candidate joined, uploads accepted
	SessionSubmitted SessionState = "submitted" // candidate finished, analysis may still run
	SessionComplete  SessionState = "complete"
)

type QuestionStatus string

const (
	QuestionUploaded   QuestionStatus = "uploaded"
	QuestionProcessing QuestionStatus = "processing"
	QuestionDone       QuestionStatus = "done"
	QuestionAIError    QuestionStatus = "ai_error"
)

// QuestionRecord is the persisted per-question status and analysis result.
// It is the single source of truth the polling client reconciles against.
type QuestionRecord struct {
	Filename        string         `json:"filename"`
	Status          QuestionStatus `json:"status"`
	SizeMB          float64        `json:"size_mb"`
	DurationSeconds int            `json:"duration_seconds"`
	UploadedAt      time.Time      `json:"uploaded_at"`

	Transcript   string `json:"transcript,omitempty"`
	MatchScore   int    `json:"match_score,omitempty"`
	Feedback     string `json:"feedback,omitempty"`
	Emotion      string `json:"emotion,omitempty"`
	EmotionScore int    `json:"emotion_score,omitempty"`
	PaceWPM      int    `json:"pace_wpm,omitempty"`
	PaceLabel    string `json:"pace_label,omitempty"`

	LastJobID string `json:"last_job_id,omitempty"`
	LastError string `json:"last_error,omitempty"`
}

// QuestionPatch is a partial merge-write against a QuestionRecord. Nil fields
// are left untouched so concurrent writers for different concerns (upload
// metadata vs. analysis results) never clobber each other.
type QuestionPatch struct {
	Filename        *string
	Status          *QuestionStatus
	SizeMB          *float64
	DurationSeconds *int
	UploadedAt      *time.Time
	Transcript      *string
	MatchScore      *int
	Feedback        *string
	Emotion         *string
	EmotionScore    *int
	PaceWPM         *int
	PaceLabel       *string
	LastJobID       *string
	LastError       *string
}

// Apply merges the patch into rec, field by field.
func (p *QuestionPatch) Apply(rec *QuestionRecord) {
	if p.Filename != nil {
		rec.Filename = *p.Filename
	}
	if p.Status != nil {
		rec.Status = *p.Status
	}
	if p.SizeMB != nil {
		rec.SizeMB = *p.SizeMB
	}
	if p.DurationSeconds != nil {
		rec.DurationSeconds = *p.DurationSeconds
	}
	if p.UploadedAt != nil {
		rec.UploadedAt = *p.UploadedAt
	}
	if p.Transcript != nil {
		rec.Transcript = *p.Transcript
	}
	if p.MatchScore != nil {
		rec.MatchScore = *p.MatchScore
	}
	if p.Feedback != nil {
		rec.Feedback = *p.Feedback
	}
	if p.Emotion != nil {
		rec.Emotion = *p.Emotion
	}
	if p.EmotionScore != nil {
		rec.EmotionScore = *p.EmotionScore
	}
	if p.PaceWPM != nil {
		rec.PaceWPM = *p.PaceWPM
	}
	if p.PaceLabel != nil {
		rec.PaceLabel = *p.PaceLabel
	}
	if p.LastJobID != nil {
		rec.LastJobID = *p.LastJobID
	}
	if p.LastError != nil {
		rec.LastError = *p.LastError
	}
}

// Session aggregates all question records plus overall session state.
type Session struct {
	Token         string                  `json:"token"`
	SessionID     string                  `json:"session_id"`
	CandidateName string                  `json:"candidate_name"`
	InterviewerID string                  `json:"interviewer_id"`
	State         SessionState            `json:"state"`
	Folder        string                  `json:"folder"`
	QuestionTexts []string                `json:"question_texts"`
	Questions     map[int]*QuestionRecord `json:"questions"`
	TotalSizeMB   float64                 `json:"total_size_mb"`
	AnsweredCount int                     `json:"answered_count"`
	CreatedAt     time.Time               `json:"created_at"`
	StartedAt     time.Time               `json:"started_at,omitempty"`
	FinishedAt    time.Time               `json:"finished_at,omitempty"`
}

func NewSession(token, candidateName, interviewerID string, now time.Time) *Session {
	return &Session{
		Token:         token,
		CandidateName: candidateName,
		InterviewerID: interviewerID,
		State:         SessionPending,
		Questions:     map[int]*QuestionRecord{},
		CreatedAt:     now,
	}
}

// QuestionText returns the interviewer-defined text for index, or "" when
// the index is out of range.
func (s *Session) QuestionText(index int) string {
	if index < 0 || index >= len(s.QuestionTexts) {
		return ""
	}
	return s.QuestionTexts[index]
}

// Question returns the record for index, creating an empty one if absent.
func (s *Session) Question(index int) *QuestionRecord {
	if s.Questions == nil {
		s.Questions = map[int]*QuestionRecord{}
	}
	rec, ok := s.Questions[index]
	if !ok {
		rec = &QuestionRecord{}
		s.Questions[index] = rec
	}
	return rec
}

// RecalcTotalSize recomputes the aggregate upload size across questions.
func (s *Session) RecalcTotalSize() {
	total := 0.0
	for _, q := range s.Questions {
		total += q.SizeMB
	}
	s.TotalSizeMB = total
}

// SanitizeFolderName turns a candidate name into the folder suffix:
// lowercase, spaces to underscores, non-alphanumerics dropped.
func SanitizeFolderName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.ReplaceAll(name, " ", "_")
	var b strings.Builder
	for _, r := range name {
		if r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) {
			if r > unicode.MaxASCII {
				// best-effort transliteration is out of scope; drop accents
				continue
			}
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "candidate"
	}
	return b.String()
}

// FolderName builds the per-session upload folder: DD_MM_YYYY_HH_MM_<name>.
func FolderName(candidateName string, now time.Time) string {
	return now.Format("02_01_2006_15_04") + "_" + SanitizeFolderName(candidateName)
}
