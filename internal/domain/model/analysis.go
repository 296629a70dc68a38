package model

import "strings"

// AnalysisResult is what one external inference call produces for a clip.
type AnalysisResult struct {
	Transcript   string `json:"transcript"`
	MatchScore   int    `json:"match_score"`
	Feedback     string `json:"feedback"`
	Emotion      string `json:"emotion"`
	EmotionScore int    `json:"emotion_score"`
	PaceWPM      int    `json:"pace_wpm"`
	PaceLabel    string `json:"pace_label"`
}

// Closed emotion label set. "silent" covers clips with no audible speech.
var emotionLabels = map[string]struct{}{
	"neutral": {}, "happy": {}, "stressed": {}, "confident": {},
	"nervous": {}, "angry": {}, "calm": {}, "thoughtful": {},
	"rushed": {}, "uncertain": {}, "silent": {},
}

// NormalizeEmotion lowercases the label and falls back to neutral for
// anything outside the closed set.
func NormalizeEmotion(label string) string {
	label = strings.ToLower(strings.TrimSpace(label))
	if _, ok := emotionLabels[label]; ok {
		return label
	}
	return "neutral"
}

// ClampScore bounds a model-reported score to 0-100.
func ClampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// PaceLabel buckets words-per-minute: slow <90, normal 90-150, fast >150.
func PaceLabel(wpm int) string {
	switch {
	case wpm < 90:
		return "slow"
	case wpm <= 150:
		return "normal"
	default:
		return "fast"
	}
}

// PaceWPM computes speaking pace from the transcript word count and clip
// duration. When the duration is unknown it estimates one from the word
// count at 140 WPM so the result stays plausible rather than zero.
func PaceWPM(transcript string, durationSeconds int) int {
	words := len(strings.Fields(transcript))
	if words == 0 {
		return 0
	}
	secs := durationSeconds
	if secs <= 0 {
		secs = int(float64(words) / 140.0 * 60.0)
		if secs < 1 {
			secs = 1
		}
	}
	return int(float64(words) / float64(secs) * 60.0)
}
