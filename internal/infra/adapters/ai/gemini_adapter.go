// File: internal/infra/adapters/ai/gemini_adapter.go
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"google.golang.org/genai"

	"interview-ai-recorder/internal/domain"
	"interview-ai-recorder/internal/domain/model"
	"interview-ai-recorder/internal/domain/ports/adapter"
)

var _ adapter.VideoAnalyzer = (*GeminiAdapter)(nil)

// analysisPrompt asks for everything in one call so a clip costs exactly one
// upstream request. The reply must be a single JSON object.
const analysisPrompt = `You are evaluating a recorded interview answer.
The interview question was:
%QUESTION%

Watch the video and reply with ONLY a JSON object, no prose, no markdown:
{
  "transcript": "<verbatim transcript of the spoken answer, empty string if nothing is said>",
  "match_score": <0-100, how well the answer addresses the question>,
  "feedback": "<2-3 sentence evaluation of the answer>",
  "emotion": "<one of: neutral, happy, stressed, confident, nervous, angry, calm, thoughtful, rushed, uncertain, silent>",
  "emotion_score": <0-100 confidence in the emotion label>
}`

type GeminiAdapter struct {
	client       *genai.Client
	defaultModel string
}

// NewGeminiAdapter creates a Gemini adapter using the official SDK.
func NewGeminiAdapter(ctx context.Context, apiKey, baseUrl, defaultModel string) (*GeminiAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: empty api key")
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: baseUrl,
		},
	})
	if err != nil {
		return nil, err
	}
	return &GeminiAdapter{client: c, defaultModel: defaultModel}, nil
}

// Analyze uploads the clip, waits for the file to become active, and issues
// one generate call with the unified prompt. It never retries internally;
// failures come back classified for the queue to decide.
func (g *GeminiAdapter) Analyze(ctx context.Context, req adapter.AnalysisRequest) (*model.AnalysisResult, error) {
	file, err := g.client.Files.UploadFromPath(ctx, req.VideoPath, &genai.UploadFileConfig{
		MIMEType: req.MIMEType,
	})
	if err != nil {
		return nil, classifyAPIError(err)
	}
	defer func() {
		// Uploaded files expire server-side anyway; deleting early keeps quota free.
		_, _ = g.client.Files.Delete(context.Background(), file.Name, nil)
	}()

	file, err = g.waitActive(ctx, file)
	if err != nil {
		return nil, err
	}

	prompt := strings.ReplaceAll(analysisPrompt, "%QUESTION%", req.QuestionText)
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromURI(file.URI, file.MIMEType),
			genai.NewPartFromText(prompt),
		}, genai.RoleUser),
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.defaultModel, contents, nil)
	if err != nil {
		return nil, classifyAPIError(err)
	}

	text := extractText(resp)
	result, err := parseAnalysisReply(text)
	if err != nil {
		return nil, domain.NewAnalysisError(domain.FailureMalformed, err)
	}
	return result, nil
}

// waitActive polls the Files API until the upload is processed. Video files
// need a short server-side processing pass before they can be referenced.
func (g *GeminiAdapter) waitActive(ctx context.Context, file *genai.File) (*genai.File, error) {
	for file.State == genai.FileStateProcessing {
		select {
		case <-ctx.Done():
			return nil, domain.NewAnalysisError(domain.FailureTimeout, ctx.Err())
		case <-time.After(2 * time.Second):
		}
		var err error
		file, err = g.client.Files.Get(ctx, file.Name, nil)
		if err != nil {
			return nil, classifyAPIError(err)
		}
	}
	if file.State != genai.FileStateActive {
		return nil, domain.NewAnalysisError(domain.FailureServer,
			errors.New("gemini: uploaded file did not become active"))
	}
	return file, nil
}

func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	return b.String()
}

// parseAnalysisReply strips markdown fences the model sometimes adds and
// decodes the JSON object.
func parseAnalysisReply(text string) (*model.AnalysisResult, error) {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	// Some replies wrap the object in extra prose; cut to the outermost braces.
	if start := strings.Index(cleaned, "{"); start >= 0 {
		if end := strings.LastIndex(cleaned, "}"); end > start {
			cleaned = cleaned[start : end+1]
		}
	}
	if cleaned == "" {
		return nil, errors.New("empty model reply")
	}

	var result model.AnalysisResult
	if err := json.Unmarshal([]byte(cleaned), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// classifyAPIError maps SDK errors onto the failure taxonomy via the HTTP
// status code when one is available.
func classifyAPIError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return domain.NewAnalysisError(domain.ClassifyHTTPStatus(apiErr.Code), err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.NewAnalysisError(domain.FailureTimeout, err)
	}
	return domain.NewAnalysisError(domain.FailureServer, err)
}
