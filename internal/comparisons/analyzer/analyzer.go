// Package analyzer wraps the vision model call that compares before/after
// photos of a single room. The model is asked for structured JSON; replies
// that do not decode are mapped to a safe empty result instead of an error,
// so one bad model reply never aborts a whole comparison run.
package analyzer

import (
	"context"
	"fmt"

	"inspection_backend/platform/logger"

	"google.golang.org/genai"
)

// Strictness selects the sensitivity profile applied by the vision prompt.
type Strictness string

const (
	StrictnessStandard   Strictness = "standard"
	StrictnessStrict     Strictness = "strict"
	StrictnessVeryStrict Strictness = "very_strict"
)

// ParseStrictness validates a raw strictness value. The boolean reports
// whether the value names a known level.
func ParseStrictness(raw string) (Strictness, bool) {
	switch Strictness(raw) {
	case StrictnessStandard, StrictnessStrict, StrictnessVeryStrict:
		return Strictness(raw), true
	}
	return "", false
}

// ImageData carries raw photo bytes plus their MIME type for the model call.
type ImageData struct {
	MIMEType string
	Data     []byte
}

// RoomAnalysisRequest is one before/after pair to analyze.
type RoomAnalysisRequest struct {
	RoomName   string
	Strictness Strictness
	Before     ImageData
	After      ImageData
}

// Difference is a single detected change between the two photos.
type Difference struct {
	Description   string  `json:"description"`
	IsNewDamage   bool    `json:"isNewDamage"`
	IsNaturalWear bool    `json:"isNaturalWear"`
	Severity      string  `json:"severity"`
	EstimatedCost float64 `json:"estimatedCost"`
	Location      string  `json:"location"`
}

// Result is the decoded model verdict for one room.
type Result struct {
	HasDifference      bool
	Differences        []Difference
	OverallAssessment  string
	TotalEstimatedCost float64

	// Unparseable is set when the model replied but the reply failed to
	// decode against the expected schema. Differences is empty in that case.
	Unparseable bool
}

// RoomAnalyzer analyzes one room pair. Implementations must not return an
// error for model or parsing failures; those degrade to an empty Result.
type RoomAnalyzer interface {
	AnalyzeRoom(ctx context.Context, req RoomAnalysisRequest) Result
}

// Config is the configuration surface the Gemini analyzer needs.
type Config interface {
	GetVisionAPIKey() string
	GetVisionModel() string
	IsVisionEnabled() bool
}

// GeminiAnalyzer implements RoomAnalyzer against the Gemini API.
type GeminiAnalyzer struct {
	client *genai.Client
	model  string
	log    *logger.Logger
}

// NewGeminiAnalyzer builds the analyzer from config. Fails when vision is
// not configured; the worker cannot run without it.
func NewGeminiAnalyzer(ctx context.Context, cfg Config, log *logger.Logger) (*GeminiAnalyzer, error) {
	if !cfg.IsVisionEnabled() {
		return nil, fmt.Errorf("vision analysis is not configured (missing VISION_API_KEY)")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GetVisionAPIKey(),
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &GeminiAnalyzer{
		client: client,
		model:  cfg.GetVisionModel(),
		log:    log,
	}, nil
}

// AnalyzeRoom sends both photos plus the strictness prompt to the model and
// decodes the structured reply. Transport errors and undecodable replies
// both yield an empty Result.
func (a *GeminiAnalyzer) AnalyzeRoom(ctx context.Context, req RoomAnalysisRequest) Result {
	contents := []*genai.Content{buildRoomContent(req)}
	genConfig := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	}

	resp, err := a.client.Models.GenerateContent(ctx, a.model, contents, genConfig)
	if err != nil {
		a.log.Error("vision model call failed", "room", req.RoomName, "error", err)
		return Result{}
	}

	result := DecodeModelReply(resp.Text())
	if result.Unparseable {
		a.log.Warn("vision model reply did not match the expected schema", "room", req.RoomName)
	}
	return result
}

func buildRoomContent(req RoomAnalysisRequest) *genai.Content {
	parts := []*genai.Part{
		{InlineData: &genai.Blob{MIMEType: req.Before.MIMEType, Data: req.Before.Data}},
		{InlineData: &genai.Blob{MIMEType: req.After.MIMEType, Data: req.After.Data}},
		genai.NewPartFromText(buildRoomPrompt(req.RoomName, req.Strictness)),
	}
	return &genai.Content{
		Role:  "user",
		Parts: parts,
	}
}
