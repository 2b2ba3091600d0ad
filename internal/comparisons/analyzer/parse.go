package analyzer

import (
	"encoding/json"
	"strings"
)

const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
	SeverityUrgent = "urgent"
)

type modelReply struct {
	HasDifference      bool         `json:"hasDifference"`
	Differences        []Difference `json:"differences"`
	OverallAssessment  string       `json:"overallAssessment"`
	TotalEstimatedCost float64      `json:"totalEstimatedCost"`
}

// DecodeModelReply parses the raw model text into a Result. Markdown code
// fences around the JSON are tolerated; anything else that fails to decode
// yields an empty Result with Unparseable set.
func DecodeModelReply(raw string) Result {
	cleaned := stripCodeFence(strings.TrimSpace(raw))
	if cleaned == "" {
		return Result{Unparseable: true}
	}

	var reply modelReply
	if err := json.Unmarshal([]byte(cleaned), &reply); err != nil {
		return Result{Unparseable: true}
	}

	differences := make([]Difference, 0, len(reply.Differences))
	for _, d := range reply.Differences {
		d.Severity = normalizeSeverity(d.Severity)
		if d.EstimatedCost < 0 {
			d.EstimatedCost = 0
		}
		differences = append(differences, d)
	}

	return Result{
		HasDifference:      reply.HasDifference || len(differences) > 0,
		Differences:        differences,
		OverallAssessment:  reply.OverallAssessment,
		TotalEstimatedCost: reply.TotalEstimatedCost,
	}
}

// normalizeSeverity coerces unknown severity values to medium so downstream
// aggregation never sees out-of-vocabulary labels.
func normalizeSeverity(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case SeverityLow:
		return SeverityLow
	case SeverityMedium:
		return SeverityMedium
	case SeverityHigh:
		return SeverityHigh
	case SeverityUrgent:
		return SeverityUrgent
	default:
		return SeverityMedium
	}
}

func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
