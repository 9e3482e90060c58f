package analysis

import (
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"
)

// ParseGenerated reads a model-written analysis. The model is asked for the
// same object the provider fills as structuredData, so the result flows
// through Normalize like any webhook payload. Text that is not a JSON object
// yields nil.
func ParseGenerated(text string) *Extracted {
	s := stripFence(text)
	if !gjson.Valid(s) {
		return nil
	}
	obj := gjson.Parse(s)
	if !obj.IsObject() {
		return nil
	}

	ex := &Extracted{
		Shape:          SourceGenerated,
		Summary:        strings.TrimSpace(obj.Get("summary").String()),
		StructuredData: json.RawMessage(obj.Raw),
	}
	return ex
}

func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	nl := strings.IndexByte(s, '\n')
	if nl == -1 {
		return strings.TrimSpace(strings.Trim(s, "`"))
	}
	s = s[nl+1:]
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

// SuccessEvaluationRubric is the rubric requested for the provider's success
// evaluation. It scores on the same 0-100 scale as OverallScore, so a bare
// evaluation can stand in for a missing structured score.
const SuccessEvaluationRubric = "PercentageScale"

// StructuredDataSchema is the JSON schema requested from the provider's
// analysis plan and from on-demand generation.
func StructuredDataSchema() map[string]any {
	str := map[string]any{"type": "string"}
	list := map[string]any{"type": "array", "items": str}
	num := map[string]any{"type": "number", "minimum": 0, "maximum": 100}

	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"summary":      str,
			"overallScore": num,
			"categoryScores": map[string]any{
				"type":                 "object",
				"additionalProperties": num,
			},
			"strengths":           list,
			"areasForImprovement": list,
			"hiringRecommendation": map[string]any{
				"type": "string",
				"enum": []string{"Strong Yes", "Yes", "Maybe", "No"},
			},
			"keyInsights": list,
			"questionScores": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"question":        str,
						"responseQuality": num,
						"feedback":        str,
						"keyPoints":       list,
					},
				},
			},
		},
		"required": []string{"overallScore", "strengths", "areasForImprovement", "hiringRecommendation"},
	}
}
