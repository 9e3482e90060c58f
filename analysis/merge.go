package analysis

import (
	"encoding/json"
	"time"

	"github.com/krshsl/praxis-voice/models"
	"github.com/tidwall/gjson"
	"gorm.io/datatypes"
)

const (
	SourceWebhook   = "webhook"
	SourceGenerated = "generated"
)

// Merge folds incoming into existing field by field. A field is replaced only
// when incoming carries a non-empty value for it, so a late partial payload
// can never erase an earlier complete one. It reports whether anything
// changed.
func Merge(existing *models.AnalysisResult, incoming models.AnalysisResult, source string, at time.Time) bool {
	changed := false

	if incoming.OverallScore != nil && (existing.OverallScore == nil || *existing.OverallScore != *incoming.OverallScore) {
		v := *incoming.OverallScore
		existing.OverallScore = &v
		changed = true
	}
	if in := incoming.CategoryScores.Data(); len(in) > 0 && !sameScores(existing.CategoryScores.Data(), in) {
		existing.CategoryScores = incoming.CategoryScores
		changed = true
	}
	if len(incoming.Strengths) > 0 && !sameStrings(existing.Strengths, incoming.Strengths) {
		existing.Strengths = incoming.Strengths
		changed = true
	}
	if len(incoming.AreasForImprovement) > 0 && !sameStrings(existing.AreasForImprovement, incoming.AreasForImprovement) {
		existing.AreasForImprovement = incoming.AreasForImprovement
		changed = true
	}
	if len(incoming.KeyInsights) > 0 && !sameStrings(existing.KeyInsights, incoming.KeyInsights) {
		existing.KeyInsights = incoming.KeyInsights
		changed = true
	}
	if incoming.HiringRecommendation != "" && existing.HiringRecommendation != incoming.HiringRecommendation {
		existing.HiringRecommendation = incoming.HiringRecommendation
		changed = true
	}
	if len(incoming.QuestionScores) > 0 && !sameQuestionScores(existing.QuestionScores, incoming.QuestionScores) {
		existing.QuestionScores = incoming.QuestionScores
		changed = true
	}
	if incoming.Summary != "" && existing.Summary != incoming.Summary {
		existing.Summary = incoming.Summary
		changed = true
	}
	if merged, ok := mergeRaw(existing.SuccessEvaluation, incoming.SuccessEvaluation); ok {
		existing.SuccessEvaluation = merged
		changed = true
	}
	if merged, ok := mergeRaw(existing.StructuredData, incoming.StructuredData); ok {
		existing.StructuredData = merged
		changed = true
	}

	if changed {
		existing.Source = source
		existing.AnalyzedAt = &at
	}
	return changed
}

// mergeRaw applies the same rule to the verbatim provider objects: keys the
// incoming object leaves empty keep their existing value.
func mergeRaw(existing, incoming datatypes.JSON) (datatypes.JSON, bool) {
	if !models.HasJSON(incoming) || string(existing) == string(incoming) {
		return nil, false
	}
	if !models.HasJSON(existing) {
		return incoming, true
	}

	old, cur := gjson.ParseBytes(existing), gjson.ParseBytes(incoming)
	if !old.IsObject() || !cur.IsObject() {
		return incoming, true
	}

	fields := make(map[string]json.RawMessage)
	old.ForEach(func(k, v gjson.Result) bool {
		fields[k.String()] = json.RawMessage(v.Raw)
		return true
	})
	cur.ForEach(func(k, v gjson.Result) bool {
		if raw := rawValue(v); raw != nil {
			fields[k.String()] = raw
		}
		return true
	})

	out, err := json.Marshal(fields)
	if err != nil || string(out) == string(existing) {
		return nil, false
	}
	return datatypes.JSON(out), true
}

func sameStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func sameScores(a, b map[string]float64) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if w, ok := b[k]; !ok || w != v {
			return false
		}
	}
	return true
}

func sameQuestionScores(a, b []models.QuestionScore) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		x, y := a[i], b[i]
		if x.Question != y.Question || x.Feedback != y.Feedback || !sameStrings(x.KeyPoints, y.KeyPoints) {
			return false
		}
		if (x.ResponseQuality == nil) != (y.ResponseQuality == nil) {
			return false
		}
		if x.ResponseQuality != nil && *x.ResponseQuality != *y.ResponseQuality {
			return false
		}
	}
	return true
}
