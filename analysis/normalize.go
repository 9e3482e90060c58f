package analysis

import (
	"math"
	"strconv"
	"strings"

	"github.com/krshsl/praxis-voice/models"
	"github.com/tidwall/gjson"
	"gorm.io/datatypes"
)

// Normalize maps provider field names onto AnalysisResult. Provider values
// are kept verbatim in the raw columns alongside the mapped fields.
//
// structuredData.overallScore takes precedence over successEvaluation.score;
// the latter only fills in when the former is absent or unreadable.
func Normalize(ex *Extracted) models.AnalysisResult {
	var out models.AnalysisResult
	if ex == nil {
		return out
	}

	out.Summary = ex.Summary
	if ex.SuccessEvaluation != nil {
		out.SuccessEvaluation = datatypes.JSON(ex.SuccessEvaluation)
	}
	if ex.StructuredData != nil {
		out.StructuredData = datatypes.JSON(ex.StructuredData)
	}

	sd := unwrap(gjson.ParseBytes(ex.StructuredData))
	se := unwrap(gjson.ParseBytes(ex.SuccessEvaluation))

	out.OverallScore = score(firstOf(sd, "overallScore", "overall_score", "score"))
	if out.OverallScore == nil {
		out.OverallScore = evaluationScore(se)
	}

	if cs := categoryScores(firstOf(sd, "categoryScores", "category_scores")); len(cs) > 0 {
		out.CategoryScores = datatypes.NewJSONType(cs)
	}
	out.Strengths = stringList(firstOf(sd, "strengths"))
	out.AreasForImprovement = stringList(firstOf(sd, "areasForImprovement", "areas_for_improvement", "improvements", "weaknesses"))
	out.KeyInsights = stringList(firstOf(sd, "keyInsights", "key_insights", "insights"))
	out.HiringRecommendation = strings.TrimSpace(firstOf(sd, "hiringRecommendation", "hiring_recommendation", "recommendation").String())
	out.QuestionScores = questionScores(firstOf(sd, "questionScores", "question_scores", "questions"))

	return out
}

// unwrap parses values providers sometimes double-encode as a JSON string.
func unwrap(v gjson.Result) gjson.Result {
	if v.Type != gjson.String {
		return v
	}
	s := strings.TrimSpace(v.Str)
	if (strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[")) && gjson.Valid(s) {
		return gjson.Parse(s)
	}
	return v
}

func evaluationScore(se gjson.Result) *float64 {
	if se.IsObject() {
		return score(firstOf(se, "score", "overallScore", "overall_score"))
	}
	return score(se)
}

// score reads a 0-100 value from a number or numeric string, clamping
// anything out of range.
func score(v gjson.Result) *float64 {
	var f float64
	switch v.Type {
	case gjson.Number:
		f = v.Num
	case gjson.String:
		s := strings.TrimSuffix(strings.TrimSpace(v.Str), "%")
		parsed, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	f = math.Max(0, math.Min(100, f))
	return &f
}

func categoryScores(v gjson.Result) map[string]float64 {
	v = unwrap(v)
	if !v.IsObject() {
		return nil
	}
	out := make(map[string]float64)
	v.ForEach(func(k, val gjson.Result) bool {
		name := strings.TrimSpace(k.String())
		if name == "" {
			return true
		}
		if s := score(val); s != nil {
			out[name] = *s
		} else if val.IsObject() {
			if s := score(firstOf(val, "score", "value")); s != nil {
				out[name] = *s
			}
		}
		return true
	})
	return out
}

// stringList accepts an array of strings or a single string. Blank items
// are dropped.
func stringList(v gjson.Result) datatypes.JSONSlice[string] {
	v = unwrap(v)
	var out []string
	switch {
	case v.IsArray():
		v.ForEach(func(_, item gjson.Result) bool {
			if s := strings.TrimSpace(item.String()); s != "" && !item.IsObject() && !item.IsArray() {
				out = append(out, s)
			}
			return true
		})
	case v.Type == gjson.String:
		if s := strings.TrimSpace(v.Str); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return datatypes.JSONSlice[string](out)
}

func questionScores(v gjson.Result) datatypes.JSONSlice[models.QuestionScore] {
	v = unwrap(v)
	if !v.IsArray() {
		return nil
	}
	var out []models.QuestionScore
	v.ForEach(func(_, item gjson.Result) bool {
		if !item.IsObject() {
			return true
		}
		qs := models.QuestionScore{
			Question:        strings.TrimSpace(firstOf(item, "question", "text", "title").String()),
			ResponseQuality: score(firstOf(item, "responseQuality", "response_quality", "score")),
			Feedback:        strings.TrimSpace(firstOf(item, "feedback").String()),
			KeyPoints:       stringList(firstOf(item, "keyPoints", "key_points")),
		}
		if qs.Question == "" && qs.ResponseQuality == nil && qs.Feedback == "" && len(qs.KeyPoints) == 0 {
			return true
		}
		out = append(out, qs)
		return true
	})
	if len(out) == 0 {
		return nil
	}
	return datatypes.JSONSlice[models.QuestionScore](out)
}
