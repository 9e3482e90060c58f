package analysis

import (
	"testing"
	"time"

	"github.com/krshsl/praxis-voice/models"
	"github.com/tidwall/gjson"
	"gorm.io/datatypes"
)

func TestMergeKeepsExistingWhenIncomingIsEmpty(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	existing := models.AnalysisResult{
		OverallScore:         floatPtr(80),
		Strengths:            datatypes.JSONSlice[string]{"A"},
		HiringRecommendation: "Yes",
		Summary:              "First report",
		StructuredData:       datatypes.JSON(`{"overallScore":80}`),
	}

	// a late status ping carries nothing
	if Merge(&existing, models.AnalysisResult{}, SourceWebhook, at) {
		t.Error("empty incoming should not change anything")
	}
	if existing.AnalyzedAt != nil {
		t.Error("AnalyzedAt set without a change")
	}

	partial := Normalize(Extract([]byte(`{"analysis":{"summary":"","structuredData":{"strengths":[],"hiringRecommendation":""}, "successEvaluation":"null"}}`)))
	Merge(&existing, partial, SourceWebhook, at)

	if len(existing.Strengths) != 1 || existing.Strengths[0] != "A" {
		t.Errorf("Strengths = %v, expected [A]", existing.Strengths)
	}
	if existing.OverallScore == nil || *existing.OverallScore != 80 {
		t.Errorf("OverallScore = %v, expected 80", existing.OverallScore)
	}
	if existing.HiringRecommendation != "Yes" || existing.Summary != "First report" {
		t.Errorf("scalar fields overwritten: %+v", existing)
	}
	if got := gjson.GetBytes(existing.StructuredData, "overallScore").Num; got != 80 {
		t.Errorf("raw structured data lost overallScore: %s", existing.StructuredData)
	}
}

func TestMergeReplacesWithNonEmpty(t *testing.T) {
	at := time.Now()
	existing := models.AnalysisResult{Strengths: datatypes.JSONSlice[string]{"A"}}

	incoming := Normalize(Extract([]byte(`{"analysis":{"structuredData":{"strengths":["A","B"],"overallScore":75}}}`)))
	if !Merge(&existing, incoming, SourceWebhook, at) {
		t.Fatal("expected a change")
	}
	if len(existing.Strengths) != 2 || existing.Strengths[1] != "B" {
		t.Errorf("Strengths = %v, expected [A B]", existing.Strengths)
	}
	if existing.OverallScore == nil || *existing.OverallScore != 75 {
		t.Errorf("OverallScore = %v, expected 75", existing.OverallScore)
	}
	if existing.Source != SourceWebhook || existing.AnalyzedAt == nil || !existing.AnalyzedAt.Equal(at) {
		t.Errorf("Source/AnalyzedAt = %q/%v", existing.Source, existing.AnalyzedAt)
	}

	// same payload again is a no-op
	if Merge(&existing, incoming, SourceWebhook, at.Add(time.Minute)) {
		t.Error("re-ingesting the same analysis should not report a change")
	}
	if !existing.AnalyzedAt.Equal(at) {
		t.Error("AnalyzedAt moved on a no-op merge")
	}
}

func TestMergeCategoryAndQuestionScores(t *testing.T) {
	existing := models.AnalysisResult{
		CategoryScores: datatypes.NewJSONType(map[string]float64{"technical": 60}),
	}
	incoming := Normalize(Extract([]byte(`{"analysis":{"structuredData":{
		"categoryScores":{"technical":65,"communication":80},
		"questionScores":[{"question":"Q1","responseQuality":7}]
	}}}`)))

	if !Merge(&existing, incoming, SourceGenerated, time.Now()) {
		t.Fatal("expected a change")
	}
	cs := existing.CategoryScores.Data()
	if cs["technical"] != 65 || cs["communication"] != 80 {
		t.Errorf("CategoryScores = %v", cs)
	}
	if len(existing.QuestionScores) != 1 || existing.QuestionScores[0].Question != "Q1" {
		t.Errorf("QuestionScores = %+v", existing.QuestionScores)
	}
	if existing.Source != SourceGenerated {
		t.Errorf("Source = %q", existing.Source)
	}

	empty := Normalize(Extract([]byte(`{"analysis":{"structuredData":{"categoryScores":{},"questionScores":[]},"summary":"only summary"}}`)))
	Merge(&existing, empty, SourceWebhook, time.Now())
	if len(existing.CategoryScores.Data()) != 2 || len(existing.QuestionScores) != 1 {
		t.Errorf("empty collections overwrote existing data: %+v", existing)
	}
	if existing.Summary != "only summary" {
		t.Errorf("Summary = %q", existing.Summary)
	}
}
