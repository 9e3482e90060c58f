// Package interview holds the side-effect free rules that drive a live
// interview: how stored template questions are read, when the call should
// wrap up, which kind of prompt comes next and which status moves are legal.
package interview

import (
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"
)

// DefaultQuestionType is assigned to questions stored without an explicit type.
const DefaultQuestionType = "text_response"

// Question is the normalized form of a stored template question.
type Question struct {
	Type     string          `json:"type,omitempty"`
	Text     string          `json:"text,omitempty"`
	Category string          `json:"category,omitempty"`
	Weight   *float64        `json:"weight,omitempty"`
	Raw      json.RawMessage `json:"raw,omitempty"` // set only for elements passed through unrecognized
}

// Askable reports whether the question carries text that can be spoken.
func (q Question) Askable() bool {
	return strings.TrimSpace(q.Text) != ""
}

// NormalizeQuestions reads the stored question list in any of its historical
// shapes: plain strings, {text} objects, {title} objects, or any of those
// wrapped in {"questions": [...]}. Null or unreadable input yields an empty
// slice.
func NormalizeQuestions(raw []byte) []Question {
	questions := []Question{}
	if len(raw) == 0 || !gjson.ValidBytes(raw) {
		return questions
	}

	list := gjson.ParseBytes(raw)
	if list.IsObject() {
		list = list.Get("questions")
	}
	if !list.IsArray() {
		return questions
	}

	list.ForEach(func(_, el gjson.Result) bool {
		questions = append(questions, normalizeQuestion(el))
		return true
	})
	return questions
}

func normalizeQuestion(el gjson.Result) Question {
	if el.Type == gjson.String {
		return Question{Type: DefaultQuestionType, Text: el.Str}
	}
	if !el.IsObject() {
		return Question{Raw: json.RawMessage(el.Raw)}
	}

	if title := el.Get("title"); present(title) {
		return Question{
			Type:     typeOrDefault(el.Get("type")),
			Text:     title.String(),
			Category: el.Get("category").String(),
			Weight:   number(el.Get("points")),
		}
	}
	if text := el.Get("text"); present(text) {
		return Question{
			Type:     typeOrDefault(el.Get("type")),
			Text:     text.String(),
			Category: el.Get("category").String(),
			Weight:   number(el.Get("weight")),
		}
	}
	return Question{Raw: json.RawMessage(el.Raw)}
}

// Texts returns the text of every askable question, in order.
func Texts(questions []Question) []string {
	out := make([]string, 0, len(questions))
	for _, q := range questions {
		if q.Askable() {
			out = append(out, q.Text)
		}
	}
	return out
}

// NextAskable returns the index of the first askable question at or after
// cursor, or -1 when the template is exhausted.
func NextAskable(questions []Question, cursor int) int {
	if cursor < 0 {
		cursor = 0
	}
	for i := cursor; i < len(questions); i++ {
		if questions[i].Askable() {
			return i
		}
	}
	return -1
}

func present(r gjson.Result) bool {
	return r.Exists() && r.Type != gjson.Null
}

func typeOrDefault(r gjson.Result) string {
	if t := strings.TrimSpace(r.String()); t != "" {
		return t
	}
	return DefaultQuestionType
}

func number(r gjson.Result) *float64 {
	switch r.Type {
	case gjson.Number:
		v := r.Num
		return &v
	case gjson.String:
		if !gjson.Valid(r.Str) {
			return nil
		}
		if n := gjson.Parse(r.Str); n.Type == gjson.Number {
			v := n.Num
			return &v
		}
	}
	return nil
}
