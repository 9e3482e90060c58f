// Package analysis turns the voice provider's end-of-call payloads into the
// stable AnalysisResult stored on a session.
//
// All tolerance for payload shape drift lives in the ordered shape list
// below. Normalization and merging only ever see an Extracted value.
package analysis

import (
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"
)

// Extracted is the provider analysis block as found in a payload.
type Extracted struct {
	Shape             string
	Summary           string
	SuccessEvaluation json.RawMessage
	StructuredData    json.RawMessage
}

type shape struct {
	name string
	path string // empty means the payload root
}

// Shapes are tried in order; the first one carrying analysis wins.
var shapes = []shape{
	{name: "message.analysis", path: "message.analysis"},
	{name: "message.call.analysis", path: "message.call.analysis"},
	{name: "call.analysis", path: "call.analysis"},
	{name: "analysis", path: "analysis"},
	{name: "message", path: "message"},
	{name: "flattened", path: ""},
}

// Extract finds the analysis block in raw. It returns nil when the payload
// carries no analysis, including when raw is not JSON at all.
func Extract(raw []byte) *Extracted {
	if len(raw) == 0 || !gjson.ValidBytes(raw) {
		return nil
	}
	root := gjson.ParseBytes(raw)
	if !root.IsObject() {
		return nil
	}

	for _, s := range shapes {
		block := root
		if s.path != "" {
			block = root.Get(s.path)
		}
		if ex := fromBlock(s.name, block); ex != nil {
			return ex
		}
	}
	return nil
}

func fromBlock(name string, block gjson.Result) *Extracted {
	if !block.IsObject() {
		return nil
	}

	ex := &Extracted{
		Shape:             name,
		Summary:           strings.TrimSpace(firstOf(block, "summary").String()),
		SuccessEvaluation: rawValue(firstOf(block, "successEvaluation", "success_evaluation")),
		StructuredData:    rawValue(firstOf(block, "structuredData", "structured_data")),
	}
	if ex.Summary == "" && ex.SuccessEvaluation == nil && ex.StructuredData == nil {
		return nil
	}
	return ex
}

// Transcript paths, most specific first.
var transcriptPaths = []string{
	"message.artifact.transcript",
	"message.transcript",
	"message.call.artifact.transcript",
	"call.artifact.transcript",
	"call.transcript",
	"artifact.transcript",
	"transcript",
}

// Transcript returns the call transcript carried by raw, or "" when absent.
// Message lists are rendered one "role: text" line per message.
func Transcript(raw []byte) string {
	if len(raw) == 0 || !gjson.ValidBytes(raw) {
		return ""
	}
	root := gjson.ParseBytes(raw)
	for _, path := range transcriptPaths {
		if t := renderTranscript(root.Get(path)); t != "" {
			return t
		}
	}
	return ""
}

func renderTranscript(v gjson.Result) string {
	switch {
	case v.Type == gjson.String:
		return strings.TrimSpace(v.Str)
	case v.IsArray():
		var lines []string
		v.ForEach(func(_, m gjson.Result) bool {
			text := strings.TrimSpace(firstOf(m, "message", "content", "text").String())
			if text == "" {
				return true
			}
			if role := m.Get("role").String(); role != "" {
				text = role + ": " + text
			}
			lines = append(lines, text)
			return true
		})
		return strings.Join(lines, "\n")
	}
	return ""
}

func firstOf(obj gjson.Result, keys ...string) gjson.Result {
	for _, k := range keys {
		if v := obj.Get(k); v.Exists() && v.Type != gjson.Null {
			return v
		}
	}
	return gjson.Result{}
}

// rawValue keeps the provider value verbatim, dropping only values that
// carry nothing: absent, null, empty strings, objects and arrays.
func rawValue(v gjson.Result) json.RawMessage {
	if !v.Exists() || v.Type == gjson.Null {
		return nil
	}
	switch {
	case v.Type == gjson.String && strings.TrimSpace(v.Str) == "":
		return nil
	case v.IsObject() && len(v.Map()) == 0:
		return nil
	case v.IsArray() && len(v.Array()) == 0:
		return nil
	}
	return json.RawMessage(v.Raw)
}
