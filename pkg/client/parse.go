package client

import (
	"encoding/json"
	"regexp"
	"slices"
	"strings"

	"github.com/menta2k/smodf-client/pkg/types"
)

// FallbackTag marks results synthesized because the model reply was unusable
const FallbackTag = "fallback"

var (
	reBlockComment  = regexp.MustCompile(`(?s)/\*.*?\*/`)
	reLineComment   = regexp.MustCompile(`(?m)^\s*//.*$`)
	reInlineComment = regexp.MustCompile(`(?m)//.*$`)
	reTrailingComma = regexp.MustCompile(`,(\s*[}\]])`)
)

// ParseAnalysisResult parses the JSON reply of a vision model. Replies that
// cannot be parsed yield an empty result tagged with FallbackTag.
func ParseAnalysisResult(raw string) *types.AnalysisResult {
	raw = SanitizeModelJSON(raw)

	if !strings.HasPrefix(raw, "{") {
		return fallbackResult("Model returned non-JSON response", "non-json")
	}

	var result types.AnalysisResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return fallbackResult("Failed to parse model response", "parse-error")
	}
	if result.Objects == nil {
		result.Objects = []types.VisionObject{}
	}
	return &result
}

// IsFallback reports whether r was synthesized by ParseAnalysisResult
func IsFallback(r *types.AnalysisResult) bool {
	return r != nil && slices.Contains(r.Tags, FallbackTag)
}

func fallbackResult(description, reason string) *types.AnalysisResult {
	return &types.AnalysisResult{
		Objects:     []types.VisionObject{},
		Description: description,
		Tags:        []string{reason, FallbackTag},
	}
}

// SanitizeModelJSON removes code fences, comments, and trailing commas from JSON response
func SanitizeModelJSON(raw string) string {
	raw = strings.TrimSpace(raw)

	// Strip triple-backtick fences if present
	if strings.HasPrefix(raw, "```") {
		if i := strings.Index(raw, "\n"); i >= 0 {
			raw = raw[i+1:]
		}
		if j := strings.LastIndex(raw, "```"); j >= 0 {
			raw = raw[:j]
		}
	}
	raw = strings.TrimSpace(raw)
	raw = strings.Trim(raw, "`")

	raw = reBlockComment.ReplaceAllString(raw, "")
	raw = reLineComment.ReplaceAllString(raw, "")
	raw = reInlineComment.ReplaceAllString(raw, "")
	raw = reTrailingComma.ReplaceAllString(raw, "$1")

	// Keep only the outermost {...}
	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			raw = raw[start : end+1]
		}
	}
	return strings.TrimSpace(raw)
}
