package provider

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/revuedev/revue/internal/models"
)

// rawComment mirrors the comment shape the backend is asked to produce.
// Severity and category are free-form here and normalized during conversion.
type rawComment struct {
	LineNumber   int    `json:"line_number"`
	Content      string `json:"content"`
	Severity     string `json:"severity"`
	Category     string `json:"category"`
	SuggestedFix string `json:"suggested_fix"`
}

// ParseResponse extracts the review JSON object embedded in raw backend text
// and converts it into a normalized models.Response. The top-level "summary"
// and "comments" fields are required; comments without content are dropped;
// severity and category fall back per the normalization rules.
func ParseResponse(raw string) (*models.Response, error) {
	text := extractJSONObject(raw)
	if text == "" {
		return nil, fmt.Errorf("%w: no JSON object in response", ErrBadResponse)
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &top); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}

	summaryRaw, ok := top["summary"]
	if !ok {
		return nil, fmt.Errorf("%w: missing required field %q", ErrBadResponse, "summary")
	}
	commentsRaw, ok := top["comments"]
	if !ok {
		return nil, fmt.Errorf("%w: missing required field %q", ErrBadResponse, "comments")
	}

	var summary string
	if err := json.Unmarshal(summaryRaw, &summary); err != nil {
		return nil, fmt.Errorf("%w: summary is not a string", ErrBadResponse)
	}

	var rawComments []rawComment
	if err := json.Unmarshal(commentsRaw, &rawComments); err != nil {
		return nil, fmt.Errorf("%w: comments is not an array", ErrBadResponse)
	}

	resp := &models.Response{
		Summary:   summary,
		Comments:  make([]models.Comment, 0, len(rawComments)),
		Timestamp: time.Now().UTC(),
	}

	for _, rc := range rawComments {
		if strings.TrimSpace(rc.Content) == "" {
			continue
		}
		resp.Comments = append(resp.Comments, models.Comment{
			LineNumber:   rc.LineNumber,
			Content:      rc.Content,
			Severity:     models.NormalizeSeverity(rc.Severity),
			Category:     models.NormalizeCategory(rc.Category),
			SuggestedFix: rc.SuggestedFix,
		})
	}

	if scoreRaw, ok := top["score"]; ok {
		var score float64
		if err := json.Unmarshal(scoreRaw, &score); err == nil {
			if score < 0 {
				score = 0
			}
			if score > 1 {
				score = 1
			}
			resp.Score = &score
		}
	}

	// Carry any extra top-level fields so nothing the backend said is lost.
	for key, val := range top {
		switch key {
		case "summary", "comments", "score":
			continue
		}
		var v any
		if err := json.Unmarshal(val, &v); err != nil {
			continue
		}
		if resp.Metadata == nil {
			resp.Metadata = make(map[string]any)
		}
		resp.Metadata[key] = v
	}

	return resp, nil
}

// extractJSONObject strips markdown fencing and returns the outermost
// {...} span, or "" when the text contains none.
func extractJSONObject(raw string) string {
	text := strings.TrimSpace(raw)

	if strings.HasPrefix(text, "```") {
		lines := strings.SplitN(text, "\n", 2)
		if len(lines) > 1 {
			text = lines[1]
		}
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return ""
	}
	return text[start : end+1]
}
