package models

import "time"

// Comment is a single remark in a review. LineNumber 0 means the comment
// applies to the whole file.
type Comment struct {
	LineNumber   int      `json:"line_number,omitempty"`
	Content      string   `json:"content"`
	Severity     Severity `json:"severity"`
	Category     Category `json:"category"`
	SuggestedFix string   `json:"suggested_fix,omitempty"`
}

// Response is the structured outcome of one review.
type Response struct {
	Summary   string         `json:"summary"`
	Comments  []Comment      `json:"comments"`
	Score     *float64       `json:"score,omitempty"` // 0.0 (worst) to 1.0 (best)
	Metadata  map[string]any `json:"metadata,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// CommentsBySeverity returns the comments matching sev.
func (r *Response) CommentsBySeverity(sev Severity) []Comment {
	var out []Comment
	for _, c := range r.Comments {
		if c.Severity == sev {
			out = append(out, c)
		}
	}
	return out
}

// CommentsByCategory returns the comments matching cat.
func (r *Response) CommentsByCategory(cat Category) []Comment {
	var out []Comment
	for _, c := range r.Comments {
		if c.Category == cat {
			out = append(out, c)
		}
	}
	return out
}

// Critical returns the error-severity comments.
func (r *Response) Critical() []Comment {
	return r.CommentsBySeverity(SeverityError)
}

// HasCriticalIssues reports whether any comment is error severity.
func (r *Response) HasCriticalIssues() bool {
	for _, c := range r.Comments {
		if c.Severity == SeverityError {
			return true
		}
	}
	return false
}

// SeverityCounts tallies comments per severity.
func (r *Response) SeverityCounts() map[Severity]int {
	counts := make(map[Severity]int, 4)
	for _, c := range r.Comments {
		counts[c.Severity]++
	}
	return counts
}
