package provider

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/revuedev/revue/internal/models"
)

// NameStatic is the registry name of the offline heuristic provider.
const NameStatic = "static"

const (
	staticMaxLineLength = 120
	staticMaxFileLines  = 600
)

// lineCheck is one pattern-based rule applied per line.
type lineCheck struct {
	pattern  *regexp.Regexp
	severity models.Severity
	category models.Category
	message  string
}

var staticChecks = []lineCheck{
	{
		pattern:  regexp.MustCompile(`(?i)(password|passwd|secret|api_?key|access_?token|private_?key)\s*[:=]\s*["'][^"']{4,}["']`),
		severity: models.SeverityError,
		category: models.CategorySecurity,
		message:  "possible hardcoded credential; load secrets from the environment or a secret store",
	},
	{
		pattern:  regexp.MustCompile(`(?i)\b(md5|sha1)\s*\(`),
		severity: models.SeverityWarning,
		category: models.CategorySecurity,
		message:  "weak hash primitive; use SHA-256 or stronger for anything security-relevant",
	},
	{
		pattern:  regexp.MustCompile(`(?i)\beval\s*\(`),
		severity: models.SeverityWarning,
		category: models.CategorySecurity,
		message:  "dynamic code evaluation; avoid eval on anything derived from input",
	},
	{
		pattern:  regexp.MustCompile(`\b(TODO|FIXME|XXX)\b`),
		severity: models.SeveritySuggestion,
		category: models.CategoryDocumentation,
		message:  "unresolved marker; file an issue or resolve it",
	},
	{
		pattern:  regexp.MustCompile(`(?i)(SELECT|INSERT|UPDATE|DELETE)\b.*["']\s*\+`),
		severity: models.SeverityWarning,
		category: models.CategorySecurity,
		message:  "SQL assembled by string concatenation; use parameterized queries",
	},
}

// Static is an offline provider that scans code line by line with heuristic
// checks. It needs no key and no network, which also makes it the provider
// of choice in tests and air-gapped runs.
type Static struct{}

// NewStatic creates the provider. Config is accepted for constructor
// symmetry; nothing in it applies.
func NewStatic(_ Config) *Static { return &Static{} }

// GenerateReview scans the content and synthesizes a response.
func (s *Static) GenerateReview(ctx context.Context, req *models.Request) (*models.Response, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackend, err)
	}

	settings := req.Settings
	if settings == nil {
		settings = models.DefaultSettings()
	}

	lines := strings.Split(req.Context.Content, "\n")
	var comments []models.Comment

	for i, line := range lines {
		lineNo := i + 1
		for _, check := range staticChecks {
			if check.pattern.MatchString(line) {
				comments = append(comments, models.Comment{
					LineNumber: lineNo,
					Content:    check.message,
					Severity:   check.severity,
					Category:   check.category,
				})
			}
		}
		if len(line) > staticMaxLineLength {
			comments = append(comments, models.Comment{
				LineNumber: lineNo,
				Content:    fmt.Sprintf("line is %d characters; wrap at %d", len(line), staticMaxLineLength),
				Severity:   models.SeveritySuggestion,
				Category:   models.CategoryStyle,
			})
		}
		if trimmed := strings.TrimRight(line, " \t"); trimmed != line {
			comments = append(comments, models.Comment{
				LineNumber: lineNo,
				Content:    "trailing whitespace",
				Severity:   models.SeveritySuggestion,
				Category:   models.CategoryStyle,
			})
		}
		indent := line[:len(line)-len(strings.TrimLeft(line, " \t"))]
		if strings.Contains(indent, " ") && strings.Contains(indent, "\t") {
			comments = append(comments, models.Comment{
				LineNumber: lineNo,
				Content:    "indentation mixes tabs and spaces",
				Severity:   models.SeveritySuggestion,
				Category:   models.CategoryStyle,
			})
		}
	}

	if len(lines) > staticMaxFileLines {
		comments = append(comments, models.Comment{
			Content:  fmt.Sprintf("file is %d lines; consider splitting it", len(lines)),
			Severity: models.SeverityWarning,
			Category: models.CategoryBestPractices,
		})
	}

	comments = filterComments(comments, settings)

	score := staticScore(comments)
	return &models.Response{
		Summary:   staticSummary(req.Context.FilePath, comments),
		Comments:  comments,
		Score:     &score,
		Metadata:  map[string]any{"provider": NameStatic},
		Timestamp: time.Now().UTC(),
	}, nil
}

// filterComments applies severity threshold, ignore patterns, and the
// comment cap. Most severe findings survive truncation.
func filterComments(comments []models.Comment, s *models.Settings) []models.Comment {
	out := comments[:0]
	for _, c := range comments {
		if s.MinSeverity != "" && c.Severity.Rank() < s.MinSeverity.Rank() && c.Severity != models.SeverityPraise {
			continue
		}
		if !s.IncludePraise && c.Severity == models.SeverityPraise {
			continue
		}
		if matchesAny(c.Content, s.IgnorePatterns) {
			continue
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Severity.Rank() != out[j].Severity.Rank() {
			return out[i].Severity.Rank() > out[j].Severity.Rank()
		}
		return out[i].LineNumber < out[j].LineNumber
	})
	if s.MaxComments > 0 && len(out) > s.MaxComments {
		out = out[:s.MaxComments]
	}
	return out
}

func matchesAny(content string, patterns []string) bool {
	for _, p := range patterns {
		if p == "" {
			continue
		}
		if strings.Contains(strings.ToLower(content), strings.ToLower(p)) {
			return true
		}
	}
	return false
}

func staticScore(comments []models.Comment) float64 {
	score := 1.0
	for _, c := range comments {
		switch c.Severity {
		case models.SeverityError:
			score -= 0.2
		case models.SeverityWarning:
			score -= 0.1
		case models.SeveritySuggestion:
			score -= 0.02
		}
	}
	if score < 0 {
		score = 0
	}
	return score
}

func staticSummary(path string, comments []models.Comment) string {
	if len(comments) == 0 {
		return fmt.Sprintf("Static scan of %s found no issues.", path)
	}
	errors, warnings := 0, 0
	for _, c := range comments {
		switch c.Severity {
		case models.SeverityError:
			errors++
		case models.SeverityWarning:
			warnings++
		}
	}
	return fmt.Sprintf("Static scan of %s found %d issue(s): %d error(s), %d warning(s).",
		path, len(comments), errors, warnings)
}

// ValidateConfiguration always succeeds; the scanner has no configuration.
func (s *Static) ValidateConfiguration(_ context.Context) bool { return true }

// TokenLimit is effectively unbounded for a local scan.
func (s *Static) TokenLimit() int { return 1 << 20 }

// EstimateTokens approximates the token count of text.
func (s *Static) EstimateTokens(text string) int { return estimateTokens(text) }

// Name returns the registry name.
func (s *Static) Name() string { return NameStatic }
