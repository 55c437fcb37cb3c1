package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/revuedev/revue/internal/models"
)

// Builtin template IDs.
const (
	TemplateExecutiveSummary  = "executive-summary"
	TemplateSecurityAudit     = "security-audit"
	TemplatePerformanceReport = "performance-report"
)

func contextReview(tc Context) (*models.Response, error) {
	resp, ok := tc["review"].(*models.Response)
	if !ok || resp == nil {
		return nil, fmt.Errorf("%w: review must be a *models.Response", ErrMissingVariable)
	}
	return resp, nil
}

func contextString(tc Context, key string) (string, error) {
	s, ok := tc[key].(string)
	if !ok {
		return "", fmt.Errorf("%w: %s must be a string", ErrMissingVariable, key)
	}
	return s, nil
}

func contextBool(tc Context, key string, fallback bool) bool {
	b, ok := tc[key].(bool)
	if !ok {
		return fallback
	}
	return b
}

func scoreLabel(score *float64) string {
	if score == nil {
		return "N/A"
	}
	return fmt.Sprintf("%.2f", *score)
}

// executiveSummaryTemplate is a concise summary for decision makers.
type executiveSummaryTemplate struct{}

func (t *executiveSummaryTemplate) ID() string   { return TemplateExecutiveSummary }
func (t *executiveSummaryTemplate) Name() string { return "Executive Summary" }
func (t *executiveSummaryTemplate) Description() string {
	return "A concise summary focusing on key findings and recommendations"
}

func (t *executiveSummaryTemplate) Variables() []Variable {
	return []Variable{
		{Name: "review", Description: "The review response object", Required: true},
		{Name: "file_path", Description: "Path to the reviewed file", Required: true},
		{Name: "review_type", Description: "Type of review performed", Required: true},
	}
}

func (t *executiveSummaryTemplate) Render(tc Context) (*Report, error) {
	review, err := contextReview(tc)
	if err != nil {
		return nil, err
	}
	path, err := contextString(tc, "file_path")
	if err != nil {
		return nil, err
	}
	rt, _ := tc["review_type"].(models.ReviewType)

	critical := review.CommentsBySeverity(models.SeverityError)
	warnings := len(review.CommentsBySeverity(models.SeverityWarning))
	suggestions := len(review.CommentsBySeverity(models.SeveritySuggestion))
	now := time.Now().UTC()

	var sb strings.Builder
	sb.WriteString("## Overview\n")
	fmt.Fprintf(&sb, "- **File:** `%s`\n", path)
	fmt.Fprintf(&sb, "- **Review Type:** %s\n", rt)
	fmt.Fprintf(&sb, "- **Quality Score:** %s\n", scoreLabel(review.Score))
	fmt.Fprintf(&sb, "- **Review Date:** %s\n", now.Format("2006-01-02"))
	sb.WriteString("\n## Key Findings\n")
	fmt.Fprintf(&sb, "- Critical Issues: %d\n", len(critical))
	fmt.Fprintf(&sb, "- Warnings: %d\n", warnings)
	fmt.Fprintf(&sb, "- Suggestions: %d\n", suggestions)
	sb.WriteString("\n## Summary\n")
	sb.WriteString(review.Summary)
	sb.WriteString("\n")

	sections := []Section{{
		Title:   "Executive Summary",
		Content: sb.String(),
		Metrics: map[string]any{
			"critical_issues": len(critical),
			"warnings":        warnings,
			"suggestions":     suggestions,
			"quality_score":   review.Score,
		},
	}}

	if len(critical) > 0 {
		var cb strings.Builder
		cb.WriteString("## Critical Issues\n\n")
		for _, c := range critical {
			fmt.Fprintf(&cb, "- **%s** (%s):\n  %s\n\n", c.Category, lineLabel(c.LineNumber), c.Content)
		}
		sections = append(sections, Section{
			Title:    "Critical Issues",
			Content:  cb.String(),
			Severity: models.SeverityError,
		})
	}

	return &Report{
		Title:       fmt.Sprintf("%s: %s", t.Name(), path),
		Summary:     review.Summary,
		Sections:    sections,
		GeneratedAt: now,
		Metadata: map[string]any{
			"template_id": t.ID(),
			"file_path":   path,
			"review_type": string(rt),
		},
	}, nil
}

// securityAuditTemplate details security findings grouped by severity.
type securityAuditTemplate struct{}

func (t *securityAuditTemplate) ID() string   { return TemplateSecurityAudit }
func (t *securityAuditTemplate) Name() string { return "Security Audit Report" }
func (t *securityAuditTemplate) Description() string {
	return "A comprehensive security audit report with detailed findings"
}

func (t *securityAuditTemplate) Variables() []Variable {
	return []Variable{
		{Name: "review", Description: "The review response object", Required: true},
		{Name: "file_path", Description: "Path to the reviewed file", Required: true},
		{Name: "include_code", Description: "Whether to include code snippets", Required: false, Default: false},
	}
}

func (t *securityAuditTemplate) Render(tc Context) (*Report, error) {
	review, err := contextReview(tc)
	if err != nil {
		return nil, err
	}
	path, err := contextString(tc, "file_path")
	if err != nil {
		return nil, err
	}
	includeCode := contextBool(tc, "include_code", false)
	now := time.Now().UTC()

	var sb strings.Builder
	sb.WriteString("## File Information\n")
	fmt.Fprintf(&sb, "- **File:** `%s`\n", path)
	fmt.Fprintf(&sb, "- **Audit Date:** %s\n", now.Format("2006-01-02"))
	fmt.Fprintf(&sb, "- **Security Score:** %s\n", scoreLabel(review.Score))
	sb.WriteString("\n## Summary\n")
	sb.WriteString(review.Summary)
	sb.WriteString("\n")

	sections := []Section{{
		Title:   "Security Audit Overview",
		Content: sb.String(),
		Metrics: map[string]any{"security_score": review.Score},
	}}

	security := review.CommentsByCategory(models.CategorySecurity)
	for _, sev := range []models.Severity{
		models.SeverityError, models.SeverityWarning, models.SeveritySuggestion,
	} {
		var comments []models.Comment
		for _, c := range security {
			if c.Severity == sev {
				comments = append(comments, c)
			}
		}
		if len(comments) == 0 {
			continue
		}

		var cb strings.Builder
		fmt.Fprintf(&cb, "## %s Level Security Issues\n\n", titleCase(string(sev)))
		for _, c := range comments {
			fmt.Fprintf(&cb, "### Issue at %s\n%s\n\n", lineLabel(c.LineNumber), c.Content)
			if c.SuggestedFix != "" && includeCode {
				fmt.Fprintf(&cb, "**Suggested Fix:**\n```\n%s\n```\n\n", c.SuggestedFix)
			}
		}

		sections = append(sections, Section{
			Title:    fmt.Sprintf("%s Security Issues", titleCase(string(sev))),
			Content:  cb.String(),
			Severity: sev,
			Metrics:  map[string]any{"count": len(comments)},
		})
	}

	return &Report{
		Title:       fmt.Sprintf("%s: %s", t.Name(), path),
		Summary:     review.Summary,
		Sections:    sections,
		GeneratedAt: now,
		Metadata: map[string]any{
			"template_id": t.ID(),
			"file_path":   path,
		},
	}, nil
}

// performanceReportTemplate highlights performance findings.
type performanceReportTemplate struct{}

func (t *performanceReportTemplate) ID() string   { return TemplatePerformanceReport }
func (t *performanceReportTemplate) Name() string { return "Performance Analysis Report" }
func (t *performanceReportTemplate) Description() string {
	return "A detailed performance analysis with optimization recommendations"
}

func (t *performanceReportTemplate) Variables() []Variable {
	return []Variable{
		{Name: "review", Description: "The review response object", Required: true},
		{Name: "file_path", Description: "Path to the reviewed file", Required: true},
		{Name: "include_metrics", Description: "Whether to include detailed metrics", Required: false, Default: true},
	}
}

func (t *performanceReportTemplate) Render(tc Context) (*Report, error) {
	review, err := contextReview(tc)
	if err != nil {
		return nil, err
	}
	path, err := contextString(tc, "file_path")
	if err != nil {
		return nil, err
	}
	includeMetrics := contextBool(tc, "include_metrics", true)
	now := time.Now().UTC()

	var sb strings.Builder
	sb.WriteString("## File Information\n")
	fmt.Fprintf(&sb, "- **File:** `%s`\n", path)
	fmt.Fprintf(&sb, "- **Analysis Date:** %s\n", now.Format("2006-01-02"))
	fmt.Fprintf(&sb, "- **Performance Score:** %s\n", scoreLabel(review.Score))
	sb.WriteString("\n## Summary\n")
	sb.WriteString(review.Summary)
	sb.WriteString("\n")

	sections := []Section{{
		Title:   "Performance Analysis Overview",
		Content: sb.String(),
		Metrics: map[string]any{"performance_score": review.Score},
	}}

	perf := review.CommentsByCategory(models.CategoryPerformance)
	if len(perf) > 0 {
		var cb strings.Builder
		cb.WriteString("## Performance Issues\n\n")
		for _, c := range perf {
			fmt.Fprintf(&cb, "### %s Priority Issue", titleCase(string(c.Severity)))
			if c.LineNumber > 0 {
				fmt.Fprintf(&cb, " (Line %d)", c.LineNumber)
			}
			fmt.Fprintf(&cb, "\n%s\n\n", c.Content)
			if c.SuggestedFix != "" {
				fmt.Fprintf(&cb, "**Optimization Suggestion:**\n```\n%s\n```\n\n", c.SuggestedFix)
			}
		}

		sec := Section{Title: "Performance Issues", Content: cb.String()}
		if includeMetrics {
			sec.Metrics = map[string]any{"total_issues": len(perf)}
		}
		sections = append(sections, sec)
	}

	return &Report{
		Title:       fmt.Sprintf("%s: %s", t.Name(), path),
		Summary:     review.Summary,
		Sections:    sections,
		GeneratedAt: now,
		Metadata: map[string]any{
			"template_id": t.ID(),
			"file_path":   path,
		},
	}, nil
}
