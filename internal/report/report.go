// Package report renders review results as markdown: single file, batch,
// history, and trend reports, plus a template registry for custom layouts.
package report

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/revuedev/revue/internal/models"
	"github.com/revuedev/revue/internal/store"
)

// Section is one block of a report. Content is markdown and carries its own
// headings.
type Section struct {
	Title    string
	Content  string
	Severity models.Severity
	Metrics  map[string]any
}

// Report is a rendered review report.
type Report struct {
	Title       string
	Summary     string
	Sections    []Section
	GeneratedAt time.Time
	Metadata    map[string]any
}

// Markdown renders the full report as one markdown document.
func (r *Report) Markdown() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", r.Title)
	if r.Summary != "" {
		fmt.Fprintf(&sb, "%s\n\n", r.Summary)
	}
	for i, sec := range r.Sections {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(strings.TrimRight(sec.Content, "\n"))
		sb.WriteString("\n")
	}
	return sb.String()
}

// Generator builds reports. The registry supplies custom templates; metrics
// tables can be suppressed with IncludeMetrics.
type Generator struct {
	templates      *TemplateRegistry
	IncludeMetrics bool
}

// NewGenerator creates a Generator backed by reg. A nil reg gets the builtin
// templates.
func NewGenerator(reg *TemplateRegistry) *Generator {
	if reg == nil {
		reg = BuiltinTemplates()
	}
	return &Generator{templates: reg, IncludeMetrics: true}
}

// Templates returns the generator's template registry.
func (g *Generator) Templates() *TemplateRegistry { return g.templates }

// RenderOptions tunes report rendering.
type RenderOptions struct {
	TemplateID  string          // render through a registered template instead of the default layout
	IncludeCode bool            // include suggested fixes as code blocks
	MinSeverity models.Severity // drop comments ranked below this, empty keeps all
}

// metric is one ordered name/value pair for a metrics table.
type metric struct {
	name  string
	value any
}

func formatMetricValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "N/A"
	case float64:
		return fmt.Sprintf("%.2f", x)
	case *float64:
		if x == nil {
			return "N/A"
		}
		return fmt.Sprintf("%.2f", *x)
	default:
		return fmt.Sprint(x)
	}
}

func metricsTable(ms []metric) string {
	var sb strings.Builder
	sb.WriteString("| Metric | Value |\n|--------|-------|\n")
	for _, m := range ms {
		fmt.Fprintf(&sb, "| %s | %s |\n", m.name, formatMetricValue(m.value))
	}
	return sb.String()
}

func metricsMap(ms []metric) map[string]any {
	out := make(map[string]any, len(ms))
	for _, m := range ms {
		out[m.name] = m.value
	}
	return out
}

func severityHeading(sev models.Severity) string {
	icons := map[models.Severity]string{
		models.SeverityError:      "🔴",
		models.SeverityWarning:    "🟡",
		models.SeveritySuggestion: "🔵",
		models.SeverityPraise:     "💚",
	}
	icon, ok := icons[sev]
	if !ok {
		icon = "•"
	}
	return fmt.Sprintf("%s %s", icon, titleCase(string(sev)))
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// reviewMetrics computes the standard per-review metrics row set.
func (g *Generator) reviewMetrics(resp *models.Response) []metric {
	if !g.IncludeMetrics {
		return nil
	}
	counts := resp.SeverityCounts()
	var score any
	if resp.Score != nil {
		score = *resp.Score
	} else {
		score = "N/A"
	}
	return []metric{
		{"Total Comments", len(resp.Comments)},
		{"Errors", counts[models.SeverityError]},
		{"Warnings", counts[models.SeverityWarning]},
		{"Suggestions", counts[models.SeveritySuggestion]},
		{"Praise", counts[models.SeverityPraise]},
		{"Quality Score", score},
	}
}

// renderTemplate tries the named template. ok is false when the registry
// cannot serve it, unknown id or unsatisfied required variables, and the
// caller should fall back to its default layout.
func (g *Generator) renderTemplate(id string, tc Context) (rep *Report, ok bool, err error) {
	rep, err = g.templates.Render(id, tc)
	if err == nil {
		return rep, true, nil
	}
	if errors.Is(err, ErrUnknownTemplate) || errors.Is(err, ErrMissingVariable) {
		return nil, false, nil
	}
	return nil, false, err
}

// FileReport renders the report for one review. With opt.TemplateID set the
// named template renders it; an unknown template or one this context cannot
// satisfy falls back to the default layout.
func (g *Generator) FileReport(resp *models.Response, path string, rt models.ReviewType, opt RenderOptions) (*Report, error) {
	if opt.TemplateID != "" {
		rep, ok, err := g.renderTemplate(opt.TemplateID, Context{
			"review":       resp,
			"file_path":    path,
			"review_type":  rt,
			"include_code": opt.IncludeCode,
		})
		if err != nil {
			return nil, err
		}
		if ok {
			return rep, nil
		}
	}

	now := time.Now().UTC()
	ms := g.reviewMetrics(resp)

	var overview strings.Builder
	overview.WriteString("## Review Summary\n")
	overview.WriteString(resp.Summary)
	overview.WriteString("\n\n### File Information\n")
	fmt.Fprintf(&overview, "- **File:** `%s`\n", path)
	fmt.Fprintf(&overview, "- **Review Type:** %s\n", rt)
	fmt.Fprintf(&overview, "- **Timestamp:** %s\n", now.Format(time.RFC3339))
	if len(ms) > 0 {
		overview.WriteString("\n")
		overview.WriteString(metricsTable(ms))
	}

	sections := []Section{{
		Title:   "Overview",
		Content: overview.String(),
		Metrics: metricsMap(ms),
	}}

	for _, sev := range []models.Severity{
		models.SeverityError, models.SeverityWarning,
		models.SeveritySuggestion, models.SeverityPraise,
	} {
		if opt.MinSeverity != "" && sev.Rank() < opt.MinSeverity.Rank() {
			continue
		}
		comments := resp.CommentsBySeverity(sev)
		if len(comments) == 0 {
			continue
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "## %s Comments\n\n", severityHeading(sev))
		for _, c := range comments {
			sb.WriteString("### ")
			sb.WriteString(lineLabel(c.LineNumber))
			sb.WriteString("\n")
			sb.WriteString(c.Content)
			sb.WriteString("\n\n")
			if c.SuggestedFix != "" && opt.IncludeCode {
				fmt.Fprintf(&sb, "**Suggested Fix:**\n```\n%s\n```\n\n", c.SuggestedFix)
			}
		}

		sections = append(sections, Section{
			Title:    fmt.Sprintf("%s Comments", titleCase(string(sev))),
			Content:  sb.String(),
			Severity: sev,
			Metrics:  map[string]any{"count": len(comments)},
		})
	}

	return &Report{
		Title:       fmt.Sprintf("Code Review: %s", path),
		Summary:     resp.Summary,
		Sections:    sections,
		GeneratedAt: now,
		Metadata: map[string]any{
			"file_path":   path,
			"review_type": string(rt),
		},
	}, nil
}

func lineLabel(n int) string {
	if n > 0 {
		return fmt.Sprintf("Line %d", n)
	}
	return "General"
}

// BatchReport renders a combined report for a set of file reviews. Files are
// ordered by path. The review map reaches templates under the "reviews"
// context key, so per-review templates fall back to the default layout here.
func (g *Generator) BatchReport(reviews map[string]*models.Response, rt models.ReviewType, opt RenderOptions) (*Report, error) {
	if opt.TemplateID != "" {
		rep, ok, err := g.renderTemplate(opt.TemplateID, Context{
			"reviews":      reviews,
			"review_type":  rt,
			"include_code": opt.IncludeCode,
		})
		if err != nil {
			return nil, err
		}
		if ok {
			return rep, nil
		}
	}

	now := time.Now().UTC()

	paths := make([]string, 0, len(reviews))
	for path := range reviews {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	totalIssues := 0
	var scoreSum float64
	var scoreCount int
	fileSections := make([]Section, 0, len(paths))

	for _, path := range paths {
		resp := reviews[path]
		totalIssues += len(resp.Comments)
		if resp.Score != nil {
			scoreSum += *resp.Score
			scoreCount++
		}

		ms := g.reviewMetrics(resp)
		var sb strings.Builder
		fmt.Fprintf(&sb, "## %s\n\n%s\n\n", path, resp.Summary)
		if len(ms) > 0 {
			sb.WriteString(metricsTable(ms))
		}
		fileSections = append(fileSections, Section{
			Title:   path,
			Content: sb.String(),
			Metrics: metricsMap(ms),
		})
	}

	var avgIssues any
	var avgScore any = "N/A"
	if len(paths) > 0 {
		avgIssues = float64(totalIssues) / float64(len(paths))
	} else {
		avgIssues = 0
	}
	if scoreCount > 0 {
		avgScore = scoreSum / float64(scoreCount)
	}

	overall := []metric{
		{"Total Files", len(paths)},
		{"Total Issues", totalIssues},
		{"Average Issues per File", avgIssues},
		{"Average Quality Score", avgScore},
	}

	var overview strings.Builder
	overview.WriteString("## Summary\n")
	fmt.Fprintf(&overview, "- Reviewed %d files\n", len(paths))
	fmt.Fprintf(&overview, "- Found %d total issues\n", totalIssues)
	fmt.Fprintf(&overview, "- Review Type: %s\n", rt)
	fmt.Fprintf(&overview, "- Generated: %s\n\n", now.Format(time.RFC3339))
	overview.WriteString(metricsTable(overall))

	sections := append([]Section{{
		Title:   "Overview",
		Content: overview.String(),
		Metrics: metricsMap(overall),
	}}, fileSections...)

	return &Report{
		Title:       "Multi-File Code Review Report",
		Summary:     fmt.Sprintf("Review of %d files", len(paths)),
		Sections:    sections,
		GeneratedAt: now,
		Metadata: map[string]any{
			"review_type": string(rt),
			"file_count":  len(paths),
		},
	}, nil
}

// HistoricalReport renders the review history of one file. Empty input
// produces an explicit empty report, never an error.
func (g *Generator) HistoricalReport(records []*store.Record, path string, rt models.ReviewType) *Report {
	now := time.Now().UTC()
	if len(records) == 0 {
		return &Report{
			Title:       "Historical Review Analysis",
			Summary:     "No review history available",
			GeneratedAt: now,
		}
	}

	// Chronological copy; the store hands records back most recent first.
	chrono := make([]*store.Record, len(records))
	copy(chrono, records)
	sort.Slice(chrono, func(i, j int) bool {
		return chrono[i].CreatedAt.Before(chrono[j].CreatedAt)
	})

	var scoreSum float64
	var scoreCount int
	for _, rec := range chrono {
		if rec.Response.Score != nil {
			scoreSum += *rec.Response.Score
			scoreCount++
		}
	}
	var avgScore any = "N/A"
	if scoreCount > 0 {
		avgScore = scoreSum / float64(scoreCount)
	}

	ms := []metric{
		{"Total Reviews", len(chrono)},
		{"Average Quality Score", avgScore},
		{"First Review", chrono[0].CreatedAt.Format(time.RFC3339)},
		{"Latest Review", chrono[len(chrono)-1].CreatedAt.Format(time.RFC3339)},
	}

	var overview strings.Builder
	if path != "" {
		fmt.Fprintf(&overview, "## File: `%s`\n", path)
	} else {
		overview.WriteString("## All Files\n")
	}
	if rt != "" {
		fmt.Fprintf(&overview, "Review Type: %s\n", rt)
	}
	overview.WriteString("\n")
	overview.WriteString(metricsTable(ms))

	var trend strings.Builder
	trend.WriteString("## Quality Score Trend\n\n")
	if scoreCount > 0 {
		trend.WriteString("Quality scores over time:\n\n")
		for _, rec := range chrono {
			if rec.Response.Score != nil {
				fmt.Fprintf(&trend, "- %s: %.2f\n", rec.CreatedAt.Format(time.RFC3339), *rec.Response.Score)
			}
		}
	} else {
		trend.WriteString("No quality scores available for trend analysis.\n")
	}

	var digests strings.Builder
	digests.WriteString("## Review History\n\n")
	for _, rec := range chrono {
		fmt.Fprintf(&digests, "### %s\n", rec.CreatedAt.Format(time.RFC3339))
		fmt.Fprintf(&digests, "- Comments: %d\n", len(rec.Response.Comments))
		if rec.Response.Score != nil {
			fmt.Fprintf(&digests, "- Score: %.2f\n", *rec.Response.Score)
		}
		if rec.Response.Summary != "" {
			fmt.Fprintf(&digests, "- %s\n", rec.Response.Summary)
		}
		digests.WriteString("\n")
	}

	return &Report{
		Title:   "Historical Review Analysis",
		Summary: fmt.Sprintf("Analysis of %d reviews", len(chrono)),
		Sections: []Section{
			{Title: "Historical Analysis Overview", Content: overview.String(), Metrics: metricsMap(ms)},
			{Title: "Trend Analysis", Content: trend.String()},
			{Title: "Review History", Content: digests.String()},
		},
		GeneratedAt: now,
		Metadata: map[string]any{
			"file_path":   path,
			"review_type": string(rt),
		},
	}
}

// TrendReport renders day-bucketed review activity over a window. Empty
// input produces an explicit empty report, never an error.
func (g *Generator) TrendReport(records []*store.Record, start, end time.Time, rt models.ReviewType) *Report {
	now := time.Now().UTC()
	if len(records) == 0 {
		return &Report{
			Title:       "Review Trend Analysis",
			Summary:     "No reviews available for trend analysis",
			GeneratedAt: now,
		}
	}

	type dayStats struct {
		count    int
		scoreSum float64
		scored   int
	}
	days := make(map[string]*dayStats)
	totalErrors, totalWarnings := 0, 0
	var firstScore, lastScore *float64
	var firstAt, lastAt time.Time
	for _, rec := range records {
		day := rec.CreatedAt.UTC().Format("2006-01-02")
		ds, ok := days[day]
		if !ok {
			ds = &dayStats{}
			days[day] = ds
		}
		ds.count++
		if rec.Response.Score != nil {
			ds.scoreSum += *rec.Response.Score
			ds.scored++
			if firstScore == nil || rec.CreatedAt.Before(firstAt) {
				firstAt, firstScore = rec.CreatedAt, rec.Response.Score
			}
			if lastScore == nil || rec.CreatedAt.After(lastAt) {
				lastAt, lastScore = rec.CreatedAt, rec.Response.Score
			}
		}
		counts := rec.Response.SeverityCounts()
		totalErrors += counts[models.SeverityError]
		totalWarnings += counts[models.SeverityWarning]
	}

	dates := make([]string, 0, len(days))
	for d := range days {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	var overview strings.Builder
	fmt.Fprintf(&overview, "## Time Period: %s to %s\n",
		start.UTC().Format("2006-01-02"), end.UTC().Format("2006-01-02"))
	if rt != "" {
		fmt.Fprintf(&overview, "Review Type: %s\n", rt)
	}
	overview.WriteString("\n### Overall Statistics\n")
	fmt.Fprintf(&overview, "- Total Reviews: %d\n", len(records))
	fmt.Fprintf(&overview, "- Days with Reviews: %d\n", len(dates))
	fmt.Fprintf(&overview, "- Average Reviews per Day: %.2f\n", float64(len(records))/float64(len(dates)))
	fmt.Fprintf(&overview, "- Errors Found: %d\n", totalErrors)
	fmt.Fprintf(&overview, "- Warnings Found: %d\n", totalWarnings)
	if firstScore != nil {
		fmt.Fprintf(&overview, "- Score Movement: %.2f → %.2f\n", *firstScore, *lastScore)
	}

	var daily strings.Builder
	daily.WriteString("## Daily Breakdown\n\n")
	daily.WriteString("| Date | Reviews | Avg Score |\n|------|---------|----------|\n")
	for _, d := range dates {
		ds := days[d]
		score := "N/A"
		if ds.scored > 0 {
			score = fmt.Sprintf("%.2f", ds.scoreSum/float64(ds.scored))
		}
		fmt.Fprintf(&daily, "| %s | %d | %s |\n", d, ds.count, score)
	}

	return &Report{
		Title:   "Review Trend Analysis",
		Summary: fmt.Sprintf("Analysis of %d reviews over %d days", len(records), len(dates)),
		Sections: []Section{
			{
				Title:   "Trend Analysis Overview",
				Content: overview.String(),
				Metrics: map[string]any{
					"total_reviews":       len(records),
					"days_with_reviews":   len(dates),
					"avg_reviews_per_day": float64(len(records)) / float64(len(dates)),
				},
			},
			{Title: "Daily Breakdown", Content: daily.String()},
		},
		GeneratedAt: now,
		Metadata: map[string]any{
			"start_time":  start.UTC().Format(time.RFC3339),
			"end_time":    end.UTC().Format(time.RFC3339),
			"review_type": string(rt),
		},
	}
}
