package provider

import (
	"fmt"
	"strings"

	"github.com/revuedev/revue/internal/models"
)

const systemPromptBase = `You are an expert code reviewer. Review the provided code and return ONLY a JSON object with these fields:
- "summary": 1-3 sentence overall assessment of the code
- "score": overall quality from 0.0 (worst) to 1.0 (best)
- "comments": array of objects, each with:
  - "line_number": integer line the comment refers to (omit for whole-file comments)
  - "content": the comment text, specific and actionable
  - "severity": one of "error", "warning", "suggestion", "praise"
  - "category": one of "security", "performance", "style", "logic", "documentation", "best_practices"
  - "suggested_fix": corrected code or concrete remediation (optional)

Rules:
- "error" is for bugs, vulnerabilities, and anything that must be fixed before merge
- "warning" is for likely problems and risky patterns
- "suggestion" is for improvements that are optional
- "praise" highlights genuinely good decisions, use sparingly
- Comment on the code as given, do not invent surrounding context
- When a diff is provided, focus on the changed lines and their blast radius
- Return valid JSON only, no markdown fencing or explanation`

// focusBlocks holds the per-type instruction appended to the system prompt.
var focusBlocks = map[models.ReviewType]string{
	models.ReviewTypeFull: `Perform a comprehensive review covering correctness, security, performance, maintainability, style, and documentation.`,
	models.ReviewTypeSecurity: `Focus on security: injection, unsafe deserialization, hardcoded credentials, weak cryptography, path traversal, missing validation of untrusted input, and secrets handling. Prefer "error" severity for exploitable findings.`,
	models.ReviewTypePerformance: `Focus on performance: algorithmic complexity, redundant work inside loops, unnecessary allocations, blocking I/O on hot paths, and missing caching opportunities.`,
	models.ReviewTypeMaintainability: `Focus on maintainability: function and file size, duplication, coupling, unclear naming, dead code, and error-handling consistency.`,
	models.ReviewTypeStyle: `Focus on style: formatting, naming conventions, idiomatic usage for the language, and consistency with the surrounding code.`,
	models.ReviewTypeDocumentation: `Focus on documentation: missing or stale doc comments on exported surface, unexplained invariants, and misleading comments.`,
	models.ReviewTypeQuick: `Perform a quick pass: report only clear bugs and serious risks. Limit yourself to the most important findings and keep comments short.`,
}

// buildSystemPrompt assembles the persona, output contract, and the focus
// block for the review type.
func buildSystemPrompt(rt models.ReviewType) string {
	var sb strings.Builder
	sb.WriteString(systemPromptBase)
	if block, ok := focusBlocks[rt]; ok {
		sb.WriteString("\n\nReview focus:\n")
		sb.WriteString(block)
	}
	return sb.String()
}

// buildUserPrompt assembles the code, its context, and the caller's settings
// into the user message.
func buildUserPrompt(req *models.Request) string {
	var sb strings.Builder
	cc := req.Context

	fmt.Fprintf(&sb, "File: %s\n", cc.FilePath)
	if cc.Language != "" {
		fmt.Fprintf(&sb, "Language: %s\n", cc.Language)
	}
	if cc.Repository != "" {
		fmt.Fprintf(&sb, "Repository: %s\n", cc.Repository)
	}
	if cc.BaseBranch != "" {
		fmt.Fprintf(&sb, "Base branch: %s\n", cc.BaseBranch)
	}
	if cc.Author != "" {
		fmt.Fprintf(&sb, "Author: %s\n", cc.Author)
	}
	if len(cc.ChangedFiles) > 0 {
		fmt.Fprintf(&sb, "Other files in this change: %s\n", strings.Join(cc.ChangedFiles, ", "))
	}

	if s := req.Settings; s != nil {
		sb.WriteString("\nReview directives:\n")
		if s.MaxComments > 0 {
			fmt.Fprintf(&sb, "- Report at most %d comments, most important first\n", s.MaxComments)
		}
		if s.MinSeverity != "" && s.MinSeverity != models.SeverityPraise {
			fmt.Fprintf(&sb, "- Omit findings below %q severity", s.MinSeverity)
			if s.IncludePraise {
				sb.WriteString(" (praise is still welcome)")
			}
			sb.WriteString("\n")
		}
		if !s.IncludePraise {
			sb.WriteString("- Do not include praise comments\n")
		}
		if len(s.FocusAreas) > 0 {
			fmt.Fprintf(&sb, "- Pay extra attention to: %s\n", strings.Join(s.FocusAreas, ", "))
		}
		if len(s.IgnorePatterns) > 0 {
			fmt.Fprintf(&sb, "- Ignore findings matching: %s\n", strings.Join(s.IgnorePatterns, ", "))
		}
		for _, rule := range s.CustomRules {
			fmt.Fprintf(&sb, "- %s\n", rule)
		}
	}

	if cc.Diff != "" {
		sb.WriteString("\nDiff under review:\n```diff\n")
		sb.WriteString(cc.Diff)
		if !strings.HasSuffix(cc.Diff, "\n") {
			sb.WriteString("\n")
		}
		sb.WriteString("```\n")
	}

	sb.WriteString("\nCode:\n```")
	if cc.Language != "" {
		sb.WriteString(strings.ToLower(cc.Language))
	}
	sb.WriteString("\n")
	sb.WriteString(cc.Content)
	if !strings.HasSuffix(cc.Content, "\n") {
		sb.WriteString("\n")
	}
	sb.WriteString("```\n")

	return sb.String()
}
