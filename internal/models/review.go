package models

import (
	"fmt"
	"strings"
)

// ReviewType selects the focus of a review.
type ReviewType string

const (
	ReviewTypeFull            ReviewType = "full"
	ReviewTypeSecurity        ReviewType = "security"
	ReviewTypePerformance     ReviewType = "performance"
	ReviewTypeMaintainability ReviewType = "maintainability"
	ReviewTypeStyle           ReviewType = "style"
	ReviewTypeDocumentation   ReviewType = "documentation"
	ReviewTypeQuick           ReviewType = "quick"
)

// ReviewTypes lists every valid review type in display order.
func ReviewTypes() []ReviewType {
	return []ReviewType{
		ReviewTypeFull,
		ReviewTypeSecurity,
		ReviewTypePerformance,
		ReviewTypeMaintainability,
		ReviewTypeStyle,
		ReviewTypeDocumentation,
		ReviewTypeQuick,
	}
}

// ParseReviewType converts a string to a ReviewType, case-insensitively.
func ParseReviewType(s string) (ReviewType, error) {
	rt := ReviewType(strings.ToLower(strings.TrimSpace(s)))
	if !rt.Valid() {
		return "", fmt.Errorf("invalid review type %q", s)
	}
	return rt, nil
}

// Valid reports whether rt is a member of the review type enum.
func (rt ReviewType) Valid() bool {
	switch rt {
	case ReviewTypeFull, ReviewTypeSecurity, ReviewTypePerformance,
		ReviewTypeMaintainability, ReviewTypeStyle, ReviewTypeDocumentation,
		ReviewTypeQuick:
		return true
	}
	return false
}

// Severity classifies how serious a review comment is.
type Severity string

const (
	SeverityError      Severity = "error"
	SeverityWarning    Severity = "warning"
	SeveritySuggestion Severity = "suggestion"
	SeverityPraise     Severity = "praise"
)

// Rank orders severities for threshold filtering. Higher is more severe.
func (s Severity) Rank() int {
	switch s {
	case SeverityError:
		return 3
	case SeverityWarning:
		return 2
	case SeveritySuggestion:
		return 1
	case SeverityPraise:
		return 0
	}
	return -1
}

// NormalizeSeverity maps arbitrary input onto the severity enum. Matching is
// case-insensitive; anything unrecognized becomes SeveritySuggestion.
func NormalizeSeverity(s string) Severity {
	switch Severity(strings.ToLower(strings.TrimSpace(s))) {
	case SeverityError:
		return SeverityError
	case SeverityWarning:
		return SeverityWarning
	case SeveritySuggestion:
		return SeveritySuggestion
	case SeverityPraise:
		return SeverityPraise
	}
	return SeveritySuggestion
}

// Category labels the aspect of the code a comment is about. The set is open
// on input and normalized to the canonical members below.
type Category string

const (
	CategorySecurity      Category = "security"
	CategoryPerformance   Category = "performance"
	CategoryStyle         Category = "style"
	CategoryLogic         Category = "logic"
	CategoryDocumentation Category = "documentation"
	CategoryBestPractices Category = "best_practices"
)

// NormalizeCategory maps arbitrary input onto the canonical category set.
// Unknown or empty input becomes CategoryBestPractices.
func NormalizeCategory(s string) Category {
	switch Category(strings.ToLower(strings.TrimSpace(s))) {
	case CategorySecurity:
		return CategorySecurity
	case CategoryPerformance:
		return CategoryPerformance
	case CategoryStyle:
		return CategoryStyle
	case CategoryLogic:
		return CategoryLogic
	case CategoryDocumentation:
		return CategoryDocumentation
	case CategoryBestPractices:
		return CategoryBestPractices
	}
	return CategoryBestPractices
}
