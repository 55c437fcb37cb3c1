package models

import (
	"errors"
	"fmt"
)

// CodeContext carries the code under review plus whatever surrounding
// information the caller has. FilePath and Content are required; the rest is
// optional enrichment for the prompt.
type CodeContext struct {
	FilePath     string
	Content      string
	Diff         string // unified diff when reviewing a change
	Language     string
	Repository   string
	BaseBranch   string
	CommitHash   string
	Author       string
	ChangedFiles []string // sibling files in the same change set
}

// Settings tunes how a review is performed and filtered.
type Settings struct {
	MaxComments    int
	MinSeverity    Severity
	FocusAreas     []string
	IgnorePatterns []string
	CustomRules    []string
	IncludePraise  bool
}

// DefaultSettings returns the settings applied when a caller provides none.
func DefaultSettings() *Settings {
	return &Settings{
		MaxComments:   25,
		MinSeverity:   SeveritySuggestion,
		IncludePraise: true,
	}
}

// Request is a fully resolved unit of work for a provider. Callers resolve
// defaults (type, settings) before building one.
type Request struct {
	Context     CodeContext
	Type        ReviewType
	Settings    *Settings
	MaxTokens   int
	Temperature float64
	Params      map[string]any // provider-specific extras
}

// Validate checks the request before any backend work is attempted.
func (r *Request) Validate() error {
	if r.Context.FilePath == "" {
		return errors.New("file path is required")
	}
	if r.Context.Content == "" {
		return errors.New("content is empty")
	}
	if r.Temperature < 0 || r.Temperature > 1 {
		return fmt.Errorf("temperature %.2f outside [0, 1]", r.Temperature)
	}
	if !r.Type.Valid() {
		return fmt.Errorf("invalid review type %q", r.Type)
	}
	return nil
}
