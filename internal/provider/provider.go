// Package provider defines the analysis backend abstraction and its concrete
// implementations. A Provider turns a review request into a structured
// response; the registry creates providers by name.
package provider

import (
	"context"
	"errors"

	"github.com/revuedev/revue/internal/models"
)

// Sentinel errors returned (wrapped) by providers and the registry.
var (
	// ErrInvalidRequest marks a request that failed validation before any
	// backend work was attempted.
	ErrInvalidRequest = errors.New("invalid review request")

	// ErrUnknownProvider marks a registry lookup for an unregistered name.
	ErrUnknownProvider = errors.New("unknown provider")

	// ErrBackend marks a transport, auth, or API failure from the backend.
	ErrBackend = errors.New("backend request failed")

	// ErrBadResponse marks a payload that arrived but contained no valid
	// review JSON.
	ErrBadResponse = errors.New("unparsable review response")
)

// Provider is an analysis backend capable of reviewing code.
type Provider interface {
	// GenerateReview validates the request, performs the review, and returns
	// the parsed, normalized response.
	GenerateReview(ctx context.Context, req *models.Request) (*models.Response, error)

	// ValidateConfiguration reports whether the provider is usable as
	// configured (key present, backend reachable). It never panics.
	ValidateConfiguration(ctx context.Context) bool

	// TokenLimit returns the maximum context size in tokens.
	TokenLimit() int

	// EstimateTokens cheaply approximates the token count of text.
	EstimateTokens(text string) int

	// Name returns the registry name of this provider.
	Name() string
}

// Config carries the settings a provider constructor needs. Zero values mean
// "use the provider's default".
type Config struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
}

// estimateTokens is the shared ~4 chars/token heuristic. It is deliberately
// cheap and monotonic in len(text).
func estimateTokens(text string) int {
	if text == "" {
		return 0
	}
	n := len(text) / 4
	if n < 1 {
		n = 1
	}
	return n
}
