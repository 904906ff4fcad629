package provider

import (
	"context"

	"github.com/cexll/evergit/internal/provider/shared"
)

// Provider is the interface that all completion backends must implement
type Provider interface {
	// Name returns the provider name
	Name() string

	// ValidateModel reports whether the backend knows the model. It never
	// returns an error; any failure means "invalid".
	ValidateModel(ctx context.Context, name string) bool

	// ListModels fetches the available model identifiers in one round trip.
	ListModels(ctx context.Context) ([]string, error)

	// CreateCompletion runs a single-turn completion and returns the trimmed
	// text, or a *failure.Error describing why it could not.
	CreateCompletion(ctx context.Context, req shared.CompletionRequest) (string, error)
}
