package provider

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/cexll/evergit/internal/failure"
)

// EnsureModel validates model against p. When it is unknown the available
// models are listed in the returned InvalidModel error.
func EnsureModel(ctx context.Context, p Provider, model string) error {
	if p.ValidateModel(ctx, model) {
		return nil
	}

	names, err := p.ListModels(ctx)
	if err != nil {
		if failure.Is(err, failure.MissingCredential) {
			return err
		}
		return &failure.Error{
			Kind: failure.InvalidModel,
			Op:   p.Name(),
			Msg:  "model name " + model + " not found (listing available models failed)",
			Err:  err,
		}
	}
	return failure.New(failure.InvalidModel, p.Name(),
		"model name %s not found.\nAvailable models:\n%s", model, FormatModelList(names))
}

// FormatModelList joins names four per line, each line tab-indented.
func FormatModelList(names []string) string {
	if len(names) == 0 {
		return "\t(none)"
	}
	var b strings.Builder
	for i := 0; i < len(names); i += 4 {
		end := min(i+4, len(names))
		b.WriteString("\t")
		b.WriteString(strings.Join(names[i:end], ", "))
		if end < len(names) {
			b.WriteString("\n")
		}
	}
	return b.String()
}

// cachedProvider memoizes the first successful model listing.
type cachedProvider struct {
	Provider

	mu     sync.Mutex
	models []string
}

// WithModelCache wraps p so ListModels and ValidateModel reuse one listing.
// Failed listings are not cached.
func WithModelCache(p Provider) Provider {
	if _, ok := p.(*cachedProvider); ok {
		return p
	}
	return &cachedProvider{Provider: p}
}

func (c *cachedProvider) ListModels(ctx context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.models != nil {
		return slices.Clone(c.models), nil
	}
	models, err := c.Provider.ListModels(ctx)
	if err != nil {
		return nil, err
	}
	c.models = models
	return slices.Clone(models), nil
}

func (c *cachedProvider) ValidateModel(ctx context.Context, name string) bool {
	models, err := c.ListModels(ctx)
	if err != nil {
		return c.Provider.ValidateModel(ctx, name)
	}
	return slices.Contains(models, name)
}
