package llm

import (
	"context"
	"io"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"plan-chat-backend/internal/models"
)

// Factory builds a provider. It runs at most once per provider tag for the
// lifetime of a Registry.
type Factory func(ctx context.Context, catalog *Catalog) (Provider, error)

// Registry maps model ids to providers and owns the provider instances.
// Instances are created lazily on first use and reused afterwards.
type Registry struct {
	defaultProvider string

	mu        sync.RWMutex
	catalog   *Catalog
	factories map[string]Factory
	instances map[string]Provider

	group singleflight.Group
}

func NewRegistry(catalog *Catalog, defaultProvider string) *Registry {
	return &Registry{
		defaultProvider: defaultProvider,
		catalog:         catalog,
		factories:       make(map[string]Factory),
		instances:       make(map[string]Provider),
	}
}

func (r *Registry) Register(tag string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[tag] = factory
}

// Providers lists the registered provider tags, sorted.
func (r *Registry) Providers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tags := make([]string, 0, len(r.factories))
	for tag := range r.factories {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// PruneCatalog drops catalog entries whose provider has no factory and
// returns the removed model ids.
func (r *Registry) PruneCatalog() []string {
	tags := r.Providers()

	r.mu.Lock()
	defer r.mu.Unlock()

	restricted, dropped := r.catalog.Restrict(tags)
	r.catalog = restricted
	return dropped
}

func (r *Registry) Catalog() *Catalog {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.catalog
}

func (r *Registry) IsValidModel(modelID string) bool {
	return r.Catalog().IsValid(modelID)
}

func (r *Registry) ListModels() []models.ModelInfo {
	return r.Catalog().Models()
}

func (r *Registry) ListModelIDs() []string {
	return r.Catalog().IDs()
}

func (r *Registry) BackendModelName(modelID string) string {
	return r.Catalog().BackendName(modelID)
}

// ResolveProvider returns the provider serving modelID, or the default
// provider when modelID is empty or unknown.
func (r *Registry) ResolveProvider(ctx context.Context, modelID string) (Provider, error) {
	tag := r.defaultProvider
	if m, ok := r.Catalog().Lookup(modelID); ok {
		tag = m.Provider
	}
	return r.providerFor(ctx, tag)
}

func (r *Registry) providerFor(ctx context.Context, tag string) (Provider, error) {
	r.mu.RLock()
	p, ok := r.instances[tag]
	factory, registered := r.factories[tag]
	catalog := r.catalog
	r.mu.RUnlock()

	if ok {
		return p, nil
	}
	if !registered {
		return nil, &UnregisteredProviderError{Provider: tag}
	}

	v, err, _ := r.group.Do(tag, func() (interface{}, error) {
		r.mu.RLock()
		existing, ok := r.instances[tag]
		r.mu.RUnlock()
		if ok {
			return existing, nil
		}

		created, err := factory(context.WithoutCancel(ctx), catalog)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.instances[tag] = created
		r.mu.Unlock()

		log.Info().Str("provider", tag).Msg("LLM provider initialized")
		return created, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Provider), nil
}

// Close releases provider instances that hold resources.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for tag, p := range r.instances {
		if c, ok := p.(io.Closer); ok {
			if err := c.Close(); err != nil {
				log.Warn().Err(err).Str("provider", tag).Msg("failed to close LLM provider")
			}
		}
		delete(r.instances, tag)
	}
}
