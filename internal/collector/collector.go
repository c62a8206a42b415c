package collector

import (
	"context"
	"fmt"
	"time"

	"NordicIngest/internal/domain"
)

// Result carries everything one collector pass produced for one source.
type Result struct {
	Candidates []domain.CandidateDocument
	Events     []domain.CandidateEvent
}

// Collector discovers candidate documents and events for one source. A
// collector never fetches artifact bytes and never sleeps for rate limiting;
// the orchestrator owns both concerns.
type Collector interface {
	Kind() domain.SourceKind
	Collect(ctx context.Context, src domain.CollectionSource, since time.Time) (Result, error)
}

// Registry keeps a mapping from source kinds to their collectors.
type Registry struct {
	collectors map[domain.SourceKind]Collector
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{collectors: map[domain.SourceKind]Collector{}}
}

// Register adds or replaces a collector implementation.
func (r *Registry) Register(c Collector) {
	if r.collectors == nil {
		r.collectors = map[domain.SourceKind]Collector{}
	}
	r.collectors[c.Kind()] = c
}

// Resolve returns a collector by kind or an error if it is absent.
func (r *Registry) Resolve(kind domain.SourceKind) (Collector, error) {
	if c, ok := r.collectors[kind]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("collector %s is not registered", kind)
}
