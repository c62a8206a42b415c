package resolve

import (
	"fmt"
	"regexp"
	"strings"

	"NordicIngest/internal/domain"
	"NordicIngest/internal/ports"
)

var (
	keyExpr  = regexp.MustCompile(`[^a-z0-9-]+`)
	dashExpr = regexp.MustCompile(`-+`)
)

// Resolver maps free-text entity hints (names or slugs from collectors) to
// registered entities. Lookup order: exact name, alias table, substring.
// Unresolved hints return domain.ErrEntityNotFound; a hint is never silently
// attached to the nearest entity.
type Resolver struct {
	byName  map[string]domain.Entity
	byAlias map[string]domain.Entity
	all     []domain.Entity
}

var _ ports.EntityResolver = (*Resolver)(nil)

// NewResolver indexes the given entities. Alias and name matching is
// case-insensitive; every entity's ID, Key and Name double as aliases.
func NewResolver(entities []domain.Entity) *Resolver {
	r := &Resolver{
		byName:  map[string]domain.Entity{},
		byAlias: map[string]domain.Entity{},
		all:     entities,
	}
	for _, e := range entities {
		r.byName[strings.ToLower(e.Name)] = e
		r.byAlias[strings.ToLower(e.ID)] = e
		r.byAlias[strings.ToLower(e.Key)] = e
		for _, alias := range e.Aliases {
			r.byAlias[strings.ToLower(alias)] = e
		}
	}
	return r
}

// Resolve returns the entity for a hint.
func (r *Resolver) Resolve(hint string) (domain.Entity, error) {
	needle := strings.ToLower(strings.TrimSpace(hint))
	if needle == "" {
		return domain.Entity{}, fmt.Errorf("empty entity hint: %w", domain.ErrEntityNotFound)
	}

	if e, ok := r.byName[needle]; ok {
		return e, nil
	}
	if e, ok := r.byAlias[needle]; ok {
		return e, nil
	}

	for _, e := range r.all {
		name := strings.ToLower(e.Name)
		if strings.Contains(name, needle) || strings.Contains(needle, name) {
			return e, nil
		}
		key := strings.ToLower(e.Key)
		if key != "" && (strings.Contains(key, needle) || strings.Contains(needle, key)) {
			return e, nil
		}
	}

	return domain.Entity{}, fmt.Errorf("hint %q: %w", hint, domain.ErrEntityNotFound)
}

// EntityKey derives the canonical storage key for an entity. Entities with a
// configured Key keep it; otherwise the key is the sanitized name.
func EntityKey(e domain.Entity) string {
	key := e.Key
	if key == "" {
		key = e.Name
	}
	key = strings.ToLower(strings.TrimSpace(key))
	key = strings.ReplaceAll(key, " ", "-")
	key = keyExpr.ReplaceAllString(key, "")
	key = dashExpr.ReplaceAllString(key, "-")
	key = strings.Trim(key, "-")
	if key == "" {
		key = "unknown"
	}
	return key
}
