// Package packrules resolves the packaging constraint for a product through a
// specificity cascade: product rule, category rule, category default, keyword
// inference, system default. Resolution never fails; missing data degrades to
// permissive behaviour (pack size 1, no enforcement).
package packrules

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub001/internal/domain"
)

// Source supplies stored pack rules. A nil result with nil error means "no rule
// at this tier"; errors degrade to the next tier rather than failing the run.
type Source interface {
	ProductRule(ctx context.Context, productID string) (*domain.PackRule, error)
	CategoryRule(ctx context.Context, categoryCode string) (*domain.PackRule, error)
	CategoryDefault(ctx context.Context, categoryCode string) (*domain.PackRule, error)
}

// Resolver resolves and memoizes pack rules for the duration of one run.
// The cache is owned by the run and discarded with it; concurrent runs never
// share a resolver.
type Resolver struct {
	source Source

	mu    sync.RWMutex
	cache map[string]domain.PackRule
}

func NewResolver(source Source) *Resolver {
	return &Resolver{
		source: source,
		cache:  make(map[string]domain.PackRule),
	}
}

// Resolve returns the applicable pack rule for a product. It never errors.
func (r *Resolver) Resolve(ctx context.Context, product domain.Product) domain.PackRule {
	r.mu.RLock()
	if rule, ok := r.cache[product.ID]; ok {
		r.mu.RUnlock()
		return rule
	}
	r.mu.RUnlock()

	rule := r.resolve(ctx, product)

	r.mu.Lock()
	r.cache[product.ID] = rule
	r.mu.Unlock()

	return rule
}

func (r *Resolver) resolve(ctx context.Context, product domain.Product) domain.PackRule {
	text := strings.ToLower(product.Name + " " + product.CategoryCode)

	// Individual items override any stored pack metadata.
	if individualPattern.MatchString(text) {
		return domain.PackRule{
			PackSize:      1,
			OuterMultiple: 1,
			RoundingMode:  domain.RoundHalf,
			Source:        domain.RuleSourceKeyword,
			Confidence:    0.90,
		}
	}

	if r.source != nil {
		if rule := r.lookup(ctx, "product", product.ID, r.source.ProductRule); rule != nil {
			return *rule
		}
		if product.CategoryCode != "" {
			if rule := r.lookup(ctx, "category", product.CategoryCode, r.source.CategoryRule); rule != nil {
				return *rule
			}
			if rule := r.lookup(ctx, "category_default", product.CategoryCode, r.source.CategoryDefault); rule != nil {
				return *rule
			}
		}
	}

	raw := max(product.PackSize, product.OuterPackSize)
	for _, kw := range packRequiredRules {
		if kw.pattern.MatchString(text) {
			if size := kw.apply(raw); size > 1 {
				return domain.PackRule{
					PackSize:      size,
					OuterMultiple: size,
					EnforceOuter:  true,
					RoundingMode:  domain.RoundFloor,
					Source:        domain.RuleSourceKeyword,
					Confidence:    0.80,
				}
			}
			break
		}
	}

	// Stored pack metadata counts only when it describes an actual multiple.
	if raw > 1 {
		return domain.PackRule{
			PackSize:      raw,
			OuterMultiple: raw,
			EnforceOuter:  product.OuterPackSize > 1,
			RoundingMode:  domain.RoundFloor,
			Source:        domain.RuleSourceProduct,
			Confidence:    0.70,
		}
	}

	return SystemDefault()
}

type lookupFn func(ctx context.Context, key string) (*domain.PackRule, error)

func (r *Resolver) lookup(ctx context.Context, tier, key string, fn lookupFn) *domain.PackRule {
	rule, err := fn(ctx, key)
	if err != nil {
		log.Debug().Err(err).Str("tier", tier).Str("key", key).Msg("pack rule lookup failed, falling through")
		return nil
	}
	if rule == nil {
		return nil
	}
	normalized := *rule
	if normalized.PackSize < 1 {
		normalized.PackSize = 1
	}
	if normalized.OuterMultiple < 1 {
		normalized.OuterMultiple = normalized.PackSize
	}
	if normalized.RoundingMode == "" {
		normalized.RoundingMode = domain.RoundHalf
	}
	return &normalized
}

// SystemDefault is the permissive fallback rule.
func SystemDefault() domain.PackRule {
	return domain.PackRule{
		PackSize:      1,
		OuterMultiple: 1,
		EnforceOuter:  false,
		RoundingMode:  domain.RoundHalf,
		Source:        domain.RuleSourceSystemDefault,
		Confidence:    0.50,
	}
}

// Snap rounds a raw quantity to the rule's pack multiple using its rounding
// mode. Pack sizes of one leave the quantity untouched.
func Snap(qty int, rule domain.PackRule) int {
	size := rule.PackSize
	if size <= 1 {
		return qty
	}

	switch rule.RoundingMode {
	case domain.RoundFloor:
		return qty / size * size
	case domain.RoundCeil:
		return (qty + size - 1) / size * size
	default:
		return (qty + size/2) / size * size
	}
}
