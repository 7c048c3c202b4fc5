package knowledge

import (
	"context"
	"fmt"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Searcher ranks catalog resources against a free-text query.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]Result, error)
}

// field weights for lexical scoring; keywords and names dominate because
// they are curated, description text is long-tail
const (
	keywordWeight     = 3.0
	nameWeight        = 2.5
	categoryWeight    = 2.0
	descriptionWeight = 1.0

	searchCacheSize = 256
)

// LexicalSearcher scores tools by token overlap between the query and each
// tool's keyword list, name, category, and description. No embeddings, no
// network: the catalog is small enough that a weighted overlap ranks fine,
// and the gate must never wait on a model to serve search.
type LexicalSearcher struct {
	Catalog *Catalog

	cache *lru.Cache[string, []Result]
}

var _ Searcher = (*LexicalSearcher)(nil)

func NewLexicalSearcher(catalog *Catalog) (*LexicalSearcher, error) {
	cache, err := lru.New[string, []Result](searchCacheSize)
	if err != nil {
		return nil, err
	}
	return &LexicalSearcher{
		Catalog: catalog,
		cache:   cache,
	}, nil
}

// Search returns tools with a positive relevance score, best first, at most
// limit. Results are cached per (query, limit); the cache drops entries when
// the catalog changes under it only by LRU pressure, so admin catalog edits
// should call ClearCache.
func (s *LexicalSearcher) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = 10
	}
	queryTokens := TokenizeText(query)
	if len(queryTokens) == 0 {
		return []Result{}, nil
	}

	cacheKey := fmt.Sprintf("%d/%s", limit, strings.Join(queryTokens, " "))
	if hit, ok := s.cache.Get(cacheKey); ok {
		return hit, nil
	}

	var results []Result
	for _, tool := range s.Catalog.Tools() {
		score := scoreTool(&tool, queryTokens)
		if score <= 0 {
			continue
		}
		results = append(results, Result{Tool: tool, RelevanceScore: score})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].RelevanceScore > results[j].RelevanceScore
	})
	if len(results) > limit {
		results = results[:limit]
	}
	if results == nil {
		results = []Result{}
	}

	s.cache.Add(cacheKey, results)
	return results, nil
}

// ClearCache drops all cached result lists, for after catalog edits.
func (s *LexicalSearcher) ClearCache() {
	s.cache.Purge()
}

func scoreTool(tool *Tool, queryTokens []string) float64 {
	keywords := tokenSet(tool.Keywords...)
	names := tokenSet(tool.Name)
	categories := tokenSet(tool.Category)
	descriptions := tokenSet(tool.Description)

	var score float64
	for _, tok := range queryTokens {
		if keywords[tok] {
			score += keywordWeight
		}
		if names[tok] {
			score += nameWeight
		}
		if categories[tok] {
			score += categoryWeight
		}
		if descriptions[tok] {
			score += descriptionWeight
		}
	}
	// normalize by query length so long questions don't outrank short ones
	return score / float64(len(queryTokens))
}
