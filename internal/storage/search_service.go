package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/maruel/ksid"

	"github.com/quillwiki/quill/internal/config"
	"github.com/quillwiki/quill/internal/entity"
	"github.com/quillwiki/quill/internal/search"
	"github.com/quillwiki/quill/internal/wikidb"
)

// SearchService owns the page_tokens table: weighted per-page tokens rebuilt
// whenever a page's content changes, queried with a two-pass exact/fuzzy
// scoring algorithm. The index holds no independent truth and can always be
// rebuilt from the current page revisions.
type SearchService struct {
	db        *wikidb.DB
	cache     *Cache
	tokenizer *search.Tokenizer

	minimumMatchScore float64
	fuzzyPenalty      float64
	enableFuzzy       bool
}

// NewSearchService creates a search service tuned by cfg.
func NewSearchService(db *wikidb.DB, cache *Cache, cfg config.SearchConfig) *SearchService {
	tokenizer := &search.Tokenizer{
		TitleWeight:       cfg.TitleWeight,
		TagWeight:         cfg.TagWeight,
		DescriptionWeight: cfg.DescriptionWeight,
		BodyWeight:        cfg.BodyWeight,
		SplitCamelCase:    cfg.SplitCamelCase,
	}
	return &SearchService{
		db:                db,
		cache:             cache,
		tokenizer:         tokenizer,
		minimumMatchScore: cfg.MinimumMatchScore,
		fuzzyPenalty:      cfg.FuzzyPenalty,
		enableFuzzy:       cfg.EnableFuzzy,
	}
}

// SavePageSearchTokens replaces the page's token rows wholesale. The
// rendering engine calls this with tokens built from the rendered plain-text
// content.
func (s *SearchService) SavePageSearchTokens(ctx context.Context, pageID ksid.ID, tokens []entity.PageToken) error {
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.Exec("DELETE FROM page_tokens WHERE page_id = ?", pageID.String()); err != nil {
			return fmt.Errorf("clearing tokens: %w", err)
		}
		for _, tok := range tokens {
			if _, err := tx.Exec(`
				INSERT INTO page_tokens (page_id, token, phonetic_key, weight)
				VALUES (?, ?, ?, ?)`,
				pageID.String(), tok.Token, tok.PhoneticKey, tok.Weight); err != nil {
				return fmt.Errorf("inserting token %q: %w", tok.Token, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.cache.ClearCategory(CacheSearch)
	return nil
}

// IndexPage tokenizes an already-rendered document and persists the result.
func (s *SearchService) IndexPage(ctx context.Context, pageID ksid.ID, doc search.Document) error {
	return s.SavePageSearchTokens(ctx, pageID, s.tokenizer.Tokenize(doc))
}

// RebuildPageTokens re-indexes a page from its current revision and tags.
// This is the restore path: archived pages come back with no tokens.
func (s *SearchService) RebuildPageTokens(ctx context.Context, pageID ksid.ID) error {
	var name, description, body string
	err := s.db.Conn().QueryRowContext(ctx, `
		SELECT r.name, r.description, r.body
		FROM pages p
		JOIN page_revisions r ON r.page_id = p.id AND r.revision = p.revision
		WHERE p.id = ?`, pageID.String()).Scan(&name, &description, &body)
	if err == sql.ErrNoRows {
		return fmt.Errorf("page %s: %w", pageID, entity.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("loading page content: %w", err)
	}
	rows, err := s.db.Conn().QueryContext(ctx,
		"SELECT tag FROM page_tags WHERE page_id = ?", pageID.String())
	if err != nil {
		return fmt.Errorf("loading tags: %w", err)
	}
	defer rows.Close()
	var tags []string
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return err
		}
		tags = append(tags, tag)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	return s.IndexPage(ctx, pageID, search.Document{
		Title:       name,
		Description: description,
		Tags:        tags,
		Body:        body,
	})
}

// pageScore is the per-page triple accumulated by the two passes.
type pageScore struct {
	match  float64
	weight float64
	score  float64
}

// Search runs the two-pass scored lookup and returns matching pages ordered
// by name. An empty term list returns an empty result without querying.
func (s *SearchService) Search(ctx context.Context, terms []string) ([]entity.PageSearchResult, error) {
	results, err := s.search(ctx, terms)
	if err != nil {
		return nil, err
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })
	return results, nil
}

// SearchOptions selects one page of search results.
type SearchOptions struct {
	Page         int
	PageSize     int
	OrderByScore bool
}

// SearchPaged returns one page of results, by score when the caller asks for
// relevance order and by name otherwise.
func (s *SearchService) SearchPaged(ctx context.Context, terms []string, opts SearchOptions) ([]entity.PageSearchResult, error) {
	results, err := s.search(ctx, terms)
	if err != nil {
		return nil, err
	}
	if opts.OrderByScore {
		sort.Slice(results, func(i, j int) bool {
			if results[i].Score != results[j].Score {
				return results[i].Score > results[j].Score
			}
			return results[i].Name < results[j].Name
		})
	} else {
		sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 20
	}
	if opts.Page < 1 {
		opts.Page = 1
	}
	start := (opts.Page - 1) * opts.PageSize
	if start >= len(results) {
		return nil, nil
	}
	end := start + opts.PageSize
	if end > len(results) {
		end = len(results)
	}
	return results[start:end], nil
}

func (s *SearchService) search(ctx context.Context, terms []string) ([]entity.PageSearchResult, error) {
	terms = foldTerms(terms)
	if len(terms) == 0 {
		return nil, nil
	}
	key := searchCacheKey(terms, s.enableFuzzy)
	if v, ok := s.cache.Get(CacheSearch, key); ok {
		return append([]entity.PageSearchResult(nil), v.([]entity.PageSearchResult)...), nil
	}

	total := float64(len(terms))
	halfThreshold := s.minimumMatchScore / 2

	// Exact pass: verbatim token equality.
	exactUnits := make(map[string]float64, len(terms))
	for _, term := range terms {
		exactUnits[term]++
	}
	exact, err := s.scorePass(ctx, "token", exactUnits, total)
	if err != nil {
		return nil, err
	}
	for id, sc := range exact {
		if sc.score < halfThreshold {
			delete(exact, id)
		}
	}

	// Fuzzy pass: phonetic-key equality, penalized. Homophone query terms
	// collapse to one key, so each key carries the number of terms behind it.
	fuzzy := map[string]pageScore{}
	if s.enableFuzzy {
		keyUnits := map[string]float64{}
		for _, term := range terms {
			if k := search.PhoneticKey(term); k != "" {
				keyUnits[k]++
			}
		}
		fuzzy, err = s.scorePass(ctx, "phonetic_key", keyUnits, total)
		if err != nil {
			return nil, err
		}
		for id, sc := range fuzzy {
			sc.match *= s.fuzzyPenalty
			sc.weight *= s.fuzzyPenalty
			sc.score *= s.fuzzyPenalty
			if sc.score < halfThreshold {
				delete(fuzzy, id)
				continue
			}
			fuzzy[id] = sc
		}
	}

	// Combine: per page, the maximum of each figure across the passes.
	combined := exact
	for id, f := range fuzzy {
		e, ok := combined[id]
		if !ok {
			combined[id] = f
			continue
		}
		if f.match > e.match {
			e.match = f.match
		}
		if f.weight > e.weight {
			e.weight = f.weight
		}
		if f.score > e.score {
			e.score = f.score
		}
		combined[id] = e
	}
	for id, sc := range combined {
		if sc.score < s.minimumMatchScore {
			delete(combined, id)
		}
	}
	if len(combined) == 0 {
		s.cache.Set(CacheSearch, key, []entity.PageSearchResult(nil))
		return nil, nil
	}

	results, err := s.joinPageMetadata(ctx, combined)
	if err != nil {
		return nil, err
	}
	s.cache.Set(CacheSearch, key, results)
	return append([]entity.PageSearchResult(nil), results...), nil
}

// scorePass aggregates token matches per page for one pass. units maps each
// lookup value to the number of query terms it stands for. column is a fixed
// literal, never user input.
func (s *SearchService) scorePass(ctx context.Context, column string, units map[string]float64, totalTerms float64) (map[string]pageScore, error) {
	if len(units) == 0 {
		return map[string]pageScore{}, nil
	}
	placeholders := strings.Repeat("?,", len(units)-1) + "?"
	args := make([]any, 0, len(units))
	for v := range units {
		args = append(args, v)
	}
	rows, err := s.db.Conn().QueryContext(ctx,
		"SELECT page_id, "+column+", weight FROM page_tokens WHERE "+column+" IN ("+placeholders+")",
		args...)
	if err != nil {
		return nil, fmt.Errorf("querying tokens: %w", err)
	}
	defer rows.Close()

	matched := map[string]map[string]bool{} // page id -> matched values
	weights := map[string]float64{}
	for rows.Next() {
		var pageID, value string
		var weight float64
		if err := rows.Scan(&pageID, &value, &weight); err != nil {
			return nil, err
		}
		if matched[pageID] == nil {
			matched[pageID] = map[string]bool{}
		}
		matched[pageID][value] = true
		weights[pageID] += weight
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	scores := make(map[string]pageScore, len(matched))
	for pageID, values := range matched {
		var matchedUnits float64
		for v := range values {
			matchedUnits += units[v]
		}
		fraction := matchedUnits / totalTerms
		weightSum := weights[pageID]
		scores[pageID] = pageScore{
			match:  fraction,
			weight: weightSum,
			score:  fraction * weightSum,
		}
	}
	return scores, nil
}

func (s *SearchService) joinPageMetadata(ctx context.Context, scores map[string]pageScore) ([]entity.PageSearchResult, error) {
	ids := make([]string, 0, len(scores))
	for id := range scores {
		ids = append(ids, id)
	}
	placeholders := strings.Repeat("?,", len(ids)-1) + "?"
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.db.Conn().QueryContext(ctx, `
		SELECT id, name, navigation, namespace, description, modified_date
		FROM pages WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("joining page metadata: %w", err)
	}
	defer rows.Close()

	var out []entity.PageSearchResult
	for rows.Next() {
		var r entity.PageSearchResult
		var id string
		var modified int64
		if err := rows.Scan(&id, &r.Name, &r.Navigation, &r.Namespace, &r.Description, &modified); err != nil {
			return nil, err
		}
		pid, err := ksid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("parsing page id %q: %w", id, err)
		}
		sc := scores[id]
		r.PageID = pid
		r.Match = sc.match
		r.Weight = sc.weight
		r.Score = sc.score
		r.ModifiedDate = wikidb.FromMillis(modified)
		out = append(out, r)
	}
	return out, rows.Err()
}

// foldTerms lower-cases and de-duplicates query terms; case variants of one
// term count once.
func foldTerms(terms []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, term := range terms {
		term = strings.ToLower(strings.TrimSpace(term))
		if term == "" || seen[term] {
			continue
		}
		seen[term] = true
		out = append(out, term)
	}
	return out
}
