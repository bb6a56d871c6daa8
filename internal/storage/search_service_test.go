package storage

import (
	"context"
	"testing"

	"github.com/quillwiki/quill/internal/entity"
	"github.com/quillwiki/quill/internal/search"
)

func newSearchFixture(t *testing.T) (*RevisionService, *SearchService) {
	t.Helper()
	db, cache := newTestDB(t)
	return NewRevisionService(db, cache), NewSearchService(db, cache, defaultSearchConfig())
}

func indexPage(t *testing.T, pages *RevisionService, index *SearchService, doc search.Document, body string) *entity.Page {
	t.Helper()
	page := savePage(t, pages, &entity.Page{Name: doc.Title, Description: doc.Description, Body: body})
	doc.Body = body
	if err := index.IndexPage(context.Background(), page.ID, doc); err != nil {
		t.Fatalf("IndexPage(%s) failed: %v", doc.Title, err)
	}
	return page
}

func TestSearchEmptyTerms(t *testing.T) {
	_, index := newSearchFixture(t)
	results, err := index.Search(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("results = %v, want none", results)
	}
}

func TestSearchTitleOutweighsBody(t *testing.T) {
	pages, index := newSearchFixture(t)
	ctx := context.Background()

	a := indexPage(t, pages, index, search.Document{Title: "Apple Orchard"}, "fruit trees")
	indexPage(t, pages, index, search.Document{Title: "Grocery List"}, "buy one apple")

	results, err := index.Search(ctx, []string{"apple"})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("result count = %d, want 2", len(results))
	}
	var scoreA, scoreB float64
	for _, r := range results {
		if r.PageID == a.ID {
			scoreA = r.Score
		} else {
			scoreB = r.Score
		}
	}
	if scoreA < scoreB {
		t.Errorf("title match score %v < body match score %v", scoreA, scoreB)
	}
}

func TestSearchCaseVariantsFold(t *testing.T) {
	pages, index := newSearchFixture(t)
	ctx := context.Background()

	indexPage(t, pages, index, search.Document{Title: "Kubernetes Guide"}, "cluster notes")

	upper, err := index.Search(ctx, []string{"KUBERNETES"})
	if err != nil {
		t.Fatal(err)
	}
	lower, err := index.Search(ctx, []string{"kubernetes", "Kubernetes"})
	if err != nil {
		t.Fatal(err)
	}
	if len(upper) != 1 || len(lower) != 1 {
		t.Fatalf("result counts = %d/%d, want 1/1", len(upper), len(lower))
	}
	if upper[0].Score != lower[0].Score {
		t.Errorf("duplicate case-variant terms changed the score: %v vs %v", upper[0].Score, lower[0].Score)
	}
}

func TestFuzzyMatchScoresBelowExact(t *testing.T) {
	pages, index := newSearchFixture(t)
	ctx := context.Background()

	indexPage(t, pages, index, search.Document{Title: "Receive Procedure"}, "how to receive goods")

	exact, err := index.Search(ctx, []string{"receive"})
	if err != nil {
		t.Fatal(err)
	}
	fuzzy, err := index.Search(ctx, []string{"recieve"})
	if err != nil {
		t.Fatal(err)
	}
	if len(exact) != 1 {
		t.Fatalf("exact results = %d, want 1", len(exact))
	}
	if len(fuzzy) != 1 {
		t.Fatalf("fuzzy results = %d, want 1", len(fuzzy))
	}
	if fuzzy[0].Score >= exact[0].Score {
		t.Errorf("fuzzy score %v should be strictly below exact score %v", fuzzy[0].Score, exact[0].Score)
	}
}

func TestFuzzyHomophoneTermsEachCount(t *testing.T) {
	pages, index := newSearchFixture(t)
	ctx := context.Background()

	// "night" and "knight" share one phonetic key with the indexed "nite";
	// neither matches it verbatim.
	indexPage(t, pages, index, search.Document{Title: "Evening Bazaar"}, "open nite stalls")

	single, err := index.Search(ctx, []string{"night"})
	if err != nil {
		t.Fatal(err)
	}
	pair, err := index.Search(ctx, []string{"night", "knight"})
	if err != nil {
		t.Fatal(err)
	}
	if len(single) != 1 || len(pair) != 1 {
		t.Fatalf("result counts = %d/%d, want 1/1", len(single), len(pair))
	}
	// Both query terms match, so the fraction stays at the full 1/1 of the
	// single-term query rather than collapsing to 1/2.
	if pair[0].Match != single[0].Match {
		t.Errorf("homophone pair match fraction = %v, want %v", pair[0].Match, single[0].Match)
	}
}

func TestSearchMinimumScoreDiscards(t *testing.T) {
	db, cache := newTestDB(t)
	pages := NewRevisionService(db, cache)
	cfg := defaultSearchConfig()
	cfg.MinimumMatchScore = 100 // nothing can reach this
	index := NewSearchService(db, cache, cfg)
	ctx := context.Background()

	page := savePage(t, pages, &entity.Page{Name: "Quiet", Body: "x"})
	if err := index.IndexPage(ctx, page.ID, search.Document{Title: "Quiet", Body: "nothing much"}); err != nil {
		t.Fatal(err)
	}
	results, err := index.Search(ctx, []string{"quiet"})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("results = %v, want none below threshold", results)
	}
}

func TestSearchPartialTermMatchFraction(t *testing.T) {
	pages, index := newSearchFixture(t)
	ctx := context.Background()

	indexPage(t, pages, index, search.Document{Title: "Backup Policy"}, "nightly backup rotation")

	full, err := index.Search(ctx, []string{"backup"})
	if err != nil {
		t.Fatal(err)
	}
	half, err := index.Search(ctx, []string{"backup", "unrelatedterm"})
	if err != nil {
		t.Fatal(err)
	}
	if len(full) != 1 || len(half) != 1 {
		t.Fatalf("result counts = %d/%d, want 1/1", len(full), len(half))
	}
	if half[0].Match >= full[0].Match {
		t.Errorf("partial match fraction %v should be below full %v", half[0].Match, full[0].Match)
	}
}

func TestSavePageSearchTokensReplacesRows(t *testing.T) {
	db, cache := newTestDB(t)
	pages := NewRevisionService(db, cache)
	index := NewSearchService(db, cache, defaultSearchConfig())
	ctx := context.Background()

	page := savePage(t, pages, &entity.Page{Name: "Rotated", Body: "x"})
	if err := index.SavePageSearchTokens(ctx, page.ID, []entity.PageToken{
		{Token: "alpha", PhoneticKey: search.PhoneticKey("alpha"), Weight: 1},
	}); err != nil {
		t.Fatal(err)
	}
	if err := index.SavePageSearchTokens(ctx, page.ID, []entity.PageToken{
		{Token: "beta", PhoneticKey: search.PhoneticKey("beta"), Weight: 1},
	}); err != nil {
		t.Fatal(err)
	}

	var count int
	db.Conn().QueryRow("SELECT COUNT(*) FROM page_tokens WHERE page_id = ?", page.ID.String()).Scan(&count)
	if count != 1 {
		t.Errorf("token rows = %d, want 1 after replacement", count)
	}
	var token string
	db.Conn().QueryRow("SELECT token FROM page_tokens WHERE page_id = ?", page.ID.String()).Scan(&token)
	if token != "beta" {
		t.Errorf("token = %q, want beta", token)
	}
}

func TestRebuildPageTokens(t *testing.T) {
	db, cache := newTestDB(t)
	pages := NewRevisionService(db, cache)
	index := NewSearchService(db, cache, defaultSearchConfig())
	ctx := context.Background()

	page := savePage(t, pages, &entity.Page{Name: "Restored Article", Body: "important content here"})
	if err := pages.UpdatePageTags(ctx, page.ID, []string{"archive"}); err != nil {
		t.Fatal(err)
	}
	if err := index.RebuildPageTokens(ctx, page.ID); err != nil {
		t.Fatalf("RebuildPageTokens failed: %v", err)
	}

	results, err := index.Search(ctx, []string{"important"})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("results = %d, want 1", len(results))
	}
	results, err = index.Search(ctx, []string{"archive"})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Errorf("tag token missing from rebuilt index")
	}
}

func TestSearchPagedByScore(t *testing.T) {
	pages, index := newSearchFixture(t)
	ctx := context.Background()

	indexPage(t, pages, index, search.Document{Title: "Zebra Migration"}, "zebra zebra zebra")
	indexPage(t, pages, index, search.Document{Title: "About Animals"}, "one zebra")

	results, err := index.SearchPaged(ctx, []string{"zebra"}, SearchOptions{Page: 1, PageSize: 1, OrderByScore: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("page size 1 returned %d results", len(results))
	}
	if results[0].Name != "Zebra Migration" {
		t.Errorf("top result = %q, want the heavier page", results[0].Name)
	}
}
