package search

import "testing"

func findToken(t *testing.T, tokens []tokenRow, want string) (tokenRow, bool) {
	t.Helper()
	for _, tok := range tokens {
		if tok.Token == want {
			return tok, true
		}
	}
	return tokenRow{}, false
}

type tokenRow = struct {
	Token       string
	PhoneticKey string
	Weight      float64
}

func tokenize(t *testing.T, doc Document) []tokenRow {
	t.Helper()
	var rows []tokenRow
	for _, tok := range NewTokenizer().Tokenize(doc) {
		rows = append(rows, tokenRow{tok.Token, tok.PhoneticKey, tok.Weight})
	}
	return rows
}

func TestTokenizeFieldWeights(t *testing.T) {
	rows := tokenize(t, Document{
		Title:       "Apple",
		Description: "apple",
		Body:        "apple apple",
	})
	tok, ok := findToken(t, rows, "apple")
	if !ok {
		t.Fatal("token apple not produced")
	}
	// 1×1.6 (title) + 1×1.2 (description) + 2×1.0 (body)
	want := DefaultTitleWeight + DefaultDescriptionWeight + 2*DefaultBodyWeight
	if tok.Weight != want {
		t.Errorf("weight = %v, want %v", tok.Weight, want)
	}
	if tok.PhoneticKey == "" {
		t.Error("expected a phonetic key")
	}
}

func TestTokenizeTagWeight(t *testing.T) {
	rows := tokenize(t, Document{Tags: []string{"cooking", "recipes"}})
	tok, ok := findToken(t, rows, "cooking")
	if !ok {
		t.Fatal("tag token not produced")
	}
	if tok.Weight != DefaultTagWeight {
		t.Errorf("weight = %v, want %v", tok.Weight, DefaultTagWeight)
	}
}

func TestTokenizeStripsMarkupAndStopwords(t *testing.T) {
	rows := tokenize(t, Document{Body: "<p>the database <b>engine</b> is fast</p>"})
	if _, ok := findToken(t, rows, "the"); ok {
		t.Error("stop word should be removed")
	}
	if _, ok := findToken(t, rows, "p"); ok {
		t.Error("markup should be stripped")
	}
	if _, ok := findToken(t, rows, "engine"); !ok {
		t.Error("expected token engine")
	}
}

func TestTokenizeCaseFolds(t *testing.T) {
	rows := tokenize(t, Document{Body: "Wiki wiki WIKI"})
	tok, ok := findToken(t, rows, "wiki")
	if !ok {
		t.Fatal("token wiki not produced")
	}
	if tok.Weight != 3*DefaultBodyWeight {
		t.Errorf("weight = %v, want %v", tok.Weight, 3*DefaultBodyWeight)
	}
}

func TestSplitCamel(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"PageRevision", []string{"Page", "Revision"}},
		{"HTTPServer", []string{"HTTP", "Server"}},
		{"simple", []string{"simple"}},
	}
	for _, tt := range tests {
		got := splitCamel(tt.in)
		if len(got) != len(tt.want) {
			t.Errorf("splitCamel(%q) = %v, want %v", tt.in, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("splitCamel(%q) = %v, want %v", tt.in, got, tt.want)
				break
			}
		}
	}
}

func TestCamelCaseDisabled(t *testing.T) {
	tk := NewTokenizer()
	tk.SplitCamelCase = false
	found := false
	for _, tok := range tk.Tokenize(Document{Body: "PageRevision"}) {
		if tok.Token == "page" {
			found = true
		}
	}
	if found {
		t.Error("camel-case sub-tokens emitted while splitting disabled")
	}
}

func TestPhoneticKeyMatchesMisspelling(t *testing.T) {
	if PhoneticKey("receive") != PhoneticKey("recieve") {
		t.Error("phonetically identical spellings should share a key")
	}
	if PhoneticKey("apple") == PhoneticKey("zebra") {
		t.Error("unrelated words should not share a key")
	}
}
