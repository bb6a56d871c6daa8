package entity

import "testing"

func TestCanonicalNavigation(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Home Page", "home_page"},
		{"Ops :: Server Setup", "ops_::_server_setup"},
		{"  Spaced   Out  ", "spaced_out"},
		{"Mixed-Case.Name", "mixed-case.name"},
		{"weird!@#chars", "weirdchars"},
	}
	for _, tt := range tests {
		if got := CanonicalNavigation(tt.in); got != tt.want {
			t.Errorf("CanonicalNavigation(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSplitName(t *testing.T) {
	ns, title := SplitName("ops::Backup Policy")
	if ns != "ops" || title != "Backup Policy" {
		t.Errorf("SplitName = (%q, %q)", ns, title)
	}
	ns, title = SplitName("Standalone")
	if ns != "" || title != "Standalone" {
		t.Errorf("SplitName = (%q, %q)", ns, title)
	}
}

func TestParsePageSort(t *testing.T) {
	if _, err := ParsePageSort("modified"); err != nil {
		t.Errorf("modified should parse: %v", err)
	}
	if _, err := ParsePageSort("drop table"); err == nil {
		t.Error("unknown sort key should be rejected")
	}
}
