package planstore

import "testing"

func TestNormalizeTicketSlug(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"Add Retry Support", "add-retry-support", false},
		{"already-lower", "already-lower", false},
		{"has_underscore", "has-underscore", false},
		{"", "", true},
		{"bad--double-hyphen", "", true},
		{"-leading-hyphen", "", true},
	}
	for _, c := range cases {
		got, err := NormalizeTicketSlug(c.in)
		if c.wantErr {
			if err == nil {
				t.Errorf("NormalizeTicketSlug(%q) = %q, want error", c.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("NormalizeTicketSlug(%q) unexpected error: %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("NormalizeTicketSlug(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestTicketPathRoundTrip(t *testing.T) {
	path := TicketPath(StateOpen, 7, "add-retry-support")
	if path != "tickets/open/0007-add-retry-support.md" {
		t.Fatalf("TicketPath = %q", path)
	}
	number, slug, err := ParseTicketFilename("0007-add-retry-support.md")
	if err != nil {
		t.Fatalf("ParseTicketFilename: %v", err)
	}
	if number != 7 || slug != "add-retry-support" {
		t.Errorf("ParseTicketFilename = (%d, %q), want (7, %q)", number, slug, "add-retry-support")
	}
}

func TestSetFieldReplacesExisting(t *testing.T) {
	body := "# Ticket\n\n**Area:** 01-backend\n**Worktree:** /old/path\n\nBody text.\n"
	updated := setField(body, fieldWorktree, "/new/path")
	if extractField(updated, fieldWorktree) != "/new/path" {
		t.Errorf("expected updated worktree field, got body:\n%s", updated)
	}
	if extractField(updated, fieldArea) != "01-backend" {
		t.Errorf("expected area field preserved, got body:\n%s", updated)
	}
}

func TestSetFieldAppendsWhenAbsent(t *testing.T) {
	body := "# Ticket\n\nBody text.\n"
	updated := setField(body, fieldWorktree, "/new/path")
	if extractField(updated, fieldWorktree) != "/new/path" {
		t.Errorf("expected appended worktree field, got body:\n%s", updated)
	}
}

func TestAppendSectionPreservesPriorContent(t *testing.T) {
	body := "# Ticket\n\nOriginal body.\n"
	updated := AppendSection(body, "Agent Run", "- Exit code: 0\n")
	if !contains(updated, "Original body.") {
		t.Errorf("expected original body preserved, got:\n%s", updated)
	}
	if !contains(updated, "## Agent Run") {
		t.Errorf("expected new section heading, got:\n%s", updated)
	}
}

func TestOldestOpenPicksSmallestNumberThenPath(t *testing.T) {
	tickets := []*Ticket{
		{Number: 3, Slug: "c", State: StateOpen},
		{Number: 1, Slug: "b", State: StateOpen},
		{Number: 1, Slug: "a", State: StateOpen},
	}
	got := OldestOpen(tickets)
	if got.Number != 1 || got.Slug != "a" {
		t.Errorf("OldestOpen = {%d, %s}, want {1, a}", got.Number, got.Slug)
	}
}

func TestTailStringTruncatesFromEnd(t *testing.T) {
	if got := TailString("hello world", 5); got != "world" {
		t.Errorf("TailString = %q, want %q", got, "world")
	}
	if got := TailString("short", 50); got != "short" {
		t.Errorf("TailString = %q, want unchanged %q", got, "short")
	}
}

func contains(haystack, needle string) bool {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return true
		}
	}
	return false
}
