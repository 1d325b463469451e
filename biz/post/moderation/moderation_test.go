package moderation_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sohan284/social-media-go/biz/post/moderation"
)

func TestAllowed(t *testing.T) {
	checker := moderation.NewCheckerFromWords([]string{"Spam", "scam"})

	cases := []struct {
		content string
		want    bool
	}{
		{"a perfectly fine post", true},
		{"this is SPAM", false},
		{"scam, right here", false},
		{"spamming is not an exact match", true},
		{"", true},
	}
	for _, tc := range cases {
		if got := checker.Allowed(tc.content); got != tc.want {
			t.Errorf("Allowed(%q) = %v, want %v", tc.content, got, tc.want)
		}
	}
}

func TestEmptyCheckerApprovesEverything(t *testing.T) {
	checker := moderation.NewCheckerFromWords(nil)
	if !checker.Allowed("anything at all") {
		t.Error("empty checker should approve everything")
	}
}

func TestNewCheckerFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wordlist.txt")
	content := "# blocked words\nspam\n\n  scam  \n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write wordlist: %v", err)
	}

	checker, err := moderation.NewChecker(path)
	if err != nil {
		t.Fatalf("load wordlist: %v", err)
	}
	if checker.Allowed("pure spam") {
		t.Error("expected spam to be blocked")
	}
	if !checker.Allowed("mentions the comment marker #") {
		t.Error("comment lines must not become blocked words")
	}
}

func TestNewCheckerEmptyPath(t *testing.T) {
	checker, err := moderation.NewChecker("")
	if err != nil {
		t.Fatalf("empty path: %v", err)
	}
	if !checker.Allowed("whatever") {
		t.Error("checker without a wordlist should approve everything")
	}
}
