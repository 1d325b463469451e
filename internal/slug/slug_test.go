package slug_test

import (
	"context"
	"testing"

	"github.com/sohan284/social-media-go/internal/slug"
)

func TestMake(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Hello World", "hello-world"},
		{"  Tech & Gadgets!  ", "tech-gadgets"},
		{"already-slugged", "already-slugged"},
		{"UPPER", "upper"},
		{"multi   spaces", "multi-spaces"},
		{"", ""},
		{"---", ""},
	}
	for _, tc := range cases {
		if got := slug.Make(tc.in); got != tc.want {
			t.Errorf("Make(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestUnique(t *testing.T) {
	taken := map[string]bool{"go-lang": true, "go-lang-2": true}
	check := func(ctx context.Context, s, excludeID string) (bool, error) {
		return taken[s], nil
	}

	got, err := slug.Unique(context.Background(), "Go Lang", "", check)
	if err != nil {
		t.Fatalf("unique: %v", err)
	}
	if got != "go-lang-3" {
		t.Errorf("got %q, want go-lang-3", got)
	}

	got, err = slug.Unique(context.Background(), "Fresh Name", "", check)
	if err != nil {
		t.Fatalf("unique: %v", err)
	}
	if got != "fresh-name" {
		t.Errorf("got %q, want fresh-name", got)
	}
}
