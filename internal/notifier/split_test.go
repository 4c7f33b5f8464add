package notifier

import (
	"strings"
	"testing"
	"unicode/utf16"
)

func utf16Units(s string) int { return len(utf16.Encode([]rune(s))) }

func TestSplitText(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		in    string
		limit int
		want  int
	}{
		{name: "short", in: "ALERT: hello", limit: 10, want: 2},
		{name: "fits", in: "abc", limit: 10, want: 1},
		{name: "exact", in: strings.Repeat("x", 10), limit: 10, want: 1},
		{name: "hard cut", in: strings.Repeat("x", 25), limit: 10, want: 3},
		{name: "empty", in: "", limit: 10, want: 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := splitText(tc.in, tc.limit)
			if len(got) != tc.want {
				t.Fatalf("splitText(%q) = %d chunks %q, want %d", tc.in, len(got), got, tc.want)
			}
			for _, c := range got {
				if utf16Units(c) > tc.limit {
					t.Fatalf("chunk %q exceeds limit %d", c, tc.limit)
				}
			}
		})
	}
}

func TestSplitTextPrefersNewlines(t *testing.T) {
	t.Parallel()

	in := "line one\nline two\nline three"
	got := splitText(in, 20)
	if len(got) != 2 {
		t.Fatalf("got %q", got)
	}
	if got[0] != "line one\nline two" || got[1] != "line three" {
		t.Fatalf("unexpected split: %q", got)
	}
}

func TestSplitTextRunes(t *testing.T) {
	t.Parallel()

	in := strings.Repeat("é", 9)
	got := splitText(in, 4)
	if len(got) != 3 {
		t.Fatalf("got %d chunks", len(got))
	}
	if strings.Join(got, "") != in {
		t.Fatalf("lost runes: %q", got)
	}
}

func TestSplitTextDefaultLimit(t *testing.T) {
	t.Parallel()

	in := strings.Repeat("a", textLimit+1)
	if got := splitText(in, 0); len(got) != 2 {
		t.Fatalf("got %d chunks, want 2", len(got))
	}
}

func TestSplitTextCountsUTF16Units(t *testing.T) {
	t.Parallel()

	// each emoji is one rune but two UTF-16 code units
	in := strings.Repeat("😀", 5)
	got := splitText(in, 4)
	if len(got) != 3 {
		t.Fatalf("got %d chunks %q, want 3", len(got), got)
	}
	for _, c := range got {
		if n := utf16Units(c); n > 4 {
			t.Fatalf("chunk %q is %d UTF-16 units, limit 4", c, n)
		}
	}
	if strings.Join(got, "") != in {
		t.Fatalf("lost runes: %q", got)
	}

	// a rune-counted limit would let this through as one message
	long := strings.Repeat("😀", textLimit/2+1)
	if got := splitText(long, 0); len(got) != 2 {
		t.Fatalf("got %d chunks for %d emoji, want 2", len(got), textLimit/2+1)
	}
}
