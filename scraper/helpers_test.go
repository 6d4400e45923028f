package scraper

import (
	"strings"
	"testing"
)

func TestNorm(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"  월   33,000원\n", "월 33,000원"},
		{"a\t\tb", "a b"},
		{"", ""},
	}
	for _, c := range cases {
		if got := norm(c.in); got != c.want {
			t.Fatalf("norm(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestMoney(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"월 33,000원", 33000},
		{"19,800", 19800},
		{"무료", 0},
		{"", 0},
	}
	for _, c := range cases {
		if got := money(c.in); got != c.want {
			t.Fatalf("money(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestSafeFilename(t *testing.T) {
	if got := safeFilename("모두다 맘껏 11GB+"); got != "모두다_맘껏_11GB+" {
		t.Fatalf("unexpected name %q", got)
	}
	if got := safeFilename(`a/b\c:d*e?f"g<h>i|j`); strings.ContainsAny(got, `/\:*?"<>| `) {
		t.Fatalf("unsafe characters left in %q", got)
	}
	if got := safeFilename("   "); got != "item" {
		t.Fatalf("expected fallback name, got %q", got)
	}

	long := strings.Repeat("요", 200)
	got := safeFilename(long)
	if r := []rune(got); len(r) != 90 {
		t.Fatalf("expected 90 runes, got %d", len(r))
	}
}

func TestUniqJoin(t *testing.T) {
	got := uniqJoin([]string{"a", "b", "a", "c"})
	if got != "a | b | c" {
		t.Fatalf("unexpected join %q", got)
	}
	if uniqJoin(nil) != "" {
		t.Fatal("expected empty join for nil input")
	}
}

func TestMbpsRegex(t *testing.T) {
	for _, s := range []string{"최대 3Mbps 속도", "1 mbps", "5MBPS"} {
		if !mbpsRegex.MatchString(s) {
			t.Fatalf("expected match for %q", s)
		}
	}
	if mbpsRegex.MatchString("400Kbps") {
		t.Fatal("unexpected match for Kbps")
	}
}
