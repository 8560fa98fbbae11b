package mirror

import "testing"

func TestNormalizeKnownShapes(t *testing.T) {
	want := "https://pixeldrain.com/api/filesystem/abc123?attach"
	cases := []string{
		"https://pixeldrain.com/d/abc123",
		"https://pixeldrain.com/u/abc123",
		"https://pixeldrain.com/api/filesystem/abc123",
		"https://pixeldrain.com/d/abc123?embed",
		"http://pixeldrain.com/u/abc123",
	}
	for _, raw := range cases {
		if got := Normalize(raw); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	canonical := Normalize("https://pixeldrain.com/d/xyz")
	if got := Normalize(canonical); got != canonical {
		t.Fatalf("Normalize not idempotent: %q -> %q", canonical, got)
	}
}

func TestNormalizePassthrough(t *testing.T) {
	cases := []string{
		"https://example.com/d/abc123",
		"https://mega.nz/file/abc",
		"not a url at all",
		"",
	}
	for _, raw := range cases {
		if got := Normalize(raw); got != raw {
			t.Errorf("Normalize(%q) = %q, want input unchanged", raw, got)
		}
	}
}

func TestIsMirror(t *testing.T) {
	if !IsMirror("https://pixeldrain.com/d/abc") {
		t.Error("expected pixeldrain URL to be recognised as mirror")
	}
	if IsMirror("https://notpixeldrain.com/d/abc") {
		t.Error("expected foreign host to be rejected")
	}
}
