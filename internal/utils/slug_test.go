package utils

import (
	"strings"
	"testing"
)

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"PM Kisan":                         "pm-kisan",
		"  Pradhan Mantri Awas Yojana  ":   "pradhan-mantri-awas-yojana",
		"Women & Child":                    "women-and-child",
		"Jan-Dhan / Mudra":                 "jan-dhan-mudra",
		"Beti Bachao, Beti Padhao!":        "beti-bachao-beti-padhao",
		"Ayushman Bhārat":                  "ayushman-bharat",
		"Farmer's Scheme":                  "farmers-scheme",
		"---":                              "",
		"Tamil Nadu CM's Breakfast Scheme": "tamil-nadu-cms-breakfast-scheme",
	}
	for in, want := range cases {
		if got := Slugify(in); got != want {
			t.Fatalf("Slugify(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSlugifyCapsLengthAtWordBreak(t *testing.T) {
	title := strings.Repeat("scheme ", 30)
	got := Slugify(title)
	if len(got) > MaxSlugLength {
		t.Fatalf("expected at most %d chars, got %d", MaxSlugLength, len(got))
	}
	if strings.HasSuffix(got, "-") || !strings.HasSuffix(got, "scheme") {
		t.Fatalf("expected cut at a word break, got %q", got)
	}
	if !ValidSlug(got) {
		t.Fatalf("expected valid slug, got %q", got)
	}
}

func TestValidSlug(t *testing.T) {
	for _, s := range []string{"pm-kisan", "a", "scheme-2024"} {
		if !ValidSlug(s) {
			t.Fatalf("expected %q to be valid", s)
		}
	}
	for _, s := range []string{"", "PM-Kisan", "pm--kisan", "-pm", "pm kisan"} {
		if ValidSlug(s) {
			t.Fatalf("expected %q to be invalid", s)
		}
	}
}
