package util

import "testing"

func TestCanonicalKey(t *testing.T) {
	cases := map[string]string{
		"  Domates  Salkım ": "domates_salkim",
		"Süt 1L":             "sut_1l",
		"ÇİĞ-KÖFTE":          "cig_kofte",
		"":                   "",
		"---":                "",
	}
	for in, want := range cases {
		if got := CanonicalKey(in); got != want {
			t.Fatalf("CanonicalKey(%q) = %q, want %q", in, got, want)
		}
	}
}
