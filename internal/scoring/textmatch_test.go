package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"The mitochondria!":    "the mitochondria",
		"  photo   synthesis ": "photo synthesis",
		"H2O.":                 "h2o",
		"":                     "",
		"!!!":                  "",
	}
	for in, want := range cases {
		assert.Equal(t, want, normalize(in), "normalize(%q)", in)
	}
}

func TestLevenshtein(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"a", "", 1},
		{"", "abc", 3},
		{"kitten", "sitting", 3},
		{"paris", "pariss", 1},
		{"same", "same", 0},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, levenshtein(tc.a, tc.b), "levenshtein(%q,%q)", tc.a, tc.b)
	}
}
