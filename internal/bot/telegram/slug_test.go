package telegram

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeSlug(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"My Pack", "my_pack"},
		{"Cats & Dogs!!", "cats_dogs"},
		{"__already_ok__", "already_ok"},
		{"ABC_123", "abc_123"},
		{"---", ""},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, NormalizeSlug(tc.in), "input %q", tc.in)
	}
}

func TestParsePackLink(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://t.me/addstickers/my_pack", "my_pack"},
		{"https://t.me/addemoji/Fancy_1", "Fancy_1"},
		{"t.me/addstickers/abc", "abc"},
		{"bare_slug_99", "bare_slug_99"},
		{"https://example.com/whatever", ""},
		{"not a slug!", ""},
		{"", ""},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, ParsePackLink(tc.in), "input %q", tc.in)
	}
}
