package sanitize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain text untouched", "hello world", "hello world"},
		{"nbsp collapsed", "a b", "a b"},
		{"control chars stripped", "a\x00b\x07c", "abc"},
		{"tab newline cr kept", "a\tb\nc\rd", "a\tb\nc\rd"},
		{"nfkc compatibility form", "ﬁle", "file"}, // fi ligature
		{"fullwidth digits folded", "１２３", "123"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Text(tt.input))
		})
	}
}

func TestTextIdempotent(t *testing.T) {
	inputs := []string{
		"plain",
		"a  b",
		"ﬁle\x00 with junk\x1b",
		"café", // e + combining acute
		"tabs\tand\nnewlines\r",
	}

	for _, in := range inputs {
		once := Text(in)
		assert.Equal(t, once, Text(once), "sanitizer must be a fixpoint for %q", in)
	}
}

func TestTextPtr(t *testing.T) {
	assert.Nil(t, TextPtr(nil))

	s := "a b"
	got := TextPtr(&s)
	assert.NotNil(t, got)
	assert.Equal(t, "a b", *got)
}
