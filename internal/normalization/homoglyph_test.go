package normalization

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFoldHomoglyphs(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"already normalized", "lr081595", "lr081595"},
		{"uppercase folds to lower", "LR081595", "lr081595"},
		{"punctuation stripped", "LR-081595", "lr081595"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FoldHomoglyphs(tt.input))
		})
	}
}

func TestFoldHomoglyphs_MapsKnownCyrillicLookalikes(t *testing.T) {
	// а о е к м н р с т у х -> a o e k m h p c t y x
	assert.Equal(t, "abcdefghijkl", FoldHomoglyphs("abcdefghijkl"))
	assert.Equal(t, "a", FoldHomoglyphs("а")) // cyrillic а
	assert.Equal(t, "o", FoldHomoglyphs("о")) // cyrillic о
	assert.Equal(t, "e", FoldHomoglyphs("е")) // cyrillic е
	assert.Equal(t, "k", FoldHomoglyphs("к")) // cyrillic к
	assert.Equal(t, "m", FoldHomoglyphs("м")) // cyrillic м
	assert.Equal(t, "h", FoldHomoglyphs("н")) // cyrillic н
	assert.Equal(t, "p", FoldHomoglyphs("р")) // cyrillic р
	assert.Equal(t, "c", FoldHomoglyphs("с")) // cyrillic с
	assert.Equal(t, "t", FoldHomoglyphs("т")) // cyrillic т
	assert.Equal(t, "y", FoldHomoglyphs("у")) // cyrillic у
	assert.Equal(t, "x", FoldHomoglyphs("х")) // cyrillic х
	assert.Equal(t, "b", FoldHomoglyphs("в")) // cyrillic в
}

func TestParseInputString(t *testing.T) {
	assert.Equal(t, "hello world", ParseInputString("  Hello World  "))
}
