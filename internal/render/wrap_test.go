package render

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"github.com/evidenceledger/certchain/internal/models"
)

// tenPixelsPerRune measures every rune, spaces included, as 10 pixels.
func tenPixelsPerRune(s string) fixed.Int26_6 {
	return fixed.I(10 * utf8.RuneCountInString(s))
}

func TestWrapLines(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		maxWidth int
		want     []string
	}{
		{"empty", "", 100, nil},
		{"single word", "hello", 100, []string{"hello"}},
		// "hello world " is 12 runes, 120 pixels
		{"exactly at threshold", "hello world", 120, []string{"hello world"}},
		{"one pixel over", "hello world", 119, []string{"hello", "world"}},
		{"many lines", "a b c d e f", 40, []string{"a b", "c d", "e f"}},
		{"overlong first word", "supercalifragilistic tiny", 50, []string{"supercalifragilistic", "tiny"}},
		{"collapses whitespace", "one   two\nthree", 1000, []string{"one two three"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := wrapLines(tt.text, fixed.I(tt.maxWidth), tenPixelsPerRune)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWrapBoundaryWithRealFont(t *testing.T) {
	r, err := New(Options{Layout: DefaultLayout()})
	require.NoError(t, err)

	ff, err := r.openFaces(models.EmphasisRegular)
	require.NoError(t, err)
	defer ff.close()

	measure := func(s string) fixed.Int26_6 { return font.MeasureString(ff.text, s) }

	const description = "Completed the advanced course"
	width := measure(description + " ")

	// Same font, same string: same width, every time.
	assert.Equal(t, width, measure(description+" "))

	assert.Equal(t, []string{description}, wrapLines(description, width, measure))
	assert.Equal(t,
		[]string{"Completed the advanced", "course"},
		wrapLines(description, width-fixed.I(1), measure))
}
