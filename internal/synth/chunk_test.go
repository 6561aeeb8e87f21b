package synth

import (
	"strings"
	"testing"

	"github.com/matryer/is"
)

func TestSanitize(t *testing.T) {
	cases := map[string]string{
		"Hello **world**":             "Hello world",
		"smart “quotes” here":       `smart "quotes" here`,
		"ellipsis… done":         "ellipsis... done",
		"tabs\tand\nnewlines":         "tabs and newlines",
		"  padded  ":                  "padded",
		"code `snippet` and # header": "code snippet and header",
	}
	for in, want := range cases {
		if got := Sanitize(in); got != want {
			t.Errorf("Sanitize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSplitSentences(t *testing.T) {
	is := is.New(t)

	got := SplitSentences("First one. Second one! Is this third? Trailing fragment")
	is.Equal(len(got), 4)
	is.Equal(got[0], "First one.")
	is.Equal(got[2], "Is this third?")
	is.Equal(got[3], "Trailing fragment")
}

func TestChunksMergeShortSentences(t *testing.T) {
	is := is.New(t)

	text := "Yes. No. Maybe so. It depends on the day. Some days are better. Others are worse. That is just how it goes sometimes."
	chunks := Chunks(text)
	is.True(len(chunks) >= 1)
	for _, c := range chunks {
		if len(c) > MaxChunkChars {
			t.Fatalf("chunk exceeds max: %d chars: %q", len(c), c)
		}
	}
	// Short sentences should have been merged, not emitted one by one.
	is.True(len(chunks) < 7)
}

func TestChunksSplitLongSentence(t *testing.T) {
	long := "This sentence keeps going with one clause after another, adding detail after detail, refusing to stop at a natural point, and it continues well past the maximum chunk size that the synthesizer is willing to accept in a single request."
	chunks := Chunks(long)
	if len(chunks) < 2 {
		t.Fatalf("expected long sentence to be split, got %d chunk(s)", len(chunks))
	}
	for _, c := range chunks {
		if len(c) > MaxChunkChars {
			t.Errorf("chunk exceeds max after secondary split: %d chars: %q", len(c), c)
		}
	}
}

func TestChunksPreserveContent(t *testing.T) {
	text := "The quick brown fox jumps over the lazy dog near the river bank. A second sentence follows the first one with a reasonable length. And a third wraps everything up quite nicely indeed."
	chunks := Chunks(text)

	joined := strings.Join(chunks, " ")
	for _, word := range []string{"fox", "second", "third", "nicely"} {
		if !strings.Contains(joined, word) {
			t.Errorf("chunked output lost %q", word)
		}
	}
}

func TestChunksEmptyInput(t *testing.T) {
	is := is.New(t)
	is.Equal(len(Chunks("")), 0)
	is.Equal(len(Chunks("   \n\t  ")), 0)
	is.Equal(len(Chunks("**``**")), 0)
}
