package text

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want int
	}{
		{"empty", "", 0},
		{"single char", "a", 1},
		{"exactly one token", "abcd", 1},
		{"rounds up", "abcde", 2},
		{"multibyte runes count as runes", "日本語あ", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EstimateTokens(tt.in); got != tt.want {
				t.Errorf("EstimateTokens(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestSplit_Empty(t *testing.T) {
	if got := Split("", 1024); got != nil {
		t.Errorf("Split(empty) = %v, want nil", got)
	}
	if got := Split("   \n\t  ", 1024); got != nil {
		t.Errorf("Split(whitespace) = %v, want nil", got)
	}
}

func TestSplit_ShortTextIsSingleChunk(t *testing.T) {
	got := Split("a short note", 1024)
	if len(got) != 1 || got[0] != "a short note" {
		t.Errorf("Split = %v, want single untouched chunk", got)
	}
}

func TestSplit_RespectsTokenBudget(t *testing.T) {
	const target = 16
	long := strings.Repeat("the quick brown fox jumps over the lazy dog. ", 40)

	chunks := Split(long, target)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, chunk := range chunks {
		if got := EstimateTokens(chunk); got > target {
			t.Errorf("chunk %d estimates %d tokens, budget %d", i, got, target)
		}
		if strings.TrimSpace(chunk) == "" {
			t.Errorf("chunk %d is blank", i)
		}
	}
}

func TestSplit_PrefersParagraphBreaks(t *testing.T) {
	para := strings.Repeat("alpha beta gamma. ", 10)
	input := strings.TrimSpace(para) + "\n\n" + strings.TrimSpace(para)

	// Budget fits one paragraph but not both.
	chunks := Split(input, EstimateTokens(para)+10)
	if len(chunks) != 2 {
		t.Fatalf("chunks = %d, want 2: %q", len(chunks), chunks)
	}
	for i, chunk := range chunks {
		if strings.Contains(chunk, "\n\n") {
			t.Errorf("chunk %d spans a paragraph break: %q", i, chunk)
		}
	}
}

func TestSplit_PreservesAllContent(t *testing.T) {
	input := strings.Repeat("one two three four five six seven eight nine ten. ", 30)

	chunks := Split(input, 20)
	joined := strings.Join(chunks, " ")
	for _, word := range []string{"one", "ten."} {
		if !strings.Contains(joined, word) {
			t.Errorf("rejoined chunks missing %q", word)
		}
	}
	// No content may be dropped: rejoined length matches the input modulo
	// the whitespace collapsed at chunk boundaries.
	normalize := func(s string) string { return strings.Join(strings.Fields(s), " ") }
	if normalize(joined) != normalize(input) {
		t.Error("split dropped or reordered content")
	}
}

func TestSplit_UnbrokenTextCutsAtRuneEdges(t *testing.T) {
	input := strings.Repeat("語", 100)

	chunks := Split(input, 4) // 16 runes per chunk
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	total := 0
	for i, chunk := range chunks {
		if !utf8.ValidString(chunk) {
			t.Errorf("chunk %d split a multibyte rune", i)
		}
		total += utf8.RuneCountInString(chunk)
	}
	if total != 100 {
		t.Errorf("rune count after split = %d, want 100", total)
	}
}
