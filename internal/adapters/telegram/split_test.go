package telegram

import (
	"strings"
	"testing"
)

func TestSplitPrefersNewlines(t *testing.T) {
	text := strings.Repeat("a", 3000) + "\n\n" + strings.Repeat("b", 2000) + "\n" + strings.Repeat("c", 500)

	parts := SplitMessage(text)
	if len(parts) != 2 {
		t.Fatalf("ожидали 2 части, получили %d", len(parts))
	}
	for i, part := range parts {
		if n := len([]rune(part)); n > MessageLimit {
			t.Fatalf("часть %d превышает лимит: %d", i, n)
		}
	}
	if parts[0] != strings.Repeat("a", 3000) {
		t.Fatalf("неожиданное содержимое первой части")
	}
	if !strings.HasPrefix(parts[1], "b") || !strings.HasSuffix(parts[1], strings.Repeat("c", 500)) {
		t.Fatalf("неожиданное содержимое второй части")
	}
}

func TestSplitFallsBackToSpaces(t *testing.T) {
	parts := Split("Visit the Amber Fort early", 10)
	want := []string{"Visit the", "Amber Fort", "early"}
	if len(parts) != len(want) {
		t.Fatalf("ожидали %v, получили %v", want, parts)
	}
	for i := range want {
		if parts[i] != want[i] {
			t.Fatalf("часть %d: ожидали %q, получили %q", i, want[i], parts[i])
		}
	}
}

func TestSplitHardCut(t *testing.T) {
	parts := Split("नमस्तेनमस्ते", 6)
	if len(parts) != 2 || parts[0] != "नमस्ते" {
		t.Fatalf("ожидали резку по рунам, получили %q", parts)
	}
}

func TestSplitEmptyAndShort(t *testing.T) {
	if parts := SplitMessage("   \n  "); len(parts) != 0 {
		t.Fatalf("пустой текст не должен давать частей, получили %d", len(parts))
	}
	if parts := SplitMessage(" hello "); len(parts) != 1 || parts[0] != "hello" {
		t.Fatalf("неожиданный результат: %q", parts)
	}
}
