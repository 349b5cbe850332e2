package translator

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestLanguageName(t *testing.T) {
	tests := []struct {
		code string
		want string
	}{
		{"fr", "French"},
		{"en", "English"},
		{"pt-BR", "Brazilian Portuguese"},
		{"zh", "Chinese"},
		{"French", "French"},
		{"not a tag!", "not a tag!"},
	}
	for _, tt := range tests {
		if got := LanguageName(tt.code); got != tt.want {
			t.Errorf("LanguageName(%q) = %q, want %q", tt.code, got, tt.want)
		}
	}
}

func TestContextManager_Record(t *testing.T) {
	cm := NewContextManager()
	if cm.Current() != "" {
		t.Errorf("fresh context = %q, want empty", cm.Current())
	}

	cm.Record("Première phrase traduite.")
	if cm.Current() != "Première phrase traduite." {
		t.Errorf("Current = %q", cm.Current())
	}

	// Empty results keep the previous context.
	cm.Record("")
	if cm.Current() != "Première phrase traduite." {
		t.Errorf("empty record clobbered context: %q", cm.Current())
	}
	if cm.ChunksSeen != 2 {
		t.Errorf("ChunksSeen = %d, want 2", cm.ChunksSeen)
	}
}

func TestContextManager_TailLimit(t *testing.T) {
	cm := NewContextManager()
	long := strings.Repeat("mot ", 400)
	cm.Record(long)

	got := cm.Current()
	if n := len([]rune(got)); n > contextTailLimit {
		t.Errorf("context length %d exceeds limit %d", n, contextTailLimit)
	}
	if !strings.HasSuffix(strings.TrimSpace(long), strings.TrimSpace(got)) {
		t.Error("context is not a tail of the recorded translation")
	}
}

func TestContextManager_CheckpointRoundTrip(t *testing.T) {
	cm := NewContextManager()
	cm.Record("Un deuxième passage.")
	cm.Record("Un troisième passage.")

	raw, err := cm.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	got, err := RestoreContext(raw)
	if err != nil {
		t.Fatalf("RestoreContext: %v", err)
	}
	if got.Current() != "Un troisième passage." || got.ChunksSeen != 2 {
		t.Errorf("restored = %+v", got)
	}

	fresh, err := RestoreContext(nil)
	if err != nil {
		t.Fatalf("RestoreContext(nil): %v", err)
	}
	if fresh.Current() != "" {
		t.Errorf("nil payload produced context %q", fresh.Current())
	}
}

func TestRateLimiter_ConsumesAndRefills(t *testing.T) {
	rl := NewRateLimiter(60) // one token per second

	for i := 0; i < 60; i++ {
		if !rl.TryConsume() {
			t.Fatalf("token %d unavailable from full bucket", i)
		}
	}
	if rl.TryConsume() {
		t.Error("consumed token from empty bucket")
	}

	time.Sleep(1100 * time.Millisecond)
	if !rl.TryConsume() {
		t.Error("bucket did not refill after window elapsed")
	}
}

func TestRateLimiter_StatusCounters(t *testing.T) {
	rl := NewRateLimiter(60)
	for i := 0; i < 3; i++ {
		if !rl.TryConsume() {
			t.Fatalf("token %d unavailable from full bucket", i)
		}
	}

	st := rl.Status()
	if st.TotalConsumed != 3 {
		t.Errorf("TotalConsumed = %d, want 3", st.TotalConsumed)
	}
	if st.AvailableTokens > 57.5 {
		t.Errorf("AvailableTokens = %v after three tokens taken", st.AvailableTokens)
	}
	if st.TotalWaited != 0 {
		t.Errorf("TotalWaited = %v without any blocking", st.TotalWaited)
	}
}

func TestRateLimiter_WaitHonorsCancellation(t *testing.T) {
	rl := NewRateLimiter(60)
	for rl.TryConsume() {
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := rl.Wait(ctx); err == nil {
		t.Error("Wait returned nil on cancelled context with empty bucket")
	}
}

func TestMockRecordsCalls(t *testing.T) {
	m := NewMock()
	out, err := m.TranslateChunk(context.Background(), Request{
		Text:           "[[0]]Hello[[1]]",
		SourceLanguage: "English",
		TargetLanguage: "French",
	})
	if err != nil {
		t.Fatalf("TranslateChunk: %v", err)
	}
	if out != "[[0]]Hello[[1]]" {
		t.Errorf("identity mock returned %q", out)
	}
	calls := m.Calls()
	if len(calls) != 1 || calls[0].TargetLanguage != "French" {
		t.Errorf("calls = %+v", calls)
	}
}

func TestContextManager_AdjustContextForChunk(t *testing.T) {
	cm := NewContextManager()
	cm.Record(strings.Repeat("palabra ", 100)) // ~800 runes, trimmed to the tail limit

	t.Run("small chunk gets the full tail", func(t *testing.T) {
		got := cm.AdjustContextForChunk(1000, "gpt-4o-mini")
		if got != cm.Current() {
			t.Errorf("context trimmed for a small chunk: %d vs %d runes",
				len([]rune(got)), len([]rune(cm.Current())))
		}
	})

	t.Run("large chunk shrinks the context", func(t *testing.T) {
		got := cm.AdjustContextForChunk(11800, "gpt-4o-mini")
		if n := len([]rune(got)); n == 0 || n > 200 {
			t.Errorf("context = %d runes, want trimmed to at most 200", n)
		}
	})

	t.Run("chunk filling the budget gets none", func(t *testing.T) {
		if got := cm.AdjustContextForChunk(20000, "gpt-4o-mini"); got != "" {
			t.Errorf("context = %q, want empty", got)
		}
	})

	t.Run("smaller models have smaller budgets", func(t *testing.T) {
		if got := cm.AdjustContextForChunk(7000, "gpt-3.5-turbo"); got != "" {
			t.Errorf("context = %q, want empty for exhausted gpt-3.5 budget", got)
		}
		if got := cm.AdjustContextForChunk(7000, "gpt-4o-mini"); got == "" {
			t.Error("gpt-4o budget should still have room")
		}
	})
}
