package harness

import (
	"bytes"
	"strings"
	"testing"
)

func TestBuildContinuationPromptIncludesAttemptReport(t *testing.T) {
	ar := &attemptResult{exitCode: 9, timeoutKind: TimeoutNone}
	ar.stdout = bytes.Buffer{}
	ar.stdout.WriteString("some prior output")

	got := buildContinuationPrompt("original prompt", "", 1, ar)
	if !strings.Contains(got, "original prompt") {
		t.Error("expected continuation prompt to include the original prompt")
	}
	if !strings.Contains(got, "Attempt 1 failed") {
		t.Errorf("expected literal substring \"Attempt 1 failed\", got:\n%s", got)
	}
	if !strings.Contains(got, defaultContinuationDirective) {
		t.Error("expected default continuation directive when none is configured")
	}
}

func TestBuildContinuationPromptUsesOverrideDirective(t *testing.T) {
	ar := &attemptResult{exitCode: 1, timeoutKind: TimeoutHard}
	got := buildContinuationPrompt("p", "custom directive", 2, ar)
	if !strings.Contains(got, "custom directive") {
		t.Error("expected custom continuation directive to be used")
	}
}

func TestTailStringTruncatesTo1200(t *testing.T) {
	long := strings.Repeat("x", 2000)
	got := tailString(long, 1200)
	if len(got) != 1200 {
		t.Errorf("len(tailString) = %d, want 1200", len(got))
	}
}
