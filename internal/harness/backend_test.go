package harness

import "testing"

func TestResolveBackendPrefixRule(t *testing.T) {
	cases := []struct {
		model string
		want  Backend
	}{
		{"codex-large", BackendCodexLike},
		{"gpt-5-mini", BackendCodexLike},
		{"claude-opus-4", BackendClaudeLike},
		{"some-other-model", BackendOther},
	}
	for _, c := range cases {
		if got := ResolveBackend(c.model); got != c.want {
			t.Errorf("ResolveBackend(%q) = %v, want %v", c.model, got, c.want)
		}
	}
}

func TestOnlyCodexLikeBackendIsImplemented(t *testing.T) {
	if !BackendCodexLike.Implemented() {
		t.Error("expected BackendCodexLike to be implemented")
	}
	if BackendClaudeLike.Implemented() || BackendOther.Implemented() {
		t.Error("expected only one backend to be implemented, per spec")
	}
}
