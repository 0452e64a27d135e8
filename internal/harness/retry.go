package harness

import "fmt"

const defaultContinuationDirective = "Please continue from where the previous attempt left off and complete the task."

// buildContinuationPrompt builds attempt N+1's prompt: the original
// prompt, followed by a rendered template reporting the previous
// attempt's number, exit code, timeout kind, and a tail (<=1200 chars) of
// its last message or standard output, followed by either the
// caller-supplied continuation directive or the default one
// (spec.md §4.4 "Retries").
func buildContinuationPrompt(originalPrompt, continuationOverride string, failedAttempt int, ar *attemptResult) string {
	tail := ar.lastMessage
	if tail == "" {
		tail = ar.stdout.String()
	}
	tail = tailString(tail, 1200)

	directive := continuationOverride
	if directive == "" {
		directive = defaultContinuationDirective
	}

	report := fmt.Sprintf(
		"Attempt %d failed (exit code %d, timeout: %s).\n\nPrevious output tail:\n%s\n\n%s",
		failedAttempt, ar.exitCode, ar.timeoutKind, tail, directive,
	)
	return originalPrompt + "\n\n---\n\n" + report
}

func tailString(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
