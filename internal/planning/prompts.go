package planning

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// AgentsReferenceNote returns a one-line pointer at an AGENTS.md file at
// the repo root, if one exists, or "" otherwise (spec.md §4.8: "a
// reference to any AGENTS.md present at the repo root"). Only the
// planning prompts below include it; internal/kernel's coding-agent
// prompt does not.
func AgentsReferenceNote(repoRoot string) string {
	if _, err := os.Stat(filepath.Join(repoRoot, "AGENTS.md")); err != nil {
		return ""
	}
	return "This repository has an AGENTS.md at its root; read it before making changes.\n"
}

func buildArchitectPrompt(repoRoot, specContent, directive string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Repository root: %s\n\n", repoRoot)
	b.WriteString(AgentsReferenceNote(repoRoot))
	fmt.Fprintf(&b, "\nCurrent spec.md:\n\n%s\n\n", specContent)
	b.WriteString(directive)
	return b.String()
}

const architectOneShotDirective = "You are the Architect. Revise spec.md to reflect the repository's " +
	"current state and the user's goals. You may write only spec.md. Any other change will be rejected."

const architectAreasDirective = "You are the Architect. Decompose spec.md into one or more scoped work " +
	"areas. Write one markdown file per area under areas/, named \"<NN>-<slug>.md\" with a two-digit, " +
	"zero-padded, monotonically increasing prefix starting after the highest area number already present. " +
	"You may write only files under areas/. Any other change will be rejected."

func buildAreasPrompt(repoRoot, specContent string) string {
	return buildArchitectPrompt(repoRoot, specContent, architectAreasDirective)
}

func buildInteractivePrompt(repoRoot, specContent string, history []Turn, userMessage string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Repository root: %s\n\n", repoRoot)
	b.WriteString(AgentsReferenceNote(repoRoot))
	fmt.Fprintf(&b, "\nCurrent spec.md:\n\n%s\n\n", specContent)
	if len(history) > 0 {
		b.WriteString("Conversation so far:\n")
		for _, t := range history {
			fmt.Fprintf(&b, "[%s] %s\n", t.Role, t.Text)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "[user] %s\n\n", userMessage)
	b.WriteString(architectOneShotDirective)
	return b.String()
}

// buildManagerPrompt tells the Manager exactly which ticket number it
// must start from, so the kernel can guard against a mis-numbered ticket
// rather than trust the agent's own arithmetic (spec.md §3 invariant P4).
func buildManagerPrompt(repoRoot string, areaID, areaBody string, nextTicketNumber int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Repository root: %s\n\n", repoRoot)
	b.WriteString(AgentsReferenceNote(repoRoot))
	fmt.Fprintf(&b, "\nArea %s:\n\n%s\n\n", areaID, areaBody)
	fmt.Fprintf(&b, "You are the Manager. Decompose this area into one or more tickets. Write one markdown "+
		"file per ticket under tickets/open/, named \"<NNNN>-<slug>.md\" with a four-digit, zero-padded "+
		"ticket number starting at %04d and incrementing by one per ticket, each file beginning with the "+
		"header line \"**Area:** %s\". You may write only files under tickets/open/. Any other change will "+
		"be rejected.", nextTicketNumber, areaID)
	return b.String()
}
