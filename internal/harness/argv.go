package harness

import "fmt"

// BuildArgv builds the agent subprocess argument vector in the
// deterministic order spec.md §4.4 prescribes: developer instructions,
// MCP server pointer, an exec mode flag, a path to receive the final
// message, the working directory, the model name, a sandbox-bypass flag,
// reasoning-effort override if configured, a repo-check bypass if
// requested, and a final "-" marker denoting that the user prompt is
// delivered on standard input.
func BuildArgv(cfg Config, lastMessagePath string) []string {
	args := []string{
		"--developer-instructions", developerInstructions,
		"--mcp-server", cfg.MCPURL,
		"--exec",
		"--output-last-message", lastMessagePath,
		"--cd", cfg.WorkingDir,
		"--model", cfg.Model,
		"--dangerously-bypass-approvals-and-sandbox",
	}
	if cfg.ReasoningEffort != "" {
		args = append(args, "--reasoning-effort", cfg.ReasoningEffort)
	}
	if cfg.RepoCheckBypass {
		args = append(args, "--skip-git-repo-check")
	}
	args = append(args, "-")
	return args
}

const developerInstructions = "You are running non-interactively inside an automated orchestration loop. " +
	"Report progress and completion through the provided MCP tools. " +
	"Do not wait for user confirmation."

// FormatEndpointEnv renders the environment variable names every spawned
// child receives (spec.md §6): "<TOOL>_MCP_URL" and
// "<TOOL>_SESSION_TOKEN", tool name upper-cased.
func FormatEndpointEnv(toolName, mcpURL, sessionToken string) (urlVar, tokenVar string) {
	upper := fmt.Sprintf("%s_MCP_URL", upperCase(toolName))
	token := fmt.Sprintf("%s_SESSION_TOKEN", upperCase(toolName))
	return upper, token
}

func upperCase(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - ('a' - 'A')
		}
	}
	return string(b)
}
