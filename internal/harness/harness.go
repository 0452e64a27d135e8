// Package harness spawns coding-agent and planning-driver subprocesses,
// streams their JSONL output as normalized events, enforces no-output and
// hard timeouts, and retries with a continuation prompt (C4).
//
// Grounded directly on internal/engine/engine.go's invokeAgent: PTY
// allocation via creack/pty, cmd.Stdin fed from a string reader, io.Copy
// from the PTY master with the EIO-at-exit tolerance the teacher already
// codes (errors.As(err, &pathErr) && pathErr.Err == syscall.EIO).
// Extended with a byte-chunk reader loop (replacing the teacher's single
// blocking io.Copy) so the two watchdog timers can observe activity, a
// JSONL line splitter/classifier, the continuation-prompt retry builder,
// and go-ps-assisted process-tree kill on timeout — the teacher runs
// short-lived concern agents with no timeout handling at all, so this
// part has no direct teacher precedent and is built from spec.md §4.4's
// description plus the "timeouts without signals" note in §9. Each
// attempt's effective prompt is also persisted to disk (pathkey.PromptPath),
// keyed by ticket stem and attempt number the same way the JSONL byte log
// is, so a continuation prompt built from a prior failure is independently
// inspectable (spec.md §8 S5).
package harness

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/creack/pty"
	ps "github.com/mitchellh/go-ps"

	"github.com/orchestrator/kernel/internal/pathkey"
)

// TimeoutKind classifies why a run ended, if it was cut short by a watchdog.
type TimeoutKind string

const (
	TimeoutNone     TimeoutKind = "none"
	TimeoutNoOutput TimeoutKind = "no-output"
	TimeoutHard     TimeoutKind = "hard"
)

// Config describes one logical agent invocation, which may span several
// retried attempts.
type Config struct {
	Command           string
	Model             string
	ReasoningEffort    string
	WorkingDir        string
	RepoRoot          string
	MCPURL            string
	SessionToken      string
	NoOutputTimeout   time.Duration
	HardTimeout       time.Duration
	HeartbeatInterval time.Duration
	MaxAttempts       int
	BaseAttempt       int
	RepoCheckBypass   bool
	Continuation      string // overrides the default continuation directive when non-empty

	// TicketStem identifies the attempt-log JSONL file under the managed
	// temp root. LogPath derives it via pathkey.AttemptLogPath.
	TicketStem string

	// OnEvent, if set, is called for every normalized stream event across
	// every attempt, in order.
	OnEvent func(attempt int, ev Event)
}

// Result is the outcome of a (possibly retried) run.
type Result struct {
	Command         []string
	ExitCode        int
	Attempt         int
	AttemptCount    int
	Stdout          string
	LogPath         string
	PromptPath      string
	LastMessagePath string
	LastMessage     string
	TimeoutKind     TimeoutKind
}

// nowFunc is overridden in tests.
var nowFunc = time.Now

// Run executes the configured agent, retrying up to cfg.MaxAttempts times
// on non-zero exit or timeout, building a continuation prompt for each
// retry (spec.md §4.4 "Retries").
func Run(cfg Config, prompt string) (*Result, error) {
	backend := ResolveBackend(cfg.Model)
	if !backend.Implemented() {
		return nil, &ErrBackendUnsupported{Model: cfg.Model}
	}

	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var last *attemptResult
	attemptCount := 0
	currentPrompt := prompt

	for i := 0; i < maxAttempts; i++ {
		attempt := cfg.BaseAttempt + i + 1
		attemptCount++

		ar, err := runAttempt(cfg, attempt, currentPrompt)
		if err != nil {
			return nil, err
		}
		last = ar

		if ar.exitCode == 0 && ar.timeoutKind == TimeoutNone {
			break
		}
		if i == maxAttempts-1 {
			break
		}
		currentPrompt = buildContinuationPrompt(prompt, cfg.Continuation, attempt, ar)
	}

	return &Result{
		Command:         last.command,
		ExitCode:        last.exitCode,
		Attempt:         last.attempt,
		AttemptCount:    attemptCount,
		Stdout:          last.stdout.String(),
		LogPath:         last.logPath,
		PromptPath:      last.promptPath,
		LastMessagePath: last.lastMessagePath,
		LastMessage:     last.lastMessage,
		TimeoutKind:     last.timeoutKind,
	}, nil
}

type attemptResult struct {
	command         []string
	attempt         int
	exitCode        int
	stdout          bytes.Buffer
	logPath         string
	promptPath      string
	lastMessagePath string
	lastMessage     string
	timeoutKind     TimeoutKind
}

// runAttempt spawns one subprocess attempt and drives it to completion or
// watchdog-triggered termination.
func runAttempt(cfg Config, attempt int, prompt string) (*attemptResult, error) {
	logPath := pathkey.AttemptLogPath(cfg.RepoRoot, cfg.TicketStem, attempt)
	if err := pathkey.EnsureDir(parentDir(logPath)); err != nil {
		return nil, fmt.Errorf("harness: creating log dir: %w", err)
	}
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("harness: opening attempt log: %w", err)
	}
	defer logFile.Close()

	lastMessagePath := logPath + ".message"
	argv := BuildArgv(cfg, lastMessagePath)

	promptPath := pathkey.PromptPath(cfg.RepoRoot, cfg.TicketStem, attempt)
	if err := os.WriteFile(promptPath, []byte(prompt), 0o644); err != nil {
		return nil, fmt.Errorf("harness: persisting attempt prompt: %w", err)
	}

	ar := &attemptResult{command: append([]string{cfg.Command}, argv...), attempt: attempt, logPath: logPath, promptPath: promptPath, lastMessagePath: lastMessagePath}

	cmd := exec.Command(cfg.Command, argv...)
	cmd.Dir = cfg.WorkingDir
	urlVar, tokenVar := FormatEndpointEnv(pathkey.ToolName, cfg.MCPURL, cfg.SessionToken)
	cmd.Env = append(os.Environ(),
		urlVar+"="+cfg.MCPURL,
		tokenVar+"="+cfg.SessionToken,
	)

	ptmx, ptySlave, err := pty.Open()
	if err != nil {
		return nil, fmt.Errorf("harness: opening pty: %w", err)
	}
	defer ptmx.Close()

	cmd.Stdin = strings.NewReader(prompt)
	cmd.Stdout = ptySlave
	cmd.Stderr = ptySlave

	if err := cmd.Start(); err != nil {
		ptySlave.Close()
		return nil, fmt.Errorf("harness: starting agent: %w", err)
	}
	ptySlave.Close()

	timeoutKind, readErr := pumpOutput(cmd, ptmx, logFile, &ar.stdout, cfg, attempt)
	ar.timeoutKind = timeoutKind
	if readErr != nil {
		return nil, readErr
	}

	waitErr := cmd.Wait()
	ar.exitCode = exitCodeOf(waitErr)

	if data, err := os.ReadFile(lastMessagePath); err == nil {
		ar.lastMessage = string(data)
	}

	return ar, nil
}

// pumpOutput reads from the PTY master in a goroutine, classifying and
// forwarding complete JSONL lines, while the caller's goroutine races the
// two watchdog timers against a done signal — the "readiness wait" shape
// spec.md §9 describes, adapted here to a channel-driven select instead
// of a raw poll loop so both timers can be reset/cancelled cleanly.
func pumpOutput(cmd *exec.Cmd, ptmx *os.File, logFile *os.File, stdout *bytes.Buffer, cfg Config, attempt int) (TimeoutKind, error) {
	chunks := make(chan []byte, 16)
	readDone := make(chan error, 1)

	go func() {
		buf := make([]byte, 4096)
		for {
			n, err := ptmx.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				chunks <- chunk
			}
			if err != nil {
				var pathErr *os.PathError
				if errors.As(err, &pathErr) && pathErr.Err == syscall.EIO {
					readDone <- nil
				} else if err == io.EOF {
					readDone <- nil
				} else {
					readDone <- err
				}
				close(chunks)
				return
			}
		}
	}()

	var lineBuf bytes.Buffer
	var mu sync.Mutex
	lastActivity := nowFunc()

	hardDeadline := timerOrNever(cfg.HardTimeout)
	defer hardDeadline.Stop()

	noOutputTimer := timerOrNever(cfg.NoOutputTimeout)
	defer noOutputTimer.Stop()

	var heartbeatTimer *time.Timer
	if cfg.HeartbeatInterval > 0 {
		heartbeatTimer = time.NewTimer(cfg.HeartbeatInterval)
		defer heartbeatTimer.Stop()
	} else {
		heartbeatTimer = timerOrNever(0)
		defer heartbeatTimer.Stop()
	}

	kill := func() {
		if cmd.Process != nil {
			killProcessTree(cmd.Process.Pid)
		}
	}

	for {
		select {
		case chunk, ok := <-chunks:
			if !ok {
				return TimeoutNone, nil
			}
			mu.Lock()
			lastActivity = nowFunc()
			mu.Unlock()
			_, _ = logFile.Write(chunk)
			stdout.Write(chunk)
			lineBuf.Write(chunk)
			for {
				idx := bytes.IndexByte(lineBuf.Bytes(), '\n')
				if idx < 0 {
					break
				}
				line := make([]byte, idx)
				copy(line, lineBuf.Bytes()[:idx])
				lineBuf.Next(idx + 1)
				if ev, ok := ParseLine(line); ok && cfg.OnEvent != nil {
					cfg.OnEvent(attempt, ev)
				}
			}
			resetTimer(noOutputTimer, cfg.NoOutputTimeout)
			resetHeartbeat(heartbeatTimer, cfg.HeartbeatInterval)

		case err := <-readDone:
			return TimeoutNone, err

		case <-noOutputTimer.C:
			kill()
			drainUntilClosed(chunks)
			return TimeoutNoOutput, nil

		case <-hardDeadline.C:
			kill()
			drainUntilClosed(chunks)
			return TimeoutHard, nil

		case <-heartbeatTimer.C:
			if cfg.OnEvent != nil {
				cfg.OnEvent(attempt, SyntheticHeartbeat())
			}
			resetHeartbeat(heartbeatTimer, cfg.HeartbeatInterval)
		}
	}
}

func drainUntilClosed(chunks <-chan []byte) {
	for range chunks {
	}
}

func timerOrNever(d time.Duration) *time.Timer {
	if d <= 0 {
		return time.NewTimer(time.Duration(1<<62) * time.Nanosecond)
	}
	return time.NewTimer(d)
}

func resetTimer(t *time.Timer, d time.Duration) {
	if d <= 0 {
		return
	}
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}

func resetHeartbeat(t *time.Timer, d time.Duration) {
	if d <= 0 {
		return
	}
	resetTimer(t, d)
}

func exitCodeOf(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

// killProcessTree kills pid and, best-effort, every process go-ps reports
// as a descendant — so a test runner or build tool the agent shelled out
// to does not survive the agent's own termination.
func killProcessTree(pid int) {
	procs, err := ps.Processes()
	if err == nil {
		children := map[int][]int{}
		for _, p := range procs {
			children[p.PPid()] = append(children[p.PPid()], p.Pid())
		}
		var kill func(int)
		kill = func(target int) {
			for _, child := range children[target] {
				kill(child)
			}
			if proc, err := os.FindProcess(target); err == nil {
				_ = proc.Signal(syscall.SIGKILL)
			}
		}
		kill(pid)
		return
	}
	if proc, err := os.FindProcess(pid); err == nil {
		_ = proc.Signal(syscall.SIGKILL)
	}
}

func parentDir(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return "."
}
