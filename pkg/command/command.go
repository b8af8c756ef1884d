// pkg/command/command.go - expansion and execution of package manager commands.

package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/google/shlex"

	"github.com/windowsadmins/appstore/pkg/logging"
)

// ErrTimeout is returned when a command exceeds its deadline.
var ErrTimeout = errors.New("command timed out")

// Expand splits a command template into arguments and substitutes vars
// (e.g. "{query}") inside each argument. Values are substituted after
// splitting, so spaces or quotes in a value never create extra arguments.
func Expand(template string, vars map[string]string) ([]string, error) {
	args, err := shlex.Split(escapeBackslashes(template))
	if err != nil {
		return nil, fmt.Errorf("invalid command template %q: %w", template, err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("empty command template")
	}
	for i, arg := range args {
		for placeholder, value := range vars {
			arg = strings.ReplaceAll(arg, placeholder, value)
		}
		args[i] = arg
	}
	return args, nil
}

// escapeBackslashes doubles backslashes that do not escape a quote, so
// Windows paths survive POSIX-style splitting. Single-quoted text is taken
// literally by the splitter and is left as is.
func escapeBackslashes(s string) string {
	var b strings.Builder
	var inSingle, inDouble bool
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case inSingle:
			inSingle = c != '\''
		case c == '\'' && !inDouble:
			inSingle = true
		case c == '"':
			inDouble = !inDouble
		case c == '\\' && i+1 < len(s) && s[i+1] == '"':
			b.WriteByte(c)
			i++
			c = s[i]
		case c == '\\':
			b.WriteString(`\\`)
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

// Result is the outcome of a command that ran to completion.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// Success reports a zero exit code.
func (r Result) Success() bool {
	return r.ExitCode == 0
}

// Combined returns stdout followed by stderr.
func (r Result) Combined() string {
	return r.Stdout + r.Stderr
}

// LastLine returns the last non-blank line of the combined output.
func (r Result) LastLine() string {
	lines := strings.Split(strings.ReplaceAll(r.Combined(), "\r\n", "\n"), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := lines[i]
		if idx := strings.LastIndex(line, "\r"); idx >= 0 {
			line = line[idx+1:]
		}
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}

// Runner executes a command. A non-zero exit is reported through
// Result.ExitCode; the error is reserved for commands that could not be
// started or did not finish.
type Runner interface {
	Run(ctx context.Context, args []string) (Result, error)
}

// ExecRunner runs commands as hidden child processes.
type ExecRunner struct {
	Timeout time.Duration
}

// NewExecRunner returns an ExecRunner with the given per-command timeout.
func NewExecRunner(timeout time.Duration) *ExecRunner {
	return &ExecRunner{Timeout: timeout}
}

// Run implements Runner.
func (r *ExecRunner) Run(ctx context.Context, args []string) (Result, error) {
	if len(args) == 0 {
		return Result{}, errors.New("no command given")
	}
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	logging.Debug("Running command", "command", args[0], "args", args[1:])

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	hideWindow(cmd)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	res := Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			logging.Error("Command timed out", "command", args[0], "timeout", r.Timeout)
			return res, fmt.Errorf("%s: %w after %s", args[0], ErrTimeout, r.Timeout)
		}
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			logging.Debug("Command exited with error", "command", args[0], "exitCode", res.ExitCode)
			return res, nil
		}
		return res, fmt.Errorf("failed to run %s: %w", args[0], err)
	}

	logging.Debug("Command finished", "command", args[0], "duration", res.Duration)
	return res, nil
}
