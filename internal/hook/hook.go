package hook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/maxvaer/keyprobe/internal/output"
	"github.com/maxvaer/keyprobe/internal/scanner"
)

// Timeout bounds a single hook invocation.
const Timeout = 30 * time.Second

// Runner executes a shell command for each displayed probe result.
type Runner struct {
	cmd    string
	quiet  bool
	stderr io.Writer
}

// NewRunner creates a hook runner. cmd is the shell command to execute.
func NewRunner(cmd string, quiet bool) *Runner {
	return &Runner{cmd: cmd, quiet: quiet, stderr: os.Stderr}
}

// Run executes the hook command with the result's export record as JSON on
// stdin. Errors are logged but do not halt the run.
func (r *Runner) Run(ctx context.Context, result *scanner.ProbeResult) {
	data, err := json.Marshal(output.NewRecord(result))
	if err != nil {
		fmt.Fprintf(r.stderr, "[hook] marshal error: %v\n", err)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, Timeout)
	defer cancel()

	shell, args := shellCommand()
	cmd := exec.CommandContext(ctx, shell, append(args, r.Expand(result))...)
	cmd.Stdin = bytes.NewReader(data)
	cmd.Stderr = r.stderr

	out, err := cmd.Output()
	if err != nil {
		if !r.quiet {
			fmt.Fprintf(r.stderr, "[hook] %s: %v\n", result.API, err)
		}
		return
	}
	if len(out) > 0 && !r.quiet {
		fmt.Fprintf(r.stderr, "[hook] %s", out)
	}
}

// Expand substitutes {api}, {url}, {status}, {label} and {method} in the
// command. A missing status expands to an empty string.
func (r *Runner) Expand(result *scanner.ProbeResult) string {
	status := ""
	if result.HasStatus() {
		status = strconv.Itoa(result.StatusCode)
	}
	return strings.NewReplacer(
		"{api}", result.API,
		"{url}", result.URL,
		"{status}", status,
		"{label}", string(result.Label),
		"{method}", result.Method,
	).Replace(r.cmd)
}

func shellCommand() (string, []string) {
	if runtime.GOOS == "windows" {
		return "cmd", []string{"/C"}
	}
	return "sh", []string{"-c"}
}
