package mount

import (
	"context"
	"os/exec"
	"strings"
	"time"
)

// Runner executes an external command and returns its combined output.
// The actuator talks to the OS mount utilities only through a Runner.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec. Commands are killed when ctx ends.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.WaitDelay = 2 * time.Second
	return cmd.CombinedOutput()
}

// commandLine renders argv for logs, masking anything that looks like a
// password embedded in an smb:// URL or a mount option.
func commandLine(name string, args []string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, name)
	for _, a := range args {
		parts = append(parts, redact(a))
	}
	return strings.Join(parts, " ")
}

func redact(arg string) string {
	if i := strings.Index(arg, "password="); i >= 0 {
		end := strings.IndexByte(arg[i:], ',')
		if end < 0 {
			return arg[:i] + "password=****"
		}
		return arg[:i] + "password=****" + arg[i+end:]
	}
	if strings.HasPrefix(arg, "smb://") {
		if at := strings.IndexByte(arg, '@'); at > 0 {
			if colon := strings.IndexByte(arg[len("smb://"):at], ':'); colon >= 0 {
				return arg[:len("smb://")+colon] + ":****" + arg[at:]
			}
		}
	}
	return arg
}
