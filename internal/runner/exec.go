package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/releasegate/internal/logging"
	"github.com/fyrsmithlabs/releasegate/internal/secrets"
)

const waitDelay = 2 * time.Second

// Exec runs commands as child processes of the current process.
type Exec struct {
	logger *logging.Logger
}

// NewExec creates an Exec runner. A nil logger disables diagnostics.
func NewExec(logger *logging.Logger) *Exec {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Exec{logger: logger.Named("runner")}
}

// LookPath resolves name against PATH.
func (e *Exec) LookPath(name string) (string, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	return path, nil
}

// Run executes cmd, capturing stdout and stderr separately.
func (e *Exec) Run(ctx context.Context, cmd Command) (*Result, error) {
	if len(cmd.Argv) == 0 || cmd.Argv[0] == "" {
		return nil, ErrEmptyCommand
	}

	execCtx := ctx
	if cmd.Timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, cmd.Timeout)
		defer cancel()
	}

	name, args := platformArgv(cmd.Argv)
	c := exec.CommandContext(execCtx, name, args...)
	c.Dir = cmd.Dir
	// grandchildren can hold the output pipes open after a kill
	c.WaitDelay = waitDelay
	if len(cmd.Env) > 0 {
		c.Env = os.Environ()
		for k, v := range cmd.Env {
			c.Env = append(c.Env, k+"="+v)
		}
	}

	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	// argv can carry a token, e.g. vsce publish -p <pat>
	shown := secrets.Redact(cmd.String())
	e.logger.Debug(ctx, "running command",
		zap.String("cmd", shown),
		zap.String("dir", cmd.Dir),
		zap.Duration("timeout", cmd.Timeout))

	start := time.Now()
	err := c.Run()
	result := &Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if err != nil {
		if cmd.Timeout > 0 && errors.Is(execCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			e.logger.Warn(ctx, "command timed out",
				zap.String("cmd", shown),
				zap.Duration("timeout", cmd.Timeout))
			return result, fmt.Errorf("%s after %s: %w", shown, cmd.Timeout, ErrTimeout)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			if result.ExitCode < 0 {
				// killed by signal, typically the parent ctx being cancelled
				if ctxErr := ctx.Err(); ctxErr != nil {
					return result, ctxErr
				}
				result.ExitCode = 1
			}
		} else if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) || errors.Is(err, os.ErrPermission) {
			e.logger.Debug(ctx, "command not found", zap.String("cmd", shown), zap.Error(err))
			return nil, fmt.Errorf("%s: %w", cmd.Argv[0], ErrNotFound)
		} else {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("running %s: %w", shown, err)
		}
	}

	e.logger.Debug(ctx, "command finished",
		zap.String("cmd", shown),
		zap.Int("exit_code", result.ExitCode),
		zap.Duration("duration", result.Duration))
	e.logger.Trace(ctx, "command output",
		zap.String("cmd", shown),
		zap.String("stdout", secrets.Redact(result.Stdout)),
		zap.String("stderr", secrets.Redact(result.Stderr)))

	return result, nil
}

// platformArgv routes npm-style shims through the command interpreter on
// Windows, where npm, npx and code are .cmd files that CreateProcess cannot
// start directly.
func platformArgv(argv []string) (string, []string) {
	if runtime.GOOS != "windows" {
		return argv[0], argv[1:]
	}
	path, err := exec.LookPath(argv[0])
	if err != nil {
		return argv[0], argv[1:]
	}
	lower := strings.ToLower(path)
	if strings.HasSuffix(lower, ".cmd") || strings.HasSuffix(lower, ".bat") {
		return "cmd", append([]string{"/c", path}, argv[1:]...)
	}
	return path, argv[1:]
}
