package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"

	"github.com/creack/pty"
)

// Process is a command running on a pseudo-terminal.
// The embedded Expecter talks to it through the pty master.
type Process struct {
	*Expecter

	cmd *exec.Cmd
	pty *os.File

	done    chan struct{}
	waitErr error
	once    sync.Once
}

type spawnConfig struct {
	dir  string
	env  []string
	size *pty.Winsize
	opts []Option
}

// SpawnOption configures Spawn.
type SpawnOption func(*spawnConfig)

// WithDir sets the working directory of the command.
func WithDir(dir string) SpawnOption {
	return func(c *spawnConfig) {
		c.dir = dir
	}
}

// WithEnv adds KEY=VALUE entries to the inherited environment.
func WithEnv(env ...string) SpawnOption {
	return func(c *spawnConfig) {
		c.env = append(c.env, env...)
	}
}

// WithSize sets the terminal size reported to the command.
func WithSize(cols, rows uint16) SpawnOption {
	return func(c *spawnConfig) {
		c.size = &pty.Winsize{Cols: cols, Rows: rows}
	}
}

// WithExpecterOptions passes options through to the Expecter.
func WithExpecterOptions(opts ...Option) SpawnOption {
	return func(c *spawnConfig) {
		c.opts = append(c.opts, opts...)
	}
}

// Spawn starts name with args on a new pty. Cancelling ctx kills the command.
func Spawn(ctx context.Context, name string, args []string, opts ...SpawnOption) (*Process, error) {
	cfg := &spawnConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = cfg.dir
	if len(cfg.env) > 0 {
		cmd.Env = append(os.Environ(), cfg.env...)
	}

	var (
		f   *os.File
		err error
	)
	if cfg.size != nil {
		f, err = pty.StartWithSize(cmd, cfg.size)
	} else {
		f, err = pty.Start(cmd)
	}
	if err != nil {
		return nil, fmt.Errorf("transport: spawn %s: %w", name, err)
	}

	slog.Debug("spawned command", "name", name, "args", args, "pid", cmd.Process.Pid)

	p := &Process{
		cmd:  cmd,
		pty:  f,
		done: make(chan struct{}),
	}
	expOpts := append([]Option{WithEchoControl(func(enabled bool) error {
		return setEcho(f, enabled)
	})}, cfg.opts...)
	p.Expecter = New(f, f, expOpts...)

	go func() {
		p.waitErr = cmd.Wait()
		close(p.done)
	}()

	return p, nil
}

// Pid returns the process id of the command.
func (p *Process) Pid() int {
	return p.cmd.Process.Pid
}

// Resize changes the terminal size reported to the command.
func (p *Process) Resize(cols, rows uint16) error {
	if err := pty.Setsize(p.pty, &pty.Winsize{Cols: cols, Rows: rows}); err != nil {
		return fmt.Errorf("transport: resize: %w", err)
	}
	return nil
}

// Wait blocks until the command exits and returns its exit error, if any.
func (p *Process) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return p.waitErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ExitCode returns the exit code once the command has exited, or -1.
func (p *Process) ExitCode() int {
	select {
	case <-p.done:
		return p.cmd.ProcessState.ExitCode()
	default:
		return -1
	}
}

// Close closes the pty, kills the command if it is still running and reaps it.
func (p *Process) Close() error {
	var err error
	p.once.Do(func() {
		err = p.Expecter.Close()
		select {
		case <-p.done:
		default:
			if kerr := p.cmd.Process.Kill(); kerr != nil && !errors.Is(kerr, os.ErrProcessDone) {
				slog.Warn("failed to kill command", "pid", p.cmd.Process.Pid, "error", kerr)
			}
			<-p.done
		}
	})
	return err
}
