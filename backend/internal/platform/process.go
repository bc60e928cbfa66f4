package platform

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync/atomic"
	"time"

	"thermonode/backend/pkg/utils"
)

// CommandSleeper suspends the host with a shell command and then calls wake, which requests the
// restart that stands in for the cold boot after a deep sleep.
type CommandSleeper struct {
	l       *slog.Logger
	command string
	wait    func(ctx context.Context, d time.Duration) error
	wake    func()
}

// NewCommandSleeper takes a command with a single %d for the duration in seconds. An empty
// command waits in process instead. wake runs after a completed sleep, usually
// ProcessRestarter.Restart so the process re-executes after a graceful shutdown.
func NewCommandSleeper(l *slog.Logger, command string, wake func()) *CommandSleeper {
	return &CommandSleeper{
		l:       l.With(slog.String("component", "sleeper")),
		command: command,
		wait:    waitFor,
		wake:    wake,
	}
}

func waitFor(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (s *CommandSleeper) Sleep(ctx context.Context, d time.Duration) error {
	secs := int64(d / time.Second)

	if s.command == "" {
		s.l.Info("no sleep command configured, waiting in process", slog.Duration("duration", d))

		if err := s.wait(ctx, d); err != nil {
			return err
		}
	} else {
		cmdline := fmt.Sprintf(s.command, secs)
		s.l.Info("suspending", slog.String("command", cmdline))

		cmd := exec.CommandContext(ctx, "sh", "-c", cmdline)
		cmd.Stdout = utils.NewSlogWriter(s.l.With(slog.String("stream", "stdout")))
		cmd.Stderr = utils.NewSlogWriter(s.l.With(slog.String("stream", "stderr")))

		if err := cmd.Run(); err != nil {
			return fmt.Errorf("sleep command %q failed: %w", strings.Fields(cmdline)[0], err)
		}
	}

	s.l.Info("woke up, restarting")
	s.wake()

	return nil
}

// ProcessRestarter records a restart request and cancels the root context. The caller re-executes
// the binary once shutdown has finished.
type ProcessRestarter struct {
	l         *slog.Logger
	cancel    context.CancelFunc
	requested atomic.Bool
}

func NewProcessRestarter(l *slog.Logger, cancel context.CancelFunc) *ProcessRestarter {
	return &ProcessRestarter{
		l:      l.With(slog.String("component", "restarter")),
		cancel: cancel,
	}
}

func (r *ProcessRestarter) Restart() {
	if r.requested.Swap(true) {
		return
	}

	r.l.Info("restart scheduled")
	r.cancel()
}

func (r *ProcessRestarter) Requested() bool {
	return r.requested.Load()
}

// executable is swapped in tests.
var executable = os.Executable //nolint:gochecknoglobals // Test seam
