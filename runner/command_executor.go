package runner

import (
	"bufio"
	"context"
	"io"
	"os/exec"
	"sync"

	"github.com/pkg/errors"
)

// ShellExecutor runs a target's shell action via `sh -c`, feeding each
// output line to logLine.
type ShellExecutor interface {
	Run(ctx context.Context, workdir, script string, logLine func(string)) error
}

// RealShellExecutor implements ShellExecutor using actual OS calls
type RealShellExecutor struct{}

func (RealShellExecutor) Run(ctx context.Context, workdir, script string, logLine func(string)) error {
	cmd := exec.CommandContext(ctx, "sh", "-c", script)
	cmd.Dir = workdir

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return errors.WithStack(err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return errors.WithStack(err)
	}

	if err := cmd.Start(); err != nil {
		return errors.Wrap(err, "failed to start command")
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go scanLines(stdout, logLine, &wg)
	go scanLines(stderr, logLine, &wg)
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return errors.WithStack(ctx.Err())
		}
		return errors.Wrap(err, "command failed")
	}

	return nil
}

func scanLines(pipe io.Reader, logLine func(string), wg *sync.WaitGroup) {
	defer wg.Done()
	scanner := bufio.NewScanner(pipe)
	for scanner.Scan() {
		logLine(scanner.Text())
	}
}
