package voice

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"FinSight/internal/domain/models"
	drepo "FinSight/internal/domain/repository"
	dservice "FinSight/internal/domain/service"
)

// ExecBackend runs a recognizer helper process and scans its stdout for
// detection lines of the form "wake:<keyword>".
type ExecBackend struct {
	command string
	args    []string
	keyword string

	mu     sync.Mutex
	cancel context.CancelFunc
	events chan models.WakeEvent
	wg     sync.WaitGroup
}

// NewExec creates a new ExecBackend instance.
func NewExec(command string, args []string, keyword string) *ExecBackend {
	return &ExecBackend{command: command, args: args, keyword: keyword}
}

func (b *ExecBackend) Name() string { return "exec" }

// Available checks that the helper binary is on PATH.
func (b *ExecBackend) Available(_ context.Context) error {
	if _, err := exec.LookPath(b.command); err != nil {
		return fmt.Errorf("%w: helper %q: %v", drepo.ErrBackendUnavailable, b.command, err)
	}
	return nil
}

// Start launches the helper and begins scanning its stdout.
func (b *ExecBackend) Start(ctx context.Context) (bool, error) {
	cctx, cancel := context.WithCancel(ctx)

	args := b.args
	if b.keyword != "" {
		args = append(append([]string{}, b.args...), "--keyword", b.keyword)
	}
	cmd := exec.CommandContext(cctx, b.command, args...)
	pipe, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return false, fmt.Errorf("helper stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return false, fmt.Errorf("helper start: %w", err)
	}

	b.mu.Lock()
	b.cancel = cancel
	b.events = make(chan models.WakeEvent, 8)
	events := b.events
	b.mu.Unlock()

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		scanner := bufio.NewScanner(pipe)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			kw, ok := strings.CutPrefix(line, "wake:")
			if !ok {
				continue
			}
			select {
			case events <- models.WakeEvent{Backend: b.Name(), Keyword: kw, At: time.Now()}:
			default:
			}
		}
		_ = cmd.Wait()
		close(events)
	}()
	return true, nil
}

// Detections returns the detection channel for the current run.
func (b *ExecBackend) Detections() <-chan models.WakeEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.events
}

// Stop kills the helper and waits for the scanner to drain.
func (b *ExecBackend) Stop(_ context.Context) error {
	b.mu.Lock()
	cancel := b.cancel
	b.cancel = nil
	b.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	b.wg.Wait()
	return nil
}

var _ dservice.WakeWordBackend = (*ExecBackend)(nil)
