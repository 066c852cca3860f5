// Package audio captures microphone PCM through an external ffmpeg process.
package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"sitespeak/internal/ports"
)

const (
	startupGrace = 250 * time.Millisecond
	stopGrace    = 1200 * time.Millisecond
)

// FFmpegCapture implements ports.AudioCapture by spawning ffmpeg and reading
// raw s16le PCM from its stdout.
type FFmpegCapture struct {
	command string
}

func NewFFmpegCapture(command string) *FFmpegCapture {
	if command == "" {
		command = "ffmpeg"
	}
	return &FFmpegCapture{command: command}
}

// Probe checks that the recorder binary exists. Used for the one-time
// capability check at startup.
func (c *FFmpegCapture) Probe() error {
	if _, err := exec.LookPath(c.command); err != nil {
		return fmt.Errorf("recorder %q not found: %w", c.command, err)
	}
	return nil
}

func (c *FFmpegCapture) Start(ctx context.Context, cfg ports.AudioConfig) (ports.AudioSession, error) {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	if cfg.InputFormat == "" {
		cfg.InputFormat = "pulse"
	}
	if cfg.InputDevice == "" {
		cfg.InputDevice = "default"
	}

	args := []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-f", cfg.InputFormat,
		"-i", cfg.InputDevice,
		"-ac", strconv.Itoa(cfg.Channels),
		"-ar", strconv.Itoa(cfg.SampleRate),
		"-f", "s16le",
		"-",
	}

	cmd := exec.CommandContext(ctx, c.command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create recorder stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start recorder: %w", err)
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
		close(waitErr)
	}()

	// Catch immediate failures (bad device, bad format) before handing the
	// session out.
	select {
	case err := <-waitErr:
		detail := bytes.TrimSpace(stderr.Bytes())
		if err != nil {
			return nil, fmt.Errorf("recorder exited before capture started: %w: %s", err, detail)
		}
		return nil, fmt.Errorf("recorder exited before capture started: %s", detail)
	case <-time.After(startupGrace):
	}

	return &captureSession{
		stdout:  stdout,
		stderr:  &stderr,
		process: cmd.Process,
		waitErr: waitErr,
	}, nil
}

type captureSession struct {
	stdout io.ReadCloser
	stderr *bytes.Buffer

	process *os.Process
	waitErr <-chan error

	stopOnce sync.Once
	stopErr  error
}

func (s *captureSession) Read(p []byte) (int, error) {
	return s.stdout.Read(p)
}

func (s *captureSession) Close() error {
	return s.Stop()
}

// Stop interrupts the recorder and waits briefly for it to exit; a stubborn
// process is killed. Safe to call multiple times.
func (s *captureSession) Stop() error {
	s.stopOnce.Do(func() {
		if s.process != nil {
			_ = s.process.Signal(os.Interrupt)
		}

		select {
		case err, ok := <-s.waitErr:
			if ok {
				s.stopErr = ignoreExitError(err)
			}
		case <-time.After(stopGrace):
			if s.process != nil {
				_ = s.process.Kill()
			}
			if err, ok := <-s.waitErr; ok {
				s.stopErr = ignoreExitError(err)
			}
		}

		if closeErr := s.stdout.Close(); closeErr != nil && !errors.Is(closeErr, os.ErrClosed) && s.stopErr == nil {
			s.stopErr = closeErr
		}

		if s.stopErr != nil && s.stderr.Len() > 0 {
			s.stopErr = fmt.Errorf("%w: %s", s.stopErr, bytes.TrimSpace(s.stderr.Bytes()))
		}
	})

	return s.stopErr
}

// ignoreExitError drops exit-status errors: an interrupted recorder exits
// nonzero even when capture shut down cleanly.
func ignoreExitError(err error) error {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}
